package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/flowbuilder/internal/persist"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history <flow-id>",
		Short:         "List the stored revisions of a flow, oldest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, args[0], cmd)
		},
	}
}

func runHistory(opts *RootOptions, flowID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "invalid configuration", err)
	}

	ctx := cmd.Context()
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBackend, "cannot open backend", err)
	}
	defer closeBackend()

	revs, err := backend.History(ctx, flowID)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBackend, "cannot list revisions", err)
	}

	if formatter.JSON() {
		if revs == nil {
			revs = []persist.Revision{}
		}
		return formatter.Success(revs)
	}

	if len(revs) == 0 {
		formatter.Detail("no revisions stored for %s", flowID)
		return nil
	}
	for _, rev := range revs {
		formatter.Pass("#%d %s  %d nodes, %d edges  %s",
			rev.Seq, rev.ID, rev.Nodes, rev.Edges, rev.SavedAt.Format("2006-01-02 15:04:05"))
		formatter.Detail("%s", rev.ContentHash)
	}
	return nil
}
