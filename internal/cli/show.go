package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/flowbuilder/internal/persist"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <flow-id>",
		Short: "Print the newest stored revision of a flow",
		Long: `Print the newest stored revision of a flow.

Text output is the flow document as YAML, which validate and save accept
back unchanged.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
}

func runShow(opts *RootOptions, flowID string, cmd *cobra.Command) error {
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

	doc, err := backend.Load(ctx, flowID)
	if errors.Is(err, persist.ErrNotFound) {
		return formatter.fail(ExitFailure, ErrCodeNotFound, "flow not found", err)
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBackend, "cannot load flow", err)
	}

	if formatter.JSON() {
		return formatter.Success(doc)
	}

	enc := yaml.NewEncoder(formatter.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
