package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/persist"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	FlowID string
	Name   string
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <flow-file>",
		Short: "Validate a flow document and store it as a new revision",
		Long: `Validate a flow document and store it in the configured backend.

Malformed flows (dangling edges, duplicate ids, a source handle used twice)
and flows with more than one entry point are rejected without touching
storage. Saving content that
is already stored for the flow returns the existing revision.

A document without an id is assigned a fresh UUIDv7.

Exit codes:
  0 - Saved
  1 - Rejected (malformed flow or multiple entry points)
  2 - Command error (unreadable file, backend failure)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FlowID, "flow-id", "", "override the document's flow id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "override the document's name")
	return cmd
}

func runSave(opts *SaveOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "invalid configuration", err)
	}
	logger := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())

	doc, err := readFlowFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return formatter.fail(ExitCommandError, ErrCodeRead, "flow file not found", err)
		}
		return formatter.fail(ExitCommandError, ErrCodeParse, "cannot read flow file", err)
	}
	if err := checkStructure(doc.Snapshot, cfg.Graph.AllowSelfLoops); err != nil {
		return formatter.fail(ExitFailure, ErrCodeStructure, "malformed flow", err)
	}
	if opts.FlowID != "" {
		doc.ID = opts.FlowID
	}
	if opts.Name != "" {
		doc.Name = opts.Name
	}
	if doc.ID == "" {
		doc.ID = flow.UUIDv7Generator{}.Generate()
		formatter.VerboseLog("Assigned flow id %s", doc.ID)
	}

	ctx := cmd.Context()
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBackend, "cannot open backend", err)
	}
	defer closeBackend()

	gw := persist.NewGateway(backend, nil, persist.WithGatewayLogger(logger))
	res := gw.Save(ctx, doc)

	switch res.Outcome {
	case persist.OutcomeRejected:
		return formatter.fail(ExitFailure, ErrCodeEntryPoints, persist.TextRejected, res.Err)
	case persist.OutcomeFailed:
		return formatter.fail(ExitCommandError, ErrCodeBackend, persist.TextRejected, res.Err)
	}

	if formatter.JSON() {
		return formatter.Success(res.Revision)
	}
	formatter.Pass("%s", persist.TextSaved)
	printRevision(formatter, *res.Revision)
	return nil
}

func printRevision(f *OutputFormatter, rev persist.Revision) {
	f.Detail("flow:     %s", rev.FlowID)
	f.Detail("revision: %s (seq %d)", rev.ID, rev.Seq)
	f.Detail("content:  %s", rev.ContentHash)
	f.Detail("size:     %d nodes, %d edges", rev.Nodes, rev.Edges)
	f.Detail("saved at: %s", rev.SavedAt.Format("2006-01-02 15:04:05 MST"))
}
