package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/graph"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	NoSelfLoops bool
}

// ValidationResult is the JSON payload of validate.
type ValidationResult struct {
	Valid bool          `json:"valid"`
	Nodes int           `json:"nodes"`
	Edges int           `json:"edges"`
	Roots []flow.NodeID `json:"roots"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <flow-file>",
		Short: "Check a flow document without saving it",
		Long: `Check a flow document (JSON or YAML) the way a save would.

The structure is checked first: unique node ids, finite positions, edges
between existing nodes and at most one edge per source handle. Then the
flow must have a single entry point.

Exit codes:
  0 - Flow is valid
  1 - Flow is invalid
  2 - Command error (unreadable or malformed file)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoSelfLoops, "no-self-loops", false, "reject edges whose source is their target")
	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	doc, err := readFlowFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return formatter.fail(ExitCommandError, ErrCodeRead, "flow file not found", err)
		}
		return formatter.fail(ExitCommandError, ErrCodeParse, "cannot read flow file", err)
	}
	formatter.VerboseLog("Loaded %s: %d node(s), %d edge(s)", path, len(doc.Snapshot.Nodes), len(doc.Snapshot.Edges))

	if err := checkStructure(doc.Snapshot, !opts.NoSelfLoops); err != nil {
		return formatter.fail(ExitFailure, ErrCodeStructure, "malformed flow", err)
	}

	result := ValidationResult{
		Nodes: len(doc.Snapshot.Nodes),
		Edges: len(doc.Snapshot.Edges),
		Roots: graph.Roots(doc.Snapshot),
	}
	verr := graph.Validate(doc.Snapshot)
	result.Valid = verr == nil

	if formatter.JSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeEntryPoints, Message: verr.Error()},
		}); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "flow invalid", verr)
	}

	if result.Valid {
		formatter.Pass("Flow valid (%d nodes, %d edges)", result.Nodes, result.Edges)
		return nil
	}

	formatter.Fail("Validation failed")
	formatter.Detail("%s: %s", ErrCodeEntryPoints, verr.Error())
	for _, id := range result.Roots {
		formatter.Detail("entry point: %s", id)
	}
	return WrapExitError(ExitFailure, "flow invalid", verr)
}
