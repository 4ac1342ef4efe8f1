package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flowbuilder/internal/harness"
	"github.com/roach88/flowbuilder/internal/palette"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Filter     string
	PaletteDir string
}

// ScenarioResult holds the result of a single scenario.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioReport holds the overall result.
type ScenarioReport struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <scenarios-dir>",
		Short: "Run scripted editor scenarios",
		Long: `Run every scenario YAML file in a directory against a fresh editor.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenario, etc.)

Examples:
  flowbuilder scenario ./scenarios
  flowbuilder scenario ./scenarios --filter "save_*"
  flowbuilder scenario ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	cmd.Flags().StringVar(&opts.PaletteDir, "palette", "", "directory of CUE palette files (default: built-in palette)")
	return cmd
}

func runScenarios(opts *ScenarioOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return formatter.fail(ExitCommandError, ErrCodeRead, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}

	pal, err := loadPalette(opts.PaletteDir)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeParse, "cannot load palette", err)
	}

	files, err := harness.FindScenarios(dir, opts.Filter)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeRead, "cannot list scenarios", err)
	}

	report := ScenarioReport{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	logger := newLogger(defaultLogConfig(), opts.Verbose, formatter.GetErrWriter())

	for _, file := range files {
		s, err := harness.LoadScenario(file)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeParse, fmt.Sprintf("scenario %s", file), err)
		}
		formatter.VerboseLog("Running %s (%s)", s.Name, file)

		res, err := harness.Run(cmd.Context(), s, harness.WithPalette(pal), harness.WithLogger(logger))
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("scenario %s", s.Name), err)
		}

		report.Scenarios = append(report.Scenarios, ScenarioResult{
			Name:   s.Name,
			File:   file,
			Pass:   res.Pass,
			Errors: res.Errors,
		})
		if res.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		printScenarioReport(formatter, report)
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", report.Failed, report.Total))
	}
	return nil
}

func printScenarioReport(f *OutputFormatter, report ScenarioReport) {
	if report.Total == 0 {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return
	}
	for _, s := range report.Scenarios {
		if s.Pass {
			f.Pass("%s", s.Name)
			continue
		}
		f.Fail("%s", s.Name)
		for _, e := range s.Errors {
			f.Detail("%s", e)
		}
	}
	fmt.Fprintf(f.Writer, "\n%d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)
}

// loadPalette returns the built-in palette when dir is empty.
func loadPalette(dir string) (*palette.Registry, error) {
	if dir == "" {
		return palette.Default(), nil
	}
	return palette.LoadDir(dir)
}
