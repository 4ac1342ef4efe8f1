package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPaletteCommand creates the palette command.
func NewPaletteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "palette [palette-dir]",
		Short: "List the node types a flow can contain",
		Long: `List the node types offered by the palette.

Without an argument the built-in palette is shown; with one, the CUE files
in that directory are loaded and checked against the palette schema.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runPalette(rootOpts, dir, cmd)
		},
	}
}

func runPalette(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	pal, err := loadPalette(dir)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeParse, "cannot load palette", err)
	}

	descs := pal.Descriptors()
	if formatter.JSON() {
		return formatter.Success(descs)
	}

	for _, d := range descs {
		formatter.Pass("%s  %s", d.Type, d.Label)
		formatter.Detail("%s [%s] renderer=%s", d.Description, d.Category, d.Renderer)
	}
	fmt.Fprintf(formatter.Writer, "\n%d node type(s)\n", len(descs))
	return nil
}
