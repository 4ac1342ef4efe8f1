package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/flowbuilder/internal/config"
	"github.com/roach88/flowbuilder/internal/editor"
	"github.com/roach88/flowbuilder/internal/graph"
	"github.com/roach88/flowbuilder/internal/persist"
	"github.com/roach88/flowbuilder/internal/server"
	"github.com/roach88/flowbuilder/internal/status"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Backend  string
	Database string
	FlowID   string
	FlowName string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flow editor over HTTP",
		Long: `Start the editor event loop and its HTTP API.

With --flow naming a stored flow, its newest revision is loaded first;
otherwise editing starts from an empty canvas.

Example:
  flowbuilder serve --addr 127.0.0.1:8080 --db ./flows.db
  flowbuilder serve --backend memory --verbose
  REDIS_URL=redis://localhost:6379/0 flowbuilder serve --backend redis`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "storage backend: sqlite, redis or memory (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVar(&opts.FlowID, "flow", "", "id of the flow to edit (default: a new UUIDv7)")
	cmd.Flags().StringVar(&opts.FlowName, "name", "Untitled", "name of a new flow")

	return cmd
}

// serveConfig applies command-line overrides to cfg.
func (o *ServeOptions) serveConfig(cfg config.Config) (config.Config, error) {
	if o.Addr != "" {
		cfg.Listen = o.Addr
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	return cfg, cfg.Validate()
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(cmd)
	if err == nil {
		cfg, err = opts.serveConfig(cfg)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pal, err := loadPalette(cfg.PaletteDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load palette", err)
	}

	logger.Info("opening backend", "backend", cfg.Backend)
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	defer func() {
		if closeErr := closeBackend(); closeErr != nil {
			logger.Error("error closing backend", "error", closeErr)
		}
	}()

	edOpts := []editor.Option{
		editor.WithBackend(backend),
		editor.WithPalette(pal),
		editor.WithStrictUpdates(cfg.Graph.StrictUpdates),
		editor.WithGraphOptions(graph.WithPolicy(graph.Policy{AllowSelfLoops: cfg.Graph.AllowSelfLoops})),
		editor.WithGatewayOptions(persist.WithDismissal(cfg.Status.SuccessAfter, cfg.Status.FailureAfter)),
		editor.WithFlow(opts.FlowID, opts.FlowName),
		editor.WithLogger(logger),
	}
	ed := editor.New(status.TimeScheduler{}, edOpts...)

	if opts.FlowID != "" {
		err := ed.Load(ctx, opts.FlowID)
		switch {
		case errors.Is(err, persist.ErrNotFound):
			logger.Info("starting new flow", "flow", opts.FlowID)
		case err != nil:
			return WrapExitError(ExitCommandError, "failed to load flow", err)
		}
	}

	loop := editor.NewLoop(ed)
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving flow editor on http://%s\n", cfg.Listen)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	srv := server.New(loop, pal, logger)
	serveErr := srv.ListenAndServe(ctx, cfg.Listen)

	stop()
	loop.Stop()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("editor loop error", "error", err)
	}

	if serveErr != nil {
		return WrapExitError(ExitFailure, "http server error", serveErr)
	}
	logger.Info("stopped gracefully")
	return nil
}
