package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/georemind/internal/config"
	"github.com/roach88/georemind/internal/engine"
	"github.com/roach88/georemind/internal/geofence"
	"github.com/roach88/georemind/internal/location"
	"github.com/roach88/georemind/internal/metrics"
	"github.com/roach88/georemind/internal/notify"
	"github.com/roach88/georemind/internal/store"
)

// metricsShutdownTimeout bounds the metrics server shutdown.
const metricsShutdownTimeout = 5 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath  string
	TrackPath   string
	MetricsAddr string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the proximity engine",
		Long: `Start the proximity engine against the reminder database.

The engine registers a geofence around every active reminder, follows
location fixes, and posts the nearest active reminder to the status
channel on every tick until the tick budget is spent or no active
reminders remain.

Location fixes are replayed from a YAML track file. Without --track the
engine receives no fixes and keeps showing the placeholder.

While running, standard input accepts one command per line:
  deactivate <id>   complete a reminder (as a geofence entry would)
  start             restart the notification loop after it ended
  stop              complete every active reminder and stop

Example:
  georemind run --db ./georemind.db --track ./walk.yaml
  georemind run --config ./georemind.yaml --metrics-addr :9090 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML configuration file")
	cmd.Flags().StringVar(&opts.TrackPath, "track", "", "path to YAML location track to replay")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}

	track := &location.Track{}
	if opts.TrackPath != "" {
		track, err = location.LoadTrack(opts.TrackPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load track", err)
		}
		slog.Info("track loaded", "path", opts.TrackPath, "fixes", len(track.Fixes))
	}

	// Open database (create if not exists)
	slog.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	engineOpts := append(cfg.EngineOptions(), engine.WithMetrics(m))
	ctrl := engine.New(
		st,
		geofence.NewMemoryRegistry(),
		location.NewTrackSource(*track),
		notify.NewWriterNotifier(cmd.OutOrStdout()),
		engineOpts...,
	)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Commands: deactivate <id>, start, stop.")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The engine ending on its own also ends the metrics server.
		defer cancel()
		err := ctrl.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			slog.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	input := cmd.InOrStdin()
	// Not part of the group: a blocked read must not hold up shutdown.
	go func() {
		if err := ctrl.Flush(gctx); err != nil {
			return
		}
		readCommands(input, ctrl)
	}()

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("engine stopped gracefully")
	return nil
}

// commandTarget is the part of the controller driven from the control input.
type commandTarget interface {
	Deactivate(id string) bool
	Start() bool
	Stop()
}

// readCommands applies control lines from r until EOF or until the target
// stops accepting them.
func readCommands(r io.Reader, target commandTarget) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch {
		case fields[0] == "deactivate" && len(fields) == 2:
			if !target.Deactivate(fields[1]) {
				return
			}
		case fields[0] == "start" && len(fields) == 1:
			if !target.Start() {
				return
			}
		case fields[0] == "stop" && len(fields) == 1:
			target.Stop()
			return
		default:
			slog.Warn("unknown command", "line", scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("reading commands failed", "error", err)
	}
}
