package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"livemic/internal/bootstrap"
	"livemic/internal/usecase"
)

const metricsShutdownTimeout = 5 * time.Second

type liveOptions struct {
	metricsAddr     string
	muted           bool
	camera          bool
	printTranscript bool
}

func newLiveCmd() *cobra.Command {
	var opts liveOptions
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run one live session until interrupted or closed by the server",
		Long: `Live provisions a credential when LIVEMIC_EPHEMERAL is set, connects to
the Gemini Live service and streams the microphone (and optionally the camera)
until Ctrl-C, credential expiry or a server close.

On exit the transcript is passed through the substitution rules and printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLive(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	flags.BoolVar(&opts.muted, "muted", false, "start with the microphone muted")
	flags.BoolVar(&opts.camera, "camera", false, "stream camera frames while live")
	flags.BoolVar(&opts.printTranscript, "print-transcript", true, "print the processed transcript on exit")
	return cmd
}

func runLive(cmd *cobra.Command, opts liveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	sink := &logSink{}
	services, err := bootstrap.Build(sink, &writerClipboard{w: cmd.OutOrStdout()}, reg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	logger := services.Logger.With("component", "cli")
	sink.setLogger(logger)

	if opts.metricsAddr != "" {
		server := newMetricsServer(opts.metricsAddr, reg)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", opts.metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", opts.metricsAddr)
	}

	controller := services.Controller
	if opts.muted {
		controller.ToggleMute()
	}
	if opts.camera {
		if _, err := controller.ToggleCamera(); err != nil {
			return err
		}
	}

	// Capture processes are bound to the Start context; interrupts go through Stop.
	go func() {
		<-ctx.Done()
		_ = controller.Stop()
	}()

	if err := controller.Start(cmd.Context()); err != nil {
		if errors.Is(err, usecase.ErrSessionCancelled) {
			return nil
		}
		return fmt.Errorf("failed to start live session: %w", err)
	}

	err = controller.Wait(ctx)
	switch {
	case err == nil, errors.Is(err, usecase.ErrNoActiveSession):
	case errors.Is(err, context.Canceled):
		logger.Info("interrupted, stopping session")
	default:
		return err
	}
	if err := controller.Stop(); err != nil {
		return err
	}

	if !opts.printTranscript {
		return nil
	}
	if _, err := controller.CopyTranscript(context.Background()); err != nil && !errors.Is(err, usecase.ErrEmptyTranscript) {
		return err
	}
	return nil
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// writerClipboard stands in for the system clipboard in a terminal.
type writerClipboard struct {
	w io.Writer
}

func (c *writerClipboard) SetText(_ context.Context, text string) error {
	_, err := fmt.Fprintln(c.w, text)
	return err
}
