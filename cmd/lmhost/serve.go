package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lmhost/internal/config"
	"lmhost/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP session API",
		Example: "  lmhost serve --addr :8080 --models-dir ~/models/llm",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, o)
		},
	}
	f := cmd.Flags()
	f.String("addr", config.DefaultAddr, "HTTP listen address, e.g. :8080")
	f.String("max-body", config.DefaultMaxBody, "Maximum JSON request body size (e.g. 1MiB)")
	f.String("max-wait", config.DefaultMaxWait, "Maximum time a request waits for a model slot")
	f.String("infer-timeout", "", "Per-prompt timeout (empty disables)")
	f.Int("max-queue-depth", config.DefaultMaxQueueDepth, "Waiting requests allowed per model")
	f.Bool("swagger", false, "Serve /swagger/* (requires -tags=swagger)")
	f.String("cors-origins", "", "Enable CORS for these comma-separated origins")
	return cmd
}

// serve runs the API until ctx is canceled, then drains connections.
func serve(ctx context.Context, o *options) error {
	cfg, log := o.cfg, o.log
	st, err := newStack(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	maxBody, _ := cfg.MaxBodyBytes()
	timeout, _ := cfg.InferTimeoutDuration()
	httpapi.SetLogger(log)
	httpapi.SetDefaultLogLevel(requestLogLevel(cfg.LogLevel))
	httpapi.SetMaxBodyBytes(maxBody)
	httpapi.SetPromptTimeout(timeout)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)
	httpapi.SetSwaggerEnabled(cfg.Swagger)
	httpapi.SetBaseContext(ctx)

	api := httpapi.NewServer(st.svc, st.mgr)
	defer api.Close()
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("max_body", units.BytesSize(float64(maxBody))).Msg("lmhost listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	err = g.Wait()
	log.Info().Msg("lmhost stopped")
	return err
}

// requestLogLevel maps the process log level onto per-request logging.
func requestLogLevel(level string) string {
	switch level {
	case "debug", "trace":
		return "debug"
	case "warn", "error", "fatal", "panic":
		return "error"
	case "disabled":
		return "off"
	default:
		return "info"
	}
}
