// Command proxyd runs the intercepting HTTP proxy: a data-plane listener
// that forwards/mocks/modifies traffic per the configured rule set, and a
// control-plane REST surface for managing that rule set, recordings, and
// runtime stats.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dev-console/proxyd/internal/config"
	"github.com/dev-console/proxyd/internal/controlplane"
	"github.com/dev-console/proxyd/internal/dataplane"
	"github.com/dev-console/proxyd/internal/latency"
	"github.com/dev-console/proxyd/internal/latencyrule"
	"github.com/dev-console/proxyd/internal/logging"
	"github.com/dev-console/proxyd/internal/metrics"
	"github.com/dev-console/proxyd/internal/modifier"
	"github.com/dev-console/proxyd/internal/modifierrule"
	"github.com/dev-console/proxyd/internal/mock"
	"github.com/dev-console/proxyd/internal/mockrule"
	"github.com/dev-console/proxyd/internal/pipeline"
	"github.com/dev-console/proxyd/internal/ratelimiter"
	"github.com/dev-console/proxyd/internal/ratelimitrule"
	"github.com/dev-console/proxyd/internal/recorder"
	"github.com/dev-console/proxyd/internal/upstream"
	"github.com/dev-console/proxyd/internal/util"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxyd",
		Short: "Intercepting HTTP proxy with a rule-driven control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	mocks := mockrule.NewStore()
	modifiers := modifierrule.NewStore()
	rateLimits := ratelimitrule.NewStore()
	latencies := latencyrule.NewStore()

	rl := ratelimiter.New(rateLimits, cfg.BucketSweepInterval)
	defer rl.Stop()
	inj := latency.New(latencies)
	m := mock.New(mocks)
	mod := modifier.New(modifiers, logger)
	up := upstream.New(cfg.UpstreamURL, cfg.UpstreamTimeout)
	rec := recorder.New(cfg.RecorderCapacity)

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	metrics.RegisterModifierSkipped(reg, mod.SkippedCount)

	pl := pipeline.New(rl, inj, m, mod, up, rec, logger).WithMetrics(met)

	cp := controlplane.New(mocks, modifiers, rateLimits, latencies, rl, inj, mod, rec, pl, logger)
	cpRouter := cp.Router()
	cpRouter.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	dataServer := &http.Server{
		Addr:    cfg.DataAddr,
		Handler: dataplane.Handler(pl, cfg.MaxBodyBytes, logger),
	}
	controlServer := &http.Server{
		Addr:    cfg.ControlAddr,
		Handler: cpRouter,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	util.SafeGo(func() { serve(dataServer, "data plane", logger, errCh) })
	util.SafeGo(func() { serve(controlServer, "control plane", logger, errCh) })

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server exited unexpectedly", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var shutdownErr error
	if err := dataServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("data plane shutdown: %w", err))
	}
	if err := controlServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("control plane shutdown: %w", err))
	}
	return shutdownErr
}

func serve(srv *http.Server, name string, logger *zap.Logger, errCh chan<- error) {
	logger.Info("listening", zap.String("component", name), zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("%s: %w", name, err)
	}
}
