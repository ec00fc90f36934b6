package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	authzhandler "insurely/internal/authz/handler"
	authzservice "insurely/internal/authz/service"
	claimhandler "insurely/internal/claim/handler"
	claimservice "insurely/internal/claim/service"
	jwttoken "insurely/internal/jwt_token"
	"insurely/internal/payout"
	payouthandler "insurely/internal/payout/handler"
	"insurely/internal/platform/config"
	"insurely/internal/platform/httpserver"
	"insurely/internal/platform/logger"
	"insurely/internal/platform/metrics"
	"insurely/internal/platform/tracing"
	policyhandler "insurely/internal/policy/handler"
	policyservice "insurely/internal/policy/service"
	httptransport "insurely/internal/transport/http"
	"insurely/pkg/domain"
)

const shutdownTimeout = 15 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := openLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	locker, closeLocker, err := buildLocker(ctx, cfg, log, store)
	if err != nil {
		return err
	}
	defer closeLocker()

	bus, err := buildEventBus(ctx, cfg, log, m, store)
	if err != nil {
		return err
	}
	defer bus.close()

	registry := authzservice.New(store.authz,
		authzservice.WithLogger(log),
		authzservice.WithEvents(bus.emitter),
		authzservice.WithMetrics(m),
	)
	if err := registry.Bootstrap(ctx, domain.Principal(cfg.AdminPrincipal)); err != nil {
		return fmt.Errorf("bootstrap registry: %w", err)
	}

	policies := policyservice.New(store.policies, store.runner, registry, locker,
		policyservice.WithLogger(log),
		policyservice.WithEvents(bus.emitter),
		policyservice.WithMetrics(m),
	)
	claims := claimservice.New(store.claims, policies, store.runner, registry, locker,
		claimservice.WithLogger(log),
		claimservice.WithEvents(bus.emitter),
		claimservice.WithMetrics(m),
	)
	coordinator := payout.New(store.claims, buildTreasury(cfg, log), registry, locker,
		payout.WithLogger(log),
		payout.WithEvents(bus.emitter),
		payout.WithMetrics(m),
	)

	tokens := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	deps := httptransport.Deps{
		Logger:    log,
		Metrics:   m,
		Gatherer:  reg,
		Validator: tokens.Validator(),
		Health:    store.health,
		Handlers: []httptransport.Registrar{
			authzhandler.New(registry, log),
			policyhandler.New(policies, log),
			claimhandler.New(claims, log),
			payouthandler.New(coordinator, log),
		},
	}
	if cfg.DevTokens {
		log.Warn("dev token endpoint enabled")
		deps.TokenIssuer = tokens
	}

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(deps), cfg.Treasury.Timeout)

	// Workers outlive the listener so events from draining requests still flush.
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range bus.workers {
		g.Go(func() error {
			if err := w.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Info("starting insurely", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		defer stopWorkers()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
