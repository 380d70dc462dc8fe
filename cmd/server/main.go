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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	httpapi "nftform/internal/http"
	"nftform/internal/platform/config"
	"nftform/internal/platform/database"
	"nftform/internal/platform/httpserver"
	"nftform/internal/platform/logger"
	platformmetrics "nftform/internal/platform/metrics"
	"nftform/internal/platform/redis"
	"nftform/internal/platform/tracing"
	"nftform/internal/registration/handler"
	regmetrics "nftform/internal/registration/metrics"
	"nftform/internal/registration/notify"
	"nftform/internal/registration/service"
	"nftform/internal/registration/store"
	audit "nftform/pkg/platform/audit"
	"nftform/pkg/platform/audit/publisher"
	"nftform/pkg/platform/audit/store/guarded"
	kafkasink "nftform/pkg/platform/audit/store/kafka"
	"nftform/pkg/platform/audit/store/logsink"
	"nftform/pkg/platform/audit/worker"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in internal/registration.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type registrationStore interface {
	service.Store
	Ping(ctx context.Context) error
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Info(fmt.Sprintf(format, args...), "component", "maxprocs")
	})); err != nil {
		return fmt.Errorf("set GOMAXPROCS: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var regStore registrationStore
	if cfg.Database.Configured() {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		regStore = store.NewPostgres(db)
		log.Info("using postgres registration store", "driver", cfg.Database.Driver)
	} else {
		regStore = store.NewInMemory()
		log.Warn("no database configured; registrations are kept in memory")
	}

	tp, err := tracing.New(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("flush traces", "error", err)
		}
	}()

	checks := map[string]httpapi.HealthCheck{"database": regStore.Ping}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(regmetrics.New(registry)),
		service.WithNotifyTimeout(cfg.Brevo.Timeout),
		service.WithTracerProvider(tp),
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithCache(store.NewRedisExistenceCache(redisClient.Client, cfg.Redis.CacheTTL)))
		checks["redis"] = redisClient.Health
	}

	auditSink, closeSink, err := newAuditSink(cfg.Audit, log)
	if err != nil {
		return err
	}
	defer closeSink()
	auditPublisher := publisher.NewPublisher(auditSink,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
	)
	opts = append(opts, service.WithAuditPublisher(auditPublisher))

	if cfg.Brevo.APIKey == "" {
		log.Error("BREVO_API_KEY is not set; access code emails will not be sent")
	}
	notifier := notify.NewBrevoClient(cfg.Brevo, log)

	svc := service.New(regStore, notifier, opts...)
	router := httpapi.NewRouter(handler.New(svc, log), log, platformmetrics.New(registry), checks)

	apiServer := httpserver.New(cfg.Server.Addr, router, cfg.Server)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := httpserver.New(cfg.Server.MetricsAddr, metricsMux, cfg.Server)

	g, gctx := errgroup.WithContext(ctx)
	// The audit worker outlives request cancellation and stops once the
	// publisher is closed during shutdown, after in-flight requests finish.
	g.Go(func() error {
		return worker.NewWorker(auditSink, auditPublisher.Inbox(), log).Run(context.WithoutCancel(gctx))
	})
	g.Go(func() error {
		log.Info("starting nftform", "addr", cfg.Server.Addr)
		return listen(apiServer)
	})
	g.Go(func() error {
		log.Info("serving metrics", "addr", cfg.Server.MetricsAddr)
		return listen(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		err := errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
		_ = auditPublisher.Close()
		return err
	})

	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return nil
}

// newAuditSink picks Kafka when brokers are configured and structured logs
// otherwise. Kafka sits behind a breaker that falls back to the log sink.
func newAuditSink(cfg config.AuditConfig, log *slog.Logger) (audit.Store, func(), error) {
	logSink := logsink.New(log)
	if len(cfg.Brokers) == 0 {
		return logSink, func() {}, nil
	}
	sink, err := kafkasink.New(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	log.Info("publishing audit events to kafka", "topic", cfg.Topic)
	return guarded.New(sink, logSink,
		guarded.WithThreshold(cfg.BreakerThreshold),
		guarded.WithCooldown(cfg.BreakerCooldown),
		guarded.WithLogger(log),
	), sink.Close, nil
}
