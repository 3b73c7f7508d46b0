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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"clearance/internal/certification"
	certcache "clearance/internal/certification/cache"
	certstore "clearance/internal/certification/store"
	"clearance/internal/compliance"
	compliancehandler "clearance/internal/compliance/handler"
	compliancemetrics "clearance/internal/compliance/metrics"
	"clearance/internal/gate"
	gatehandler "clearance/internal/gate/handler"
	gatemetrics "clearance/internal/gate/metrics"
	jwttoken "clearance/internal/jwt_token"
	overridehandler "clearance/internal/override/handler"
	overridemetrics "clearance/internal/override/metrics"
	overrideservice "clearance/internal/override/service"
	overridestore "clearance/internal/override/store"
	"clearance/internal/platform/config"
	"clearance/internal/platform/httpserver"
	"clearance/internal/platform/kafka"
	"clearance/internal/platform/logger"
	"clearance/internal/platform/metrics"
	"clearance/internal/platform/postgres"
	"clearance/internal/platform/redis"
	"clearance/internal/ratelimit"
	ratelimitmw "clearance/internal/ratelimit/middleware"
	ratelimitstore "clearance/internal/ratelimit/store"
	httptransport "clearance/internal/transport/http"
	"clearance/pkg/platform/audit"
	kafkasink "clearance/pkg/platform/audit/sink/kafka"
	auditpostgres "clearance/pkg/platform/audit/store/postgres"
	"clearance/pkg/platform/audit/worker"
	"clearance/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the audit retry worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

// closers releases infrastructure clients in reverse order of acquisition.
type closers []func()

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	log := logger.New(cfg.Log)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var release closers
	defer release.close()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	release = append(release, func() { _ = db.Close() })
	if migrate {
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.InfoContext(ctx, "migrations applied", "versions", applied)
	}

	catalog, err := config.LoadCatalog(cfg.Compliance.CatalogPath)
	if err != nil {
		return err
	}

	reg := metrics.New()
	health := map[string]httptransport.HealthCheck{"postgres": db.PingContext}

	certs := certstore.NewPostgres(db)
	var requirements certification.RequirementStore = certs
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		release = append(release, func() { _ = redisClient.Close() })
		health["redis"] = redisClient.Health
		requirements = certcache.NewRequirementCache(certs, redisClient.Client, cfg.Redis.RequirementsTTL,
			certcache.WithLogger(log),
			certcache.WithMetrics(certcache.NewMetrics(reg)),
		)
		log.InfoContext(ctx, "requirement cache enabled", "ttl", cfg.Redis.RequirementsTTL)
	}

	auditMetrics := audit.NewMetrics(reg)
	auditStore := auditpostgres.New(db)
	sink, err := deadLetterSink(ctx, cfg.Kafka, log, &release, health)
	if err != nil {
		return err
	}
	recorder := audit.NewRecorder(auditStore,
		audit.WithUserDirectory(certs),
		audit.WithBuffer(audit.NewRingBuffer(cfg.Audit.BufferSize)),
		audit.WithDeadLetterSink(sink),
		audit.WithCircuitBreaker(circuit.New("audit-store",
			circuit.WithFailureThreshold(cfg.Audit.BreakerFailures),
			circuit.WithCooldown(cfg.Audit.BreakerCooldown),
		)),
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
		audit.WithWriteTimeout(cfg.Audit.WriteTimeout),
	)
	retry := worker.NewWorker(auditStore, recorder.Buffer(), sink,
		worker.WithInterval(cfg.Audit.RetryInterval),
		worker.WithBatchSize(cfg.Audit.RetryBatchSize),
		worker.WithMaxAttempts(cfg.Audit.MaxAttempts),
		worker.WithLogger(log),
		worker.WithMetrics(auditMetrics),
	)

	evaluator := compliance.NewService(certs, certs, requirements, catalog,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliancemetrics.New(reg)),
		compliance.WithTimeout(cfg.Compliance.EvaluationTimeout),
	)
	overrides := overridestore.NewPostgres(db)
	overrideSvc := overrideservice.New(overrides, certs, evaluator, recorder,
		overrideservice.WithLogger(log),
		overrideservice.WithMetrics(overridemetrics.New(reg)),
		overrideservice.WithAuditReader(auditStore),
		overrideservice.WithTx(newOverridePostgresTx(db, overrides, certs)),
	)
	gateSvc := gate.New(evaluator, overrideSvc,
		gate.WithLogger(log),
		gate.WithMetrics(gatemetrics.New(reg)),
	)

	var buckets ratelimit.BucketStore = ratelimitstore.NewInMemory()
	if redisClient != nil {
		buckets = ratelimitstore.NewFallback(ratelimitstore.NewRedis(redisClient.Client), buckets,
			func(ctx context.Context, err error) {
				log.WarnContext(ctx, "rate limit store unavailable; using local window", "error", err)
			})
	}
	limiter := ratelimitmw.New(buckets, log,
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithMetrics(ratelimitmw.NewMetrics(reg)),
	)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:          log,
		Validator:       jwttoken.NewJWTServiceAdapter(jwtService),
		Metrics:         reg.Handler(),
		Compliance:      compliancehandler.New(evaluator, log),
		Gate:            gatehandler.New(gateSvc, log),
		Overrides:       overridehandler.New(overrideSvc, log),
		Health:          health,
		OverrideLimiter: limiter.PerUser("override", ratelimit.Limit{
			Requests: cfg.RateLimit.OverrideRequest,
			Window:   cfg.RateLimit.OverrideWindow,
		}),
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	log.InfoContext(ctx, "starting clearance", "addr", cfg.Server.Addr, "env", cfg.Server.Environment)
	return runUntilShutdown(ctx, log, srv, retry)
}

type listener interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

// runUntilShutdown serves until ctx is cancelled or the server fails. The
// retry worker is stopped only after in-flight requests have drained, so an
// audit write that fails during shutdown still reaches its final flush.
func runUntilShutdown(ctx context.Context, log *slog.Logger, srv listener, retry runner) error {
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := retry.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("audit retry worker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopWorker()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.InfoContext(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// deadLetterSink publishes exhausted audit entries to Kafka when brokers are
// configured, falling back to the error log.
func deadLetterSink(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger, release *closers, health map[string]httptransport.HealthCheck) (audit.DeadLetterSink, error) {
	logSink := audit.NewLogSink(log)
	client, err := kafka.New(cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.WarnContext(ctx, "kafka not configured; audit dead letters go to the log only")
		return logSink, nil
	}
	*release = append(*release, client.Close)
	health["kafka"] = client.Health

	if err := kafka.EnsureTopics(ctx, client.Client, cfg.Partitions, cfg.Replication, cfg.DeadLetterTopic); err != nil {
		return nil, err
	}
	return audit.FallbackSink{kafkasink.New(client.Client, cfg.DeadLetterTopic), logSink}, nil
}
