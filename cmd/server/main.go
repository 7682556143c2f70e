package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "starcatalog/searchservice/internal/api/http"
	"starcatalog/searchservice/internal/app"
	"starcatalog/searchservice/internal/catalog"
	"starcatalog/searchservice/internal/metrics"
	"starcatalog/searchservice/internal/providers/swapi"
	"starcatalog/searchservice/internal/repository/memory"
	mongorepo "starcatalog/searchservice/internal/repository/mongo"
	"starcatalog/searchservice/internal/stats"
	"starcatalog/searchservice/internal/telemetry"
)

const serviceName = "catalog-search"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, version, logger)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("swapiBaseURL", cfg.SwapiBaseURL),
		slog.Duration("upstreamTimeout", cfg.UpstreamTimeout),
		slog.Bool("hasMongo", cfg.MongoURI != ""),
		slog.Bool("hasRedis", cfg.RedisURL != ""),
		slog.Duration("statsInterval", cfg.StatsInterval),
		slog.Float64("rateLimitRPS", cfg.RateLimitRPS),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := buildStores(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer stores.close()

	engine := stats.NewEngine(stores.queries, stores.snapshots, stats.WithLogger(logger))
	if cfg.StatsWarmStart {
		if _, err := engine.CurrentStats(rootCtx); err != nil {
			logger.Warn("stats warm start failed", slog.String("error", err.Error()))
		}
	}

	serverOpts := append([]apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithStats(engine),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}, stores.healthOptions...)

	schedulerOpts := []stats.SchedulerOption{stats.WithSchedulerLogger(logger)}
	if lease := buildLease(rootCtx, cfg, logger); lease != nil {
		schedulerOpts = append(schedulerOpts, stats.WithLease(lease))
		serverOpts = append(serverOpts, apihttp.WithHealthCheck("redis", lease.Ping))
	}
	stats.NewScheduler(engine, cfg.StatsInterval, schedulerOpts...).Start(rootCtx)

	client := swapi.NewClient(swapi.Config{
		BaseURL:   cfg.SwapiBaseURL,
		UserAgent: cfg.UserAgent,
		Client:    &http.Client{Timeout: cfg.UpstreamTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Logger:    logger,
	})
	catalogService := catalog.NewService(client,
		catalog.WithQueryLogger(engine),
		catalog.WithLogger(logger),
	)

	handler := apihttp.NewServer(catalogService, serverOpts...).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Detail requests fan out upstream; leave headroom over the upstream timeout.
		WriteTimeout: cfg.UpstreamTimeout*2 + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("catalog search service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("upstream", client.BaseURL()),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("catalog search service stopped")
}

type storeSet struct {
	queries       stats.QueryLogStore
	snapshots     stats.SnapshotStore
	healthOptions []apihttp.ServerOption
	close         func()
}

// buildStores uses MongoDB when MONGO_URI is set and in-memory stores otherwise.
func buildStores(ctx context.Context, cfg app.Config, logger *slog.Logger) (storeSet, error) {
	if strings.TrimSpace(cfg.MongoURI) == "" {
		logger.Info("mongo not configured, using in-memory stores")
		return storeSet{
			queries:   memory.NewQueryLogRepository(),
			snapshots: memory.NewSnapshotRepository(),
			close:     func() {},
		}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		return storeSet{}, err
	}
	if err := mongoClient.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return storeSet{}, err
	}

	queries := mongorepo.NewQueryLogRepository(mongoClient, cfg.MongoDB)
	snapshots := mongorepo.NewSnapshotRepository(mongoClient, cfg.MongoDB)
	if err := queries.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("query log index creation failed", slog.String("error", err.Error()))
	}
	if err := snapshots.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("snapshot index creation failed", slog.String("error", err.Error()))
	}
	logger.Info("mongo connected", slog.String("db", cfg.MongoDB))

	return storeSet{
		queries:   queries,
		snapshots: snapshots,
		healthOptions: []apihttp.ServerOption{
			apihttp.WithHealthCheck("mongo", func(ctx context.Context) error {
				return mongoClient.Ping(ctx, readpref.Primary())
			}),
		},
		close: func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(disconnectCtx)
		},
	}, nil
}

// buildLease returns nil when Redis is not configured or unreachable; the scheduler
// then recomputes on every replica.
func buildLease(ctx context.Context, cfg app.Config, logger *slog.Logger) *stats.RedisLease {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("stats lease disabled: invalid redis url", slog.String("error", err.Error()))
		return nil
	}
	lease := stats.NewRedisLease(redis.NewClient(redisOpts), "")
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := lease.Ping(pingCtx); err != nil {
		logger.Warn("stats lease disabled: redis unavailable", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return lease
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
