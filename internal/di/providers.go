package di

import (
	"context"
	"fmt"
	"time"

	"MarketSignal/internal/domain/repository"
	"MarketSignal/internal/handler/api"
	"MarketSignal/internal/handler/ws"
	mid "MarketSignal/internal/middleware"
	internalrepo "MarketSignal/internal/repository"
	"MarketSignal/internal/service/cache"
	svcmetrics "MarketSignal/internal/service/metrics"
	"MarketSignal/internal/service/ratelimit"
	"MarketSignal/internal/services/analytics"
	"MarketSignal/internal/services/backtest"
	"MarketSignal/internal/services/features"
	"MarketSignal/internal/services/model"
	"MarketSignal/internal/services/signal"
	"MarketSignal/internal/usecase"
	pkgch "MarketSignal/pkg/clickhouse"
	"MarketSignal/pkg/config"
	xhttp "MarketSignal/pkg/http"
	pkgkafka "MarketSignal/pkg/kafka"
	applogger "MarketSignal/pkg/logger"
	"MarketSignal/pkg/metrics"
	"MarketSignal/pkg/server"

	"github.com/redis/go-redis/v9"
)

// Services bundles the use cases driven by the one-shot CLI commands.
type Services struct {
	Training *usecase.ModelTrainingUseCase
	Backtest *backtest.Service
	Labeler  *usecase.OutcomeLabeler
}

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient connects and creates the snapshot table.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, time.Hour),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SnapshotSchema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database),
	)
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideRedis returns nil when redis is disabled.
func ProvideRedis(cfg *config.Config, l *applogger.Logger) (redis.UniversalClient, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	l.Info("redis ready", applogger.String("addr", cfg.Redis.Addr))
	cleanup := func() {
		if err := rdb.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return rdb, cleanup, nil
}

// ProvideMarketData reads ClickHouse through a circuit breaker.
func ProvideMarketData(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.MarketDataRepository {
	repo := internalrepo.NewCHMarketData(ch.DB())
	repo.SetLogger(l.With("market_data"))
	return internalrepo.NewBreakerMarketData(repo, internalrepo.BreakerSettings{
		Name:        "clickhouse-market-data",
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     cfg.Breaker.Timeout,
		Logger:      l,
	})
}

func ProvideSnapshotStore(ch *pkgch.Client, l *applogger.Logger) repository.SnapshotStore {
	store := internalrepo.NewCHSnapshotStore(ch.DB())
	store.SetLogger(l.With("snapshot_store"))
	return store
}

// ProvideModelStore keeps the model in redis when enabled, in memory otherwise.
func ProvideModelStore(cfg *config.Config, rdb redis.UniversalClient, l *applogger.Logger) repository.ModelStore {
	if rdb == nil {
		l.Warn("redis disabled, model is kept in process memory")
		return internalrepo.NewMemoryModelStore()
	}
	store := internalrepo.NewRedisModelStore(rdb, cfg.Model.StoreKey)
	store.SetLogger(l.With("model_store"))
	return store
}

func ProvideResponseCache(rdb redis.UniversalClient) cache.BytesCache {
	if rdb == nil {
		return cache.NewTTLCache()
	}
	return cache.NewRedisCache(rdb)
}

// ProvideSignalPipeline publishes to kafka when enabled and drops events otherwise.
func ProvideSignalPipeline(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*mid.SignalPipeline, func(), error) {
	var sink repository.SignalPublisher = internalrepo.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
			pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
			pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		sink = internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalTopic)
	}
	p := mid.NewSignalPipeline(sink, m, mid.WithPipelineLogger(l.With("signal_pipeline")))
	cleanup := func() {
		if err := p.Close(); err != nil {
			l.Warn("signal publisher close error", applogger.Error(err))
		}
	}
	return p, cleanup, nil
}

func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l.With("stream"))
}

func ProvideFeatureBuilder(repo repository.MarketDataRepository, cfg *config.Config, m repository.Metrics, l *applogger.Logger) *features.Builder {
	return features.NewBuilder(repo,
		features.WithExchanges(cfg.Signal.FundingExchanges),
		features.WithMetrics(m),
		features.WithLogger(l.With("features")),
	)
}

func ProvideEngine() *signal.Engine { return signal.NewEngine() }

func ProvideTrainer(store repository.ModelStore, l *applogger.Logger) *model.Trainer {
	return model.NewTrainer(store, l.With("trainer"))
}

func ProvideAiService(trainer *model.Trainer, m repository.Metrics, l *applogger.Logger) *analytics.AiSignalService {
	return analytics.NewAiSignalService(trainer, m, l.With("ai"))
}

func ProvideBacktest(store repository.SnapshotStore, ai *analytics.AiSignalService, cfg *config.Config, m repository.Metrics, l *applogger.Logger) *backtest.Service {
	return backtest.NewService(store, ai, cfg.Backtest.AIWorkers, m, l.With("backtest"))
}

func ProvideAnalyticsUseCase(
	builder *features.Builder,
	engine *signal.Engine,
	ai *analytics.AiSignalService,
	pipeline *mid.SignalPipeline,
	hub *ws.Hub,
	c cache.BytesCache,
	cfg *config.Config,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.SignalAnalyticsUseCase {
	return usecase.NewSignalAnalyticsUseCase(builder, engine, ai, pipeline,
		usecase.WithBroadcaster(hub),
		usecase.WithResponseCache(c, cfg.Signal.CacheTTL),
		usecase.WithAnalyticsMetrics(m),
		usecase.WithAnalyticsLogger(l.With("analytics")),
		usecase.WithAnalyticsTimeout(cfg.Server.RequestTimeout),
	)
}

func ProvideModelTraining(trainer *model.Trainer, store repository.SnapshotStore, cfg *config.Config, l *applogger.Logger) *usecase.ModelTrainingUseCase {
	return usecase.NewModelTrainingUseCase(trainer, store, cfg.Model.Epochs, cfg.Model.LearningRate, l.With("training"))
}

func ProvideOutcomeLabeler(store repository.SnapshotStore, repo repository.MarketDataRepository, cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.OutcomeLabeler {
	return usecase.NewOutcomeLabeler(store, repo, repository.NormalizeInterval(cfg.Labeler.Interval), m, l.With("labeler"))
}

func ProvideSnapshotRecorder(cfg *config.Config, store repository.SnapshotStore, m repository.Metrics, l *applogger.Logger) *usecase.SnapshotRecorder {
	return usecase.NewSnapshotRecorder(cfg.Kafka.SignalTopic, store, m, l.With("recorder"))
}

// ProvideKafkaConsumer returns nil when kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l.With("consumer"))
	return consumer, nil
}

func ProvideHealthChecks(ch *pkgch.Client, rdb redis.UniversalClient) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{"clickhouse": ch.Health}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func ProvideAPIHandler(
	l *applogger.Logger,
	uc *usecase.SignalAnalyticsUseCase,
	bt *backtest.Service,
	training *usecase.ModelTrainingUseCase,
	checks map[string]api.HealthCheck,
) *api.AnalyticsHandler {
	return api.NewAnalyticsHandler(l.With("api"), uc, bt, training, checks)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.AnalyticsHandler, hub *ws.Hub, limiter *ratelimit.Limiter) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l.With("http"), []xhttp.Handler{h, hub},
		xhttp.WithAddress("0.0.0.0", cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithMiddleware(limiter.Middleware()),
	)
}

// ProvideApp assembles the serve command: API, recorder, labeler loop and stream hub.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	recorder *usecase.SnapshotRecorder,
	labeler *usecase.OutcomeLabeler,
	hub *ws.Hub,
	pipeline *mid.SignalPipeline,
	limiter *ratelimit.Limiter,
) *server.App {
	opts := []server.Option{
		server.WithConsumer(consumer, recorder),
		server.WithTask("stream_hub", hub.Run),
		server.WithTask("signal_pipeline", func(ctx context.Context) {
			pipeline.Start(ctx)
			<-ctx.Done()
		}),
		server.WithTask("limiter_evict", func(ctx context.Context) {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					limiter.Evict(10 * time.Minute)
				}
			}
		}),
	}
	if cfg.Labeler.Enabled {
		opts = append(opts, server.WithTask("outcome_labeler", func(ctx context.Context) {
			labeler.Loop(ctx, cfg.Signal.Symbols, cfg.Labeler.Horizon, cfg.Labeler.Every)
		}))
	}
	return server.New(cfg, l, srv, opts...)
}

func ProvideServices(training *usecase.ModelTrainingUseCase, bt *backtest.Service, labeler *usecase.OutcomeLabeler) *Services {
	return &Services{Training: training, Backtest: bt, Labeler: labeler}
}
