package di

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/repository"
	"CoinPulse/internal/handler/api"
	internalrepo "CoinPulse/internal/repository"
	"CoinPulse/internal/service/cache"
	"CoinPulse/internal/service/coingecko"
	"CoinPulse/internal/usecase"
	pkgcache "CoinPulse/pkg/cache"
	pkgch "CoinPulse/pkg/clickhouse"
	"CoinPulse/pkg/config"
	xhttp "CoinPulse/pkg/http"
	pkgkafka "CoinPulse/pkg/kafka"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
	"CoinPulse/pkg/server"
)

// AuditBackend groups the audit components selected by audit.backend. Ingest and
// Consumer are set only for the kafka backend with the consumer enabled.
type AuditBackend struct {
	Sink     repository.AuditSink
	Query    repository.AuditQuery
	Ingest   pkgkafka.MessageHandler
	Consumer *pkgkafka.Consumer
}

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(
		applogger.String("service", "coinpulse"),
		applogger.String("env", cfg.Environment),
		applogger.String("version", cfg.AppVersion),
	), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the database exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	return consumer, nil
}

func provideCHAuditStore(cfg *config.Config, l *applogger.Logger) (*internalrepo.CHAuditStore, *pkgch.Client, error) {
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	store := internalrepo.NewCHAuditStore(client, cfg.ClickHouse.Table)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}, store.Schema()...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, client, nil
}

// ProvideAuditBackend builds the sink and query side for audit.backend.
func ProvideAuditBackend(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*AuditBackend, func(), error) {
	switch cfg.Audit.Backend {
	case config.BackendClickHouse:
		store, client, err := provideCHAuditStore(cfg, l)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close error", applogger.Error(err))
			}
		}
		return &AuditBackend{Sink: store, Query: store}, cleanup, nil

	case config.BackendKafka:
		store, client, err := provideCHAuditStore(cfg, l)
		if err != nil {
			return nil, nil, err
		}
		producer, err := ProvideKafkaProducer(cfg)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		sink := internalrepo.NewKafkaAuditSink(producer, cfg.Kafka.Topic)
		b := &AuditBackend{Sink: sink, Query: store}

		if cfg.Kafka.Consumer.Enabled {
			consumer, err := ProvideKafkaConsumer(cfg, l)
			if err != nil {
				_ = sink.Close()
				_ = client.Close()
				return nil, nil, err
			}
			b.Consumer = consumer
			b.Ingest = usecase.NewOutcomeIngestHandler(cfg.Kafka.Topic, store, m)
		}

		cleanup := func() {
			if err := sink.Close(); err != nil {
				l.Warn("kafka producer close error", applogger.Error(err))
			}
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close error", applogger.Error(err))
			}
		}
		return b, cleanup, nil

	default:
		store := internalrepo.NewMemoryAuditStore()
		return &AuditBackend{Sink: store, Query: store}, func() {}, nil
	}
}

// ProvideEntryStore builds the quote entry store for cache.backend.
func ProvideEntryStore(cfg *config.Config, l *applogger.Logger) (cache.EntryStore, func(), error) {
	if cfg.Cache.Backend != config.BackendRedis {
		return cache.NewShardedStore(cfg.Cache.Shards), func() {}, nil
	}

	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)),
		pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, 2),
		pkgcache.WithRedisOpTimeout(cfg.Redis.OpTimeout),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return cache.NewRedisStore(rc), cleanup, nil
}

// ProvidePriceSource creates the CoinGecko client.
func ProvidePriceSource(cfg *config.Config) repository.PriceSource {
	return coingecko.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, coingecko.WithAPIKey(cfg.Upstream.APIKey))
}

// ProvideQuoteCache creates the read-through quote cache.
func ProvideQuoteCache(store cache.EntryStore, source repository.PriceSource, l *applogger.Logger, m repository.Metrics) repository.QuoteCache {
	return cache.NewReadThrough(store, source, cache.WithLogger(l), cache.WithMetrics(m))
}

// ProvideOutcomeLogger creates the asynchronous outcome logger.
func ProvideOutcomeLogger(cfg *config.Config, b *AuditBackend, m repository.Metrics, l *applogger.Logger) *usecase.OutcomeLogger {
	return usecase.NewOutcomeLogger(b.Sink, m, l,
		usecase.WithQueueSize(cfg.Audit.QueueSize),
		usecase.WithWorkers(cfg.Audit.Workers),
		usecase.WithAppendTimeout(cfg.Audit.AppendTimeout),
	)
}

// ProvideQuoteService creates the quote use case.
func ProvideQuoteService(cfg *config.Config, qc repository.QuoteCache, ol *usecase.OutcomeLogger, m repository.Metrics, l *applogger.Logger) *usecase.QuoteService {
	return usecase.NewQuoteService(qc, ol, m, l,
		usecase.WithTTL(cfg.Cache.TTL),
		usecase.WithAppVersion(cfg.AppVersion),
	)
}

// ProvideDashboardAggregator creates the dashboard use case over the audit query side.
func ProvideDashboardAggregator(cfg *config.Config, b *AuditBackend) *usecase.DashboardAggregator {
	return usecase.NewDashboardAggregator(b.Query, usecase.WithDashboardWindow(cfg.Dashboard.Window))
}

// ProvideHTTPServer creates the Echo server with every API handler registered.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, qs *usecase.QuoteService, agg *usecase.DashboardAggregator) *xhttp.Server {
	handlers := []xhttp.Handler{
		api.NewQuoteEchoHandler(l, qs),
		api.NewQuoteStreamHandler(l, qs),
		api.NewDashboardEchoHandler(l, agg),
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(metricsPath, cfg.Metrics.SlowThreshold),
	)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, ol *usecase.OutcomeLogger, b *AuditBackend) *server.App {
	return server.New(cfg, l, srv, ol, b.Consumer, b.Ingest)
}
