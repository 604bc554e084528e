package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SessionOverlay/internal/domain/repository"
	"SessionOverlay/internal/handler/api"
	internalrepo "SessionOverlay/internal/repository"
	"SessionOverlay/internal/service/feed"
	"SessionOverlay/internal/service/history"
	"SessionOverlay/internal/service/hub"
	"SessionOverlay/internal/service/ratelimit"
	"SessionOverlay/internal/services/fiborange"
	"SessionOverlay/internal/services/zones"
	"SessionOverlay/internal/surface"
	"SessionOverlay/internal/usecase"
	"SessionOverlay/pkg/cache"
	pkgch "SessionOverlay/pkg/clickhouse"
	"SessionOverlay/pkg/config"
	xhttp "SessionOverlay/pkg/http"
	pkgkafka "SessionOverlay/pkg/kafka"
	applogger "SessionOverlay/pkg/logger"
	"SessionOverlay/pkg/metrics"
	"SessionOverlay/pkg/server"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Location()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the bars table if needed.
func ProvideBarStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.BarStore, error) {
	store := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Table, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.InitSchema(ctx, store.SchemaStatements()); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideCache returns Redis behind an in-process layer, or memory only
// when Redis is disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(1024), cache.WithMemoryCleanup(time.Minute)), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(512),
		cache.WithLayeredMemoryTTL(cfg.Hub.HistoryCacheTTL),
	), nil
}

func ProvideSnapshotStore(c cache.Service, cfg *config.Config) repository.SnapshotStore {
	return internalrepo.NewCacheSnapshotStore(c, cfg.Hub.SnapshotTTL)
}

func ProvideCandlePoller(store repository.BarStore, cfg *config.Config, l *applogger.Logger, m repository.Metrics) *usecase.CandlePoller {
	return usecase.NewCandlePoller(store, cfg.Hub.PollInterval, 10*time.Second, l, m)
}

func ProvideHubManager(cfg *config.Config, l *applogger.Logger, m repository.Metrics, poller *usecase.CandlePoller) *hub.Manager {
	return hub.NewManager(l, m,
		hub.WithPoller(poller.Poll),
		hub.WithWriteTimeout(cfg.Hub.WriteTimeout),
	)
}

func ProvideMarkerDelivery(m *hub.Manager, snaps repository.SnapshotStore, l *applogger.Logger, rec repository.Metrics) *usecase.MarkerDelivery {
	return usecase.NewMarkerDelivery(m, snaps, l, rec)
}

// ProvideMarkerBroker picks the in-process or the Kafka broker.
func ProvideMarkerBroker(cfg *config.Config, delivery *usecase.MarkerDelivery) (repository.MarkerBroker, error) {
	if cfg.Broker.Type != "kafka" {
		return internalrepo.NewMemoryBroker(delivery), nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaBroker(producer, cfg.Kafka.Topic), nil
}

// ProvideKafkaConsumer returns nil unless broker.type is kafka.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if cfg.Broker.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(consumerHooks(l, m))
	return consumer, nil
}

var errEmptyPayload = errors.New("empty payload")

// consumerHooks rejects empty payloads and carries the batch trace id and
// start time through the handler context.
func consumerHooks(l *applogger.Logger, m repository.Metrics) pkgkafka.ConsumerHook {
	log := l.Component("kafka_hooks")
	guard := pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			if len(data) == 0 {
				return ctx, km, data, &pkgkafka.HookError{Code: "ERR_EMPTY", Err: errEmptyPayload}
			}
			return ctx, km, data, nil
		},
	}
	trace := pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		After: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			if start, ok := pkgkafka.StartTime(ctx); ok {
				m.RecordLatency("consumer_handle_seconds", time.Since(start).Seconds())
			}
			if err == nil {
				log.Debug("Batch consumed",
					applogger.String("topic", topic),
					applogger.String("trace_id", pkgkafka.TraceID(ctx)),
					applogger.Int64("offset", km.Offset),
				)
			}
		},
		Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			log.Warn("Batch rejected",
				applogger.String("topic", topic),
				applogger.String("trace_id", pkgkafka.TraceID(ctx)),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err),
			)
		},
	}
	return pkgkafka.NewHookChain(guard, trace)
}

func ProvideKafkaMarkersHandler(cfg *config.Config, delivery *usecase.MarkerDelivery, m repository.Metrics) *usecase.KafkaMarkersHandler {
	return usecase.NewKafkaMarkersHandler(cfg.Kafka.Topic, delivery, m)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Hub.IngestBurst, cfg.Hub.IngestPerSecond)
}

func ProvideMarkerIngest(broker repository.MarkerBroker, m *hub.Manager, limiter *ratelimit.Limiter, l *applogger.Logger, rec repository.Metrics) *usecase.MarkerIngest {
	return usecase.NewMarkerIngest(broker, m, limiter, l, rec)
}

func ProvideHistoryUseCase(store repository.BarStore, c cache.Service, cfg *config.Config, loc *time.Location, l *applogger.Logger, m repository.Metrics) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(store, c, cfg.Hub.HistoryCacheTTL, loc, l, m)
}

func ProvideFlowEventStore(cfg *config.Config, loc *time.Location) repository.FlowEventStore {
	return internalrepo.NewFileFlowEventStore(cfg.Hub.FlowDir, loc)
}

func ProvideBuyFlowUseCase(store repository.BarStore, events repository.FlowEventStore, cfg *config.Config, loc *time.Location, l *applogger.Logger, m repository.Metrics) *usecase.BuyFlowUseCase {
	return usecase.NewBuyFlowUseCase(store, events, loc, cfg.Exchange.SessionOpen, cfg.Exchange.SessionClose, l, m)
}

func ProvideHubHandler(
	l *applogger.Logger,
	ingest *usecase.MarkerIngest,
	delivery *usecase.MarkerDelivery,
	hist *usecase.HistoryUseCase,
	flow *usecase.BuyFlowUseCase,
	m *hub.Manager,
	store repository.BarStore,
) *api.HubEchoHandler {
	return api.NewHubEchoHandler(l, ingest, delivery, hist, flow, m, store)
}

func httpServer(cfg *config.Config, port int, l *applogger.Logger, h xhttp.Handler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithPort(port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.AllowOrigins),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideHubApp assembles the marker hub process.
func ProvideHubApp(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.HubEchoHandler,
	m *hub.Manager,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaMarkersHandler,
	broker repository.MarkerBroker,
	c cache.Service,
	ch *pkgch.Client,
) *server.App {
	return server.New(l, httpServer(cfg, cfg.Server.Port, l, h),
		server.WithWorker("hub", func(ctx context.Context) error {
			m.Run(ctx)
			return nil
		}),
		server.WithConsumer(consumer, kh),
		server.WithCloser("clickhouse", ch),
		server.WithCloser("cache", c),
		server.WithCloser("broker", broker),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)
}

func ProvideMarkerStream(cfg *config.Config, l *applogger.Logger) repository.MarkerStream {
	return feed.New(cfg.Viewer.FeedURL, cfg.Viewer.PingInterval, l.Component("feed"))
}

func ProvideHistoryFetcher(cfg *config.Config) repository.HistoryFetcher {
	return history.New(cfg.Viewer.HubURL, xhttp.WithTimeout(cfg.Viewer.RequestTimeout))
}

func ProvideSurface(cfg *config.Config, loc *time.Location) *surface.Surface {
	tf := repository.NormalizeTimeframe(cfg.Viewer.Timeframe)
	return surface.New(
		surface.WithSize(cfg.Viewer.Width, cfg.Viewer.Height),
		surface.WithWindow(cfg.Viewer.VisibleBars),
		surface.WithBarWidth(tf.Duration()),
		surface.WithLocation(loc),
		surface.WithTitle(cfg.Viewer.Symbol+" "+string(tf)),
	)
}

func ProvideResolver(cfg *config.Config, loc *time.Location) *zones.Resolver {
	return zones.NewResolver(
		zones.WithLocation(loc),
		zones.WithMargin(decimal.NewFromFloat(cfg.Exchange.ZoneMargin)),
		zones.WithFallbackClock(cfg.Exchange.FallbackClose),
	)
}

func ProvideCalculator(cfg *config.Config, loc *time.Location) *fiborange.Calculator {
	return fiborange.NewCalculator(
		fiborange.WithPrecision(cfg.Exchange.PricePrecision),
		fiborange.WithSession(cfg.Exchange.SessionOpen, cfg.Exchange.SessionClose),
		fiborange.WithLocation(loc),
	)
}

func ProvideOverlayManager(s *surface.Surface, r *zones.Resolver, c *fiborange.Calculator, l *applogger.Logger, m repository.Metrics) *usecase.OverlayManager {
	return usecase.NewOverlayManager(s, r, c, l.Component("overlays"), m)
}

func ProvideSession(
	stream repository.MarkerStream,
	hist repository.HistoryFetcher,
	s *surface.Surface,
	mgr *usecase.OverlayManager,
	cfg *config.Config,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.Session {
	return usecase.NewSession(stream, hist, s, mgr,
		usecase.ViewParams{
			Symbol:    cfg.Viewer.Symbol,
			Timeframe: repository.NormalizeTimeframe(cfg.Viewer.Timeframe),
			Window:    cfg.Viewer.HistoryWindow,
		},
		usecase.SessionConfig{
			ReconnectDelay: cfg.Viewer.ReconnectDelay,
			RequestTimeout: cfg.Viewer.RequestTimeout,
		},
		l.Component("session"), m,
	)
}

func ProvideViewerHandler(l *applogger.Logger, sess *usecase.Session) *api.ViewerEchoHandler {
	return api.NewViewerEchoHandler(l, sess)
}

// ProvideViewerApp assembles the overlay viewer process.
func ProvideViewerApp(cfg *config.Config, l *applogger.Logger, h *api.ViewerEchoHandler, sess *usecase.Session, stream repository.MarkerStream) *server.App {
	return server.New(l, httpServer(cfg, cfg.Viewer.Port, l, h),
		server.WithWorker("session", sess.Run),
		server.WithCloser("feed", stream),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)
}
