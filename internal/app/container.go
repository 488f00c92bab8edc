package app

import (
	"context"
	"fmt"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	kafkago "github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"camera-kingdom/internal/cache"
	"camera-kingdom/internal/cart"
	"camera-kingdom/internal/checkout"
	"camera-kingdom/internal/config"
	"camera-kingdom/internal/coupons"
	"camera-kingdom/internal/database"
	"camera-kingdom/internal/events"
	"camera-kingdom/internal/history"
	"camera-kingdom/internal/identity"
	"camera-kingdom/internal/ledger"
	"camera-kingdom/internal/metrics"
	"camera-kingdom/internal/orders"
	"camera-kingdom/internal/platform/observability"
	"camera-kingdom/internal/repository"
)

// Container holds the long-lived resources and the services built on them.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Store    repository.Store
	Cache    *cache.Cache
	Verifier *identity.Verifier

	Ledger   *ledger.Ledger
	Carts    *cart.Service
	History  *history.Syncer
	Coupons  *coupons.Lookup
	Checkout *checkout.Orchestrator
	Orders   *orders.Manager

	publisher    events.Publisher
	kafkaWriter  *events.KafkaPublisher
	mongoClient  *mongo.Client
	otelShutdown observability.Shutdown
}

// NewContainer wires the engine from cfg: observability first, then the
// store, the event publisher and finally the services.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	logShutdown, err := observability.SetupLoggingSDK(ctx, cfg)
	if err != nil {
		return nil, err
	}
	_, traceShutdown, err := observability.SetupTracingSDK(ctx, cfg)
	if err != nil {
		_ = logShutdown(ctx)
		return nil, err
	}
	c.otelShutdown = observability.JoinShutdown(traceShutdown, logShutdown)
	c.Logger = observability.NewLogger(cfg.OtelEnabled())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = metrics.New(reg)

	if err := c.setupStore(ctx); err != nil {
		c.Shutdown(context.Background())
		return nil, err
	}
	if err := c.setupPublisher(); err != nil {
		c.Shutdown(context.Background())
		return nil, err
	}

	c.Cache = cache.New(cfg.CouponCacheTTL, cfg.CouponCacheTTL)
	c.Verifier = identity.NewVerifier(cfg.JWTSecret)

	c.Ledger = ledger.New(c.Store.Products, c.Logger, c.Metrics)
	c.Carts = cart.NewService(c.Store.Products, c.Store.Users, c.Logger)
	c.History = history.NewSyncer(c.Store.Orders, c.Store.Users, c.Logger)
	c.Coupons = coupons.NewLookup(c.Store.Coupons, c.Cache, c.Logger)
	c.Checkout = checkout.New(c.Store.Orders, c.Store.Counters, c.Ledger, c.Carts, c.History, c.publisher, c.Logger, c.Metrics)
	c.Orders = orders.NewManager(c.Store.Orders, c.Ledger, c.History, c.publisher, c.Logger, c.Metrics)

	if err := c.Checkout.SeedOrderNumbers(ctx); err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("seed order numbers: %w", err)
	}

	c.Logger.Info("container ready",
		zap.String("store", cfg.StoreDriver),
		zap.Bool("kafka", cfg.KafkaEnabled()),
		zap.Bool("otel", cfg.OtelEnabled()),
	)
	return c, nil
}

func (c *Container) setupStore(ctx context.Context) error {
	if c.Config.StoreDriver == config.StoreMemory {
		c.Logger.Warn("using the in-memory store, data is lost on restart")
		c.Store = repository.NewMemoryStore()
		return nil
	}

	client, err := database.Connect(ctx, c.Config.MongoURI)
	if err != nil {
		return err
	}
	c.mongoClient = client

	db := client.Database(c.Config.MongoDB)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	c.Store = repository.NewMongoStore(db)
	return nil
}

// setupPublisher wraps a kafka writer in the traced otelkafka writer so the
// span context travels in the message headers.
func (c *Container) setupPublisher() error {
	if !c.Config.KafkaEnabled() {
		c.publisher = events.Noop{}
		return nil
	}

	base := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Config.KafkaBrokers...),
		Topic:                  c.Config.EventsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(otel.GetTracerProvider()),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(c.Config.EventsTopic),
			attribute.String("messaging.kafka.client_id", config.ServiceName),
		}),
	)
	if err != nil {
		return fmt.Errorf("kafka writer: %w", err)
	}

	c.kafkaWriter = events.NewKafkaPublisher(writer)
	c.publisher = c.kafkaWriter
	return nil
}

// Shutdown releases everything NewContainer opened, in reverse order.
func (c *Container) Shutdown(ctx context.Context) {
	if c.Cache != nil {
		c.Cache.Close()
	}
	if c.kafkaWriter != nil {
		if err := c.kafkaWriter.Close(); err != nil {
			c.Logger.Error("close kafka writer", zap.Error(err))
		}
	}
	if c.mongoClient != nil {
		if err := c.mongoClient.Disconnect(ctx); err != nil {
			c.Logger.Error("disconnect mongo", zap.Error(err))
		}
	}
	if c.otelShutdown != nil {
		if err := c.otelShutdown(ctx); err != nil {
			c.Logger.Error("shutdown otel", zap.Error(err))
		}
	}
	_ = c.Logger.Sync()
}
