package app

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libredis "evtelemetry/backend/libs/redis"
	"evtelemetry/backend/services/telemetry-service/internal/auth"
	"evtelemetry/backend/services/telemetry-service/internal/cache"
	"evtelemetry/backend/services/telemetry-service/internal/config"
	"evtelemetry/backend/services/telemetry-service/internal/consumer"
	"evtelemetry/backend/services/telemetry-service/internal/db"
	httpserver "evtelemetry/backend/services/telemetry-service/internal/http"
	"evtelemetry/backend/services/telemetry-service/internal/http/handlers"
	"evtelemetry/backend/services/telemetry-service/internal/http/middleware"
	"evtelemetry/backend/services/telemetry-service/internal/metrics"
	"evtelemetry/backend/services/telemetry-service/internal/repository"
	"evtelemetry/backend/services/telemetry-service/internal/service"
	"evtelemetry/backend/services/telemetry-service/internal/stream"
	"evtelemetry/backend/services/telemetry-service/internal/ws"
)

// Store is the durable backend behind every service.
type Store interface {
	service.IngestionStore
	service.MappingStore
	service.HistoryReader
	service.LatestReader
	handlers.Pinger
}

// App wires telemetry service dependencies.
type App struct {
	server  *httpserver.Server
	streams *ws.Manager
	runners []func(ctx context.Context) error
	db      *sql.DB
	redis   *goredis.Client
	closers []func() error
	logger  *zap.Logger
}

// New constructs application components.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var mirror service.LatestMirror
	if cfg.RedisEnabled() {
		client, err := libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		mirror = cache.NewLatestMirror(client, cfg.Redis.TTL)
		logger.Info("latest-state mirror enabled", zap.String("addr", cfg.Redis.Addr))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ingestion := service.NewIngestionService(store, mirror, m, logger)
	mappings := service.NewMappingService(store, logger)
	analytics := service.NewAnalyticsService(store, store, m, logger)
	latest := service.NewLatestService(store, mirror, logger)

	dispatcher := stream.NewDispatcher(ingestion, logger)
	a.streams = ws.NewManager()
	streamServer := ws.NewServer(a.streams, dispatcher, ws.Options{
		PingInterval: cfg.WebSocket.PingInterval,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		FrameTimeout: cfg.QueryTimeout(),
	}, logger)

	routes := httpserver.Routes{
		IngestVehicle:   handlers.NewVehicleIngestionHandler(ingestion, logger),
		IngestMeter:     handlers.NewMeterIngestionHandler(ingestion, logger),
		RegisterMapping: handlers.NewRegisterMappingHandler(mappings, logger),
		GetMapping:      handlers.NewGetMappingHandler(mappings, logger),
		Summary:         handlers.NewSummaryHandler(analytics, logger),
		VehicleLatest:   handlers.NewVehicleLatestHandler(latest, logger),
		MeterLatest:     handlers.NewMeterLatestHandler(latest, logger),
		Stream:          http.HandlerFunc(streamServer.HandleWS),
		Health:          handlers.NewHealthHandler(store, logger),
		Metrics:         m.Handler(),
	}

	opts := httpserver.RouterOptions{
		Logger:       logger,
		Metrics:      m,
		QueryTimeout: cfg.QueryTimeout(),
	}
	if cfg.AuthEnabled() {
		tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		opts.AdminGuard = middleware.RequireRole(tokens, auth.RoleAdmin, logger)
	} else {
		logger.Warn("admin secret not set, mapping registration is unauthenticated")
	}

	a.server = httpserver.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes, opts), logger)

	if cfg.KafkaEnabled() {
		reader := consumer.NewKafkaReader(consumer.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		a.closers = append(a.closers, reader.Close)
		a.runners = append(a.runners, consumer.NewKafkaConsumer(reader, dispatcher, logger).Run)
		logger.Info("kafka consumer enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	if cfg.MQTTEnabled() {
		client := consumer.NewMQTTClient(consumer.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		})
		a.runners = append(a.runners, consumer.NewMQTTSubscriber(client, cfg.MQTT.Topic, dispatcher, logger).Run)
		logger.Info("mqtt subscriber enabled", zap.String("broker", cfg.MQTT.Broker), zap.String("topic", cfg.MQTT.Topic))
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		a.logger.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	sqlDB, err := db.Open(ctx, db.Options{
		DSN:         cfg.Storage.DSN,
		MaxOpenConn: cfg.Storage.MaxOpenConn,
		AutoMigrate: cfg.Storage.AutoMigrate,
	})
	if err != nil {
		return nil, err
	}
	a.db = sqlDB
	return repository.NewPostgresStore(sqlDB), nil
}

// Run serves HTTP, streams and broker consumers until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error {
		a.streams.Run(ctx)
		return nil
	})
	for _, run := range a.runners {
		run := run
		g.Go(func() error { return run(ctx) })
	}
	return g.Wait()
}

// Close releases resources.
func (a *App) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("failed to close consumer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
