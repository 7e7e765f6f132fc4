package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/config"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/db"
	httpserver "github.com/TakundaMabukwa/fuel-server-sub001/internal/http"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/http/handlers"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/http/middleware"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/pipeline"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/redis"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/redisstore"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/repository"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/service"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/telemetry"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/transport"
	"github.com/TakundaMabukwa/fuel-server-sub001/internal/ws"
)

// App owns every component of the fuel server and their lifecycles.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	database    *sql.DB
	redisClient *goredis.Client

	engine     *service.Engine
	dispatcher *pipeline.Dispatcher
	reaper     *service.Reaper
	consumers  []transport.Consumer
	server     *httpserver.Server
}

// New wires the application from configuration. The record store is
// mandatory; the redis live mirror and the broker consumers are optional
// per configuration.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	database, err := db.NewPostgresDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger, database: database}

	var live service.LiveMirror
	if cfg.Redis.Addr != "" {
		client, err := redis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redisClient = client
		live = redisstore.NewLiveStore(client, cfg.LiveStateTTL())
		logger.Info("redis live mirror enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Info("redis live mirror disabled")
	}

	sessionRepo := repository.NewSessionRepository(database)
	fillRepo := repository.NewFillRepository(database)
	anomalyRepo := repository.NewAnomalyRepository(database)
	readingRepo := repository.NewReadingRepository(database)
	vehicleRepo := repository.NewVehicleRepository(database)

	sessions := service.NewSessionService(sessionRepo, vehicleRepo, service.SessionConfig{
		Debounce:       time.Duration(cfg.Session.DebounceMinutes) * time.Minute,
		MinDuration:    time.Duration(cfg.Session.MinDurationMinutes) * time.Minute,
		BoundaryWindow: time.Duration(cfg.Session.BoundaryWindowMinutes) * time.Minute,
		BufferSize:     cfg.Session.BufferSize,
		FuelUnitCost:   cfg.Session.FuelUnitCost,
		OrphanHorizon:  time.Duration(cfg.Reaper.HorizonHours) * time.Hour,
	}, logger)

	fills := service.NewFillDetector(fillRepo, service.FillConfig{
		MinLiters: cfg.Fill.MinLiters,
		MinRatio:  cfg.Fill.MinRatio,
		MaxGap:    time.Duration(cfg.Fill.MaxGapMinutes) * time.Minute,
	}, logger)

	anomalies := service.NewAnomalyClassifier(anomalyRepo, readingRepo, service.AnomalyThresholds{
		FilledWhileOnMin: cfg.Anomaly.FilledWhileOnMin,
		FilledWhileOnMax: cfg.Anomaly.FilledWhileOnMax,
		TheftDrop:        cfg.Anomaly.TheftDrop,
		SpillageDrop:     cfg.Anomaly.SpillageDrop,
		UnusualDrop:      cfg.Anomaly.UnusualDrop,
		RapidDrop:        cfg.Anomaly.RapidDrop,
		RapidDropRatio:   cfg.Anomaly.RapidDropRatio,
		RapidDropPerMin:  cfg.Anomaly.RapidDropRatePerMin,
		RapidDropWindow:  time.Duration(cfg.Anomaly.RapidDropWindowMin) * time.Minute,
	}, logger)

	a.engine = service.NewEngine(sessions, fills, anomalies, readingRepo, live, logger)
	if err := a.engine.Rebuild(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.dispatcher = pipeline.NewDispatcher(ctx, a.engine, cfg.Pipeline.QueueSize, logger)

	classifier := telemetry.NewStatusClassifier(telemetry.DefaultOnKeywords, telemetry.DefaultOffKeywords)
	ingestor := transport.NewIngestor(telemetry.NewNormalizer(classifier), a.dispatcher, logger)

	if cfg.AMQP.Enabled {
		a.consumers = append(a.consumers, transport.NewAMQPConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, ingestor, logger))
	}
	if cfg.Kafka.Enabled {
		a.consumers = append(a.consumers,
			transport.NewKafkaConsumer(cfg.KafkaBrokerList(), cfg.Kafka.GroupID, cfg.Kafka.Topic, ingestor, logger))
	}

	a.reaper = service.NewReaper(sessionRepo, service.ReaperConfig{
		Horizon:          time.Duration(cfg.Reaper.HorizonHours) * time.Hour,
		Interval:         time.Duration(cfg.Reaper.IntervalMinutes) * time.Minute,
		InitialDelay:     time.Duration(cfg.Reaper.InitialDelayMinutes) * time.Minute,
		EstimatedHours:   cfg.Reaper.EstimatedHours,
		UsageRatePerHour: cfg.Reaper.UsageRatePerHour,
		FuelUnitCost:     cfg.Session.FuelUnitCost,
	}, logger)

	sessionsHandler := handlers.NewSessionsHandler(sessionRepo, logger)
	fillsHandler := handlers.NewFillsHandler(fillRepo, logger)
	anomaliesHandler := handlers.NewAnomaliesHandler(anomalyRepo, anomalies, logger)
	healthHandler := handlers.NewHealthHandler(database, logger)
	wsServer := ws.NewServer(ingestor, logger)

	var auth func(http.Handler) http.Handler
	if cfg.HTTP.JWTSecret != "" {
		auth = middleware.AuthMiddleware(cfg.HTTP.JWTSecret)
	} else {
		logger.Warn("jwt secret not configured, api endpoints are unauthenticated")
	}

	router := httpserver.NewRouter(httpserver.Routes{
		Sessions:       sessionsHandler.List,
		ActiveSessions: sessionsHandler.Active,
		Fills:          fillsHandler.List,
		Anomalies:      anomaliesHandler.List,
		AnomalyResolve: anomaliesHandler.Resolve,
		AnomalyScan:    anomaliesHandler.Scan,
		Telemetry:      wsServer.HandleWS,
		Health:         healthHandler.Check,
	}, auth)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return a, nil
}

// Run starts the consumers, the reaper and the HTTP server, and blocks until
// the context is cancelled or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	for _, consumer := range a.consumers {
		c := consumer
		go func() {
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("telemetry consumer stopped", zap.Error(err))
			}
		}()
	}

	go a.reaper.Run(ctx)

	return a.server.Run(ctx)
}

// Close releases resources in reverse dependency order.
func (a *App) Close() {
	for _, consumer := range a.consumers {
		if err := consumer.Stop(); err != nil {
			a.logger.Warn("consumer stop failed", zap.Error(err))
		}
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Warn("database close failed", zap.Error(err))
		}
	}
}
