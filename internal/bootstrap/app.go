package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"dragonfly-id/internal/app"
	"dragonfly-id/internal/cache"
	"dragonfly-id/internal/config"
	"dragonfly-id/internal/history"
	"dragonfly-id/internal/model"
	mysqlClient "dragonfly-id/internal/platform/mysql"
	rabbitmqClient "dragonfly-id/internal/platform/rabbitmq"
	redisClient "dragonfly-id/internal/platform/redis"
	"dragonfly-id/internal/repository"
	"dragonfly-id/internal/vision"
	"dragonfly-id/internal/worker"
)

type App struct {
	Config          *config.Config
	MySQL           *gorm.DB
	Redis           *redis.Client
	MQConn          *amqp.Connection
	SyncWorker      *worker.SightingSyncWorker
	Identifier      *vision.Identifier
	Sightings       *history.Log
	IdentifyService *app.IdentifyService

	StartedAt time.Time
}

// NewIdentifier builds the classification pipeline from config. It has no network
// dependencies and is shared by the server and the batch CLI.
func NewIdentifier(cfg config.VisionConfig) *vision.Identifier {
	labels := vision.NewLabelStore(cfg.LabelsPath)
	engine := vision.NewEngine(vision.EngineConfig{
		Enabled:           cfg.Enabled,
		ModelPath:         cfg.ModelPath,
		ONNXSharedLibPath: cfg.ONNXSharedLibPath,
		Classes:           len(labels.Load()),
	})
	if !engine.Available() {
		log.Printf("vision: on-device inference unavailable, identifications use the reference fallback")
	}
	resolver := vision.NewResolver(labels, vision.FallbackStrategy(cfg.FallbackStrategy))
	return vision.NewIdentifier(labels, engine, resolver)
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), cfg.App.Env == "dev")
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Observer{}, &model.Sighting{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.App.Name, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.App.Name, cfg.RabbitMQ.SightingSyncQueue)
	if err != nil {
		return nil, err
	}

	sightingRepo := repository.NewSightingRepository(mysqlDB)
	syncWorker := worker.NewSightingSyncWorker(mqConn, sightingRepo, cfg.RabbitMQ.SightingSyncQueue)
	if err := syncWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start sighting sync worker failed: %w", err)
	}

	identifier := NewIdentifier(cfg.Vision)
	sightings := history.NewLog()
	identifyService := app.NewIdentifyService(
		identifier,
		sightings,
		cache.NewPredictionCache(redisCli, time.Duration(cfg.Redis.PredictionTTLSeconds)*time.Second),
		rabbitmqClient.NewSightingPublisher(mqConn, cfg.RabbitMQ.SightingSyncQueue),
		cfg.Vision.UploadDir,
		cfg.Vision.ReferenceDir,
	)

	return &App{
		Config:          cfg,
		MySQL:           mysqlDB,
		Redis:           redisCli,
		MQConn:          mqConn,
		SyncWorker:      syncWorker,
		Identifier:      identifier,
		Sightings:       sightings,
		IdentifyService: identifyService,
		StartedAt:       time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IdentifyService != nil {
		if err := a.IdentifyService.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Identifier != nil {
		if err := a.Identifier.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.SyncWorker != nil {
		a.SyncWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
