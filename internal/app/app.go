package app

import (
	"context"
	"fmt"
	"time"

	"github.com/publishflow/publishflow/internal/cms"
	"github.com/publishflow/publishflow/internal/config"
	"github.com/publishflow/publishflow/internal/database"
	"github.com/publishflow/publishflow/internal/document/service"
	"github.com/publishflow/publishflow/internal/events"
	"github.com/publishflow/publishflow/internal/locks"
	"github.com/publishflow/publishflow/internal/storage"
	"github.com/publishflow/publishflow/internal/workflow"
	"github.com/publishflow/publishflow/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// App is the wired publish workflow shared by the server and publishctl.
type App struct {
	Config   *config.Config
	Draft    *mongo.Client
	Live     *database.LiveConnection
	Redis    *redis.Client
	Registry *cms.Registry
	Workflow *workflow.Plugin
	Service  service.Service

	events *events.Emitter
}

// New connects every configured backend, loads the list schema and
// registers it. Only the draft and live databases are required.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	draft, err := connectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
	if err != nil {
		return nil, err
	}
	a.Draft = draft

	var locker locks.Locker = locks.NewMemoryLocker()
	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s), using in-process locks: %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = client.Close()
		} else {
			a.Redis = client
			locker = locks.NewRedisLocker(client, "publishflow:lock:")
			logger.Infof("Connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}
	extra := []workflow.Option{workflow.WithLocker(locker)}
	var svcOpts []service.Option

	if cfg.MinIO.Endpoint != "" {
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("snapshot archive disabled: %v", err)
		} else {
			extra = append(extra, workflow.WithArchiver(st))
			svcOpts = append(svcOpts, service.WithSnapshots(st))
		}
	}

	if cfg.NATS.URL != "" {
		sink, err := events.NewNatsSink(cfg.NATS.URL)
		if err != nil {
			logger.Warnf("publish events disabled: %v", err)
		} else {
			a.events = events.NewEmitter(sink, cfg.NATS.SubjectPrefix)
			extra = append(extra, workflow.WithEvents(a.events))
		}
	}

	a.Live = database.NewLiveConnection(cfg.Publish.ConnectionString, cfg.Publish.LiveDatabase, cfg.MongoDB.Timeout)
	a.Workflow = workflow.New(workflow.Options{
		LiveURL:                        cfg.Publish.LiveURL,
		PreviewURL:                     cfg.Publish.PreviewURL,
		ShowLiveContentURL:             cfg.Publish.ShowLiveContentURL,
		PublishCheckedByDefault:        cfg.Publish.PublishCheckedByDefault,
		ForcePublishRegardlessOfStatus: cfg.Publish.ForcePublishRegardlessOfStatus,
		IsLiveDatabase:                 cfg.IsLiveDatabase(),
		LockTTL:                        cfg.Publish.LockTTL,
		LockWait:                       cfg.Publish.LockWait,
	}, workflow.NewMongoLive(a.Live), extra...)
	if err := a.Workflow.Init(ctx); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	logger.Infof("connected to live database %q (live site: %v)", a.Live.Name(), cfg.IsLiveDatabase())

	a.Registry = cms.NewRegistry(cms.MongoStores(draft.Database(DraftDatabaseName(cfg))))
	a.Registry.Use(a.Workflow)

	schema, err := cms.LoadSchemaFile(cfg.Publish.SchemaFile)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	if err := a.Registry.RegisterSchema(ctx, schema); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	logger.Infof("registered %d lists from %s", len(a.Registry.Lists()), cfg.Publish.SchemaFile)

	a.Service = service.New(a.Registry, a.Workflow, svcOpts...)
	return a, nil
}

// DraftDatabaseName prefers the database named in the connection string.
func DraftDatabaseName(cfg *config.Config) string {
	if n := database.DatabaseName(cfg.MongoDB.URI); n != "" {
		return n
	}
	return cfg.MongoDB.Database
}

func connectWithRetry(ctx context.Context, uri string, timeout time.Duration, maxAttempts int) (*mongo.Client, error) {
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := database.ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("could not connect to MongoDB after %d attempts: %w", maxAttempts, lastErr)
}

// Ready reports the availability of each backend.
func (a *App) Ready(ctx context.Context) map[string]bool {
	deps := map[string]bool{
		"draft": a.Draft != nil && a.Draft.Ping(ctx, nil) == nil,
		"live":  a.Live != nil && a.Live.Connected(),
	}
	if a.Config.Redis.Host != "" {
		deps["redis"] = a.Redis != nil && a.Redis.Ping(ctx).Err() == nil
	}
	return deps
}

func (a *App) Close(ctx context.Context) {
	if err := a.events.Close(); err != nil {
		logger.Warnf("close events: %v", err)
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Live != nil {
		if err := a.Live.Close(ctx); err != nil {
			logger.Warnf("close live database: %v", err)
		}
	}
	if a.Draft != nil {
		_ = a.Draft.Disconnect(ctx)
	}
}
