package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"social-backend/internal/config"
	"social-backend/internal/db"
	"social-backend/internal/handlers"
	"social-backend/internal/identity"
	"social-backend/internal/presence"
	"social-backend/internal/services"
	"social-backend/internal/store"
	"social-backend/internal/store/memory"
	"social-backend/internal/store/mongostore"
	"social-backend/internal/store/postgres"
	"social-backend/internal/utils"
)

// Backend is the storage side of the server: the chat stores, the user
// directory and whatever must be closed on shutdown.
type Backend struct {
	Stores    store.Stores
	Directory identity.Directory

	closers []func(ctx context.Context) error
}

func (b *Backend) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		utils.LogError(b.closers[i](ctx), "Close backend")
	}
}

// Open connects the store selected by cfg.StoreDriver and, when REDIS_URL is
// set, puts a redis cache in front of the user directory.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	b := &Backend{}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.InitDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { pool.Close(); return nil })
		b.Stores = postgres.New(pool)
		b.Directory = identity.NewPostgresDirectory(pool)

	case config.DriverMongo:
		database, err := db.InitMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		b.Stores = mongostore.New(database)
		b.closers = append(b.closers, b.Stores.Close)
		b.Directory = identity.NewMongoDirectory(database)

	case config.DriverMemory:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		b.Stores = memory.New()
		if cfg.UsersFile == "" {
			log.Warn().Msg("USERS_FILE not set, conversations are not enriched with display info")
			b.Directory = identity.NewStatic()
			break
		}
		users, err := identity.LoadStatic(cfg.UsersFile)
		if err != nil {
			return nil, err
		}
		b.Directory = users

	default:
		return nil, errors.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.RedisURL != "" {
		client, err := identity.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		b.Directory = identity.NewCachedDirectory(b.Directory, client, cfg.DisplayCacheTTL)
		log.Info().Dur("ttl", cfg.DisplayCacheTTL).Msg("display info cache enabled")
	}

	return b, nil
}

// Migrate creates the schema (postgres) or indexes (mongo) for the configured driver.
func Migrate(ctx context.Context, cfg config.Config) error {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.InitDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		return db.Migrate(ctx, pool)

	case config.DriverMongo:
		database, err := db.InitMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer func() { _ = database.Client().Disconnect(context.Background()) }()
		return db.EnsureIndexes(ctx, database)

	case config.DriverMemory:
		return nil
	}
	return errors.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

// New builds the fiber app with every route mounted.
func New(cfg config.Config, backend *Backend) *fiber.App {
	registry := presence.NewRegistry()
	chat := services.NewChatService(backend.Stores, backend.Directory, registry)
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigin,
		AllowCredentials: cfg.CORSOrigin != "*",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handlers.RegisterRoutes(app, chat, registry, tokens)
	return app
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func Run(cfg config.Config) error {
	ctx := context.Background()

	if cfg.StoreDriver != config.DriverMemory {
		if err := Migrate(ctx, cfg); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}

	backend, err := Open(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		backend.Close(closeCtx)
	}()

	app := New(cfg, backend)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("server listening")
		errCh <- app.Listen(":" + cfg.Port)
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-c:
	}

	log.Info().Msg("Gracefully shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return err
	}
	log.Info().Msg("Server shutdown complete")
	return nil
}
