package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"msgboard/infrastructure/db"
	"msgboard/internal/config"
	httpHandler "msgboard/internal/delivery/http"
	"msgboard/internal/repository"
	"msgboard/internal/usecase"
	"msgboard/pkg/csrf"
	"msgboard/pkg/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// store is an opened message backend plus its readiness check and release.
type store struct {
	repo  repository.MessageRepository
	ping  func(ctx context.Context) error
	close func()
}

func Run() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	guard, err := csrf.New(cfg.CSRFMode, cfg.CSRFSecret)
	if err != nil {
		return err
	}
	if cfg.CSRFMode == csrf.ModeSession && cfg.CSRFSecret == "" {
		log.Println("Warning: CSRF_SECRET is empty, session tokens will not survive a restart")
	}

	ctx := context.Background()

	messageStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer messageStore.close()

	limiter := ratelimit.NewLimiter(cfg.RateLimit, cfg.RateWindow, cfg.RateSweepInterval)
	defer limiter.Close()

	boardUc := usecase.NewBoardUsecase(messageStore.repo, limiter, guard, cfg.PageSize, cfg.StorageTimeout)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	boardH := httpHandler.NewBoardHandler(boardUc, cfg.DefaultRoom)
	healthH := httpHandler.NewHealthHandler(messageStore.ping)
	httpHandler.MapHttpRoutes(router, boardH, healthH)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server is running on :%s", cfg.Port)
		serveErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-quit:
	}

	log.Println("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	return nil
}

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg config.Config) (store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Println("Using in-memory message store")
		return store{
			repo:  repository.NewMemoryMessageRepository(),
			close: func() {},
		}, nil

	case config.DriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return store{}, err
		}
		log.Printf("Connected to SQLite at %s", cfg.SQLitePath)
		return store{
			repo: repository.NewSQLiteMessageRepository(sqlDB),
			ping: sqlDB.PingContext,
			close: func() {
				if err := sqlDB.Close(); err != nil {
					log.Printf("Close SQLite error: %v", err)
				}
			},
		}, nil

	case config.DriverBadger:
		badgerDB, err := db.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return store{}, err
		}
		log.Printf("Opened Badger at %s", cfg.BadgerPath)
		return store{
			repo: repository.NewBadgerMessageRepository(badgerDB),
			ping: func(context.Context) error {
				if badgerDB.IsClosed() {
					return errors.New("badger is closed")
				}
				return nil
			},
			close: func() {
				if err := badgerDB.Close(); err != nil {
					log.Printf("Close Badger error: %v", err)
				}
			},
		}, nil

	case config.DriverMongo:
		mongoDb, err := db.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return store{}, err
		}
		log.Println("Connected to MongoDB")
		return store{
			repo: repository.NewMongoMessageRepository(mongoDb.DB),
			ping: mongoDb.Ping,
			close: func() {
				if err := mongoDb.Close(context.Background()); err != nil {
					log.Printf("Close MongoDB error: %v", err)
				}
			},
		}, nil

	case config.DriverRedis:
		rdb, err := db.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return store{}, err
		}
		log.Printf("Connected to Redis at %s", cfg.RedisAddr)
		return store{
			repo: repository.NewRedisMessageRepository(rdb),
			ping: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
			close: func() {
				if err := rdb.Close(); err != nil {
					log.Printf("Close Redis error: %v", err)
				}
			},
		}, nil
	}

	return store{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
