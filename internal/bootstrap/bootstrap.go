package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"jewelfinder-go/internal/app"
	"jewelfinder-go/internal/domain/cache"
	"jewelfinder-go/internal/domain/capture"
	"jewelfinder-go/internal/domain/events"
	"jewelfinder-go/internal/domain/history"
	"jewelfinder-go/internal/platform/config"
	"jewelfinder-go/internal/platform/errors"
	"jewelfinder-go/internal/platform/logging"
	transport "jewelfinder-go/internal/transport/http"
)

// App holds everything a running gateway owns.
type App struct {
	cfg     *config.Config
	logger  *logging.Logger
	service *app.Service
	server  *http.Server
}

// New performs the staged startup: config, logging, cache, history, voice
// recognizer, service, router.
func New() (*App, error) {
	const op = "bootstrap:new"

	result, err := config.NewLoader().WithDotEnv(true).Load()
	if err != nil {
		return nil, errors.Wrap(errors.KindBootstrap, op, "load config", err)
	}
	cfg := result.Config

	logger, err := logging.NewLogger(&cfg.Log)
	if err != nil {
		return nil, errors.Wrap(errors.KindBootstrap, op, "init logging", err)
	}
	logger.InfoTag("BOOT", "configuration loaded from %s", result.Path)

	store, err := buildCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	var repo *history.Repository
	if cfg.History.Enabled {
		repo, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			return nil, errors.Wrap(errors.KindBootstrap, op, "open history", err)
		}
	}

	factory := capture.NewOpenAIRecognizerFactory(capture.OpenAIRecognizerConfig{
		APIKey:  cfg.Voice.Recognizer.APIKey,
		BaseURL: cfg.Voice.Recognizer.BaseURL,
		Model:   cfg.Voice.Recognizer.Model,
	}, logger)

	service := app.NewService(app.Deps{
		Config:  cfg,
		Logger:  logger,
		History: repo,
		Cache:   store,
		Bus:     events.NewBus(logger),
		Factory: factory,
	})

	router := transport.Build(transport.Options{
		Config:  cfg,
		Logger:  logger,
		Service: service,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port)
	return &App{
		cfg:     cfg,
		logger:  logger,
		service: service,
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func buildCache(cfg *config.Config, logger *logging.Logger) (cache.Store, error) {
	const op = "bootstrap:cache"

	switch cfg.Cache.Type {
	case "", "memory":
		return cache.NewMemory(), nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			logger.WarnTag("CACHE", "redis unavailable, using memory cache: %v", err)
			return cache.NewMemory(), nil
		}
		return store, nil
	default:
		return nil, errors.New(errors.KindBootstrap, op,
			fmt.Sprintf("unknown cache type %q", cfg.Cache.Type))
	}
}

// Run serves until the context is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.logger.InfoTag("BOOT", "gateway listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		a.logger.InfoTag("BOOT", "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.WarnTag("BOOT", "forced shutdown: %v", err)
		}

		a.service.Bus().WaitAsync()
		if err := a.service.Close(); err != nil {
			a.logger.WarnTag("BOOT", "service close: %v", err)
		}
		return nil
	})

	err := group.Wait()
	_ = a.logger.Close()
	return err
}
