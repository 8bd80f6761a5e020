package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	logalert "github.com/bnema/accountpool/internal/adapters/alert/log"
	"github.com/bnema/accountpool/internal/adapters/alert/telegram"
	"github.com/bnema/accountpool/internal/adapters/memstore"
	"github.com/bnema/accountpool/internal/adapters/pubsub/memory"
	redisadapter "github.com/bnema/accountpool/internal/adapters/redis"
	statusadapter "github.com/bnema/accountpool/internal/adapters/render/status"
	"github.com/bnema/accountpool/internal/adapters/repo/postgres"
	tomlrepo "github.com/bnema/accountpool/internal/adapters/repo/toml"
	chainstore "github.com/bnema/accountpool/internal/adapters/secrets/chain"
	"github.com/bnema/accountpool/internal/application"
	"github.com/bnema/accountpool/internal/config"
	"github.com/bnema/accountpool/internal/ports"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	repo     ports.PoolRepository
	health   ports.HealthTracker
	jobStore ports.JobQueueStore
	bus      ports.PubSub
	alerter  ports.Alerter

	pools    *application.PoolService
	queue    *application.AccountQueue
	acquirer *application.Acquirer
	jobs     *application.JobQueueRegistry
	requests *application.RequestTracker

	statusRenderer func([]application.PoolStatus, statusadapter.RenderOptions) (string, error)
	now            func() time.Time

	closers []func()
}

// wireApp builds every adapter from configuration. Without a redis address
// the shared structures live in process memory and only this process sees
// them.
func wireApp(ctx context.Context, configPath string) (*app, error) {
	cfg, v, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Process.ID == "" {
		cfg.Process.ID = uuid.NewString()
	}

	a := &app{
		cfg:            cfg,
		logger:         cfg.Logger(),
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}

	if err := a.wireRepository(ctx, cfg, v); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wireShared(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	alerter, err := newAlerter(cfg, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.alerter = alerter

	secrets, err := chainstore.NewPassFirstWithFileFallback(cfg.Secrets.PassPrefix, cfg.Secrets.Dir, a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	clock := ports.SystemClock{}
	a.pools = application.NewPoolService(a.repo, secrets, a.health, clock)
	a.queue = application.NewAccountQueue(a.repo, clock, ports.SystemRandom{}, a.logger)
	a.acquirer = application.NewAcquirer(a.repo, a.queue, a.health, a.alerter, clock, a.logger)
	a.jobs = application.NewJobQueueRegistry(a.jobStore, a.bus, clock, a.logger)
	a.requests = application.NewRequestTracker(a.health, cfg.Requests.TTL, a.logger)

	return a, nil
}

func (a *app) wireRepository(ctx context.Context, cfg *config.Config, v *viper.Viper) error {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("wire postgres repository: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		repo := postgres.NewPoolRepository(db)
		if cfg.Postgres.Migrate {
			if err := repo.Migrate(ctx); err != nil {
				return err
			}
		}
		a.repo = repo
	default:
		repo, err := tomlrepo.NewPoolRepository(v)
		if err != nil {
			return fmt.Errorf("wire toml repository: %w", err)
		}
		a.repo = repo
	}
	return nil
}

func (a *app) wireShared(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.Addr == "" {
		clock := ports.SystemClock{}
		a.health = memstore.NewHealthTracker(clock)
		a.jobStore = memstore.NewJobQueueStore(clock)
		a.bus = memory.NewBus()
		return nil
	}

	client, err := redisadapter.Connect(ctx, redisadapter.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("wire redis: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Debug("close redis client", "error", err)
		}
	})

	a.health = redisadapter.NewHealthTracker(client)
	a.jobStore = redisadapter.NewJobQueueStore(client)
	a.bus = redisadapter.NewPubSub(client)
	return nil
}

func newAlerter(cfg *config.Config, logger *slog.Logger) (ports.Alerter, error) {
	if cfg.Alert.Telegram.Token == "" {
		return logalert.New(logger), nil
	}

	alerter, err := telegram.New(telegram.Config{
		Token:  cfg.Alert.Telegram.Token,
		ChatID: cfg.Alert.Telegram.ChatID,
		Source: cfg.Process.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("wire telegram alerter: %w", err)
	}
	return alerter, nil
}

// Close releases connections in reverse wiring order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
