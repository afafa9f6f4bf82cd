package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/elgomatiae/muslim-space-sub000/internal/application"
	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/api"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/cache"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/config"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/database"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/memory"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/postgres"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/prayertimes"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	logLevel    string
	scoringPath string
}

// app is the wired storage and use case graph shared by the commands.
type app struct {
	cfg     *config.Config
	scoring application.ScoringConfig
	logger  *logging.Logger

	conn  *database.Connection
	redis *cache.RedisClient

	goals    domain.GoalRepository
	momentum domain.MomentumRepository
	markers  domain.ResetMarkerRepository
	scores   domain.ScoreRepository
	locker   application.UserLocker
	uow      application.UnitOfWork
	schedule *prayertimes.Client
}

// loadApp reads configuration and opens storage. migrate runs the embedded
// migrations before the repositories are used.
func loadApp(ctx context.Context, opts *rootOptions, migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.scoringPath != "" {
		cfg.ScoringPath = opts.scoringPath
	}

	logger := logging.NewWithLevel(logging.ParseLevel(cfg.LogLevel))

	scoring, err := config.LoadScoring(cfg.ScoringPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		scoring: scoring,
		logger:  logger,
		schedule: prayertimes.NewClient(prayertimes.Config{
			BaseURL:           cfg.PrayerTimes.BaseURL,
			Method:            cfg.PrayerTimes.Method,
			RequestsPerSecond: cfg.PrayerTimes.RequestsPerSecond,
			Burst:             cfg.PrayerTimes.Burst,
			Timeout:           cfg.PrayerTimes.Timeout,
		}, logger),
	}

	switch cfg.Storage {
	case config.StorageMemory:
		a.openMemory()
	default:
		if err := a.openPostgres(ctx, migrate); err != nil {
			a.Close()
			return nil, err
		}
	}

	logger.Info("storage ready",
		"driver", cfg.Storage,
		"policy", string(scoring.Policy),
		"week_start", scoring.WeekStart.String(),
		"redis_enabled", a.redis != nil,
	)
	return a, nil
}

func (a *app) openMemory() {
	a.logger.Warn("using in-memory storage, nothing survives a restart")
	store := memory.NewStore()
	a.goals = store.Goals()
	a.momentum = store.Momentum()
	a.markers = store.Markers()
	a.scores = store.Scores()
	a.locker = application.NewLocalUserLocker()
}

func (a *app) openPostgres(ctx context.Context, migrate bool) error {
	conn, err := database.New(ctx, a.cfg.Database, a.logger)
	if err != nil {
		return err
	}
	a.conn = conn

	if migrate {
		if err := database.NewMigrator(conn, a.logger).Run(ctx); err != nil {
			return err
		}
	}
	if err := conn.HealthCheck(ctx); err != nil {
		return err
	}

	pool := conn.Pool()
	a.goals = postgres.NewGoalRepository(pool)
	a.momentum = postgres.NewMomentumRepository(pool)
	a.markers = postgres.NewResetMarkerRepository(pool)
	a.uow = postgres.NewUnitOfWork(pool)

	// the in-process lock keeps same-replica callers off the pool,
	// the advisory lock covers other replicas
	a.locker = application.ChainLocker{
		application.NewLocalUserLocker(),
		postgres.NewAdvisoryLocker(pool, a.logger),
	}

	redisClient, err := cache.NewRedisClient(cache.RedisConfig{URL: a.cfg.Redis.URL}, a.logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		if err := redisClient.Connect(ctx); err != nil {
			a.logger.Warn("redis connection failed, continuing without cache", "error", err.Error())
			_ = redisClient.Close()
			redisClient = nil
		}
	}
	a.redis = redisClient
	a.scores = cache.NewScoreRepositoryWithCache(postgres.NewScoreRepository(pool), a.redis, a.cfg.Redis.ScoreTTL, a.logger)
	return nil
}

// computeUseCase wires the scoring cycle with every optional collaborator
// that is configured.
func (a *app) computeUseCase() *application.ComputeScoresUseCase {
	uc := application.NewComputeScoresUseCase(a.goals, a.momentum, a.markers, a.scores, a.schedule, a.scoring, a.logger).
		WithLocker(a.locker)
	if a.uow != nil {
		uc = uc.WithUnitOfWork(a.uow)
	}
	if a.redis != nil {
		uc = uc.WithLeaderboard(a.redis)
	}
	return uc
}

func (a *app) queryUseCase() *application.QueryScoresUseCase {
	uc := application.NewQueryScoresUseCase(a.scores, a.logger)
	if a.redis != nil {
		uc = uc.WithRanks(a.redis)
	}
	return uc
}

func (a *app) goalsUseCase() *application.ManageGoalsUseCase {
	uc := application.NewManageGoalsUseCase(a.goals, a.markers, a.scoring, a.logger).WithLocker(a.locker)
	if a.uow != nil {
		uc = uc.WithUnitOfWork(a.uow)
	}
	return uc
}

func (a *app) resetMomentumUseCase() *application.ResetMomentumUseCase {
	return application.NewResetMomentumUseCase(a.momentum, a.logger).WithLocker(a.locker)
}

// readinessChecks pings the backing stores for /ready.
func (a *app) readinessChecks() []api.ReadinessCheck {
	var checks []api.ReadinessCheck
	if a.conn != nil {
		checks = append(checks, api.ReadinessCheck{Name: "database", Check: a.conn.HealthCheck})
	}
	if a.redis != nil {
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: a.redis.HealthCheck})
	}
	return checks
}

// Close releases redis and the database pool.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "error", err.Error())
		}
	}
	if a.conn != nil {
		a.conn.Close()
	}
}

var errMemoryStorage = errors.New("command needs STORAGE_DRIVER=postgres")
