package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/config"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

const connectTimeout = 10 * time.Second

// Connection owns the pgx pool shared by the scoring repositories.
type Connection struct {
	pool   *pgxpool.Pool
	config config.DatabaseConfig
	logger *logging.Logger
}

// New opens the pool and pings it once before returning.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger) (*Connection, error) {
	componentLogger := logger.WithComponent("database")

	poolConfig, err := newPoolConfig(cfg)
	if err != nil {
		componentLogger.DatabaseConnectionFailed(err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		componentLogger.DatabaseConnectionFailed(err)
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	conn := &Connection{
		pool:   pool,
		config: cfg,
		logger: componentLogger,
	}
	if err := conn.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	componentLogger.DatabaseConnected(cfg.Host, cfg.Name)
	componentLogger.Debug("pool configured",
		"schema", cfg.Schema,
		"max_conns", poolConfig.MaxConns,
		"min_conns", poolConfig.MinConns,
	)

	return conn, nil
}

// newPoolConfig turns the env settings into pool settings without dialing.
func newPoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 20
	}
	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// supabase poolers recycle server connections, so no prepared statements.
	// advisory locks still need the session-mode port.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	if cfg.Schema != "" {
		poolConfig.ConnConfig.RuntimeParams["search_path"] = cfg.Schema
	}

	return poolConfig, nil
}

// HealthCheck pings the pool. the readiness probe calls it, so only
// failures are logged.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		c.logger.HealthCheckFailed(err)
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

// Pool exposes the pool to the repositories and the migrator.
func (c *Connection) Pool() *pgxpool.Pool {
	return c.pool
}

// Close shuts down the pool.
func (c *Connection) Close() {
	stat := c.pool.Stat()
	c.pool.Close()
	c.logger.Info("database connection closed",
		"acquired_conns", stat.AcquiredConns(),
		"total_acquires", stat.AcquireCount(),
	)
}

// Schema is the postgres schema holding the scoring tables.
func (c *Connection) Schema() string {
	return c.config.Schema
}
