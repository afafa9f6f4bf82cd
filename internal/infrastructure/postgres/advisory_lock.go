package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
)

const unlockTimeout = 5 * time.Second

// AdvisoryLocker serialises scoring cycles for a user across processes.
// each held lock pins a pooled connection; session advisory locks need a
// direct connection or a session-mode pooler.
type AdvisoryLocker struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

// NewAdvisoryLocker creates a new AdvisoryLocker.
func NewAdvisoryLocker(pool *pgxpool.Pool, logger *logging.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{
		pool:   pool,
		logger: logger.WithComponent("advisory_lock"),
	}
}

// Lock blocks on pg_advisory_lock keyed by the user id. ctx cancellation
// aborts the wait.
func (l *AdvisoryLocker) Lock(ctx context.Context, userID domain.UserID) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock connection: %w", err)
	}

	key := userID.String()
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("taking advisory lock: %w", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()

			if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key); err != nil {
				// closing the session is the only other way to drop the lock
				l.logger.Warn("advisory unlock failed, closing session",
					"user_id", key,
					"error", err.Error(),
				)
				_ = conn.Hijack().Close(unlockCtx)
				return
			}
			conn.Release()
		})
	}, nil
}
