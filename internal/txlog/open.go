package txlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/ewarisk/internal/retry"
)

// OpenPostgres opens a pooled connection to dsn, retrying the initial ping
// with p so the process can start before the database is reachable.
func OpenPostgres(ctx context.Context, dsn string, p retry.Policy, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if p.OnRetry == nil && logger != nil {
		p.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("database not reachable, retrying", "attempt", attempt, "delay", delay, "error", err)
		}
	}
	err = retry.Do(ctx, p, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}
