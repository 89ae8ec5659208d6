package database

import (
	"context"
	"fmt"
	"time"

	"restaurant-ordering/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

const (
	maxRetries = 10
	retryDelay = 2 * time.Second
	pingTTL    = 5 * time.Second
)

// ConnectDB opens a pgx-backed pool and retries until the database answers a ping.
func ConnectDB(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	var db *sqlx.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		db, err = sqlx.Open("pgx", dsn)
		if err != nil {
			if waitErr := wait(ctx); waitErr != nil {
				return nil, fmt.Errorf("db open canceled: %w", waitErr)
			}
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, pingTTL)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			if cfg.MaxConns > 0 {
				db.SetMaxOpenConns(cfg.MaxConns)
				db.SetMaxIdleConns(cfg.MaxConns)
			}
			return db, nil
		}

		_ = db.Close()

		if waitErr := wait(ctx); waitErr != nil {
			return nil, fmt.Errorf("db ping canceled: %w", waitErr)
		}
	}

	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, err)
}

func wait(ctx context.Context) error {
	select {
	case <-time.After(retryDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
