package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to PostgreSQL through the pgx database/sql driver.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// OpenBackend connects the configured driver. Postgres is migrated and Mongo
// gets its indexes before the backend is returned.
func OpenBackend(ctx context.Context, driver, mongoURL, mongoDatabase, databaseURL string) (Backend, error) {
	switch driver {
	case "memory":
		return NewMemory(), nil
	case "mongo":
		m, err := OpenMongo(ctx, mongoURL, mongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureIndexes(ctx); err != nil {
			_ = m.Close(ctx)
			return nil, err
		}
		return m, nil
	case "postgres":
		db, err := Open(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := ApplyMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewPostgres(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
