package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/agrobot/core/logger"
	"log/slog"
)

// Connect opens the database connection, configures the pool, and verifies connectivity.
// The driver is selected by cfg.Backend: postgres (default) or sqlite.
func Connect(cfg Config) (*sqlx.DB, error) {
	backend := cfg.ResolveBackend()
	driver, dsn, err := buildDSN(cfg, backend)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	sqlxDB, err := sqlx.ConnectContext(ctx, driver, dsn)
	took := time.Since(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("driver", driver),
			slog.String("host", cfg.Host),
			slog.String("port", cfg.Port),
			slog.String("db", databaseLabel(cfg, backend)),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if pingErr := sqlxDB.PingContext(ctx); pingErr != nil {
		logger.DB.Error("db ping failed",
			slog.String("event", "db.ping"),
			slog.String("driver", driver),
			slog.String("host", cfg.Host),
			slog.String("port", cfg.Port),
			slog.String("db", databaseLabel(cfg, backend)),
			slog.String("err", pingErr.Error()),
		)
		return nil, fmt.Errorf("db ping: %w", pingErr)
	}

	pool := cfg.MaxConnections
	if backend == BackendSQLite {
		// Single writer; sqlite serializes writes anyway.
		pool = 1
	}
	sqlxDB.SetMaxOpenConns(pool)
	sqlxDB.SetMaxIdleConns(pool)
	logger.DB.Debug("db pool configured",
		slog.String("event", "db.pool"),
		slog.Int("pool_open", pool),
	)

	// Final INFO line for connection
	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", driver),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", databaseLabel(cfg, backend)),
		slog.Int("pool_open", pool),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	return sqlxDB, nil
}

func buildDSN(cfg Config, backend string) (driver, dsn string, err error) {
	switch backend {
	case BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = "data/agrobot.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return "", "", fmt.Errorf("create sqlite dir: %w", mkErr)
			}
		}
		return "sqlite", path + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000", nil
	default:
		return "postgres", fmt.Sprintf(
			"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
		), nil
	}
}

func databaseLabel(cfg Config, backend string) string {
	if backend == BackendSQLite {
		if cfg.Path != "" {
			return cfg.Path
		}
		return "data/agrobot.db"
	}
	return cfg.Name
}

// WaitForPostgres tries to connect to the DB until it is ready or timeout is reached.
func WaitForPostgres(dsn string, timeout time.Duration) error {
	start := time.Now()
	var lastErr error
	for {
		db, err := sql.Open("postgres", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				_ = db.Close()
				return nil
			}
			_ = db.Close()
		}
		lastErr = err
		if time.Since(start) > timeout {
			return fmt.Errorf("timeout reached waiting for database: %w", lastErr)
		}
		time.Sleep(2 * time.Second)
	}
}
