package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/agrobot/core/logger"
)

// sqliteSchema mirrors the postgres migrations for the embedded backend.
// golang-migrate only drives postgres; sqlite files are created on demand,
// so the schema ships with the binary and is applied at startup.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS farmers (
	chat_id       TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	crop          TEXT NOT NULL DEFAULT '',
	stage         TEXT NOT NULL DEFAULT '',
	land_size     REAL,
	land_unit     TEXT NOT NULL DEFAULT '',
	sowing_date   TIMESTAMP,
	location_text TEXT NOT NULL DEFAULT '',
	lat           REAL,
	lon           REAL,
	language      TEXT NOT NULL DEFAULT 'en',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_farmers_coords ON farmers (updated_at)
	WHERE lat IS NOT NULL AND lon IS NOT NULL;

CREATE TABLE IF NOT EXISTS sessions (
	chat_id    TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS image_records (
	id               TEXT PRIMARY KEY,
	chat_id          TEXT NOT NULL,
	file_ref         TEXT NOT NULL,
	provider_file_id TEXT NOT NULL DEFAULT '',
	caption          TEXT NOT NULL DEFAULT '',
	diagnosis        TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_image_records_chat ON image_records (chat_id, created_at);
`

// InitSQLiteSchema applies the embedded schema. Safe to run repeatedly.
func InitSQLiteSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	logger.DB.Info("sqlite schema ready",
		"event", "db.schema",
		"status", "ok",
	)
	return nil
}
