package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
)

// SQLStore backs the store with a relational database through sqlx.
// The same implementation serves postgres and sqlite: every statement
// sticks to the shared subset (ON CONFLICT upserts, COALESCE patches),
// and per-dialect differences are confined to the schema files.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open connection pool.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
}

// LoadProfile returns the farmer profile for chatID, or (nil, nil) when the
// farmer has never been seen.
func (s *SQLStore) LoadProfile(ctx context.Context, chatID string) (*domain.Farmer, error) {
	const q = `
		SELECT chat_id, name, crop, stage, land_size, land_unit, sowing_date,
		       location_text, lat, lon, language, created_at, updated_at
		FROM farmers WHERE chat_id = $1`

	var f domain.Farmer
	if err := s.db.GetContext(ctx, &f, s.db.Rebind(q), chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("load profile", err)
	}
	return &f, nil
}

// UpsertProfile applies patch to the farmer row, creating it on first
// contact. Nil patch fields keep the stored value, so concurrent partial
// updates never erase each other's answers.
func (s *SQLStore) UpsertProfile(ctx context.Context, chatID string, patch domain.ProfilePatch) (*domain.Farmer, error) {
	const q = `
		INSERT INTO farmers (chat_id, name, crop, stage, land_size, land_unit,
		                     sowing_date, location_text, lat, lon, language,
		                     created_at, updated_at)
		VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''), $5,
		        COALESCE($6, ''), $7, COALESCE($8, ''), $9, $10,
		        COALESCE($11, 'en'), $12, $12)
		ON CONFLICT (chat_id) DO UPDATE SET
			name          = COALESCE($2, farmers.name),
			crop          = COALESCE($3, farmers.crop),
			stage         = COALESCE($4, farmers.stage),
			land_size     = COALESCE($5, farmers.land_size),
			land_unit     = COALESCE($6, farmers.land_unit),
			sowing_date   = COALESCE($7, farmers.sowing_date),
			location_text = COALESCE($8, farmers.location_text),
			lat           = COALESCE($9, farmers.lat),
			lon           = COALESCE($10, farmers.lon),
			language      = COALESCE($11, farmers.language),
			updated_at    = $12`

	now := time.Now().UTC()
	var stage, lang *string
	if patch.Stage != nil {
		v := string(*patch.Stage)
		stage = &v
	}
	if patch.Language != nil {
		v := string(*patch.Language)
		lang = &v
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		chatID, patch.Name, patch.Crop, stage, patch.LandSize, patch.LandUnit,
		patch.SowingDate, patch.LocationText, patch.Lat, patch.Lon, lang, now)
	if err != nil {
		return nil, storageErr("upsert profile", err)
	}
	return s.LoadProfile(ctx, chatID)
}

// ResetProfile empties the profile back to first-contact shape, keeping the
// language preference so the restarted dialogue stays readable.
func (s *SQLStore) ResetProfile(ctx context.Context, chatID string) error {
	const q = `
		UPDATE farmers SET
			name = '', crop = '', stage = '', land_size = NULL, land_unit = '',
			sowing_date = NULL, location_text = '', lat = NULL, lon = NULL,
			updated_at = $2
		WHERE chat_id = $1`

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), chatID, time.Now().UTC()); err != nil {
		return storageErr("reset profile", err)
	}
	return nil
}

// ListProfilesWithCoords returns farmers that shared coordinates, most
// recently active first. Feeds the weather digest fan-out.
func (s *SQLStore) ListProfilesWithCoords(ctx context.Context, limit int) ([]domain.Farmer, error) {
	const q = `
		SELECT chat_id, name, crop, stage, land_size, land_unit, sowing_date,
		       location_text, lat, lon, language, created_at, updated_at
		FROM farmers
		WHERE lat IS NOT NULL AND lon IS NOT NULL
		ORDER BY updated_at DESC
		LIMIT $1`

	if limit <= 0 {
		limit = 500
	}
	var out []domain.Farmer
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), limit); err != nil {
		return nil, storageErr("list profiles", err)
	}
	return out, nil
}

// LoadSession returns the persisted dialogue session for chatID.
// A missing row yields (nil, nil); a row that no longer decodes into a known
// dialogue state is treated the same way, so stale blobs from older builds
// restart the dialogue instead of wedging it.
func (s *SQLStore) LoadSession(ctx context.Context, chatID string) (*domain.Session, error) {
	const q = `SELECT state FROM sessions WHERE chat_id = $1`

	var raw []byte
	if err := s.db.GetContext(ctx, &raw, s.db.Rebind(q), chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("load session", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil || !sess.State.Valid() {
		logger.DB.Warn("session blob discarded",
			"event", "session.decode",
			"status", "reset",
			"chat_id", chatID,
		)
		return nil, nil
	}
	return &sess, nil
}

// SaveSession stores the session snapshot as a JSON blob.
func (s *SQLStore) SaveSession(ctx context.Context, chatID string, sess *domain.Session) error {
	const q = `
		INSERT INTO sessions (chat_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE SET
			state      = $2,
			updated_at = $3`

	raw, err := json.Marshal(sess)
	if err != nil {
		return storageErr("encode session", err)
	}
	// lib/pq ships []byte as bytea, which jsonb rejects; a string casts fine
	// on both backends.
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), chatID, string(raw), time.Now().UTC()); err != nil {
		return storageErr("save session", err)
	}
	return nil
}

// AppendImageRecord inserts one photo submission row. The record ID doubles
// as the idempotency key: replaying the same record is a no-op.
func (s *SQLStore) AppendImageRecord(ctx context.Context, rec *domain.ImageRecord) error {
	const q = `
		INSERT INTO image_records (id, chat_id, file_ref, provider_file_id,
		                           caption, diagnosis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		rec.ID, rec.ChatID, rec.FileRef, rec.ProviderFileID,
		rec.Caption, rec.Diagnosis, rec.CreatedAt)
	if err != nil {
		return storageErr("append image record", err)
	}
	return nil
}

// Ping verifies database liveness for health checks.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
