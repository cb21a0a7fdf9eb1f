// Package storage persists farmer profiles, dialogue sessions and image
// records, keyed by chat identity. All operations are single-row accesses
// with upsert semantics so retries are idempotent.
package storage

import (
	"context"

	"github.com/m3rciful/agrobot/internal/domain"
)

// Store is the persistence contract consumed by the services layer.
// Load* return (nil, nil) when no row exists. Failures wrap
// domain.ErrStorageUnavailable.
type Store interface {
	LoadProfile(ctx context.Context, chatID string) (*domain.Farmer, error)
	UpsertProfile(ctx context.Context, chatID string, patch domain.ProfilePatch) (*domain.Farmer, error)
	// ResetProfile clears every profile field except the language preference.
	// A no-op when the profile does not exist.
	ResetProfile(ctx context.Context, chatID string) error
	ListProfilesWithCoords(ctx context.Context, limit int) ([]domain.Farmer, error)

	LoadSession(ctx context.Context, chatID string) (*domain.Session, error)
	SaveSession(ctx context.Context, chatID string, s *domain.Session) error

	AppendImageRecord(ctx context.Context, rec *domain.ImageRecord) error

	Ping(ctx context.Context) error
	Close() error
}
