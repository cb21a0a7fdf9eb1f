// Package service holds the thin domain services between the bot handlers
// and storage. Each service owns logging and invariants for one aggregate;
// none of them keeps state of its own.
package service

import (
	"context"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/storage"
)

// Farmers manages farmer profiles.
type Farmers struct {
	store storage.Store
}

// NewFarmers builds the profile service.
func NewFarmers(store storage.Store) *Farmers {
	return &Farmers{store: store}
}

// GetByChatID loads the profile for a chat, or (nil, nil) for first contact.
func (s *Farmers) GetByChatID(ctx context.Context, chatID string) (*domain.Farmer, error) {
	f, err := s.store.LoadProfile(ctx, chatID)
	if err != nil {
		logger.SVCFarmers.Error("profile load failed",
			"event", "farmers.load",
			"status", "fail",
			"chat_id", chatID,
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
		return nil, err
	}
	return f, nil
}

// Upsert applies a partial profile update and returns the merged profile.
func (s *Farmers) Upsert(ctx context.Context, chatID string, patch domain.ProfilePatch) (*domain.Farmer, error) {
	if patch.IsZero() {
		return s.GetByChatID(ctx, chatID)
	}
	f, err := s.store.UpsertProfile(ctx, chatID, patch)
	if err != nil {
		logger.SVCFarmers.Error("profile upsert failed",
			"event", "farmers.upsert",
			"status", "fail",
			"chat_id", chatID,
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
		return nil, err
	}
	logger.SVCFarmers.Info("profile updated",
		"event", "farmers.upsert",
		"status", "ok",
		"chat_id", chatID,
		"crop", f.Crop,
		"stage", string(f.Stage),
	)
	return f, nil
}

// Reset clears every profile field except language.
func (s *Farmers) Reset(ctx context.Context, chatID string) error {
	if err := s.store.ResetProfile(ctx, chatID); err != nil {
		logger.SVCFarmers.Error("profile reset failed",
			"event", "farmers.reset",
			"status", "fail",
			"chat_id", chatID,
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
		return err
	}
	logger.SVCFarmers.Info("profile reset",
		"event", "farmers.reset",
		"status", "ok",
		"chat_id", chatID,
	)
	return nil
}

// ListWithCoords returns farmers eligible for the weather digest.
func (s *Farmers) ListWithCoords(ctx context.Context, limit int) ([]domain.Farmer, error) {
	out, err := s.store.ListProfilesWithCoords(ctx, limit)
	if err != nil {
		logger.SVCFarmers.Error("profile list failed",
			"event", "farmers.list",
			"status", "fail",
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
		return nil, err
	}
	return out, nil
}
