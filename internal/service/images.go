package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/storage"
)

// Images records crop photo submissions.
type Images struct {
	store storage.Store
}

// NewImages builds the image record service.
func NewImages(store storage.Store) *Images {
	return &Images{store: store}
}

// Append stores one submission. An empty ID gets a fresh UUID; the ID is the
// idempotency key, so retrying a failed turn with the same record cannot
// duplicate it.
func (s *Images) Append(ctx context.Context, rec *domain.ImageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := s.store.AppendImageRecord(ctx, rec); err != nil {
		logger.SVCImages.Error("image record failed",
			"event", "images.append",
			"status", "fail",
			"chat_id", rec.ChatID,
			"image_id", rec.ID,
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
		return err
	}
	logger.SVCImages.Info("image recorded",
		"event", "images.append",
		"status", "ok",
		"chat_id", rec.ChatID,
		"image_id", rec.ID,
	)
	return nil
}
