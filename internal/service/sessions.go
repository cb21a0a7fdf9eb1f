package service

import (
	"context"

	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/storage"
)

// Sessions manages persisted dialogue sessions.
type Sessions struct {
	store storage.Store
}

// NewSessions builds the session service.
func NewSessions(store storage.Store) *Sessions {
	return &Sessions{store: store}
}

// Load returns the session for a chat, creating a fresh first-contact
// session when none is stored. The fresh session is not persisted until the
// first successful turn saves it.
func (s *Sessions) Load(ctx context.Context, chatID string) (*domain.Session, error) {
	sess, err := s.store.LoadSession(ctx, chatID)
	if err != nil {
		logger.SVCSessions.Error("session load failed",
			"event", "sessions.load",
			"status", "fail",
			"chat_id", chatID,
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
		return nil, err
	}
	if sess == nil {
		return domain.NewSession(), nil
	}
	return sess, nil
}

// Save persists the session snapshot.
func (s *Sessions) Save(ctx context.Context, chatID string, sess *domain.Session) error {
	if err := s.store.SaveSession(ctx, chatID, sess); err != nil {
		logger.SVCSessions.Error("session save failed",
			"event", "sessions.save",
			"status", "fail",
			"chat_id", chatID,
			"state", string(sess.State),
			"err", logger.SanitizeLimit(err.Error(), 256),
		)
		return err
	}
	if logger.ShouldSampleDebug() {
		logger.SVCSessions.Debug("session saved",
			"event", "sessions.save",
			"status", "ok",
			"chat_id", chatID,
			"state", string(sess.State),
		)
	}
	return nil
}
