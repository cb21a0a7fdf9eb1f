package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/agrobot/internal/domain"
)

// MemoryStore keeps everything in process memory. It backs tests and the
// "memory" backend for local runs without a database. Contents vanish on
// restart.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Farmer
	sessions map[string]*domain.Session
	images   []domain.ImageRecord
	imageIDs map[string]struct{}

	// FailNext forces the next operation to fail with
	// domain.ErrStorageUnavailable. Test hook for outage paths.
	FailNext bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*domain.Farmer),
		sessions: make(map[string]*domain.Session),
		imageIDs: make(map[string]struct{}),
	}
}

func (m *MemoryStore) failCheck(op string) error {
	if m.FailNext {
		m.FailNext = false
		return storageErr(op, context.DeadlineExceeded)
	}
	return nil
}

// LoadProfile returns a copy of the stored profile, or (nil, nil).
func (m *MemoryStore) LoadProfile(_ context.Context, chatID string) (*domain.Farmer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failCheck("load profile"); err != nil {
		return nil, err
	}
	f, ok := m.profiles[chatID]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

// UpsertProfile applies patch in place, creating the profile on first use.
func (m *MemoryStore) UpsertProfile(_ context.Context, chatID string, patch domain.ProfilePatch) (*domain.Farmer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failCheck("upsert profile"); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	f, ok := m.profiles[chatID]
	if !ok {
		f = &domain.Farmer{ChatID: chatID, Language: domain.LangEnglish, CreatedAt: now}
		m.profiles[chatID] = f
	}
	patch.Apply(f)
	f.UpdatedAt = now
	cp := *f
	return &cp, nil
}

// ResetProfile empties the profile back to first-contact shape, keeping the
// language preference.
func (m *MemoryStore) ResetProfile(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failCheck("reset profile"); err != nil {
		return err
	}
	f, ok := m.profiles[chatID]
	if !ok {
		return nil
	}
	lang := f.Lang()
	m.profiles[chatID] = &domain.Farmer{
		ChatID:    chatID,
		Language:  lang,
		CreatedAt: f.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// ListProfilesWithCoords returns located farmers, most recently active first.
func (m *MemoryStore) ListProfilesWithCoords(_ context.Context, limit int) ([]domain.Farmer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 500
	}
	out := make([]domain.Farmer, 0, len(m.profiles))
	for _, f := range m.profiles {
		if f.HasCoords() {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LoadSession returns a deep copy of the stored session, or (nil, nil).
func (m *MemoryStore) LoadSession(_ context.Context, chatID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failCheck("load session"); err != nil {
		return nil, err
	}
	s, ok := m.sessions[chatID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// SaveSession stores a deep copy so later caller mutations stay invisible.
func (m *MemoryStore) SaveSession(_ context.Context, chatID string, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failCheck("save session"); err != nil {
		return err
	}
	m.sessions[chatID] = s.Clone()
	return nil
}

// AppendImageRecord stores the record once; replays by ID are dropped.
func (m *MemoryStore) AppendImageRecord(_ context.Context, rec *domain.ImageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failCheck("append image record"); err != nil {
		return err
	}
	if _, dup := m.imageIDs[rec.ID]; dup {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.imageIDs[rec.ID] = struct{}{}
	m.images = append(m.images, *rec)
	return nil
}

// Images returns a snapshot of stored image records. Test helper.
func (m *MemoryStore) Images() []domain.ImageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ImageRecord, len(m.images))
	copy(out, m.images)
	return out
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
