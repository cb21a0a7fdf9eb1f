package service

import (
	"context"
	"errors"
	"os"
	"testing"

	coreconfig "github.com/m3rciful/agrobot/core/config"
	"github.com/m3rciful/agrobot/core/logger"
	"github.com/m3rciful/agrobot/internal/domain"
	"github.com/m3rciful/agrobot/internal/storage"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(&coreconfig.Config{
		Logging: coreconfig.LoggingConfig{Level: "error", Format: "json"},
	})
	os.Exit(m.Run())
}

func TestFarmersUpsertSkipsEmptyPatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	farmers := NewFarmers(store)

	name := "Ramesh"
	if _, err := farmers.Upsert(ctx, "42", domain.ProfilePatch{Name: &name}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// An empty patch must not touch storage; a write would bump updated_at.
	before, err := farmers.GetByChatID(ctx, "42")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	after, err := farmers.Upsert(ctx, "42", domain.ProfilePatch{})
	if err != nil {
		t.Fatalf("empty upsert: %v", err)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("empty patch wrote the profile: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
	if after.Name != "Ramesh" {
		t.Fatalf("profile = %+v", after)
	}
}

func TestFarmersResetPropagatesStorageErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	farmers := NewFarmers(store)

	store.FailNext = true
	if err := farmers.Reset(ctx, "42"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("err = %v, expected ErrStorageUnavailable", err)
	}
}

func TestSessionsLoadCreatesFirstContactSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	sessions := NewSessions(store)

	sess, err := sessions.Load(ctx, "42")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess == nil || sess.State != domain.StateAwaitingProfile || sess.PendingField != domain.FieldName {
		t.Fatalf("fresh session = %+v", sess)
	}

	// The fresh session is synthetic: nothing is stored until Save.
	if stored, err := store.LoadSession(ctx, "42"); err != nil || stored != nil {
		t.Fatalf("store = %+v, %v, expected empty", stored, err)
	}

	sess.State = domain.StateAwaitingStage
	if err := sessions.Save(ctx, "42", sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := sessions.Load(ctx, "42")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.State != domain.StateAwaitingStage {
		t.Fatalf("state = %s", got.State)
	}
}

func TestImagesAppendAssignsID(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	images := NewImages(store)

	rec := domain.ImageRecord{ChatID: "42", FileRef: "photos/42/a.jpg"}
	if err := images.Append(ctx, &rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("no ID assigned")
	}

	// Retrying with the assigned ID is a no-op.
	if err := images.Append(ctx, &rec); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := store.Images(); len(got) != 1 {
		t.Fatalf("images = %d, expected 1", len(got))
	}
}
