package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/agrobot/internal/domain"
)

func strPtr(s string) *string { return &s }

func f64Ptr(f float64) *float64 { return &f }

func langPtr(l domain.Language) *domain.Language { return &l }

func TestMemoryStoreProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	got, err := m.LoadProfile(ctx, "42")
	if err != nil || got != nil {
		t.Fatalf("missing profile = %+v, %v, expected nil, nil", got, err)
	}

	f, err := m.UpsertProfile(ctx, "42", domain.ProfilePatch{Name: strPtr("Ramesh")})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if f.ChatID != "42" || f.Name != "Ramesh" || f.Language != domain.LangEnglish {
		t.Fatalf("created profile = %+v", f)
	}
	if f.CreatedAt.IsZero() || f.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}

	// Patches only touch the fields they carry.
	f, err = m.UpsertProfile(ctx, "42", domain.ProfilePatch{Crop: strPtr("cotton"), Lat: f64Ptr(19.07), Lon: f64Ptr(72.87)})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if f.Name != "Ramesh" || f.Crop != "cotton" || !f.HasCoords() {
		t.Fatalf("patched profile = %+v", f)
	}

	// Returned copies must not alias the stored profile.
	f.Name = "mutated"
	got, err = m.LoadProfile(ctx, "42")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != "Ramesh" {
		t.Fatalf("stored profile aliased the returned copy: %q", got.Name)
	}
}

func TestMemoryStoreResetKeepsLanguage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if _, err := m.UpsertProfile(ctx, "42", domain.ProfilePatch{
		Name:     strPtr("Ramesh"),
		Crop:     strPtr("cotton"),
		Language: langPtr(domain.LangMarathi),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := m.ResetProfile(ctx, "42"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	f, err := m.LoadProfile(ctx, "42")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Name != "" || f.Crop != "" {
		t.Fatalf("reset left profile data behind: %+v", f)
	}
	if f.Language != domain.LangMarathi {
		t.Fatalf("language = %s, expected mr to survive the reset", f.Language)
	}

	// Resetting an unknown chat is a no-op, not an error.
	if err := m.ResetProfile(ctx, "404"); err != nil {
		t.Fatalf("reset missing: %v", err)
	}
}

func TestMemoryStoreSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	got, err := m.LoadSession(ctx, "42")
	if err != nil || got != nil {
		t.Fatalf("missing session = %+v, %v, expected nil, nil", got, err)
	}

	s := &domain.Session{
		State:       domain.StateAwaitingSymptomOrMenu,
		LastSymptom: "yellow leaves",
		Weather:     &domain.WeatherNote{Summary: "Clear", FetchedAt: time.Now().UTC()},
		TurnCount:   7,
	}
	if err := m.SaveSession(ctx, "42", s); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the saved pointer must not leak into the store.
	s.LastSymptom = "mutated"
	s.Weather.Summary = "mutated"

	got, err = m.LoadSession(ctx, "42")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.LastSymptom != "yellow leaves" || got.Weather.Summary != "Clear" {
		t.Fatalf("session aliased caller memory: %+v", got)
	}
	if got.TurnCount != 7 || got.State != domain.StateAwaitingSymptomOrMenu {
		t.Fatalf("session = %+v", got)
	}
}

func TestMemoryStoreImageAppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	rec := domain.ImageRecord{ID: "img-1", ChatID: "42", FileRef: "photos/42/a.jpg"}
	if err := m.AppendImageRecord(ctx, &rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("created_at not defaulted")
	}
	replay := rec
	if err := m.AppendImageRecord(ctx, &replay); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got := m.Images(); len(got) != 1 {
		t.Fatalf("images = %d, expected the replay to be dropped", len(got))
	}

	other := domain.ImageRecord{ID: "img-2", ChatID: "42", FileRef: "photos/42/b.jpg"}
	if err := m.AppendImageRecord(ctx, &other); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if got := m.Images(); len(got) != 2 {
		t.Fatalf("images = %d, expected 2", len(got))
	}
}

func TestMemoryStoreListProfilesWithCoords(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if _, err := m.UpsertProfile(ctx, "1", domain.ProfilePatch{Name: strPtr("NoCoords")}); err != nil {
		t.Fatalf("seed 1: %v", err)
	}
	if _, err := m.UpsertProfile(ctx, "2", domain.ProfilePatch{Name: strPtr("Older"), Lat: f64Ptr(19.0), Lon: f64Ptr(72.8)}); err != nil {
		t.Fatalf("seed 2: %v", err)
	}
	if _, err := m.UpsertProfile(ctx, "3", domain.ProfilePatch{Name: strPtr("Newer"), Lat: f64Ptr(21.1), Lon: f64Ptr(79.0)}); err != nil {
		t.Fatalf("seed 3: %v", err)
	}
	// Nudge chat 3 so its updated_at is strictly newest.
	time.Sleep(5 * time.Millisecond)
	if _, err := m.UpsertProfile(ctx, "3", domain.ProfilePatch{Crop: strPtr("cotton")}); err != nil {
		t.Fatalf("nudge: %v", err)
	}

	out, err := m.ListProfilesWithCoords(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("listed %d profiles, expected 2 with coordinates", len(out))
	}
	if out[0].ChatID != "3" || out[1].ChatID != "2" {
		t.Fatalf("order = %s, %s, expected most recent first", out[0].ChatID, out[1].ChatID)
	}

	out, err = m.ListProfilesWithCoords(ctx, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(out) != 1 || out[0].ChatID != "3" {
		t.Fatalf("limited list = %+v", out)
	}
}

func TestMemoryStoreFailNext(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	m.FailNext = true
	if _, err := m.UpsertProfile(ctx, "42", domain.ProfilePatch{Name: strPtr("Ramesh")}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("err = %v, expected ErrStorageUnavailable", err)
	}

	// The failure is one-shot; the store works again afterwards.
	if _, err := m.UpsertProfile(ctx, "42", domain.ProfilePatch{Name: strPtr("Ramesh")}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
}
