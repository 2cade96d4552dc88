package settings

import (
	"testing"

	"github.com/vidpress/orchestrator/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbStore, err := db.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create db store: %v", err)
	}
	t.Cleanup(func() { dbStore.Close() })
	return NewStore(dbStore)
}

func TestStore_LoadDefaultsWhenMissing(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultPreset != "balanced" {
		t.Errorf("expected balanced, got %s", cfg.DefaultPreset)
	}
	if !cfg.AutoSaveHistory {
		t.Error("expected auto save history on by default")
	}
	if cfg.Custom.Scale != 100 {
		t.Errorf("expected scale 100, got %d", cfg.Custom.Scale)
	}
}

func TestStore_SaveRoundTrip(t *testing.T) {
	store := newTestStore(t)

	cfg := Defaults()
	cfg.DefaultPreset = "quality"
	cfg.Theme = "dark"
	cfg.AutoSaveHistory = false
	cfg.Custom.Quality = 18

	if err := store.Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.DefaultPreset != "quality" || got.Theme != "dark" {
		t.Errorf("unexpected settings: %+v", got)
	}
	if got.AutoSaveHistory {
		t.Error("expected auto save history off")
	}
	if got.Custom.Quality != 18 {
		t.Errorf("expected quality 18, got %d", got.Custom.Quality)
	}
}
