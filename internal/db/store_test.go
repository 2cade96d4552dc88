package db

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_GetSet(t *testing.T) {
	store := newTestStore(t)

	if err := store.Set("history/", "rec-1", []byte(`{"file":"a.mp4"}`)); err != nil {
		t.Fatalf("set value: %v", err)
	}

	got, err := store.Get("history/", "rec-1")
	if err != nil {
		t.Fatalf("get value: %v", err)
	}
	if string(got) != `{"file":"a.mp4"}` {
		t.Errorf("unexpected value: %s", got)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("settings/", "missing")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ScanRespectsBucket(t *testing.T) {
	store := newTestStore(t)

	store.Set("history/", "a", []byte("1"))
	store.Set("history/", "b", []byte("2"))
	store.Set("settings/", "app", []byte("3"))

	var keys []string
	err := store.Scan("history/", func(key string, value []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys, got %d: %v", len(keys), keys)
	}
}

func TestStore_DropBucket(t *testing.T) {
	store := newTestStore(t)

	store.Set("history/", "a", []byte("1"))
	store.Set("history/", "b", []byte("2"))
	store.Set("settings/", "app", []byte("3"))

	if err := store.DropBucket("history/"); err != nil {
		t.Fatalf("drop bucket: %v", err)
	}

	if _, err := store.Get("history/", "a"); err != ErrNotFound {
		t.Errorf("expected history cleared, got %v", err)
	}
	if _, err := store.Get("settings/", "app"); err != nil {
		t.Errorf("expected settings untouched, got %v", err)
	}
}
