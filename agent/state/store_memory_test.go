package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	s := NewSession("s1", 10, now)
	s.Context.Append("hello", "hi there")

	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ID != "s1" || loaded.Phase != PhaseIntentDetection {
		t.Fatalf("unexpected session: %#v", loaded)
	}
	if loaded.Context.Len() != 1 || loaded.Context.Turns[0].User != "hello" {
		t.Fatalf("unexpected context: %#v", loaded.Context)
	}
}

func TestMemoryStoreLoadedSessionDoesNotAliasSaved(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	s := NewSession("s1", 10, time.Now())
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutating the original after Save must not leak into the store.
	s.Phase = PhaseTerminated
	s.Context.Append("u", "a")

	loaded, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Phase != PhaseIntentDetection {
		t.Fatalf("stored phase mutated: %s", loaded.Phase)
	}
	if loaded.Context.Len() != 0 {
		t.Fatalf("stored context mutated: %d turns", loaded.Context.Len())
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_, err := store.Load(context.Background(), "nope")
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryStoreIdleExpiry(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(
		WithMemoryTTL(10*time.Minute),
		WithMemoryClock(func() time.Time { return clock }),
	)

	s := NewSession("s1", 10, clock)
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	clock = clock.Add(9 * time.Minute)
	if _, err := store.Load(context.Background(), "s1"); err != nil {
		t.Fatalf("Load() before expiry error = %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := store.Load(context.Background(), "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() after expiry error = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryStoreSaveRefreshesExpiry(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(
		WithMemoryTTL(10*time.Minute),
		WithMemoryClock(func() time.Time { return clock }),
	)

	s := NewSession("s1", 10, clock)
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	clock = clock.Add(8 * time.Minute)
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	clock = clock.Add(8 * time.Minute)
	if _, err := store.Load(context.Background(), "s1"); err != nil {
		t.Fatalf("Load() after refresh error = %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	s := NewSession("s1", 10, time.Now())
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(context.Background(), "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(context.Background(), "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() after delete error = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryStoreRejectsInvalidArguments(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.Save(context.Background(), nil); !errors.Is(err, ErrNilSession) {
		t.Fatalf("Save(nil) error = %v, want ErrNilSession", err)
	}
	if _, err := store.Load(context.Background(), "  "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Load(blank) error = %v, want ErrInvalidSession", err)
	}
	if err := store.Delete(context.Background(), ""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Delete(blank) error = %v, want ErrInvalidSession", err)
	}
}
