package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// runMarkerStoreContract verifies the behavior every MarkerStore must share.
func runMarkerStoreContract(t *testing.T, s MarkerStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, ScopePersistent, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, ScopePersistent, "visited", "true"); err != nil {
		t.Fatalf("set persistent: %v", err)
	}
	if err := s.Set(ctx, ScopeSession, "visited", "session-value"); err != nil {
		t.Fatalf("set session: %v", err)
	}

	// Scopes are independent namespaces even for the same key.
	v, ok, err := s.Get(ctx, ScopePersistent, "visited")
	if err != nil || !ok || v != "true" {
		t.Fatalf("persistent get: v=%q ok=%v err=%v", v, ok, err)
	}
	v, ok, err = s.Get(ctx, ScopeSession, "visited")
	if err != nil || !ok || v != "session-value" {
		t.Fatalf("session get: v=%q ok=%v err=%v", v, ok, err)
	}

	// Last write wins.
	if err := s.Set(ctx, ScopePersistent, "visited", "again"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, _, _ = s.Get(ctx, ScopePersistent, "visited")
	if v != "again" {
		t.Fatalf("overwrite not applied, got %q", v)
	}

	if err := s.Delete(ctx, ScopePersistent, "visited"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, ScopePersistent, "visited"); ok {
		t.Fatal("deleted key still present")
	}
	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, ScopePersistent, "visited"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	runMarkerStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreClearSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, ScopeSession, "popup_p1_shown", "true")
	_ = s.Set(ctx, ScopePersistent, "popup_p1_shown", "true")

	s.ClearSession()

	if _, ok, _ := s.Get(ctx, ScopeSession, "popup_p1_shown"); ok {
		t.Fatal("session marker survived ClearSession")
	}
	if _, ok, _ := s.Get(ctx, ScopePersistent, "popup_p1_shown"); !ok {
		t.Fatal("persistent marker lost on ClearSession")
	}
}

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "wavebox", "visitor-1", time.Minute), mr
}

func TestRedisStoreContract(t *testing.T) {
	s, _ := newRedisTestStore(t)
	runMarkerStoreContract(t, s)
}

func TestRedisStoreSessionExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisTestStore(t)

	_ = s.Set(ctx, ScopeSession, "popup_p1_shown", "true")
	_ = s.Set(ctx, ScopePersistent, "popup_p1_shown", "true")

	mr.FastForward(2 * time.Minute)

	if _, ok, _ := s.Get(ctx, ScopeSession, "popup_p1_shown"); ok {
		t.Fatal("session marker should expire after TTL")
	}
	if _, ok, _ := s.Get(ctx, ScopePersistent, "popup_p1_shown"); !ok {
		t.Fatal("persistent marker must not expire")
	}
}

func TestRedisStoreVisitorIsolation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewRedisStore(client, "wavebox", "visitor-a", time.Minute)
	b := NewRedisStore(client, "wavebox", "visitor-b", time.Minute)

	_ = a.Set(ctx, ScopePersistent, "visited", "true")
	if _, ok, _ := b.Get(ctx, ScopePersistent, "visited"); ok {
		t.Fatal("visitor namespaces must not leak")
	}
}

func TestSQLiteStoreContract(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "markers.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	runMarkerStoreContract(t, s)
}

func TestSQLiteStoreSessionClearedOnOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "markers.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.Set(ctx, ScopeSession, "popup_p1_shown", "true")
	_ = s.Set(ctx, ScopePersistent, "popup_p1_shown", "true")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening models a new browsing session.
	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })

	if _, ok, _ := s2.Get(ctx, ScopeSession, "popup_p1_shown"); ok {
		t.Fatal("session marker survived reopen")
	}
	if _, ok, _ := s2.Get(ctx, ScopePersistent, "popup_p1_shown"); !ok {
		t.Fatal("persistent marker lost on reopen")
	}
}

func TestSQLiteStoreAppliesPragmas(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "markers.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var mode string
	if err := s.db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := s.db.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("busy_timeout = %d, want 5000", timeout)
	}
}
