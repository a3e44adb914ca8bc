package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/faith-connect/faith_connect/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *storage.Memory, *storage.Memory, *fakeClock) {
	durable, sess := storage.NewMemory(), storage.NewMemory()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	return New(durable, sess, WithClock(clock.Now)), durable, sess, clock
}

func get(t *testing.T, a storage.Area, key string) string {
	t.Helper()
	v, _, err := a.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return v
}

func TestPersistRememberMeUsesDurableArea(t *testing.T) {
	store, durable, sess, clock := newTestStore()
	ctx := context.Background()

	if err := store.Persist(ctx, Tokens{Access: "a", Refresh: "r"}, true); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if get(t, durable, KeyAccessToken) != "a" || get(t, durable, KeyRefreshToken) != "r" {
		t.Fatalf("expected tokens in durable area")
	}
	if sess.Len() != 0 {
		t.Fatalf("expected empty session area, has %d keys", sess.Len())
	}
	if get(t, durable, KeyRememberMe) != "true" {
		t.Fatalf("expected remember-me flag")
	}
	if got := get(t, durable, KeyLoginDate); got != clock.Now().Format(time.RFC3339Nano) {
		t.Fatalf("unexpected login date %q", got)
	}
}

func TestPersistWithoutRememberMeUsesSessionArea(t *testing.T) {
	store, durable, sess, _ := newTestStore()
	ctx := context.Background()

	if err := store.Persist(ctx, Tokens{Access: "a", Refresh: "r"}, false); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if get(t, sess, KeyAccessToken) != "a" || get(t, sess, KeyRefreshToken) != "r" {
		t.Fatalf("expected tokens in session area")
	}
	if durable.Len() != 0 {
		t.Fatalf("expected durable area untouched, has %d keys", durable.Len())
	}
}

func TestPersistNeverSplitsPairAcrossAreas(t *testing.T) {
	store, durable, sess, _ := newTestStore()
	ctx := context.Background()

	if err := store.Persist(ctx, Tokens{Access: "old", Refresh: "old-r"}, true); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := store.Persist(ctx, Tokens{Access: "new", Refresh: "new-r"}, false); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if durable.Len() != 0 {
		t.Fatalf("expected durable area emptied (tokens and flag), has %d keys", durable.Len())
	}
	tokens, ok, err := store.Restore(ctx)
	if err != nil || !ok {
		t.Fatalf("restore: ok=%v err=%v", ok, err)
	}
	if tokens.Access != "new" || tokens.Refresh != "new-r" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
	if sess.Len() != 2 {
		t.Fatalf("expected pair in session area, has %d keys", sess.Len())
	}
}

// brokenArea fails writes of one key, as a full disk or dropped connection would.
type brokenArea struct {
	*storage.Memory
	key string
}

var errDiskFull = errors.New("disk full")

func (a brokenArea) Set(ctx context.Context, key, value string) error {
	if key == a.key {
		return errDiskFull
	}
	return a.Memory.Set(ctx, key, value)
}

func TestPersistFailureClearsBothAreas(t *testing.T) {
	durable, sess := storage.NewMemory(), storage.NewMemory()
	ctx := context.Background()
	_ = sess.Set(ctx, KeyAccessToken, "old")
	_ = sess.Set(ctx, KeyRefreshToken, "old-r")

	store := New(brokenArea{Memory: durable, key: KeyRefreshToken}, sess)
	err := store.Persist(ctx, Tokens{Access: "a", Refresh: "r"}, true)
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected disk full error, got %v", err)
	}
	if durable.Len() != 0 || sess.Len() != 0 {
		t.Fatalf("expected both areas empty, durable=%d session=%d", durable.Len(), sess.Len())
	}
	if _, ok, err := store.Restore(ctx); err != nil || ok {
		t.Fatalf("expected nothing to restore, ok=%v err=%v", ok, err)
	}
}

func TestRestorePrefersDurableArea(t *testing.T) {
	store, durable, sess, _ := newTestStore()
	ctx := context.Background()
	_ = sess.Set(ctx, KeyAccessToken, "session-token")
	_ = durable.Set(ctx, KeyAccessToken, "durable-token")

	tokens, ok, err := store.Restore(ctx)
	if err != nil || !ok {
		t.Fatalf("restore: ok=%v err=%v", ok, err)
	}
	if tokens.Access != "durable-token" {
		t.Fatalf("expected durable token first, got %q", tokens.Access)
	}
	if tok, _ := store.AccessToken(ctx); tok != "durable-token" {
		t.Fatalf("expected AccessToken to prefer durable area, got %q", tok)
	}
}

func TestRestoreAfterRememberCeilingClearsEverything(t *testing.T) {
	store, durable, sess, clock := newTestStore()
	ctx := context.Background()

	if err := store.Persist(ctx, Tokens{Access: "a", Refresh: "r"}, true); err != nil {
		t.Fatalf("persist: %v", err)
	}

	clock.Advance(29 * 24 * time.Hour)
	if _, ok, err := store.Restore(ctx); err != nil || !ok {
		t.Fatalf("expected token within ceiling, ok=%v err=%v", ok, err)
	}

	clock.Advance(2 * 24 * time.Hour)
	if _, ok, err := store.Restore(ctx); err != nil || ok {
		t.Fatalf("expected no token after 31 days, ok=%v err=%v", ok, err)
	}
	if durable.Len() != 0 || sess.Len() != 0 {
		t.Fatalf("expected full clear, durable=%d session=%d", durable.Len(), sess.Len())
	}
}

func TestRestoreWithUnreadableLoginDateClears(t *testing.T) {
	store, durable, _, _ := newTestStore()
	ctx := context.Background()
	_ = durable.Set(ctx, KeyAccessToken, "a")
	_ = durable.Set(ctx, KeyRememberMe, "true")
	_ = durable.Set(ctx, KeyLoginDate, "yesterday")

	if _, ok, err := store.Restore(ctx); err != nil || ok {
		t.Fatalf("expected no token, ok=%v err=%v", ok, err)
	}
	if durable.Len() != 0 {
		t.Fatalf("expected durable area cleared")
	}
}

func TestRestoreAcceptsBrowserISODate(t *testing.T) {
	store, durable, _, _ := newTestStore()
	ctx := context.Background()
	_ = durable.Set(ctx, KeyAccessToken, "a")
	_ = durable.Set(ctx, KeyRememberMe, "true")
	_ = durable.Set(ctx, KeyLoginDate, "2025-12-20T10:15:30.123Z")

	if _, ok, err := store.Restore(ctx); err != nil || !ok {
		t.Fatalf("expected token, ok=%v err=%v", ok, err)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store, durable, sess, _ := newTestStore()
	ctx := context.Background()

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear on empty storage: %v", err)
	}
	if err := store.Persist(ctx, Tokens{Access: "a", Refresh: "r"}, true); err != nil {
		t.Fatalf("persist: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("clear #%d: %v", i+1, err)
		}
		if durable.Len() != 0 || sess.Len() != 0 {
			t.Fatalf("clear #%d left keys: durable=%d session=%d", i+1, durable.Len(), sess.Len())
		}
		if _, ok, _ := store.Restore(ctx); ok {
			t.Fatalf("expected no token after clear")
		}
	}
}
