package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/storage"
	"github.com/MrEthical07/goSession/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return newTestStore(t) })
}

func TestReopenKeepsDataAndSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	u := &storage.User{ID: "u1", Email: "a@x.com", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.Users().Create(ctx, u); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.Users().FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail after reopen failed: %v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("expected u1, got %q", got.ID)
	}
}

func TestTimesRoundTripInUTC(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loc := time.FixedZone("UTC+5", 5*3600)
	created := time.Date(2025, 6, 1, 10, 30, 0, 123456789, loc)
	sess := &storage.Session{ID: "s1", UserID: "u1", ExpiresAt: created.Add(time.Hour), CreatedAt: created, LastAccessedAt: created}
	if err := s.Sessions().Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Sessions().FindByID(ctx, "s1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("expected %v, got %v", created, got.CreatedAt)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.CreatedAt.Location())
	}
}
