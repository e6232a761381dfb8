package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

func TestUserRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidationError", func(t *testing.T) {
		store := NewStore(setupTestDB(t))

		err := store.CreateUser(ctx, &models.User{Username: "", PasswordHash: "hash", Email: "a@example.com"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		createTestUser(t, store, "alice")

		err := store.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "hash", Email: "other@example.com"})
		if !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		store := NewStore(setupTestDB(t))

		if _, err := store.GetUser(ctx, "nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.GetUserByUsername(ctx, "nobody"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPlatformRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("DuplicateType", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")
		createTestPlatform(t, store, user.ID, models.Spotify)

		err := store.CreatePlatform(ctx, &models.Platform{UserID: user.ID, Type: models.Spotify})
		if !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")

		err := store.CreatePlatform(ctx, &models.Platform{UserID: user.ID, Type: "tidal"})
		if !errors.Is(err, shared.ErrUnknownPlatform) {
			t.Fatalf("expected ErrUnknownPlatform, got %v", err)
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		store := NewStore(setupTestDB(t))

		err := store.UpdatePlatform(ctx, &models.Platform{ID: "missing", UserID: "u", Type: models.Spotify})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := NewStore(setupTestDB(t))

		if _, err := store.GetPlatform(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSongRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("DuplicateNormalizedPair", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")

		if err := store.CreateSong(ctx, &models.Song{UserID: user.ID, Title: "Song ", Artist: "ARTIST"}); err != nil {
			t.Fatalf("failed to create song: %v", err)
		}

		err := store.CreateSong(ctx, &models.Song{UserID: user.ID, Title: "song", Artist: "artist"})
		if !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("SamePairDifferentUsers", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		alice := createTestUser(t, store, "alice")
		bob := createTestUser(t, store, "bob")

		for _, userID := range []string{alice.ID, bob.ID} {
			if err := store.CreateSong(ctx, &models.Song{UserID: userID, Title: "A", Artist: "X"}); err != nil {
				t.Fatalf("failed to create song for %s: %v", userID, err)
			}
		}
	})

	t.Run("MissingTitle", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")

		err := store.CreateSong(ctx, &models.Song{UserID: user.ID, Title: " ", Artist: "X"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("FindNotFound", func(t *testing.T) {
		store := NewStore(setupTestDB(t))

		if _, err := store.FindSong(ctx, "u", "A", "X"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		store := NewStore(setupTestDB(t))

		err := store.UpdateSong(ctx, &models.Song{ID: "missing", UserID: "u", Title: "A", Artist: "X"})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSyncHistoryRepositoryErrors(t *testing.T) {
	store := NewStore(setupTestDB(t))

	err := store.CreateSyncHistory(context.Background(), &models.SyncHistory{})
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
