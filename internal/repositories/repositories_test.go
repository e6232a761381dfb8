package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *shared.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, store *Store, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, PasswordHash: "hash", Email: username + "@example.com"}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createTestPlatform(t *testing.T, store *Store, userID string, pt models.PlatformType) *models.Platform {
	t.Helper()

	now := time.Now().UTC()
	p := &models.Platform{UserID: userID, Type: pt, IsConnected: true, AccessToken: "access", RefreshToken: "refresh", ConnectedAt: &now}
	if err := store.CreatePlatform(context.Background(), p); err != nil {
		t.Fatalf("failed to create platform: %v", err)
	}
	return p
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")

		if user.ID == "" {
			t.Fatal("user ID should be set after creation")
		}

		got, err := store.GetUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Username != "alice" || got.Email != "alice@example.com" {
			t.Errorf("unexpected user: %+v", got)
		}

		byName, err := store.GetUserByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get user by username: %v", err)
		}
		if byName.ID != user.ID {
			t.Errorf("expected ID %s, got %s", user.ID, byName.ID)
		}
	})
}

func TestPlatformRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and List", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")

		sp := createTestPlatform(t, store, user.ID, models.Spotify)
		createTestPlatform(t, store, user.ID, models.SoundCloud)

		platforms, err := store.GetPlatformsByUserID(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to list platforms: %v", err)
		}
		if len(platforms) != 2 {
			t.Fatalf("expected 2 platforms, got %d", len(platforms))
		}

		got, err := store.GetPlatform(ctx, sp.ID)
		if err != nil {
			t.Fatalf("failed to get platform: %v", err)
		}
		if got.Type != models.Spotify || !got.IsConnected || got.AccessToken != "access" || got.RefreshToken != "refresh" {
			t.Errorf("unexpected platform: %+v", got)
		}
		if got.ConnectedAt == nil {
			t.Error("connected_at should round-trip")
		}
	})

	t.Run("Update clears credentials", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")
		p := createTestPlatform(t, store, user.ID, models.AppleMusic)

		p.IsConnected = false
		p.AccessToken = ""
		p.RefreshToken = ""
		if err := store.UpdatePlatform(ctx, p); err != nil {
			t.Fatalf("failed to update platform: %v", err)
		}

		got, err := store.GetPlatform(ctx, p.ID)
		if err != nil {
			t.Fatalf("failed to get platform: %v", err)
		}
		if got.IsConnected || got.AccessToken != "" || got.RefreshToken != "" {
			t.Errorf("expected cleared platform, got %+v", got)
		}
	})
}

func TestSongRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create with tags", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")
		sp := createTestPlatform(t, store, user.ID, models.Spotify)

		song := &models.Song{UserID: user.ID, Title: "Song A", Artist: "Artist X", Album: "Album", Platforms: []string{sp.ID}}
		if err := store.CreateSong(ctx, song); err != nil {
			t.Fatalf("failed to create song: %v", err)
		}
		if song.ID == "" {
			t.Fatal("song ID should be set after creation")
		}

		songs, err := store.GetSongsByUserID(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to list songs: %v", err)
		}
		if len(songs) != 1 {
			t.Fatalf("expected 1 song, got %d", len(songs))
		}
		if !songs[0].HasPlatform(sp.ID) {
			t.Errorf("expected song tagged with %s, got %v", sp.ID, songs[0].Platforms)
		}
		if songs[0].Album != "Album" || songs[0].AlbumCover != "" {
			t.Errorf("unexpected album fields: %+v", songs[0])
		}
	})

	t.Run("FindSong normalizes", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")

		song := &models.Song{UserID: user.ID, Title: "Song A", Artist: "Artist X"}
		if err := store.CreateSong(ctx, song); err != nil {
			t.Fatalf("failed to create song: %v", err)
		}

		got, err := store.FindSong(ctx, user.ID, "  song a ", "ARTIST X")
		if err != nil {
			t.Fatalf("failed to find song: %v", err)
		}
		if got.ID != song.ID {
			t.Errorf("expected %s, got %s", song.ID, got.ID)
		}
	})

	t.Run("Update adds tags monotonically", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")
		sp := createTestPlatform(t, store, user.ID, models.Spotify)
		sc := createTestPlatform(t, store, user.ID, models.SoundCloud)

		song := &models.Song{UserID: user.ID, Title: "B", Artist: "Y", Platforms: []string{sp.ID}}
		if err := store.CreateSong(ctx, song); err != nil {
			t.Fatalf("failed to create song: %v", err)
		}

		song.Platforms = []string{sc.ID}
		song.AlbumCover = "https://img.example.com/b.jpg"
		if err := store.UpdateSong(ctx, song); err != nil {
			t.Fatalf("failed to update song: %v", err)
		}

		got, err := store.FindSong(ctx, user.ID, "B", "Y")
		if err != nil {
			t.Fatalf("failed to find song: %v", err)
		}
		if !got.HasPlatform(sp.ID) || !got.HasPlatform(sc.ID) {
			t.Errorf("expected both tags, got %v", got.Platforms)
		}
		if got.AlbumCover != "https://img.example.com/b.jpg" {
			t.Errorf("expected album cover to update, got %q", got.AlbumCover)
		}
	})

	t.Run("GetSongsByUserIDAndPlatform", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")
		sp := createTestPlatform(t, store, user.ID, models.Spotify)
		sc := createTestPlatform(t, store, user.ID, models.SoundCloud)

		for _, s := range []*models.Song{
			{UserID: user.ID, Title: "A", Artist: "X", Platforms: []string{sp.ID, sc.ID}},
			{UserID: user.ID, Title: "B", Artist: "Y", Platforms: []string{sp.ID}},
		} {
			if err := store.CreateSong(ctx, s); err != nil {
				t.Fatalf("failed to create song: %v", err)
			}
		}

		songs, err := store.GetSongsByUserIDAndPlatform(ctx, user.ID, sc.ID)
		if err != nil {
			t.Fatalf("failed to list songs: %v", err)
		}
		if len(songs) != 1 || songs[0].Title != "A" {
			t.Fatalf("expected only song A, got %+v", songs)
		}
		if len(songs[0].Platforms) != 2 {
			t.Errorf("expected all tags to load, got %v", songs[0].Platforms)
		}
	})

	t.Run("Repeated upsert of same pair keeps one row", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		user := createTestUser(t, store, "alice")

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			created   int
			conflicts int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				title := "Same Song"
				if i%2 == 0 {
					title = "same song "
				}
				err := store.CreateSong(ctx, &models.Song{UserID: user.ID, Title: title, Artist: "Artist"})

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, shared.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if created != 1 || conflicts != 7 {
			t.Errorf("expected 1 create and 7 conflicts, got %d and %d", created, conflicts)
		}

		songs, err := store.GetSongsByUserID(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to list songs: %v", err)
		}
		if len(songs) != 1 {
			t.Errorf("expected 1 song row, got %d", len(songs))
		}
	})
}

func TestSyncHistoryRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))
	user := createTestUser(t, store, "alice")

	older := &models.SyncHistory{
		UserID:          user.ID,
		TargetPlatforms: []string{"p2", "p1"},
		SongsAdded:      3,
		CompletedAt:     time.Now().UTC().Add(-time.Hour),
	}
	newer := &models.SyncHistory{
		UserID:          user.ID,
		TargetPlatforms: []string{"p3"},
		Status:          models.SyncFailed,
		CompletedAt:     time.Now().UTC(),
	}
	for _, h := range []*models.SyncHistory{older, newer} {
		if err := store.CreateSyncHistory(ctx, h); err != nil {
			t.Fatalf("failed to create sync history: %v", err)
		}
	}

	history, err := store.GetSyncHistoryByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to list sync history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].ID != newer.ID {
		t.Errorf("expected most recent first")
	}
	if history[1].Type != models.SyncFull || history[1].Status != models.SyncCompleted {
		t.Errorf("expected defaults full/completed, got %s/%s", history[1].Type, history[1].Status)
	}
	if len(history[1].TargetPlatforms) != 2 || history[1].TargetPlatforms[0] != "p2" {
		t.Errorf("expected ordered targets [p2 p1], got %v", history[1].TargetPlatforms)
	}
	if history[0].SongsAdded != 0 || history[1].SongsAdded != 3 {
		t.Errorf("unexpected songs added: %d, %d", history[0].SongsAdded, history[1].SongsAdded)
	}
}
