package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

const spotifyTrackJSON = `{
	"id": %q,
	"name": %q,
	"artists": [{"name": "Artist X"}, {"name": "Artist Z"}],
	"album": {"name": "Album 1", "images": [{"url": "https://i.scdn.co/cover.jpg"}]}
}`

// spotifyFake serves /v1/me/tracks, /v1/search and the token endpoint.
// Library calls require "Bearer <validToken>".
type spotifyFake struct {
	validToken   string
	refreshCalls atomic.Int32
	libraryCalls atomic.Int32
	rejected     atomic.Int32
	saved        []string
	rejectAll    bool
	emptySearch  bool
}

func (f *spotifyFake) handler(srvURL *string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, f.validToken)
	})

	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if f.rejectAll || r.Header.Get("Authorization") != "Bearer "+f.validToken {
			f.rejected.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"status":401,"message":"The access token expired"}}`))
			return false
		}
		return true
	}

	mux.HandleFunc("/v1/me/tracks", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		f.libraryCalls.Add(1)

		if r.Method == http.MethodPut {
			f.saved = append(f.saved, r.URL.Query().Get("ids"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "" {
			fmt.Fprintf(w, `{"limit":50,"offset":0,"total":2,"next":%q,"items":[{"added_at":"2024-03-01T10:00:00Z","track":`+spotifyTrackJSON+`}]}`,
				*srvURL+"/v1/me/tracks?offset=1&limit=50", "sp-1", "Song A")
			return
		}
		fmt.Fprintf(w, `{"limit":50,"offset":1,"total":2,"next":"","items":[{"added_at":"2024-02-01T10:00:00Z","track":`+spotifyTrackJSON+`}]}`,
			"sp-2", "Song B")
	})

	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if f.emptySearch {
			_, _ = w.Write([]byte(`{"tracks":{"items":[],"total":0}}`))
			return
		}
		fmt.Fprintf(w, `{"tracks":{"total":1,"items":[`+spotifyTrackJSON+`]}}`, "sp-found", r.URL.Query().Get("q"))
	})

	return mux
}

func newSpotifyTest(t *testing.T, f *spotifyFake, store models.PlatformUpdater) *SpotifyAdapter {
	t.Helper()
	var srvURL string
	srv := httptest.NewServer(f.handler(&srvURL))
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	return NewSpotifyAdapter(
		shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1:3000/callback/spotify"},
		Options{Store: store, HTTPClient: srv.Client()},
		WithSpotifyURLs(srv.URL+"/v1/", srv.URL+"/authorize", srv.URL+"/api/token"),
	)
}

func TestSpotifyAdapter(t *testing.T) {
	t.Run("AuthURL", func(t *testing.T) {
		a := NewSpotifyAdapter(shared.SpotifyConfig{ClientID: "id", RedirectURI: "http://127.0.0.1:3000/callback/spotify"}, Options{})
		u := a.AuthURL("state-123")

		for _, want := range []string{"accounts.spotify.com/authorize", "state=state-123", "user-library-read", "user-library-modify", "show_dialog=true"} {
			if !strings.Contains(u, want) {
				t.Errorf("expected auth URL to contain %q, got %s", want, u)
			}
		}
	})

	t.Run("LikedSongs Follows Pages", func(t *testing.T) {
		f := &spotifyFake{validToken: "good"}
		a := newSpotifyTest(t, f, nil)
		p := &models.Platform{ID: "p1", Type: models.Spotify, AccessToken: "good", RefreshToken: "rt"}

		songs, err := a.LikedSongs(context.Background(), p)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(songs) != 2 {
			t.Fatalf("expected 2 songs, got %d", len(songs))
		}

		first := songs[0]
		if first.Title != "Song A" || first.Artist != "Artist X, Artist Z" || first.Album != "Album 1" {
			t.Errorf("unexpected conversion %+v", first)
		}
		if first.AlbumCover != "https://i.scdn.co/cover.jpg" || first.ExternalID != "sp-1" || first.PlatformID != "p1" {
			t.Errorf("unexpected conversion %+v", first)
		}
		if first.AddedAt.IsZero() {
			t.Error("expected added_at to be parsed")
		}
		if f.refreshCalls.Load() != 0 {
			t.Errorf("expected no refresh, got %d", f.refreshCalls.Load())
		}
	})

	t.Run("Refreshes Once On 401", func(t *testing.T) {
		f := &spotifyFake{validToken: "fresh"}
		store := &memStore{}
		a := newSpotifyTest(t, f, store)

		p := &models.Platform{UserID: "u1", Type: models.Spotify, IsConnected: true, AccessToken: "stale", RefreshToken: "rt"}
		if err := store.CreatePlatform(context.Background(), p); err != nil {
			t.Fatal(err)
		}

		songs, err := a.LikedSongs(context.Background(), p)
		if err != nil {
			t.Fatalf("expected refreshed call to succeed, got %v", err)
		}
		if len(songs) != 2 {
			t.Errorf("expected 2 songs, got %d", len(songs))
		}
		if got := f.refreshCalls.Load(); got != 1 {
			t.Errorf("expected exactly one refresh, got %d", got)
		}
		if p.AccessToken != "fresh" || p.RefreshToken != "rt" {
			t.Errorf("expected platform tokens fresh/rt, got %s/%s", p.AccessToken, p.RefreshToken)
		}
		if stored := store.get(p.ID); stored.AccessToken != "fresh" {
			t.Errorf("expected refreshed token persisted, got %s", stored.AccessToken)
		}
	})

	t.Run("Second 401 Is AuthExpired", func(t *testing.T) {
		f := &spotifyFake{validToken: "fresh", rejectAll: true}
		a := newSpotifyTest(t, f, nil)
		p := &models.Platform{ID: "p1", Type: models.Spotify, AccessToken: "stale", RefreshToken: "rt"}

		_, err := a.LikedSongs(context.Background(), p)
		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
		if got := f.refreshCalls.Load(); got != 1 {
			t.Errorf("expected exactly one refresh, got %d", got)
		}
		if got := f.rejected.Load(); got != 2 {
			t.Errorf("expected the original call and one retry, got %d attempts", got)
		}
		if got := f.libraryCalls.Load(); got != 0 {
			t.Errorf("expected no authorized library calls, got %d", got)
		}
	})

	t.Run("No Refresh Token", func(t *testing.T) {
		f := &spotifyFake{validToken: "fresh"}
		a := newSpotifyTest(t, f, nil)
		p := &models.Platform{ID: "p1", Type: models.Spotify, AccessToken: "stale"}

		if _, err := a.LikedSongs(context.Background(), p); !errors.Is(err, shared.ErrAuthExpired) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
		if f.refreshCalls.Load() != 0 {
			t.Error("expected no refresh attempt without a refresh token")
		}
	})

	t.Run("SearchSong", func(t *testing.T) {
		f := &spotifyFake{validToken: "good"}
		a := newSpotifyTest(t, f, nil)
		p := &models.Platform{ID: "p1", Type: models.Spotify, AccessToken: "good"}

		song, err := a.SearchSong(context.Background(), p, "Song A Artist X")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if song == nil || song.ExternalID != "sp-found" {
			t.Fatalf("expected top result, got %+v", song)
		}

		f.emptySearch = true
		song, err = a.SearchSong(context.Background(), p, "nothing")
		if err != nil || song != nil {
			t.Errorf("expected nil result without error, got %+v, %v", song, err)
		}
	})

	t.Run("AddSongToLibrary", func(t *testing.T) {
		f := &spotifyFake{validToken: "good"}
		a := newSpotifyTest(t, f, nil)
		p := &models.Platform{ID: "p1", Type: models.Spotify, AccessToken: "good"}

		ok, err := a.AddSongToLibrary(context.Background(), p, "")
		if ok || err != nil {
			t.Errorf("expected false without error for empty id, got %v, %v", ok, err)
		}
		if f.libraryCalls.Load() != 0 {
			t.Error("expected no provider call for empty id")
		}

		ok, err = a.AddSongToLibrary(context.Background(), p, "sp-9")
		if !ok || err != nil {
			t.Fatalf("expected save to succeed, got %v, %v", ok, err)
		}
		if len(f.saved) != 1 || f.saved[0] != "sp-9" {
			t.Errorf("expected sp-9 saved, got %v", f.saved)
		}
	})
}
