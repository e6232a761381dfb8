// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/services"
	"github.com/desertthunder/musync/internal/shared"
)

var _ services.Adapter = (*FakeAdapter)(nil)

// FakeAdapter is an in-memory [services.Adapter].
//
// Liked holds the provider-side library. Search results come from Catalog,
// keyed by the normalized "<title> <artist>" query. A successful add copies
// the catalog entry into Liked.
type FakeAdapter struct {
	PlatformType models.PlatformType
	Store        models.PlatformUpdater

	Liked   []models.PlatformSong
	Catalog map[string]models.PlatformSong

	LikedErr  error
	SearchErr map[string]error // by normalized query
	AddErr    map[string]error // by external ID

	mu          sync.Mutex
	likedCalls  int
	searchCalls int
	addCalls    int
	searched    []string
	added       []string
}

// NewFakeAdapter returns a fake for t with the given liked songs.
func NewFakeAdapter(t models.PlatformType, liked ...models.PlatformSong) *FakeAdapter {
	return &FakeAdapter{
		PlatformType: t,
		Liked:        liked,
		Catalog:      map[string]models.PlatformSong{},
		SearchErr:    map[string]error{},
		AddErr:       map[string]error{},
	}
}

// Song builds a [models.PlatformSong] for tests.
func Song(title, artist, externalID string) models.PlatformSong {
	return models.PlatformSong{Title: title, Artist: artist, Album: "Album", ExternalID: externalID, AddedAt: time.Now().UTC()}
}

// Offer makes a song findable by SearchSong.
func (f *FakeAdapter) Offer(title, artist, externalID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Song(title, artist, externalID)
	s.PlatformType = f.PlatformType
	f.Catalog[shared.Normalize(title+" "+artist)] = s
}

func (f *FakeAdapter) Type() models.PlatformType { return f.PlatformType }

func (f *FakeAdapter) Name() string { return f.PlatformType.DisplayName() }

func (f *FakeAdapter) AuthURL(state string) string {
	return fmt.Sprintf("https://auth.example.test/%s?state=%s", f.PlatformType, state)
}

func (f *FakeAdapter) HandleCallback(_ context.Context, code string) (*models.Credentials, error) {
	if code == "" {
		return nil, shared.ErrInvalidInput
	}
	return &models.Credentials{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (f *FakeAdapter) Connect(ctx context.Context, userID, accessToken, refreshToken string) (*models.Platform, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, shared.ErrInvalidInput
	}
	platforms, err := f.Store.GetPlatformsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, p := range platforms {
		if p.Type == f.PlatformType {
			p.IsConnected, p.AccessToken, p.RefreshToken, p.ConnectedAt = true, accessToken, refreshToken, &now
			return p, f.Store.UpdatePlatform(ctx, p)
		}
	}
	p := &models.Platform{UserID: userID, Type: f.PlatformType, IsConnected: true, AccessToken: accessToken, RefreshToken: refreshToken, ConnectedAt: &now}
	return p, f.Store.CreatePlatform(ctx, p)
}

func (f *FakeAdapter) Disconnect(ctx context.Context, userID string) error {
	platforms, err := f.Store.GetPlatformsByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, p := range platforms {
		if p.Type == f.PlatformType {
			p.IsConnected, p.AccessToken, p.RefreshToken = false, "", ""
			return f.Store.UpdatePlatform(ctx, p)
		}
	}
	return nil
}

func (f *FakeAdapter) LikedSongs(_ context.Context, p *models.Platform) ([]models.PlatformSong, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likedCalls++
	if f.LikedErr != nil {
		return nil, f.LikedErr
	}
	songs := make([]models.PlatformSong, len(f.Liked))
	for i, s := range f.Liked {
		s.PlatformID = p.ID
		s.PlatformType = f.PlatformType
		songs[i] = s
	}
	return songs, nil
}

func (f *FakeAdapter) SearchSong(_ context.Context, p *models.Platform, query string) (*models.PlatformSong, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	key := shared.Normalize(query)
	f.searched = append(f.searched, key)
	if err := f.SearchErr[key]; err != nil {
		return nil, err
	}
	s, ok := f.Catalog[key]
	if !ok {
		return nil, nil
	}
	s.PlatformID = p.ID
	return &s, nil
}

func (f *FakeAdapter) AddSongToLibrary(_ context.Context, _ *models.Platform, externalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if externalID == "" {
		return false, nil
	}
	f.addCalls++
	if err := f.AddErr[externalID]; err != nil {
		return false, err
	}
	f.added = append(f.added, externalID)
	for _, s := range f.Catalog {
		if s.ExternalID == externalID {
			f.Liked = append(f.Liked, s)
			break
		}
	}
	return true, nil
}

// Calls returns the number of provider calls made so far.
func (f *FakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likedCalls + f.searchCalls + f.addCalls
}

// LikedCalls returns the number of LikedSongs calls.
func (f *FakeAdapter) LikedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likedCalls
}

// Searched returns the normalized queries seen by SearchSong.
func (f *FakeAdapter) Searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searched...)
}

// Added returns the external IDs successfully added.
func (f *FakeAdapter) Added() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
