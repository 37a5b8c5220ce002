// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/shared"
)

// MockFetcher is a test double for [services.Fetcher] serving playlists from memory.
//
// Playlists are returned as copies, so callers may modify them.
type MockFetcher struct {
	mu        sync.Mutex
	playlists map[string]*models.Playlist
	errors    map[string]error
	calls     map[string]int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		playlists: make(map[string]*models.Playlist),
		errors:    make(map[string]error),
		calls:     make(map[string]int),
	}
}

// SetPlaylist serves p for its ID, clearing any error set for it.
func (m *MockFetcher) SetPlaylist(p *models.Playlist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlists[p.ID] = clonePlaylist(p)
	delete(m.errors, p.ID)
}

// SetError makes requests for id fail with err.
func (m *MockFetcher) SetError(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[id] = err
}

// Calls returns the number of requests made for id.
func (m *MockFetcher) Calls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

func (m *MockFetcher) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[playlistID]++

	if err, ok := m.errors[playlistID]; ok {
		return nil, err
	}
	p, ok := m.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return clonePlaylist(p), nil
}

func (m *MockFetcher) Name() string { return "mock" }

func clonePlaylist(p *models.Playlist) *models.Playlist {
	c := *p
	c.Tracks = make([]models.Track, len(p.Tracks))
	for i, t := range p.Tracks {
		t.Artists = append([]models.Artist(nil), t.Artists...)
		c.Tracks[i] = t
	}
	return &c
}

// NewTrack builds a linked track with a single artist, for fixtures.
func NewTrack(id, title, artist, album string, seconds int) models.Track {
	return models.Track{
		ID:         id,
		URL:        "https://open.spotify.com/track/" + id,
		Title:      title,
		Artists:    []models.Artist{{Name: artist, URL: "https://open.spotify.com/artist/" + id}},
		Album:      models.Album{Name: album, URL: "https://open.spotify.com/album/" + id},
		DurationMS: seconds * 1000,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
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

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
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

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
