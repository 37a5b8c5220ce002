// Spotify API implementation of [Fetcher]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistFields = "external_urls,name,description"
	trackFields    = "next,items.track(id,external_urls,duration_ms,name,album(external_urls,name),artists)"

	defaultRequestsPerSecond = 10
	defaultRetryBudget       = 30 * time.Second
)

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	Name         string       `json:"name"`
	ExternalURLs externalURLs `json:"external_urls"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	Name         string       `json:"name"`
	ExternalURLs externalURLs `json:"external_urls"`
}

// SpotifyTrack represents a Spotify track. ID is empty for local files.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// SpotifyPlaylist represents the playlist fields read by the archiver.
type SpotifyPlaylist struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	ExternalURLs externalURLs `json:"external_urls"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for items whose track is no longer available.
type SpotifyPlaylistTrack struct {
	Track *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a page of playlist tracks.
type SpotifyPaginatedTracks struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Next  *string                `json:"next"`
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyOptions configures a [SpotifyService]. Zero values select the defaults.
type SpotifyOptions struct {
	BaseURL           string
	TokenURL          string
	RequestsPerSecond float64
	RetryBudget       time.Duration
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// SpotifyService implements the [Fetcher] interface for the Spotify Web API.
// Uses the [clientcredentials] grant for authentication and is safe for concurrent use.
type SpotifyService struct {
	baseURL     string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *log.Logger

	mu          sync.Mutex
	retryBudget time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSpotifyService creates a new Spotify service with the given client credentials.
func NewSpotifyService(credentials map[string]string, opts SpotifyOptions) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = defaultRetryBudget
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     opts.TokenURL,
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, opts.HTTPClient)
	tokenSource := config.TokenSource(ctx)

	return &SpotifyService{
		baseURL:     opts.BaseURL,
		tokenSource: tokenSource,
		httpClient:  oauth2.NewClient(ctx, tokenSource),
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:      opts.Logger,
		retryBudget: opts.RetryBudget,
		sleep:       sleepContext,
	}, nil
}

// Authenticate fetches an access token, failing fast when the client credentials are rejected.
//
// Calling it is optional: a token is otherwise obtained on the first request.
func (s *SpotifyService) Authenticate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.tokenSource.Token(); err != nil {
		return tokenError(err)
	}
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetPlaylist retrieves a playlist's metadata followed by every page of its tracks.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks, err := s.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	return &models.Playlist{
		ID:          playlistID,
		URL:         sp.ExternalURLs.Spotify,
		Name:        sp.Name,
		Description: sp.Description,
		Tracks:      tracks,
	}, nil
}

// Playlist retrieves a playlist's metadata by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	query := url.Values{"fields": {playlistFields}}
	endpoint := fmt.Sprintf("%s/playlists/%s?%s", s.baseURL, url.PathEscape(playlistID), query.Encode())

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, endpoint, &playlist); err != nil {
		return nil, fmt.Errorf("failed to get playlist %s: %w", playlistID, err)
	}
	return &playlist, nil
}

// PlaylistTracks retrieves all tracks of a playlist, following pagination until the last page.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	query := url.Values{"fields": {trackFields}}
	endpoint := fmt.Sprintf("%s/playlists/%s/tracks?%s", s.baseURL, url.PathEscape(playlistID), query.Encode())
	logger := s.logger.With("playlist", playlistID)

	tracks := []models.Track{}
	for endpoint != "" {
		var page SpotifyPaginatedTracks
		err := s.doRequest(ctx, endpoint, &page)
		switch {
		case errors.Is(err, shared.ErrPrivatePlaylist), errors.Is(err, shared.ErrPlaylistNotFound):
			// Only the playlist request decides whether a playlist is gone.
			return nil, fmt.Errorf("%w: tracks of %s: %v", shared.ErrAPIRequest, playlistID, err)
		case err != nil:
			return nil, fmt.Errorf("failed to get tracks of %s: %w", playlistID, err)
		}

		for _, item := range page.Items {
			if item.Track == nil {
				continue
			}
			tracks = append(tracks, convertTrack(*item.Track, logger))
		}

		endpoint = ""
		if page.Next != nil {
			endpoint = *page.Next
		}
	}

	return tracks, nil
}

func convertTrack(st SpotifyTrack, logger *log.Logger) models.Track {
	link := st.ExternalURLs.Spotify

	title := st.Name
	if title == "" {
		logger.Warn("Empty track name", "url", link)
		title = models.MissingValue
	}

	album := st.Album.Name
	if album == "" {
		logger.Warn("Empty track album", "url", link)
		album = models.MissingValue
	}

	artists := make([]models.Artist, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, models.Artist{Name: a.Name, URL: a.ExternalURLs.Spotify})
	}
	if len(artists) == 0 {
		logger.Warn("Empty track artists", "url", link)
	}

	return models.Track{
		ID:         st.ID,
		URL:        link,
		Title:      title,
		Artists:    artists,
		Album:      models.Album{Name: album, URL: st.Album.ExternalURLs.Spotify},
		DurationMS: st.DurationMS,
	}
}

// doRequest performs an authenticated GET request to the Spotify API, retrying rate limited responses.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				return tokenError(retrieveErr)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			backoff := retryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()

			if !s.spendRetryBudget(backoff) {
				return shared.ErrRateLimited
			}
			s.logger.Warn("Rate limited, will retry", "after", backoff)
			if err := s.sleep(ctx, backoff); err != nil {
				return err
			}
			continue
		}

		err = decodeResponse(resp, result)
		resp.Body.Close()
		return err
	}
}

// spendRetryBudget deducts d from the shared retry budget and reports whether any budget remains.
func (s *SpotifyService) spendRetryBudget(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retryBudget -= d
	return s.retryBudget > 0
}

func decodeResponse(resp *http.Response, result any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
		return nil
	}

	var apiErr spotifyError
	message := http.StatusText(resp.StatusCode)
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrInvalidCredentials, message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrPrivatePlaylist, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, message)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, message)
	}
}

func tokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: token request rejected: %v", shared.ErrInvalidCredentials, retrieveErr)
	}
	return fmt.Errorf("%w: token request failed: %v", shared.ErrAPIRequest, err)
}

// retryAfter returns the Retry-After delay plus one second. A missing or malformed header counts as zero.
func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		seconds = 0
	}
	return time.Duration(seconds+1) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
