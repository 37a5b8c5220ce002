package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/shared"
	tu "github.com/desertthunder/plarchive/internal/testing"
	"github.com/google/go-cmp/cmp"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
}

// testAPI serves a token endpoint at /token and delegates everything else to api.
type testAPI struct {
	srv    *httptest.Server
	sleeps []time.Duration
	mu     sync.Mutex
}

func newTestAPI(t *testing.T, tokenStatus int, api func(w http.ResponseWriter, r *http.Request, base string)) (*testAPI, *SpotifyService) {
	t.Helper()

	ta := &testAPI{}
	ta.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tokenStatus)
			if tokenStatus != http.StatusOK {
				fmt.Fprint(w, `{"error":"invalid_client","error_description":"Invalid client"}`)
				return
			}
			fmt.Fprint(w, `{"access_token":"test_token","token_type":"Bearer","expires_in":3600}`)
			return
		}

		if got := r.Header.Get("Authorization"); got != "Bearer test_token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		api(w, r, ta.srv.URL+"/v1")
	}))
	t.Cleanup(ta.srv.Close)

	srv, err := NewSpotifyService(testCredentials, SpotifyOptions{
		BaseURL:           ta.srv.URL + "/v1",
		TokenURL:          ta.srv.URL + "/token",
		RequestsPerSecond: 1000,
		RetryBudget:       5 * time.Second,
		HTTPClient:        ta.srv.Client(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.sleep = func(ctx context.Context, d time.Duration) error {
		ta.mu.Lock()
		defer ta.mu.Unlock()
		ta.sleeps = append(ta.sleeps, d)
		return nil
	}

	return ta, srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials, SpotifyOptions{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.baseURL != spotifyBaseURL {
				t.Errorf("expected default base URL, got %s", srv.baseURL)
			}
			if srv.retryBudget != defaultRetryBudget {
				t.Errorf("expected default retry budget, got %v", srv.retryBudget)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "secret"}, SpotifyOptions{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "id"}, SpotifyOptions{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Service Interface", func(t *testing.T) {
			var _ Fetcher = &SpotifyService{}
		})
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("accepted", func(t *testing.T) {
			_, srv := newTestAPI(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request, base string) {})
			if err := srv.Authenticate(context.Background()); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("rejected", func(t *testing.T) {
			_, srv := newTestAPI(t, http.StatusUnauthorized, func(w http.ResponseWriter, r *http.Request, base string) {})
			err := srv.Authenticate(context.Background())
			if !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})

		t.Run("transport failure", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials, SpotifyOptions{
				HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))},
			})
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}

			err = srv.Authenticate(context.Background())
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			if errors.Is(err, shared.ErrInvalidCredentials) {
				t.Error("transport failures should not be reported as invalid credentials")
			}
		})

		t.Run("rejected on first request", func(t *testing.T) {
			_, srv := newTestAPI(t, http.StatusBadRequest, func(w http.ResponseWriter, r *http.Request, base string) {
				t.Error("API should not be reached without a token")
			})
			_, err := srv.GetPlaylist(context.Background(), "pl1")
			if !errors.Is(err, shared.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	})

	t.Run("GetPlaylist", func(t *testing.T) {
		_, srv := newTestAPI(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request, base string) {
			switch {
			case r.URL.Path == "/v1/playlists/pl1":
				if got := r.URL.Query().Get("fields"); got != playlistFields {
					t.Errorf("unexpected playlist fields %q", got)
				}
				writeJSON(w, http.StatusOK, `{
					"name": "Mix / Vol. 1",
					"description": "Fresh tracks",
					"external_urls": {"spotify": "https://open.spotify.com/playlist/pl1"}
				}`)
			case r.URL.Path == "/v1/playlists/pl1/tracks" && r.URL.Query().Get("offset") == "":
				if got := r.URL.Query().Get("fields"); got != trackFields {
					t.Errorf("unexpected track fields %q", got)
				}
				writeJSON(w, http.StatusOK, fmt.Sprintf(`{
					"next": "%s/playlists/pl1/tracks?offset=2",
					"items": [
						{"track": {
							"id": "t1",
							"name": "One",
							"duration_ms": 180000,
							"external_urls": {"spotify": "https://open.spotify.com/track/t1"},
							"album": {"name": "First", "external_urls": {"spotify": "https://open.spotify.com/album/a1"}},
							"artists": [
								{"name": "Ann", "external_urls": {"spotify": "https://open.spotify.com/artist/ann"}},
								{"name": "Bob", "external_urls": {"spotify": "https://open.spotify.com/artist/bob"}}
							]
						}},
						{"track": null}
					]
				}`, base))
			case r.URL.Path == "/v1/playlists/pl1/tracks" && r.URL.Query().Get("offset") == "2":
				writeJSON(w, http.StatusOK, `{
					"next": null,
					"items": [
						{"track": {
							"id": null,
							"name": "",
							"duration_ms": 1000,
							"external_urls": {},
							"album": {"name": "", "external_urls": {}},
							"artists": []
						}}
					]
				}`)
			default:
				t.Errorf("unexpected request %s", r.URL)
				http.NotFound(w, r)
			}
		})

		got, err := srv.GetPlaylist(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := &models.Playlist{
			ID:          "pl1",
			URL:         "https://open.spotify.com/playlist/pl1",
			Name:        "Mix / Vol. 1",
			Description: "Fresh tracks",
			Tracks: []models.Track{
				{
					ID:    "t1",
					URL:   "https://open.spotify.com/track/t1",
					Title: "One",
					Artists: []models.Artist{
						{Name: "Ann", URL: "https://open.spotify.com/artist/ann"},
						{Name: "Bob", URL: "https://open.spotify.com/artist/bob"},
					},
					Album:      models.Album{Name: "First", URL: "https://open.spotify.com/album/a1"},
					DurationMS: 180000,
				},
				{
					Title:      models.MissingValue,
					Artists:    []models.Artist{},
					Album:      models.Album{Name: models.MissingValue},
					DurationMS: 1000,
				},
			},
		}

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("GetPlaylist() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Status Mapping", func(t *testing.T) {
		tc := []struct {
			status int
			want   error
		}{
			{http.StatusUnauthorized, shared.ErrInvalidCredentials},
			{http.StatusForbidden, shared.ErrPrivatePlaylist},
			{http.StatusNotFound, shared.ErrPlaylistNotFound},
			{http.StatusInternalServerError, shared.ErrAPIRequest},
			{http.StatusBadGateway, shared.ErrAPIRequest},
		}

		for _, tt := range tc {
			t.Run(http.StatusText(tt.status), func(t *testing.T) {
				_, srv := newTestAPI(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request, base string) {
					writeJSON(w, tt.status, fmt.Sprintf(`{"error": {"status": %d, "message": "nope"}}`, tt.status))
				})

				_, err := srv.GetPlaylist(context.Background(), "pl1")
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if err != nil && !strings.Contains(err.Error(), "nope") {
					t.Errorf("expected API message in error, got %v", err)
				}
			})
		}
	})

	t.Run("Track Page Status", func(t *testing.T) {
		for _, status := range []int{http.StatusForbidden, http.StatusNotFound} {
			t.Run(http.StatusText(status), func(t *testing.T) {
				_, srv := newTestAPI(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request, base string) {
					if r.URL.Path == "/v1/playlists/pl1" {
						writeJSON(w, http.StatusOK, `{"name": "Mix", "description": "", "external_urls": {}}`)
						return
					}
					writeJSON(w, status, fmt.Sprintf(`{"error": {"status": %d, "message": "nope"}}`, status))
				})

				_, err := srv.GetPlaylist(context.Background(), "pl1")
				if !errors.Is(err, shared.ErrAPIRequest) {
					t.Errorf("expected ErrAPIRequest, got %v", err)
				}
				if errors.Is(err, shared.ErrPrivatePlaylist) || errors.Is(err, shared.ErrPlaylistNotFound) {
					t.Errorf("a track page failure must not mark the playlist as gone, got %v", err)
				}
			})
		}
	})

	t.Run("Rate Limiting", func(t *testing.T) {
		t.Run("retries after Retry-After plus one second", func(t *testing.T) {
			var calls int
			ta, srv := newTestAPI(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request, base string) {
				calls++
				if calls == 1 {
					w.Header().Set("Retry-After", "1")
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				writeJSON(w, http.StatusOK, `{"name": "Mix", "description": "", "external_urls": {}}`)
			})

			p, err := srv.Playlist(context.Background(), "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if p.Name != "Mix" {
				t.Errorf("expected name 'Mix', got %q", p.Name)
			}
			if diff := cmp.Diff([]time.Duration{2 * time.Second}, ta.sleeps); diff != "" {
				t.Errorf("unexpected backoff (-want +got):\n%s", diff)
			}
		})

		t.Run("budget exhausted", func(t *testing.T) {
			ta, srv := newTestAPI(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request, base string) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(http.StatusTooManyRequests)
			})

			_, err := srv.Playlist(context.Background(), "pl1")
			if !errors.Is(err, shared.ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited, got %v", err)
			}
			// 5s budget: one 3s backoff is allowed, the second exhausts it.
			if len(ta.sleeps) != 1 {
				t.Errorf("expected 1 retry, got %d", len(ta.sleeps))
			}

			_, err = srv.Playlist(context.Background(), "pl2")
			if !errors.Is(err, shared.ErrRateLimited) {
				t.Errorf("expected the budget to stay exhausted, got %v", err)
			}
		})
	})

	t.Run("Context Cancellation", func(t *testing.T) {
		_, srv := newTestAPI(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request, base string) {
			writeJSON(w, http.StatusOK, `{}`)
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := srv.GetPlaylist(ctx, "pl1"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestRetryAfter(t *testing.T) {
	tc := map[string]time.Duration{
		"":    time.Second,
		"0":   time.Second,
		"4":   5 * time.Second,
		"-3":  time.Second,
		"abc": time.Second,
	}

	for header, want := range tc {
		if got := retryAfter(header); got != want {
			t.Errorf("retryAfter(%q) = %v, want %v", header, got, want)
		}
	}
}

func TestApplyAlias(t *testing.T) {
	t.Run("alias replaces name", func(t *testing.T) {
		p := &models.Playlist{ID: "pl1", Name: "Original"}
		if err := ApplyAlias(p, map[string]string{"pl1": "Renamed"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Name != "Renamed" {
			t.Errorf("expected alias, got %q", p.Name)
		}
	})

	t.Run("name is sanitized", func(t *testing.T) {
		p := &models.Playlist{ID: "pl1", Name: " Mix / Vol. 1... "}
		if err := ApplyAlias(p, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Name != `Mix \ Vol. 1` {
			t.Errorf("unexpected name %q", p.Name)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		p := &models.Playlist{ID: "pl1", Name: " . "}
		if err := ApplyAlias(p, nil); !errors.Is(err, shared.ErrInvalidPlaylist) {
			t.Errorf("expected ErrInvalidPlaylist, got %v", err)
		}
	})
}
