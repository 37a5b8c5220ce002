package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/shared"
)

// Fetcher retrieves the current state of remote playlists.
type Fetcher interface {
	// GetPlaylist retrieves a playlist's metadata and its full, ordered track list.
	//
	// Errors wrap [shared.ErrInvalidCredentials], [shared.ErrPrivatePlaylist],
	// [shared.ErrPlaylistNotFound], [shared.ErrRateLimited] or [shared.ErrAPIRequest].
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// ApplyAlias replaces the playlist name with its alias, if one is set, and sanitizes it for use as a file name.
//
// A name that sanitizes to nothing yields [shared.ErrInvalidPlaylist].
func ApplyAlias(p *models.Playlist, aliases map[string]string) error {
	if alias, ok := aliases[p.ID]; ok {
		p.Name = alias
	}

	p.Name = models.SanitizeName(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: playlist %s has an empty name", shared.ErrInvalidPlaylist, p.ID)
	}
	return nil
}
