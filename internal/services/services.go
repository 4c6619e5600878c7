// package services wraps outbound calls to the Spotify Web API.
//
// The adapter owns pagination, rate-limit backoff, and token injection. It
// never manages token lifecycle: an expired token surfaces as
// [shared.ErrAuthExpired] for the caller to resolve.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/cratedig/internal/shared"
)

// Page is one page of a paginated remote collection. Next is the opaque
// cursor for the following page, empty when the collection is exhausted.
type Page[T any] struct {
	Items []T
	Next  string
}

// Library defines the remote operations the sync orchestrator and the
// playlist-creation flow depend on. Implementations must be safe to call
// page-by-page with cursors previously returned in [Page.Next].
type Library interface {
	// UserProfile retrieves the authenticated user's profile.
	UserProfile(ctx context.Context) (*SpotifyUser, error)

	// LikedTracks fetches one page of the user's saved tracks.
	LikedTracks(ctx context.Context, cursor string) (*Page[SpotifySavedTrack], error)

	// Playlists fetches one page of the user's playlists.
	Playlists(ctx context.Context, cursor string) (*Page[SpotifySimplePlaylist], error)

	// PlaylistTracks fetches one page of a playlist's membership.
	PlaylistTracks(ctx context.Context, playlistID, cursor string) (*Page[SpotifyPlaylistTrack], error)

	// SeveralArtists fetches full artist records for up to 50 IDs per request.
	SeveralArtists(ctx context.Context, ids []string) ([]SpotifyArtist, error)

	// AudioFeatures fetches audio features for up to 100 IDs per request.
	// Tracks with no features come back as nil entries.
	AudioFeatures(ctx context.Context, ids []string) ([]*SpotifyAudioFeatures, error)

	// CreatePlaylist creates a private playlist and adds the given tracks in
	// order. On failure the returned error carries the full intended track
	// list so nothing is silently lost.
	CreatePlaylist(ctx context.Context, name, description string, trackIDs []string) (*SpotifyPlaylist, error)
}

// RemoteUnavailableError is returned when the bounded retry budget for a page
// is spent. Cursor is the cursor of the page that failed, so a later
// invocation can resume without re-fetching completed pages.
type RemoteUnavailableError struct {
	Cursor string
	Err    error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("%v (resume cursor %q): %v", shared.ErrRemoteUnavailable, e.Cursor, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// Is reports a match against [shared.ErrRemoteUnavailable].
func (e *RemoteUnavailableError) Is(target error) bool {
	return target == shared.ErrRemoteUnavailable
}

// RemoteWriteError is returned when the playlist-creation write did not
// confirm success. TrackIDs preserves the attempted track list for manual retry.
type RemoteWriteError struct {
	PlaylistName string
	TrackIDs     []string
	Err          error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("%v: playlist %q with %d tracks [%s]: %v",
		shared.ErrRemoteWrite, e.PlaylistName, len(e.TrackIDs), strings.Join(e.TrackIDs, ","), e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// Is reports a match against [shared.ErrRemoteWrite].
func (e *RemoteWriteError) Is(target error) bool {
	return target == shared.ErrRemoteWrite
}
