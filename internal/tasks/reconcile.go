package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/repositories"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
)

// SortPolicy orders a candidate track set before playlist creation.
type SortPolicy string

const (
	// SortPopularity orders by track popularity, most popular first.
	SortPopularity SortPolicy = "popularity"
	// SortDateAdded orders by liked-at timestamp, most recent first.
	SortDateAdded SortPolicy = "date_added"
	// SortReleaseDate orders by album release date, oldest first.
	// Tracks with unknown release dates sort last.
	SortReleaseDate SortPolicy = "release_date"
	// SortRandom shuffles, seeded fresh per invocation.
	SortRandom SortPolicy = "random"
)

// ParseSortPolicy validates a user-supplied sort name.
func ParseSortPolicy(name string) (SortPolicy, error) {
	switch SortPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case SortPopularity:
		return SortPopularity, nil
	case SortDateAdded, "date", "recency":
		return SortDateAdded, nil
	case SortReleaseDate, "release":
		return SortReleaseDate, nil
	case SortRandom:
		return SortRandom, nil
	default:
		return "", fmt.Errorf("%w: unknown sort %q (want popularity, date_added, release_date or random)",
			shared.ErrInvalidFlag, name)
	}
}

// Reconciler answers set-difference and aggregation queries against the local
// mirror and drives remote playlist creation from their results.
type Reconciler struct {
	library services.Library
	store   *repositories.Store
	logger  *log.Logger

	// now and rng are swappable for deterministic tests.
	now func() time.Time
	rng *rand.Rand
}

// NewReconciler creates a Reconciler over the given store and remote library.
// library may be nil when only local queries are needed.
func NewReconciler(library services.Library, store *repositories.Store, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		library: library,
		store:   store,
		logger:  logger,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// UnsortedTracks returns liked tracks that appear in no playlist whose name
// matches pattern (case-insensitive substring), ordered by policy.
func (r *Reconciler) UnsortedTracks(pattern string, policy SortPolicy) ([]models.Track, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: pattern must not be empty", shared.ErrMissingArgument)
	}

	tracks, err := r.store.UnsortedLikedTracks(pattern)
	if err != nil {
		return nil, err
	}

	r.sortTracks(tracks, policy)
	return tracks, nil
}

// sortTracks orders tracks in place. Every non-random policy breaks ties by
// track ID so repeated runs over the same library produce the same order.
func (r *Reconciler) sortTracks(tracks []models.Track, policy SortPolicy) {
	switch policy {
	case SortPopularity:
		sort.Slice(tracks, func(i, j int) bool {
			if tracks[i].Popularity != tracks[j].Popularity {
				return tracks[i].Popularity > tracks[j].Popularity
			}
			return tracks[i].ID < tracks[j].ID
		})
	case SortDateAdded:
		sort.Slice(tracks, func(i, j int) bool {
			if !tracks[i].LikedAt.Equal(tracks[j].LikedAt) {
				return tracks[i].LikedAt.After(tracks[j].LikedAt)
			}
			return tracks[i].ID < tracks[j].ID
		})
	case SortReleaseDate:
		sort.Slice(tracks, func(i, j int) bool {
			if c := tracks[i].ReleaseDate.Compare(tracks[j].ReleaseDate); c != 0 {
				return c < 0
			}
			return tracks[i].ID < tracks[j].ID
		})
	case SortRandom:
		r.rng.Shuffle(len(tracks), func(i, j int) {
			tracks[i], tracks[j] = tracks[j], tracks[i]
		})
	}
}

// TopArtists ranks artists by how many distinct matching tracks they appear
// on. An empty pattern ranks across the whole library.
func (r *Reconciler) TopArtists(pattern string, likedOnly bool, limit int) ([]repositories.ArtistPlayCount, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.store.TopArtists(pattern, likedOnly, limit)
}

// CreateUnsortedOpts tunes the create-unsorted flow.
type CreateUnsortedOpts struct {
	Count int        // max tracks in the new playlist; 0 means no cap
	Sort  SortPolicy // ordering applied before truncation
	Name  string     // explicit playlist name; empty auto-numbers a volume
}

// CreatedPlaylist describes the playlist the create-unsorted flow produced.
type CreatedPlaylist struct {
	ID     string
	Name   string
	URL    string
	Tracks []models.Track
}

// CreateUnsorted collects liked tracks not yet filed in any playlist matching
// pattern and creates a new remote playlist holding them. The candidate set
// is computed entirely from the local mirror; only the creation itself
// touches the remote, so a write failure loses nothing locally.
func (r *Reconciler) CreateUnsorted(ctx context.Context, progress chan<- ProgressUpdate, pattern string, opts CreateUnsortedOpts) (*CreatedPlaylist, error) {
	if r.library == nil {
		return nil, fmt.Errorf("%w: playlist creation requires remote credentials", shared.ErrMissingCredentials)
	}

	policy := opts.Sort
	if policy == "" {
		policy = SortDateAdded
	}

	tracks, err := r.UnsortedTracks(pattern, policy)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no liked tracks outside playlists matching %q", shared.ErrNotFound, pattern)
	}

	if opts.Count > 0 && len(tracks) > opts.Count {
		tracks = tracks[:opts.Count]
	}

	name := opts.Name
	if name == "" {
		if name, err = r.NextVolumeName(ctx, pattern); err != nil {
			return nil, err
		}
	}

	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}

	description := fmt.Sprintf("Liked tracks not yet sorted into %q playlists (%s)",
		pattern, r.now().UTC().Format("2006-01-02"))

	r.logger.Info("creating playlist", "name", name, "tracks", len(ids))
	sendProgress(progress, createPlaylistUpdate(name, len(ids)))
	created, err := r.library.CreatePlaylist(ctx, name, description, ids)
	if err != nil {
		return nil, err
	}

	return &CreatedPlaylist{
		ID:     created.ID,
		Name:   created.Name,
		URL:    created.ExternalURLs.Spotify,
		Tracks: tracks,
	}, nil
}

// NextVolumeName derives the next auto-numbered volume name for pattern,
// e.g. "jazz - vol. 03" when "Jazz vol 2" is the highest existing volume.
// The current remote playlist list is scanned, not the mirror, so playlists
// created since the last sync still advance the counter.
func (r *Reconciler) NextVolumeName(ctx context.Context, pattern string) (string, error) {
	volumeRe, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(pattern) + `.*vol\.?\s*(\d+)`)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	highest := 0
	cursor := ""
	for {
		page, err := r.library.Playlists(ctx, cursor)
		if err != nil {
			return "", err
		}

		for _, pl := range page.Items {
			m := volumeRe.FindStringSubmatch(pl.Name)
			if m == nil {
				continue
			}
			if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
				highest = n
			}
		}

		if page.Next == "" {
			break
		}
		cursor = page.Next
	}

	return fmt.Sprintf("%s - vol. %02d", pattern, highest+1), nil
}
