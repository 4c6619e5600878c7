// package models defines the canonical data model for the library mirror.
//
// Every entity is keyed by its Spotify ID. Remote payload shapes never leak
// past the normalizer; these types are what the store persists and the
// reconciliation engine reads.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Collection identifies a syncable remote collection kind.
type Collection string

const (
	CollectionLikedTracks   Collection = "liked_tracks"
	CollectionArtistDetails Collection = "artist_details"
	CollectionPlaylists     Collection = "playlists"
	CollectionAudioFeatures Collection = "audio_features"

	// CollectionPrune is the explicit destructive pass; never part of SyncOrder.
	CollectionPrune Collection = "prune"
)

// SyncOrder is the fixed order collections are synced in. Artists and albums
// arrive inline with track payloads, so by the time playlist membership and
// audio features are upserted every foreign key they reference already exists.
var SyncOrder = []Collection{
	CollectionLikedTracks,
	CollectionArtistDetails,
	CollectionPlaylists,
	CollectionAudioFeatures,
}

// Outcome classifies how a sync run ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"   // Every page landed
	OutcomePartial   Outcome = "partial"   // Completed, but some pages failed normalization
	OutcomeResumable Outcome = "resumable" // Remote gave out; cursor records the resume point
	OutcomeFailed    Outcome = "failed"    // Aborted without a resume point
)

// ReleaseDate is a possibly-partial release date as reported by the remote
// service: "2007", "2007-03", or "2007-03-09". The zero value means unknown.
type ReleaseDate struct {
	raw string
}

// NewReleaseDate wraps a raw remote release date string.
func NewReleaseDate(raw string) ReleaseDate {
	return ReleaseDate{raw: strings.TrimSpace(raw)}
}

func (r ReleaseDate) String() string { return r.raw }

// Known reports whether any release date information is present.
func (r ReleaseDate) Known() bool { return r.raw != "" }

// SortKey returns a value that orders release dates chronologically.
// Partial dates are padded with "00" so "2007" sorts before "2007-03".
// Callers must place unknown dates last themselves; see Compare.
func (r ReleaseDate) SortKey() string {
	parts := strings.SplitN(r.raw, "-", 3)
	for len(parts) < 3 {
		parts = append(parts, "00")
	}
	return strings.Join(parts, "-")
}

// Compare orders release dates ascending with unknown dates sorting last.
// Returns -1, 0, or 1.
func (r ReleaseDate) Compare(other ReleaseDate) int {
	switch {
	case !r.Known() && !other.Known():
		return 0
	case !r.Known():
		return 1
	case !other.Known():
		return -1
	}
	return strings.Compare(r.SortKey(), other.SortKey())
}

// Track is a canonical track record. Album and artists are referenced by ID;
// the shared rows are looked up by identifier, never duplicated per track.
type Track struct {
	ID          string
	Name        string
	DurationMS  int
	Explicit    bool
	Popularity  int
	PreviewURL  string
	TrackNumber int
	IsLiked     bool
	LikedAt     time.Time // Zero unless IsLiked
	ReleaseDate ReleaseDate
	AlbumID     string
	ArtistIDs   []string
}

// Validate checks required fields.
func (t Track) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track missing id")
	}
	if t.Name == "" {
		return fmt.Errorf("track %s missing name", t.ID)
	}
	if t.Popularity < 0 || t.Popularity > 100 {
		return fmt.Errorf("track %s popularity %d out of range", t.ID, t.Popularity)
	}
	return nil
}

// Artist is a canonical artist record.
type Artist struct {
	ID         string
	Name       string
	Popularity int
	Genres     []string // Deduplicated, sorted; empty when unknown
	ImageURL   string
}

// Validate checks required fields.
func (a Artist) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("artist missing id")
	}
	if a.Name == "" {
		return fmt.Errorf("artist %s missing name", a.ID)
	}
	return nil
}

// NormalizeGenres deduplicates and sorts a raw genre list.
func NormalizeGenres(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	genres := make([]string, 0, len(raw))
	for _, g := range raw {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres
}

// Album is a canonical album record.
type Album struct {
	ID          string
	Name        string
	AlbumType   string // album, single, compilation; empty when unknown
	ReleaseDate ReleaseDate
	TotalTracks int
	ImageURL    string
}

// Validate checks required fields.
func (a Album) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("album missing id")
	}
	if a.Name == "" {
		return fmt.Errorf("album %s missing name", a.ID)
	}
	return nil
}

// PlaylistEntry is one track's position within a playlist.
type PlaylistEntry struct {
	TrackID  string
	Position int
	AddedAt  time.Time
}

// Playlist is a canonical playlist record. Entries are ordered by remote
// playlist position, not by insertion order into the local store.
type Playlist struct {
	ID            string
	Name          string
	Description   string
	Public        bool
	Collaborative bool
	OwnerID       string
	SnapshotID    string // Remote revision marker; unchanged snapshot skips membership re-fetch
	TotalTracks   int
	ImageURL      string
	Entries       []PlaylistEntry
}

// Validate checks required fields.
func (p Playlist) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("playlist missing id")
	}
	if p.Name == "" {
		return fmt.Errorf("playlist %s missing name", p.ID)
	}
	return nil
}

// TrackIDs returns the ordered track identifier sequence.
func (p Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		ids[i] = e.TrackID
	}
	return ids
}

// AudioFeatures is attached metadata with no independent lifecycle,
// one-to-one with a Track by identifier.
type AudioFeatures struct {
	TrackID          string
	Tempo            float64
	Key              int
	Mode             int
	Energy           float64
	Danceability     float64
	Valence          float64
	Acousticness     float64
	Instrumentalness float64
	Liveness         float64
	Loudness         float64
	Speechiness      float64
	TimeSignature    int
}

// Validate checks required fields.
func (f AudioFeatures) Validate() error {
	if f.TrackID == "" {
		return fmt.Errorf("audio features missing track id")
	}
	return nil
}

// SyncLogEntry is one append-only ledger row describing a sync run.
// Entries are never updated after creation.
type SyncLogEntry struct {
	ID          string
	Collection  Collection
	StartedAt   time.Time
	CompletedAt time.Time
	ItemCount   int
	Cursor      string // Resume point when Outcome is OutcomeResumable
	Outcome     Outcome
	Error       string
}
