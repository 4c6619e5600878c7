// package repositories provides the persistence layer for the library mirror.
//
// Each repository handles upsert-keyed-by-Spotify-ID semantics for one entity
// type. Repositories are bound to a querier, which is either the shared
// database handle or a page-scoped transaction: a sync pass applies each
// page's upserts through [Store.ApplyPage] so a crash mid-sync leaves the
// store at a consistent prior page boundary.
package repositories

import (
	"database/sql"
	"fmt"
)

// querier is the subset of [sql.DB] and [sql.Tx] repositories need.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store is the explicit handle passed to every component that needs
// persistence. There is no ambient or global connection.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an open database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for callers that manage their own statements.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Tracks() *TrackRepository       { return NewTrackRepository(s.db) }
func (s *Store) Artists() *ArtistRepository     { return NewArtistRepository(s.db) }
func (s *Store) Albums() *AlbumRepository       { return NewAlbumRepository(s.db) }
func (s *Store) Playlists() *PlaylistRepository { return NewPlaylistRepository(s.db) }
func (s *Store) Features() *FeatureRepository   { return NewFeatureRepository(s.db) }
func (s *Store) SyncLog() *SyncLogRepository    { return NewSyncLogRepository(s.db) }

// PageTx exposes transaction-bound repositories for one page's worth of upserts.
type PageTx struct {
	tx *sql.Tx
}

func (p *PageTx) Tracks() *TrackRepository       { return NewTrackRepository(p.tx) }
func (p *PageTx) Artists() *ArtistRepository     { return NewArtistRepository(p.tx) }
func (p *PageTx) Albums() *AlbumRepository       { return NewAlbumRepository(p.tx) }
func (p *PageTx) Playlists() *PlaylistRepository { return NewPlaylistRepository(p.tx) }
func (p *PageTx) Features() *FeatureRepository   { return NewFeatureRepository(p.tx) }

// ApplyPage runs fn inside a transaction. Either every upsert in the page
// lands or none do.
func (s *Store) ApplyPage(fn func(p *PageTx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin page transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PageTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit page transaction: %w", err)
	}

	return nil
}
