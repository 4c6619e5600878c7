// package tasks implements synchronization and reconciliation over the library mirror.
//
// SyncEngine drives sync passes: fetch → normalize → upsert per page, with a
// ledger entry recorded per run. Reconciler answers analytical queries against
// the local store and drives playlist creation. Long-running operations emit
// progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/normalize"
	"github.com/desertthunder/cratedig/internal/repositories"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
)

// SyncEngine orchestrates sync passes against the remote library.
//
// One logical pass runs at a time; within a pass the next page is prefetched
// while the current one is normalized and upserted, but upserts stay
// page-sequential per collection to preserve the cursor-resume invariant.
type SyncEngine struct {
	library services.Library
	store   *repositories.Store
	logger  *log.Logger
}

// NewSyncEngine creates a SyncEngine over the given remote library and store.
func NewSyncEngine(library services.Library, store *repositories.Store, logger *log.Logger) *SyncEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncEngine{library: library, store: store, logger: logger}
}

// SyncOpts narrows a sync pass to a subset of collections.
type SyncOpts struct {
	LikedOnly     bool
	PlaylistsOnly bool
}

// Run performs a sync pass over the selected collections in fixed order:
// liked tracks (artists and albums resolved inline), artist-detail backfill,
// playlists with membership, then audio features. The ordering guarantees
// every foreign key a later collection references already exists.
//
// Returns the ledger entries written, one per collection attempted. The pass
// stops at the first collection that fails outright.
func (e *SyncEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOpts) ([]models.SyncLogEntry, error) {
	type step struct {
		collection models.Collection
		fn         func(context.Context, chan<- ProgressUpdate) (models.SyncLogEntry, error)
	}

	var steps []step
	switch {
	case opts.LikedOnly && !opts.PlaylistsOnly:
		steps = []step{
			{models.CollectionLikedTracks, e.syncLikedTracks},
			{models.CollectionArtistDetails, e.syncArtistDetails},
		}
	case opts.PlaylistsOnly && !opts.LikedOnly:
		steps = []step{
			{models.CollectionPlaylists, e.syncPlaylists},
			{models.CollectionArtistDetails, e.syncArtistDetails},
		}
	default:
		steps = []step{
			{models.CollectionLikedTracks, e.syncLikedTracks},
			{models.CollectionArtistDetails, e.syncArtistDetails},
			{models.CollectionPlaylists, e.syncPlaylists},
			{models.CollectionAudioFeatures, e.syncAudioFeatures},
		}
	}

	var entries []models.SyncLogEntry
	for _, s := range steps {
		entry, err := s.fn(ctx, progress)
		entries = append(entries, entry)
		if err != nil {
			return entries, fmt.Errorf("sync of %s: %w", s.collection, err)
		}
	}

	return entries, nil
}

// pageResult is one fetched page, or the error that ended the stream.
// cursor addresses this page, so a failed page can be resumed exactly.
type pageResult[T any] struct {
	items  []T
	cursor string
	next   string
	err    error
}

// startPageSource fetches pages sequentially starting at cursor. The buffer
// of one gives a single page of lookahead while the consumer is upserting.
func startPageSource[T any](ctx context.Context, start string, fetch func(context.Context, string) (*services.Page[T], error)) <-chan pageResult[T] {
	out := make(chan pageResult[T], 1)

	go func() {
		defer close(out)
		cursor := start
		for {
			page, err := fetch(ctx, cursor)
			if err != nil {
				out <- pageResult[T]{cursor: cursor, err: err}
				return
			}

			select {
			case out <- pageResult[T]{items: page.Items, cursor: cursor, next: page.Next}:
			case <-ctx.Done():
				return
			}

			if page.Next == "" {
				return
			}
			cursor = page.Next
		}
	}()

	return out
}

// applyFn normalizes and upserts one page's items inside one transaction.
// partial marks the page degraded: every record failed normalization, or some
// dependent fetch (playlist membership) was skipped. count still reports what
// was applied. Any returned error aborts the collection sync.
type applyFn[T any] func(items []T) (count int, partial bool, err error)

// runCollection drives the per-collection state machine:
// FetchingPage → Normalizing → Upserting → (next page | Done | Failed).
// A resumable failure persists the failing page's cursor in the ledger entry.
func runCollection[T any](
	ctx context.Context,
	e *SyncEngine,
	progress chan<- ProgressUpdate,
	collection models.Collection,
	fetch func(context.Context, string) (*services.Page[T], error),
	apply applyFn[T],
) (models.SyncLogEntry, error) {
	entry := models.SyncLogEntry{
		ID:         shared.GenerateID(),
		Collection: collection,
		StartedAt:  time.Now().UTC(),
	}

	// Cancel the page source when the loop below exits early, so its
	// goroutine never blocks forever on a send nobody receives.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resume := ""
	last, err := e.store.SyncLog().Latest(collection)
	if err != nil {
		return entry, e.closeEntry(&entry, progress, false, "", err)
	}
	if last != nil && last.Outcome == models.OutcomeResumable && last.Cursor != "" {
		resume = last.Cursor
		e.logger.Info("resuming sync from recorded cursor", "collection", collection, "cursor", resume)
	}

	pages := startPageSource(ctx, resume, fetch)

	var (
		runErr     error
		failCursor string
		partial    bool
		page       int
	)

	for result := range pages {
		page++
		sendProgress(progress, fetchingUpdate(collection, page))

		if result.err != nil {
			runErr = result.err
			failCursor = result.cursor
			break
		}
		if len(result.items) == 0 {
			continue
		}

		sendProgress(progress, upsertingUpdate(collection, page, len(result.items)))

		count, pagePartial, err := apply(result.items)
		entry.ItemCount += count
		if err != nil {
			runErr = err
			failCursor = result.cursor
			break
		}
		if pagePartial {
			partial = true
			if count == 0 {
				sendProgress(progress, skippedPageUpdate(collection, page))
			}
		}
	}

	return entry, e.closeEntry(&entry, progress, partial, failCursor, runErr)
}

// closeEntry finalizes and appends the ledger entry for a sync run.
func (e *SyncEngine) closeEntry(entry *models.SyncLogEntry, progress chan<- ProgressUpdate, partial bool, cursor string, runErr error) error {
	entry.CompletedAt = time.Now().UTC()

	switch {
	case runErr == nil && partial:
		entry.Outcome = models.OutcomePartial
	case runErr == nil:
		entry.Outcome = models.OutcomeSuccess
	case errors.Is(runErr, shared.ErrRemoteUnavailable):
		entry.Outcome = models.OutcomeResumable
		entry.Cursor = cursor
		entry.Error = runErr.Error()
	default:
		entry.Outcome = models.OutcomeFailed
		entry.Error = runErr.Error()
	}

	if err := e.store.SyncLog().Append(*entry); err != nil {
		e.logger.Error("failed to record sync ledger entry", "collection", entry.Collection, "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	sendProgress(progress, doneUpdate(*entry))
	return runErr
}

// syncLikedTracks mirrors the user's saved tracks, upserting referenced
// artists and albums first within each page's transaction.
func (e *SyncEngine) syncLikedTracks(ctx context.Context, progress chan<- ProgressUpdate) (models.SyncLogEntry, error) {
	return runCollection(ctx, e, progress, models.CollectionLikedTracks,
		e.library.LikedTracks,
		func(items []services.SpotifySavedTrack) (int, bool, error) {
			bundle, err := normalize.LikedTrackPage(items)
			if err != nil {
				return e.skipPage(models.CollectionLikedTracks, err)
			}
			e.logWarnings(models.CollectionLikedTracks, bundle.Warnings)

			if err := e.upsertBundle(bundle); err != nil {
				return 0, false, err
			}
			return len(bundle.Tracks), false, nil
		})
}

// upsertBundle applies one normalized page atomically, references first.
func (e *SyncEngine) upsertBundle(bundle *normalize.TrackBundle) error {
	return e.store.ApplyPage(func(p *repositories.PageTx) error {
		for _, artist := range bundle.Artists {
			if err := p.Artists().Upsert(artist); err != nil {
				return err
			}
		}
		for _, album := range bundle.Albums {
			if err := p.Albums().Upsert(album); err != nil {
				return err
			}
		}
		for _, track := range bundle.Tracks {
			if err := p.Tracks().Upsert(track); err != nil {
				return err
			}
		}
		return nil
	})
}

// skipPage translates an all-records-malformed page into the partial marker.
func (e *SyncEngine) skipPage(collection models.Collection, err error) (int, bool, error) {
	var pageErr *normalize.PageError
	if errors.As(err, &pageErr) {
		e.logger.Warn("page failed normalization", "collection", collection, "records", len(pageErr.Warnings))
		e.logWarnings(collection, pageErr.Warnings)
		return 0, true, nil
	}
	return 0, false, err
}

func (e *SyncEngine) logWarnings(collection models.Collection, warnings []normalize.Warning) {
	for _, w := range warnings {
		e.logger.Warn("skipped malformed record", "collection", collection, "warning", w.String())
	}
}

// syncArtistDetails backfills genres and popularity for every known artist.
// Artists arriving inline with track payloads carry neither.
func (e *SyncEngine) syncArtistDetails(ctx context.Context, progress chan<- ProgressUpdate) (models.SyncLogEntry, error) {
	entry := models.SyncLogEntry{
		ID:         shared.GenerateID(),
		Collection: models.CollectionArtistDetails,
		StartedAt:  time.Now().UTC(),
	}

	ids, err := e.store.Artists().IDs()
	if err != nil {
		return entry, e.closeEntry(&entry, progress, false, "", err)
	}

	const batchSize = 50
	var runErr error

	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		sendProgress(progress, fetchingUpdate(models.CollectionArtistDetails, start/batchSize+1))

		raws, err := e.library.SeveralArtists(ctx, ids[start:end])
		if err != nil {
			runErr = err
			break
		}

		if err := e.store.ApplyPage(func(p *repositories.PageTx) error {
			for _, raw := range raws {
				artist, err := normalize.Artist(raw)
				if err != nil {
					e.logger.Warn("skipped malformed record", "collection", models.CollectionArtistDetails, "error", err)
					continue
				}
				if err := p.Artists().Upsert(artist); err != nil {
					return err
				}
				entry.ItemCount++
			}
			return nil
		}); err != nil {
			runErr = err
			break
		}
	}

	// Detail batches are cheap to refetch in full, so no cursor is recorded.
	return entry, e.closeEntry(&entry, progress, false, "", runErr)
}

// syncPlaylists mirrors playlist metadata and membership. Membership is
// replaced wholesale per playlist, and only for playlists whose snapshot
// revision changed since the last pass.
func (e *SyncEngine) syncPlaylists(ctx context.Context, progress chan<- ProgressUpdate) (models.SyncLogEntry, error) {
	return runCollection(ctx, e, progress, models.CollectionPlaylists,
		e.library.Playlists,
		func(items []services.SpotifySimplePlaylist) (int, bool, error) {
			count := 0
			partial := false
			var warnings []normalize.Warning

			for i, raw := range items {
				playlist, err := normalize.Playlist(raw)
				if err != nil {
					warnings = append(warnings, normalize.Warning{Index: i, Reason: err.Error()})
					continue
				}

				skipped, err := e.syncOnePlaylist(ctx, playlist)
				if err != nil {
					return count, partial, err
				}
				if skipped {
					partial = true
				}
				count++
			}

			e.logWarnings(models.CollectionPlaylists, warnings)
			if len(items) > 0 && count == 0 {
				return e.skipPage(models.CollectionPlaylists, &normalize.PageError{Warnings: warnings})
			}
			return count, partial, nil
		})
}

// syncOnePlaylist upserts one playlist's metadata and, when its snapshot
// changed, replaces its membership page by page. The new snapshot is written
// in the same transaction as the final membership page, so an interrupted
// membership sync is re-fetched next pass rather than trusted.
//
// skipped reports whether any membership page failed normalization outright;
// the playlist's snapshot stays pending and the pass is recorded as partial.
func (e *SyncEngine) syncOnePlaylist(ctx context.Context, playlist models.Playlist) (skipped bool, err error) {
	stored, err := e.store.Playlists().SnapshotID(playlist.ID)
	if err != nil {
		return false, err
	}

	if stored != "" && stored == playlist.SnapshotID {
		return false, e.store.ApplyPage(func(p *repositories.PageTx) error {
			return p.Playlists().Upsert(playlist)
		})
	}

	newSnapshot := playlist.SnapshotID
	playlist.SnapshotID = "" // pending until membership is fully applied

	cursor := ""
	position := 0
	first := true

	for {
		page, err := e.library.PlaylistTracks(ctx, playlist.ID, cursor)
		if err != nil {
			return skipped, err
		}

		bundle, entries, err := normalize.PlaylistTrackPage(page.Items, position)
		if err != nil {
			var pageErr *normalize.PageError
			if !errors.As(err, &pageErr) {
				return skipped, err
			}
			e.logWarnings(models.CollectionPlaylists, pageErr.Warnings)
			skipped = true
			bundle, entries = &normalize.TrackBundle{}, nil
		} else {
			e.logWarnings(models.CollectionPlaylists, bundle.Warnings)
		}

		isFirst, isLast := first, page.Next == ""
		if err := e.store.ApplyPage(func(p *repositories.PageTx) error {
			if isFirst {
				if err := p.Playlists().Upsert(playlist); err != nil {
					return err
				}
				if err := p.Playlists().ClearEntries(playlist.ID); err != nil {
					return err
				}
			}
			for _, artist := range bundle.Artists {
				if err := p.Artists().Upsert(artist); err != nil {
					return err
				}
			}
			for _, album := range bundle.Albums {
				if err := p.Albums().Upsert(album); err != nil {
					return err
				}
			}
			for _, track := range bundle.Tracks {
				if err := p.Tracks().Upsert(track); err != nil {
					return err
				}
			}
			if err := p.Playlists().InsertEntries(playlist.ID, entries); err != nil {
				return err
			}
			if isLast && !skipped {
				return p.Playlists().SetSnapshot(playlist.ID, newSnapshot)
			}
			return nil
		}); err != nil {
			return skipped, err
		}

		first = false
		position += len(page.Items)
		if page.Next == "" {
			return skipped, nil
		}
		cursor = page.Next
	}
}

// syncAudioFeatures attaches feature records to tracks that lack them.
func (e *SyncEngine) syncAudioFeatures(ctx context.Context, progress chan<- ProgressUpdate) (models.SyncLogEntry, error) {
	entry := models.SyncLogEntry{
		ID:         shared.GenerateID(),
		Collection: models.CollectionAudioFeatures,
		StartedAt:  time.Now().UTC(),
	}

	ids, err := e.store.Features().MissingTrackIDs()
	if err != nil {
		return entry, e.closeEntry(&entry, progress, false, "", err)
	}

	const batchSize = 100
	var runErr error

	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		sendProgress(progress, fetchingUpdate(models.CollectionAudioFeatures, start/batchSize+1))

		raws, err := e.library.AudioFeatures(ctx, ids[start:end])
		if err != nil {
			runErr = err
			break
		}

		if err := e.store.ApplyPage(func(p *repositories.PageTx) error {
			for _, raw := range raws {
				if raw == nil {
					continue // remote has no features for this track
				}
				features, err := normalize.Features(*raw)
				if err != nil {
					e.logger.Warn("skipped malformed record", "collection", models.CollectionAudioFeatures, "error", err)
					continue
				}
				if err := p.Features().Upsert(features); err != nil {
					return err
				}
				entry.ItemCount++
			}
			return nil
		}); err != nil {
			runErr = err
			break
		}
	}

	return entry, e.closeEntry(&entry, progress, false, "", runErr)
}

// PruneResult reports what an explicit prune pass removed.
type PruneResult struct {
	LikedCleared  int64
	TracksDeleted int64
}

// Prune is the explicit destructive pass. It re-fetches the current remote
// liked set, clears stale liked flags, then deletes tracks that are neither
// liked nor in any playlist. Nothing else ever deletes mirror rows.
func (e *SyncEngine) Prune(ctx context.Context, progress chan<- ProgressUpdate) (*PruneResult, error) {
	entry := models.SyncLogEntry{
		ID:         shared.GenerateID(),
		Collection: models.CollectionPrune,
		StartedAt:  time.Now().UTC(),
	}

	var liked []string
	cursor := ""
	for {
		sendProgress(progress, ProgressUpdate{Collection: models.CollectionPrune, Phase: PhasePrune,
			Message: fmt.Sprintf("fetching remote liked set (%d so far)...", len(liked))})

		page, err := e.library.LikedTracks(ctx, cursor)
		if err != nil {
			return nil, e.closeEntry(&entry, progress, false, cursor, err)
		}

		for _, item := range page.Items {
			if item.Track.ID != "" {
				liked = append(liked, item.Track.ID)
			}
		}

		if page.Next == "" {
			break
		}
		cursor = page.Next
	}

	result := &PruneResult{}
	err := e.store.ApplyPage(func(p *repositories.PageTx) error {
		var err error
		if result.LikedCleared, err = p.Tracks().ClearLikedExcept(liked); err != nil {
			return err
		}
		result.TracksDeleted, err = p.Tracks().DeleteOrphans()
		return err
	})

	entry.ItemCount = int(result.TracksDeleted)
	if closeErr := e.closeEntry(&entry, progress, false, "", err); closeErr != nil {
		return nil, closeErr
	}

	return result, nil
}

func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress != nil {
		progress <- update
	}
}
