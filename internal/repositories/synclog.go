package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/cratedig/internal/models"
)

// SyncLogRepository appends to and reads the sync ledger.
//
// Ledger rows are written once per sync run and never updated; the
// orchestrator reads the latest row per collection to find resume cursors,
// and staleness checks read the last successful completion time.
type SyncLogRepository struct {
	q querier
}

// NewSyncLogRepository creates a SyncLogRepository bound to a database handle or transaction.
func NewSyncLogRepository(q querier) *SyncLogRepository {
	return &SyncLogRepository{q: q}
}

// Append writes one ledger row.
func (r *SyncLogRepository) Append(entry models.SyncLogEntry) error {
	_, err := r.q.Exec(`
		INSERT INTO sync_log (id, collection, started_at, completed_at, item_count, cursor, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		string(entry.Collection),
		entry.StartedAt.UTC(),
		entry.CompletedAt.UTC(),
		entry.ItemCount,
		entry.Cursor,
		string(entry.Outcome),
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to append sync log entry: %w", err)
	}

	return nil
}

// Latest returns the most recent ledger row for a collection, nil when the
// collection has never been synced.
func (r *SyncLogRepository) Latest(collection models.Collection) (*models.SyncLogEntry, error) {
	row := r.q.QueryRow(`
		SELECT id, collection, started_at, completed_at, item_count, cursor, outcome, error
		FROM sync_log
		WHERE collection = ?
		ORDER BY completed_at DESC, started_at DESC
		LIMIT 1`,
		string(collection),
	)

	return scanSyncLog(row)
}

// LastSuccess returns the most recent fully-successful ledger row for a
// collection, nil when there is none.
func (r *SyncLogRepository) LastSuccess(collection models.Collection) (*models.SyncLogEntry, error) {
	row := r.q.QueryRow(`
		SELECT id, collection, started_at, completed_at, item_count, cursor, outcome, error
		FROM sync_log
		WHERE collection = ? AND outcome = ?
		ORDER BY completed_at DESC, started_at DESC
		LIMIT 1`,
		string(collection),
		string(models.OutcomeSuccess),
	)

	return scanSyncLog(row)
}

// List returns all ledger rows for a collection, newest first.
func (r *SyncLogRepository) List(collection models.Collection) ([]models.SyncLogEntry, error) {
	rows, err := r.q.Query(`
		SELECT id, collection, started_at, completed_at, item_count, cursor, outcome, error
		FROM sync_log
		WHERE collection = ?
		ORDER BY completed_at DESC, started_at DESC`,
		string(collection),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []models.SyncLogEntry
	for rows.Next() {
		var entry models.SyncLogEntry
		var collection, outcome string
		if err := rows.Scan(&entry.ID, &collection, &entry.StartedAt, &entry.CompletedAt,
			&entry.ItemCount, &entry.Cursor, &outcome, &entry.Error); err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		entry.Collection = models.Collection(collection)
		entry.Outcome = models.Outcome(outcome)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanSyncLog(row *sql.Row) (*models.SyncLogEntry, error) {
	var entry models.SyncLogEntry
	var collection, outcome string

	err := row.Scan(&entry.ID, &collection, &entry.StartedAt, &entry.CompletedAt,
		&entry.ItemCount, &entry.Cursor, &outcome, &entry.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
	}

	entry.Collection = models.Collection(collection)
	entry.Outcome = models.Outcome(outcome)
	entry.StartedAt = entry.StartedAt.UTC()
	entry.CompletedAt = entry.CompletedAt.UTC()

	return &entry, nil
}
