package tasks

import (
	"fmt"

	"github.com/desertthunder/cratedig/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Collection models.Collection // Collection being synced, empty for cross-collection events
	Phase      Phase             // Operation phase
	Step       int               // Current step number within phase (page or batch index)
	Total      int               // Total steps when known, 0 otherwise
	Message    string            // Human-readable message for display
	Data       any               // Optional phase-specific data for advanced UIs
}

// Phase enumerates the orchestrator's per-page states plus terminal events.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetchingPage
	PhaseNormalizing
	PhaseUpserting
	PhaseDone
	PhaseFailed
	PhaseCreatePlaylist
	PhasePrune
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetchingPage:
		return "fetching_page"
	case PhaseNormalizing:
		return "normalizing"
	case PhaseUpserting:
		return "upserting"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	case PhaseCreatePlaylist:
		return "create_playlist"
	case PhasePrune:
		return "prune"
	default:
		return ""
	}
}

func fetchingUpdate(collection models.Collection, page int) ProgressUpdate {
	return ProgressUpdate{
		Collection: collection,
		Phase:      PhaseFetchingPage,
		Step:       page,
		Message:    fmt.Sprintf("[%s] fetching page %d...", collection, page),
	}
}

func upsertingUpdate(collection models.Collection, page, items int) ProgressUpdate {
	return ProgressUpdate{
		Collection: collection,
		Phase:      PhaseUpserting,
		Step:       page,
		Message:    fmt.Sprintf("[%s] page %d: upserting %d items...", collection, page, items),
	}
}

func skippedPageUpdate(collection models.Collection, page int) ProgressUpdate {
	return ProgressUpdate{
		Collection: collection,
		Phase:      PhaseNormalizing,
		Step:       page,
		Message:    fmt.Sprintf("[%s] page %d failed normalization, skipping", collection, page),
	}
}

func doneUpdate(entry models.SyncLogEntry) ProgressUpdate {
	phase := PhaseDone
	if entry.Outcome == models.OutcomeResumable || entry.Outcome == models.OutcomeFailed {
		phase = PhaseFailed
	}
	return ProgressUpdate{
		Collection: entry.Collection,
		Phase:      phase,
		Message:    fmt.Sprintf("[%s] %s: %d items", entry.Collection, entry.Outcome, entry.ItemCount),
		Data:       entry,
	}
}

func createPlaylistUpdate(name string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseCreatePlaylist,
		Total:   count,
		Message: fmt.Sprintf("creating playlist %q with %d tracks...", name, count),
	}
}
