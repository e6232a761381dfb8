package tasks

import (
	"fmt"

	"github.com/desertthunder/musync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	LoadTarget
	Compare
	AddSongs
	RecordHistory
	ImportPlatform
	FetchLibrary
	ExportPlatform
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case LoadTarget:
		return "load_target"
	case Compare:
		return "compare"
	case AddSongs:
		return "add_songs"
	case RecordHistory:
		return "record_history"
	case ImportPlatform:
		return "import_platform"
	case FetchLibrary:
		return "fetch_library"
	case ExportPlatform:
		return "export_platform"
	default:
		return ""
	}
}

func fetchSourceUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching liked songs from %s...", name),
	}
}

func foundSourceUpdate(name string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d liked songs on %s", count, name),
	}
}

func loadTargetUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadTarget,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Loading songs recorded for %s...", step, total, name),
	}
}

func compareUpdate(name string, missing, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Step:    missing,
		Total:   total,
		Message: fmt.Sprintf("%d of %d songs missing on %s", missing, total, name),
	}
}

func addSongUpdate(step, total int, name string, outcome SongOutcome) ProgressUpdate {
	mark := "✓"
	if outcome.Status != StatusAdded {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   AddSongs,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s - %s (%s)", step, total, mark, outcome.Song.Artist, outcome.Song.Title, name),
		Data:    outcome,
	}
}

func targetFailedUpdate(name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddSongs,
		Message: fmt.Sprintf("✗ %s: %v", name, err),
	}
}

func recordHistoryUpdate(h *models.SyncHistory) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordHistory,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sync %s: %d songs added", h.Status, h.SongsAdded),
		Data:    h,
	}
}

func importPlatformUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportPlatform,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Importing liked songs from %s...", step, total, name),
	}
}

func importedPlatformUpdate(step, total int, res PlatformImport) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s: %d new of %d", step, total, res.Type.DisplayName(), res.Imported, res.Total)
	if res.Err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Type.DisplayName(), res.Err)
	}
	return ProgressUpdate{
		Phase:   ImportPlatform,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func fetchLibraryUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLibrary,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching liked songs from %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlatform,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d songs)", step, total, name, count),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlatform,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
