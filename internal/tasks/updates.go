package tasks

import (
	"fmt"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/dustin/go-humanize"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase (0 when unknown)
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchMetadata Phase = iota
	Download
	Finalize
	Finished
	Failed
)

func (p Phase) String() string {
	switch p {
	case FetchMetadata:
		return "fetch_metadata"
	case Download:
		return "download"
	case Finalize:
		return "finalize"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func fetchMetadataUpdate(url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchMetadata,
		Message: fmt.Sprintf("Fetching metadata for %s...", url),
	}
}

func metadataUpdate(meta *models.SourceMetadata, filename string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchMetadata,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %q -> %s", meta.Title, filename),
		Data:    meta,
	}
}

func downloadUpdate(written int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    int(written / progressInterval),
		Message: fmt.Sprintf("Downloaded %s...", humanize.IBytes(uint64(written))),
		Data:    written,
	}
}

func finalizeUpdate(filename string, written int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finalize,
		Message: fmt.Sprintf("Saving %s (%s)...", filename, humanize.IBytes(uint64(written))),
	}
}

func finishedUpdate(job *models.IngestJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ %s", job.Filename()),
		Data:    job,
	}
}

func failedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Message: fmt.Sprintf("✗ %v", err),
	}
}
