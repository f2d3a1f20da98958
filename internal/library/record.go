// Package library is the client side of the service: it owns the persisted
// queue of media records, the single active transfer, and file placement
// into stable storage.
package library

import (
	"fmt"
	"time"

	"clipvault/internal/resolve"

	"github.com/google/uuid"
)

// MediaRecord is one entry in the user's library.
//
// At most one record has IsDownloading set at any time. FilePath, once set,
// points at an existing file in the media directory for as long as the record
// exists; deletion removes the file first.
type MediaRecord struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	SourceDomain   string  `json:"sourceDomain,omitempty"`
	ThumbnailURL   string  `json:"thumbnailUrl,omitempty"`
	DirectMediaURL string  `json:"directMediaUrl"`
	FilePath       *string `json:"filePath,omitempty"`

	// FileSize is a best-effort display string, "Unknown" when the source
	// reports nothing.
	FileSize  string    `json:"fileSize,omitempty"`
	DateAdded time.Time `json:"dateAdded"`

	Progress      float64 `json:"progress"`
	IsDownloading bool    `json:"isDownloading"`
	IsCompleted   bool    `json:"isCompleted"`

	// ActiveTransferID correlates an in-flight transfer to this record.
	// Cleared on completion, cancellation and failure.
	ActiveTransferID string `json:"activeTransferId,omitempty"`

	AvailableFormats []resolve.Format `json:"availableFormats,omitempty"`
	SelectedFormat   string           `json:"selectedFormat,omitempty"`
}

// NewRecord builds a fresh idle record from an analyze result and the format
// the user picked.
func NewRecord(res *resolve.Result, selected resolve.Format) MediaRecord {
	return MediaRecord{
		ID:               uuid.NewString(),
		Title:            res.Title,
		SourceDomain:     res.SourceDomain,
		ThumbnailURL:     res.Thumbnail,
		DirectMediaURL:   selected.URL,
		FileSize:         humanSize(selected.Size),
		DateAdded:        time.Now().UTC(),
		AvailableFormats: res.Formats,
		SelectedFormat:   selected.Quality,
	}
}

func humanSize(n int64) string {
	if n <= 0 {
		return "Unknown"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(n)/float64(div), []string{"KB", "MB", "GB", "TB"}[exp])
}
