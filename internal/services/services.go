// package services defines the sources the status poller and search session read from
//
// The client ([APIService]) and the backend ([LibraryService]) both implement them.
package services

import (
	"context"

	"github.com/desertthunder/lidx/internal/models"
)

// StatusSource provides download status snapshots and accepts retry commands.
type StatusSource interface {
	// DownloadStatus fetches the current snapshot. The returned snapshot may be shared between callers and must not be mutated.
	DownloadStatus(ctx context.Context) (*models.Snapshot, error)

	// RetryDownload issues a retry command for one download.
	RetryDownload(ctx context.Context, id int) error
}

// SuggestionSource provides typeahead suggestions for a free-text query.
type SuggestionSource interface {
	// Suggestions returns at most limit entries per kind. The result may be shared and must not be mutated.
	Suggestions(ctx context.Context, query string, limit int) (*models.Suggestions, error)
}

// RetryLedger records retry attempts and reports how many each download has had.
type RetryLedger interface {
	Create(attempt *models.RetryAttempt) error
	CountByDownload(ids ...int) (map[int]int, error)
}

// HealthStatus is the payload of the health endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}
