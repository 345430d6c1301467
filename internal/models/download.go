package models

import (
	"strings"
	"time"
)

// MaxRetries caps the retry count shown for a download.
const MaxRetries = 3

// DownloadStatus is the normalized state of a tracked download.
type DownloadStatus string

const (
	StatusActive    DownloadStatus = "active"
	StatusStuck     DownloadStatus = "stuck"
	StatusImporting DownloadStatus = "importing"
	StatusCompleted DownloadStatus = "completed"
	StatusFailed    DownloadStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s DownloadStatus) Valid() bool {
	switch s {
	case StatusActive, StatusStuck, StatusImporting, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// DownloadItem is one tracked transfer as reported by the status endpoint.
type DownloadItem struct {
	ID                    int            `json:"id"`
	Title                 string         `json:"title,omitempty"`
	Artist                string         `json:"artist,omitempty"`
	Album                 string         `json:"album,omitempty"`
	AlbumID               int            `json:"albumId,omitempty"`
	Progress              int            `json:"progress"`
	Status                DownloadStatus `json:"status"`
	TrackedDownloadStatus string         `json:"trackedDownloadStatus,omitempty"`
	TrackedDownloadState  string         `json:"trackedDownloadState,omitempty"`
	RetryCount            int            `json:"retryCount"`
	Stuck                 bool           `json:"stuck"`
	Size                  int64          `json:"size,omitempty"`
	SizeLeft              int64          `json:"sizeLeft,omitempty"`
	TimeLeft              string         `json:"timeLeft,omitempty"`
	DownloadClient        string         `json:"downloadClient,omitempty"`
	ErrorMessage          string         `json:"errorMessage,omitempty"`
	StatusMessages        []string       `json:"statusMessages,omitempty"`
}

// DisplayProgress returns Progress clamped to [0, 100].
func (d DownloadItem) DisplayProgress() int {
	return ClampProgress(d.Progress)
}

// DisplayRetries returns RetryCount capped at [MaxRetries].
func (d DownloadItem) DisplayRetries() int {
	switch {
	case d.RetryCount < 0:
		return 0
	case d.RetryCount > MaxRetries:
		return MaxRetries
	default:
		return d.RetryCount
	}
}

// HasIssue reports whether the item needs attention.
func (d DownloadItem) HasIssue() bool {
	if d.Status == StatusFailed {
		return true
	}
	switch strings.ToLower(d.TrackedDownloadStatus) {
	case "warning", "error":
		return true
	}
	return false
}

// Label is the human-readable name of the item, falling back through album and title.
func (d DownloadItem) Label() string {
	switch {
	case d.Artist != "" && d.Album != "":
		return d.Artist + " - " + d.Album
	case d.Title != "":
		return d.Title
	case d.Album != "":
		return d.Album
	default:
		return "Unknown download"
	}
}

// ClampProgress clamps a percentage into [0, 100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Summary aggregates counts over a snapshot's items.
type Summary struct {
	Total      int `json:"total"`
	Stuck      int `json:"stuck"`
	OpenIssues int `json:"openIssues"`
}

// Summarize computes a [Summary] for items.
func Summarize(items []DownloadItem) Summary {
	s := Summary{Total: len(items)}
	for _, item := range items {
		if item.Stuck {
			s.Stuck++
		}
		if item.HasIssue() {
			s.OpenIssues++
		}
	}
	return s
}

// Snapshot is the full payload of one status fetch. It replaces the previous snapshot wholesale.
type Snapshot struct {
	Items     []DownloadItem `json:"items"`
	Summary   Summary        `json:"summary"`
	FetchedAt time.Time      `json:"-"`
}

// Item looks up an item by id.
func (s *Snapshot) Item(id int) (DownloadItem, bool) {
	if s == nil {
		return DownloadItem{}, false
	}
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return DownloadItem{}, false
}

// Clone returns a deep copy so callers can hold the snapshot without sharing slices.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{Summary: s.Summary, FetchedAt: s.FetchedAt}
	out.Items = make([]DownloadItem, len(s.Items))
	for i, item := range s.Items {
		if item.StatusMessages != nil {
			item.StatusMessages = append([]string(nil), item.StatusMessages...)
		}
		out.Items[i] = item
	}
	return out
}
