package tasks

import (
	"slices"
	"time"

	"github.com/desertthunder/lidx/internal/models"
)

// Phase is the lifecycle phase of a [StatusPoller].
type Phase int

const (
	// PhaseLoading lasts until the first successful fetch.
	PhaseLoading Phase = iota
	// PhaseReady holds once a snapshot exists. Later fetches never return to PhaseLoading.
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return ""
	}
}

// PollState is a copy of a [StatusPoller]'s state, safe to keep after the poller moves on.
type PollState struct {
	Phase     Phase
	Snapshot  *models.Snapshot // nil until the first successful fetch
	Retrying  map[int]bool     // items with a retry command pending
	LastError error            // error of the most recent fetch, cleared by a successful one
	UpdatedAt time.Time        // time of the last snapshot replacement
	Stopped   bool
}

// IsRetrying reports whether item id has a retry pending.
func (s PollState) IsRetrying(id int) bool {
	return s.Retrying[id]
}

// Stale reports whether the shown snapshot is older than the latest failed fetch.
func (s PollState) Stale() bool {
	return s.Snapshot != nil && s.LastError != nil
}

// RetryingIDs returns the ids with a pending retry in ascending order.
func (s PollState) RetryingIDs() []int {
	ids := make([]int, 0, len(s.Retrying))
	for id, ok := range s.Retrying {
		if ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// SearchState is a copy of a [SearchSession]'s state.
type SearchState struct {
	Query       string              // text as typed
	Issued      string              // query of the most recent fetch
	Open        bool                // dropdown visible
	Loading     bool                // a fetch for the current query is pending
	Highlight   int                 // index into Flat(), -1 when nothing is highlighted
	Suggestions *models.Suggestions // nil when cleared
	LastError   error
}

// Flat returns the suggestions in navigation order.
func (s SearchState) Flat() []models.Suggestion {
	return s.Suggestions.Flatten()
}

// Highlighted returns the highlighted suggestion, if any.
func (s SearchState) Highlighted() (models.Suggestion, bool) {
	flat := s.Flat()
	if s.Highlight < 0 || s.Highlight >= len(flat) {
		return models.Suggestion{}, false
	}
	return flat[s.Highlight], true
}

// publish sends v, replacing an update the consumer has not read yet. It never blocks.
func publish[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
