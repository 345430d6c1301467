package tasks

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/services"
	"github.com/desertthunder/lidx/internal/shared"
)

const (
	DefaultDebounce  = 300 * time.Millisecond
	DefaultMinLength = 2
	DefaultLimit     = 5
)

// SearchOptions configures a [SearchSession].
type SearchOptions struct {
	Debounce  time.Duration // quiet period before a fetch, default 300ms
	MinLength int           // shortest trimmed query that is searched, default 2
	Limit     int           // suggestions per kind, default 5
	Logger    *log.Logger

	// OnNavigate is called after a suggestion is selected and the session is cleared.
	OnNavigate func(models.Suggestion) error
	// OnSubmit is called with the raw query when Enter is pressed with nothing highlighted.
	OnSubmit func(query string) error
}

// SearchSession turns keystrokes into debounced suggestion fetches and tracks dropdown navigation.
//
// Only the response for the query current at arrival time is applied; anything else is dropped.
type SearchSession struct {
	source services.SuggestionSource
	opts   SearchOptions
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	query       string
	issued      string
	open        bool
	loading     bool
	highlight   int
	suggestions *models.Suggestions
	flat        []models.Suggestion
	lastErr     error
	timer       *time.Timer
	seq         uint64
	closed      bool
	updates     chan SearchState
}

// NewSearchSession creates an empty session.
func NewSearchSession(source services.SuggestionSource, opts SearchOptions) *SearchSession {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SearchSession{
		source:    source,
		opts:      opts,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		highlight: -1,
		updates:   make(chan SearchState, 1),
	}
}

// SetQuery records the typed text.
//
// Below the minimum length the suggestions are cleared and the dropdown closed with no fetch.
// Otherwise the debounce timer restarts; the previous timer is stopped so only the last keystroke fetches.
func (s *SearchSession) SetQuery(q string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return shared.ErrSessionClosed
	}

	s.query = q
	s.stopTimerLocked()

	if utf8.RuneCountInString(strings.TrimSpace(q)) < s.opts.MinLength {
		s.clearResultsLocked()
		s.publishLocked()
		return nil
	}

	seq := s.seq
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.fire(seq) })
	s.publishLocked()
	return nil
}

// fire issues the fetch for timer seq unless a newer keystroke superseded it.
func (s *SearchSession) fire(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	issued := s.query
	s.issued = issued
	s.loading = true
	s.publishLocked()
	s.mu.Unlock()

	res, err := s.source.Suggestions(s.ctx, strings.TrimSpace(issued), s.opts.Limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if issued != s.query {
		if s.issued == issued {
			s.loading = false
			s.publishLocked()
		}
		s.logger.Debug("discarding stale suggestions", "issued", issued, "current", s.query)
		return
	}

	s.loading = false
	if err != nil {
		s.lastErr = err
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("suggestion fetch failed", "query", issued, "error", err)
		}
		s.publishLocked()
		return
	}

	s.lastErr = nil
	s.suggestions = res.Clone()
	s.flat = s.suggestions.Flatten()
	s.open = len(s.flat) > 0
	s.highlight = -1
	s.publishLocked()
}

// MoveDown highlights the next suggestion, stopping at the last one.
func (s *SearchSession) MoveDown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open || len(s.flat) == 0 {
		return
	}
	if s.highlight < len(s.flat)-1 {
		s.highlight++
		s.publishLocked()
	}
}

// MoveUp highlights the previous suggestion, stopping at -1 (nothing highlighted).
func (s *SearchSession) MoveUp() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return
	}
	if s.highlight > -1 {
		s.highlight--
		s.publishLocked()
	}
}

// Enter selects the highlighted suggestion, or submits the query when nothing is highlighted.
// An empty query with nothing highlighted does nothing.
func (s *SearchSession) Enter() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrSessionClosed
	}

	if s.open && s.highlight >= 0 && s.highlight < len(s.flat) {
		selected := s.flat[s.highlight]
		s.mu.Unlock()
		return s.Select(selected)
	}
	s.mu.Unlock()
	return s.Submit()
}

// Submit clears the session and hands the raw query to OnSubmit.
func (s *SearchSession) Submit() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrSessionClosed
	}

	query := strings.TrimSpace(s.query)
	if query == "" {
		s.mu.Unlock()
		return nil
	}
	s.resetLocked()
	s.publishLocked()
	s.mu.Unlock()

	if s.opts.OnSubmit == nil {
		return nil
	}
	return s.opts.OnSubmit(query)
}

// Select clears the query and dropdown, then hands the suggestion to OnNavigate.
func (s *SearchSession) Select(sg models.Suggestion) error {
	if err := sg.Validate(); err != nil {
		return errors.Join(shared.ErrInvalidInput, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrSessionClosed
	}
	s.resetLocked()
	s.publishLocked()
	s.mu.Unlock()

	if s.opts.OnNavigate == nil {
		return nil
	}
	return s.opts.OnNavigate(sg)
}

// Escape closes the dropdown and clears the highlight. The query is kept.
func (s *SearchSession) Escape() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	s.highlight = -1
	s.publishLocked()
}

// Blur closes the dropdown when focus leaves the control. The query is kept.
func (s *SearchSession) Blur() {
	s.Escape()
}

// Focus reopens the dropdown if suggestions for the current query are still held.
func (s *SearchSession) Focus() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.flat) > 0 && s.issued == s.query && !s.open {
		s.open = true
		s.publishLocked()
	}
}

// Close tears the session down: the debounce timer is stopped, the session context is cancelled,
// results still in flight are dropped and [SearchSession.Updates] is closed.
func (s *SearchSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.cancel()
	close(s.updates)
}

// State returns a copy of the current state.
func (s *SearchSession) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Updates delivers the state after every change. Only the latest unread state is kept.
func (s *SearchSession) Updates() <-chan SearchState {
	return s.updates
}

// stopTimerLocked cancels the pending debounce. A callback already running sees the new sequence and returns.
func (s *SearchSession) stopTimerLocked() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SearchSession) clearResultsLocked() {
	s.suggestions = nil
	s.flat = nil
	s.open = false
	s.loading = false
	s.highlight = -1
}

func (s *SearchSession) resetLocked() {
	s.stopTimerLocked()
	s.clearResultsLocked()
	s.query = ""
	s.issued = ""
}

func (s *SearchSession) stateLocked() SearchState {
	return SearchState{
		Query:       s.query,
		Issued:      s.issued,
		Open:        s.open,
		Loading:     s.loading,
		Highlight:   s.highlight,
		Suggestions: s.suggestions.Clone(),
		LastError:   s.lastErr,
	}
}

func (s *SearchSession) publishLocked() {
	if s.closed {
		return
	}
	publish(s.updates, s.stateLocked())
}
