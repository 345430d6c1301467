package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/services"
	"github.com/desertthunder/lidx/internal/shared"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultRetryDelay   = time.Second
)

// PollerOptions configures a [StatusPoller].
type PollerOptions struct {
	Interval   time.Duration // time between fetches, default 5s
	RetryDelay time.Duration // delay before the reconciling fetch after a retry, default 1s
	Logger     *log.Logger
}

// StatusPoller keeps the latest download snapshot from a [services.StatusSource].
//
// Ticks are not serialized: when a fetch outlives the interval the next tick starts another one and
// whichever settles last wins. Identical concurrent reads are coalesced by the source.
type StatusPoller struct {
	source services.StatusSource
	opts   PollerOptions
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	phase     Phase
	snapshot  *models.Snapshot
	retrying  map[int]bool
	lastErr   error
	updatedAt time.Time
	running   bool
	stopped   bool
	ticker    *time.Ticker
	followUps map[int]*time.Timer
	nextTimer int
	updates   chan PollState
}

// NewStatusPoller creates a poller in [PhaseLoading]. Nothing is fetched until [StatusPoller.Start] or [StatusPoller.Refresh].
func NewStatusPoller(source services.StatusSource, opts PollerOptions) *StatusPoller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &StatusPoller{
		source:    source,
		opts:      opts,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		phase:     PhaseLoading,
		retrying:  make(map[int]bool),
		followUps: make(map[int]*time.Timer),
		updates:   make(chan PollState, 1),
	}
}

// Start fetches immediately and then once per interval until [StatusPoller.Stop] is called or ctx ends.
// Calling Start on a running poller does nothing.
func (p *StatusPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return shared.ErrPollerStopped
	}
	if p.running {
		return nil
	}

	p.running = true
	p.ticker = time.NewTicker(p.opts.Interval)
	go p.loop(ctx, p.ticker)

	p.logger.Debug("poller started", "interval", p.opts.Interval)
	return nil
}

func (p *StatusPoller) loop(ctx context.Context, ticker *time.Ticker) {
	go p.fetch()

	for {
		select {
		case <-ticker.C:
			go p.fetch()
		case <-ctx.Done():
			p.Stop()
			return
		case <-p.ctx.Done():
			return
		}
	}
}

// Stop cancels the ticker and any pending follow-up fetch and closes [StatusPoller.Updates].
// Fetches already in flight are not aborted but their results are discarded. Stop is idempotent.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	p.running = false
	p.cancel()

	if p.ticker != nil {
		p.ticker.Stop()
	}
	for id, t := range p.followUps {
		t.Stop()
		delete(p.followUps, id)
	}
	close(p.updates)

	p.logger.Debug("poller stopped")
}

// Refresh fetches one snapshot now and returns the fetch error, if any.
// A failed refresh keeps the previous snapshot, like a failed tick.
func (p *StatusPoller) Refresh(ctx context.Context) error {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return shared.ErrPollerStopped
	}

	return p.apply(p.source.DownloadStatus(ctx))
}

func (p *StatusPoller) fetch() {
	p.apply(p.source.DownloadStatus(p.ctx))
}

// apply records the outcome of a fetch unless the poller was stopped while it ran.
func (p *StatusPoller) apply(snapshot *models.Snapshot, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return err
	}

	if err == nil && snapshot == nil {
		err = fmt.Errorf("%w: empty snapshot", shared.ErrAPIRequest)
	}

	if err != nil {
		p.lastErr = err
		switch {
		case errors.Is(err, context.Canceled):
		case errors.Is(err, shared.ErrUnauthorized):
			p.logger.Debug("status fetch unauthorized")
		default:
			p.logger.Warn("status fetch failed, keeping previous snapshot", "error", err)
		}
		p.publishLocked()
		return err
	}

	next := snapshot.Clone()
	if next.FetchedAt.IsZero() {
		next.FetchedAt = time.Now()
	}
	p.snapshot = next
	p.phase = PhaseReady
	p.lastErr = nil
	p.updatedAt = next.FetchedAt
	p.publishLocked()
	return nil
}

// Retry issues the retry command for item id and returns its error.
//
// While the command is pending the item is reported as retrying, and a second Retry for it fails with
// [shared.ErrRetryInProgress]. Once the command settles, successfully or not, a reconciling fetch is scheduled
// after the retry delay. The snapshot is never edited optimistically.
func (p *StatusPoller) Retry(ctx context.Context, id int) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return shared.ErrPollerStopped
	}
	if p.retrying[id] {
		p.mu.Unlock()
		return fmt.Errorf("%w: download %d", shared.ErrRetryInProgress, id)
	}
	p.retrying[id] = true
	p.publishLocked()
	p.mu.Unlock()

	err := p.source.RetryDownload(ctx, id)

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.retrying, id)
	if p.stopped {
		return err
	}

	if err != nil {
		p.logger.Error("retry failed", "download", id, "error", err)
	} else {
		p.logger.Info("retry issued", "download", id)
	}

	p.scheduleLocked(p.opts.RetryDelay)
	p.publishLocked()
	return err
}

// scheduleLocked arranges a single fetch after d. The timer is dropped by Stop.
func (p *StatusPoller) scheduleLocked(d time.Duration) {
	id := p.nextTimer
	p.nextTimer++

	p.followUps[id] = time.AfterFunc(d, func() {
		p.mu.Lock()
		_, pending := p.followUps[id]
		delete(p.followUps, id)
		p.mu.Unlock()

		if pending {
			p.fetch()
		}
	})
}

// State returns a copy of the current state.
func (p *StatusPoller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// IsRetrying reports whether item id has a retry pending.
func (p *StatusPoller) IsRetrying(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retrying[id]
}

// Updates delivers the state after every change. Only the latest unread state is kept.
// The channel is closed by [StatusPoller.Stop].
func (p *StatusPoller) Updates() <-chan PollState {
	return p.updates
}

func (p *StatusPoller) stateLocked() PollState {
	return PollState{
		Phase:     p.phase,
		Snapshot:  p.snapshot.Clone(),
		Retrying:  maps.Clone(p.retrying),
		LastError: p.lastErr,
		UpdatedAt: p.updatedAt,
		Stopped:   p.stopped,
	}
}

func (p *StatusPoller) publishLocked() {
	if p.stopped {
		return
	}
	publish(p.updates, p.stateLocked())
}
