package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"familytree-backend/internal/changefeed"
	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/repository"
)

type pendingCounter struct {
	requests repository.RequestRepository
	kinds    []domain.RequestKind
}

func NewPendingCounter(requests repository.RequestRepository) PendingCounter {
	return &pendingCounter{requests: requests, kinds: domain.AllKinds()}
}

// FetchCounts queries every tracked kind in parallel. Kinds whose query
// failed are absent from the map and their errors are joined into err.
func (c *pendingCounter) FetchCounts(ctx context.Context) (map[domain.RequestKind]int, error) {
	counts := make([]int, len(c.kinds))
	errs := make([]error, len(c.kinds))

	var g errgroup.Group
	for i, kind := range c.kinds {
		i, kind := i, kind
		g.Go(func() error {
			n, err := c.requests.CountByStatus(ctx, kind, domain.RequestStatusPending)
			if err != nil {
				errs[i] = fmt.Errorf("count pending %s: %w", kind, err)
				return nil
			}
			counts[i] = n
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[domain.RequestKind]int, len(c.kinds))
	for i, kind := range c.kinds {
		if errs[i] == nil {
			result[kind] = counts[i]
		}
	}
	return result, errors.Join(errs...)
}

// PendingCounts is what an aggregator publishes. Incomplete is set when the
// latest recompute failed for some kinds; those keep their previous value.
type PendingCounts struct {
	Counts     map[domain.RequestKind]int
	Incomplete bool
}

// PendingAggregator keeps one client session's pending counts fresh. Bursts of
// changes within the debounce window collapse into a single recomputation.
type PendingAggregator struct {
	counter  PendingCounter
	feed     changefeed.Feed
	debounce time.Duration
	onUpdate func(PendingCounts)

	mu         sync.Mutex
	timer      *time.Timer
	subs       []changefeed.Subscription
	snapshot   map[domain.RequestKind]int
	incomplete bool
	closed     bool
	ctx        context.Context
	cancel     context.CancelFunc
	// generation of the most recently started recompute; older results are discarded
	gen uint64

	// held while onUpdate runs so Close can wait it out
	callbackMu sync.Mutex
}

// NewPendingAggregator builds an aggregator. onUpdate may be nil and must not call Close.
func NewPendingAggregator(counter PendingCounter, feed changefeed.Feed, debounce time.Duration, onUpdate func(PendingCounts)) *PendingAggregator {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &PendingAggregator{
		counter:  counter,
		feed:     feed,
		debounce: debounce,
		onUpdate: onUpdate,
		snapshot: map[domain.RequestKind]int{},
	}
}

// Start subscribes to every tracked table and computes the initial snapshot.
// A partial initial fetch still installs the counts that succeeded.
func (a *PendingAggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed || a.ctx != nil {
		a.mu.Unlock()
		return nil
	}
	a.ctx, a.cancel = context.WithCancel(ctx)
	for _, kind := range domain.AllKinds() {
		kind := kind
		a.subs = append(a.subs, a.feed.Subscribe(kind.Table(), changefeed.AllEvents, func(changefeed.Change) {
			a.OnChange(kind)
		}))
	}
	a.mu.Unlock()

	return a.recompute()
}

// OnChange (re)arms the debounce timer.
func (a *PendingAggregator) OnChange(kind domain.RequestKind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.fire)
	logger.Debug("Pending count recompute scheduled", "kind", kind)
}

func (a *PendingAggregator) fire() {
	if err := a.recompute(); err != nil {
		logger.Warn("Pending count recompute incomplete", "error", err)
	}
}

// recompute fetches fresh counts. Fetches may overlap when a change arrives
// while one is running; only the last one started installs its result.
func (a *PendingAggregator) recompute() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	counts, err := a.counter.FetchCounts(ctx)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return err
	}
	if gen != a.gen {
		a.mu.Unlock()
		logger.Debug("Superseded pending count recompute dropped", "generation", gen, "latest", a.gen)
		return err
	}
	next := maps.Clone(a.snapshot)
	maps.Copy(next, counts)
	a.snapshot = next
	a.incomplete = err != nil
	update := PendingCounts{Counts: maps.Clone(next), Incomplete: a.incomplete}
	a.mu.Unlock()

	a.notify(update)
	return err
}

func (a *PendingAggregator) notify(update PendingCounts) {
	if a.onUpdate == nil {
		return
	}
	a.callbackMu.Lock()
	defer a.callbackMu.Unlock()

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}
	a.onUpdate(update)
}
// Snapshot returns a copy of the latest counts.
func (a *PendingAggregator) Snapshot() map[domain.RequestKind]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.snapshot)
}

// Close stops the timer and unsubscribes. No callback runs after Close returns.
func (a *PendingAggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	subs := a.subs
	a.subs = nil
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	// wait for a callback already in progress
	a.callbackMu.Lock()
	a.callbackMu.Unlock()
}
