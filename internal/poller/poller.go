// Package poller implements the repeating-fetch engine behind every dashboard
// dataset.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timings shared by the dashboard datasets.
const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 10 * time.Second
)

var (
	// ErrAlreadyRunning is returned by Start on an active poller.
	ErrAlreadyRunning = errors.New("poller already running")
	// ErrNotRunning is returned when a fetch is requested or completes outside an activation.
	ErrNotRunning = errors.New("poller not running")
)

// FetchFunc loads one complete, normalized dataset.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// State is the observable state of a poller.
type State[T any] struct {
	Data T `json:"data"`
	// Loading is true until the first fetch of an activation resolves.
	Loading bool `json:"loading"`
	// Error holds the message of the most recent failed fetch, cleared by the next success.
	Error string `json:"error,omitempty"`
	// LastUpdated is stamped on every completed attempt.
	LastUpdated time.Time `json:"last_updated"`
}

// Options tunes a poller. Zero values fall back to the package defaults.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time
}

// Poller owns one dataset and refreshes it on a fixed interval.
//
// Fetch results are applied in issue order: a completion older than the last
// applied one is dropped, and nothing is applied after Stop.
type Poller[T any] struct {
	name     string
	fetch    FetchFunc[T]
	sched    Scheduler
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu         sync.Mutex
	state      State[T]
	running    bool
	generation uint64
	issued     uint64
	applied    uint64
	runCtx     context.Context
	cancel     context.CancelFunc
	handle     Handle

	empty T

	notifyMu    sync.Mutex
	subscribers map[int]func(State[T])
	nextSubID   int
}

// New creates an inactive poller.
func New[T any](name string, fetch FetchFunc[T], sched Scheduler, opts Options, logger *zap.Logger) *Poller[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Poller[T]{
		name:        name,
		fetch:       fetch,
		sched:       sched,
		interval:    opts.Interval,
		timeout:     opts.Timeout,
		now:         opts.Now,
		logger:      logger,
		subscribers: make(map[int]func(State[T])),
	}
}

// WithEmpty sets the dataset reported until the first successful fetch of
// an activation. Call it before Start.
func (p *Poller[T]) WithEmpty(v T) *Poller[T] {
	p.mu.Lock()
	p.empty = v
	p.state.Data = v
	p.mu.Unlock()
	return p
}

// Name identifies the dataset.
func (p *Poller[T]) Name() string {
	return p.name
}

// Start activates the poller: one fetch right away, then one per interval
// until Stop. State is reset to loading with an empty dataset.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.generation++
	gen := p.generation
	p.runCtx, p.cancel = runCtx, cancel
	p.state = State[T]{Data: p.empty, Loading: true}
	p.mu.Unlock()

	handle, err := p.sched.Every(p.interval, func() { p.tick(runCtx, gen) })
	if err != nil {
		p.mu.Lock()
		if p.generation == gen {
			p.running = false
		}
		p.mu.Unlock()
		cancel()
		return fmt.Errorf("schedule %s poller: %w", p.name, err)
	}

	p.mu.Lock()
	if !p.running || p.generation != gen {
		// Stopped while we were registering.
		p.mu.Unlock()
		handle.Cancel()
		return nil
	}
	p.handle = handle
	p.mu.Unlock()

	p.logger.Info("poller started", zap.String("poller", p.name), zap.Duration("interval", p.interval))

	go p.tick(runCtx, gen)
	return nil
}

// Stop deactivates the poller. In-flight fetches are cancelled and their
// results discarded. Stop is idempotent.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	handle, cancel := p.handle, p.cancel
	p.handle, p.cancel, p.runCtx = nil, nil, nil
	p.mu.Unlock()

	if handle != nil {
		handle.Cancel()
	}
	if cancel != nil {
		cancel()
	}

	p.logger.Info("poller stopped", zap.String("poller", p.name))
}

// Running reports whether the poller is active.
func (p *Poller[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Refetch runs one fetch immediately, exactly like a scheduled tick, and
// returns once its result has been applied or discarded. A fetch that fails
// after ctx is done is discarded, so an abandoned caller never marks the
// shared state as failed.
func (p *Poller[T]) Refetch(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotRunning
	}
	gen, runCtx := p.generation, p.runCtx
	p.mu.Unlock()

	fetchCtx, cancel := context.WithCancel(runCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return p.run(fetchCtx, gen, ctx)
}

// State returns a snapshot of the current state.
func (p *Poller[T]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers fn to receive every applied state. Calls are serialized
// and happen outside the state lock. The returned func unsubscribes.
func (p *Poller[T]) Subscribe(fn func(State[T])) func() {
	p.notifyMu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn
	p.notifyMu.Unlock()

	return func() {
		p.notifyMu.Lock()
		delete(p.subscribers, id)
		p.notifyMu.Unlock()
	}
}

func (p *Poller[T]) tick(ctx context.Context, gen uint64) {
	if err := p.run(ctx, gen, nil); err != nil && !errors.Is(err, ErrNotRunning) {
		p.logger.Warn("poll failed", zap.String("poller", p.name), zap.Error(err))
	}
}

// run fetches and applies one result. caller, when set, is the context of
// the goroutine waiting on the result.
func (p *Poller[T]) run(ctx context.Context, gen uint64, caller context.Context) error {
	p.mu.Lock()
	if !p.running || p.generation != gen {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	data, err := p.fetch(fetchCtx)
	cancel()

	if err != nil && caller != nil && caller.Err() != nil {
		p.logger.Debug("discarding abandoned refetch", zap.String("poller", p.name), zap.Uint64("seq", seq), zap.Error(err))
		return caller.Err()
	}
	return p.apply(gen, seq, data, err)
}

func (p *Poller[T]) apply(gen, seq uint64, data T, fetchErr error) error {
	p.mu.Lock()
	if !p.running || p.generation != gen {
		p.mu.Unlock()
		p.logger.Debug("discarding result after stop", zap.String("poller", p.name), zap.Uint64("seq", seq))
		return ErrNotRunning
	}
	if seq < p.applied {
		p.mu.Unlock()
		p.logger.Debug("discarding stale result", zap.String("poller", p.name), zap.Uint64("seq", seq))
		return fetchErr
	}

	p.applied = seq
	p.state.Loading = false
	p.state.LastUpdated = p.now()
	if fetchErr != nil {
		p.state.Error = fetchErr.Error()
	} else {
		p.state.Data = data
		p.state.Error = ""
	}
	snapshot := p.state

	// Taking notifyMu before releasing mu keeps delivery in apply order.
	p.notifyMu.Lock()
	p.mu.Unlock()
	subs := make([]func(State[T]), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	for _, fn := range subs {
		fn(snapshot)
	}
	p.notifyMu.Unlock()

	return fetchErr
}
