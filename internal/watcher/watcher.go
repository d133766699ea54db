package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sync"
	"time"

	"ipwatch/internal/notify"
	"ipwatch/internal/types"
)

const (
	// MinInterval is the smallest polling interval ever used
	MinInterval = 30 * time.Second

	// DefaultFinishTimeout bounds the rest of a cycle once an address is resolved
	DefaultFinishTimeout = 30 * time.Second
)

// Resolver finds the current external address
type Resolver interface {
	Resolve(ctx context.Context, sources []string) (netip.Addr, error)
}

// Store is the part of the history the watcher reads and appends to
type Store interface {
	LastAddress(ctx context.Context) (netip.Addr, bool, error)
	Append(ctx context.Context, addr netip.Addr) (types.Observation, error)
}

// Options configures a Watcher
type Options struct {
	Sources  []string
	Interval time.Duration
	// JitterMin and JitterMax bound the random delay before the first cycle
	JitterMin time.Duration
	JitterMax time.Duration
	// FinishTimeout bounds comparing, persisting and notifying once an address is resolved
	FinishTimeout time.Duration
}

// Status is a snapshot of the watcher
type Status struct {
	Stage       Stage
	Cycles      int64
	LastCycle   time.Time
	LastOutcome Outcome
	LastError   string
	LastAddress netip.Addr
}

// Watcher runs the resolve, compare, persist and notify cycle on a fixed cadence.
// Cycles never overlap: the next wait starts after the current cycle returns.
type Watcher struct {
	resolver Resolver
	store    Store
	notifier notify.Notifier
	opts     Options
	handler  EventHandler

	// wait blocks for d or until ctx is done
	wait func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	status Status
}

// Option configures optional watcher behaviour
type Option func(*Watcher)

// WithEventHandler sets the event handler
func WithEventHandler(h EventHandler) Option {
	return func(w *Watcher) {
		if h != nil {
			w.handler = h
		}
	}
}

// New creates a watcher. An empty source list is a configuration error.
func New(resolver Resolver, store Store, notifier notify.Notifier, opts Options, options ...Option) (*Watcher, error) {
	if len(opts.Sources) == 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, types.ErrNoSources)
	}
	if resolver == nil || store == nil || notifier == nil {
		return nil, fmt.Errorf("%w: resolver, store and notifier are required", types.ErrConfiguration)
	}
	if opts.JitterMin < 0 || opts.JitterMax < 0 {
		return nil, fmt.Errorf("%w: negative jitter bounds", types.ErrConfiguration)
	}

	w := &Watcher{
		resolver: resolver,
		store:    store,
		notifier: notifier,
		handler:  func(Event) {},
		wait:     sleep,
		status:   Status{Stage: StageIdle},
	}
	for _, o := range options {
		o(w)
	}

	opts.Sources = append([]string(nil), opts.Sources...)
	if opts.JitterMax < opts.JitterMin {
		opts.JitterMax = opts.JitterMin
	}
	if opts.FinishTimeout <= 0 {
		opts.FinishTimeout = DefaultFinishTimeout
	}
	if opts.Interval < MinInterval {
		opts.Interval = MinInterval
		w.emit(Event{Kind: EventIntervalClamped, Stage: StageIdle, Delay: MinInterval})
	}
	w.opts = opts

	return w, nil
}

// Interval returns the effective polling interval
func (w *Watcher) Interval() time.Duration {
	return w.opts.Interval
}

// Status returns a snapshot of the watcher state
func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Run waits for the startup jitter, then runs a cycle every interval until ctx is done.
// It returns ctx.Err() once cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	delay := w.jitter()
	w.emit(Event{Kind: EventStarted, Stage: StageIdle, Delay: delay})

	defer func() {
		w.setStage(StageShuttingDown)
		w.emit(Event{Kind: EventStopped, Stage: StageShuttingDown})
	}()

	if err := w.wait(ctx, delay); err != nil {
		return err
	}

	for {
		_, _ = w.RunCycle(ctx)

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.wait(ctx, w.opts.Interval); err != nil {
			return err
		}
	}
}

// RunCycle performs one cycle. The returned error is nil for an unchanged address
// and for a recorded change that was notified; otherwise it carries the failing
// stage's error class. A notify failure is reported alongside a recorded outcome.
func (w *Watcher) RunCycle(ctx context.Context) (outcome Outcome, err error) {
	defer func() {
		w.finishCycle(outcome, err)
	}()

	// Resolving
	w.setStage(StageResolving)
	current, err := w.resolver.Resolve(ctx, w.opts.Sources)
	if err != nil {
		if !errors.Is(err, types.ErrResolution) {
			err = fmt.Errorf("%w: %w", types.ErrResolution, err)
		}
		return w.fail(StageResolving, current, netip.Addr{}, err)
	}
	if err := ctx.Err(); err != nil {
		return w.fail(StageResolving, current, netip.Addr{}, fmt.Errorf("%w: %w", types.ErrResolution, err))
	}

	// The rest of the cycle runs to completion even if ctx is cancelled,
	// so that a recorded change is not left unnotified.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opts.FinishTimeout)
	defer cancel()

	// Comparing
	w.setStage(StageComparing)
	previous, found, err := w.store.LastAddress(fctx)
	if err != nil {
		if !errors.Is(err, types.ErrStoreRead) {
			err = fmt.Errorf("%w: %w", types.ErrStoreRead, err)
		}
		return w.fail(StageComparing, current, netip.Addr{}, err)
	}
	if found && previous == current {
		w.setAddress(current)
		w.emit(Event{Kind: EventUnchanged, Stage: StageComparing, Address: current})
		return OutcomeUnchanged, nil
	}

	outcome = OutcomeFirst
	if found {
		outcome = OutcomeChanged
	} else {
		previous = netip.Addr{}
	}

	// Persisting
	w.setStage(StagePersisting)
	obs, err := w.store.Append(fctx, current)
	if err != nil {
		if !errors.Is(err, types.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", types.ErrStoreWrite, err)
		}
		return w.fail(StagePersisting, current, previous, err)
	}
	w.setAddress(current)

	kind := EventFirstObserved
	if outcome == OutcomeChanged {
		kind = EventChanged
	}
	w.emit(Event{Kind: kind, Stage: StagePersisting, Address: current, Previous: previous})

	// Notifying
	w.setStage(StageNotifying)
	msg := notify.Message{
		Observation: obs,
		Previous:    previous,
		First:       outcome == OutcomeFirst,
	}
	if err := w.notifier.Notify(fctx, msg); err != nil {
		if !errors.Is(err, types.ErrNotify) {
			err = fmt.Errorf("%w: %w", types.ErrNotify, err)
		}
		w.emit(Event{Kind: EventFailed, Stage: StageNotifying, Address: current, Previous: previous, Err: err})
		return outcome, err
	}
	w.emit(Event{Kind: EventNotified, Stage: StageNotifying, Address: current, Previous: previous})

	return outcome, nil
}

// fail emits a failure event and ends the cycle without a recorded outcome
func (w *Watcher) fail(stage Stage, addr, previous netip.Addr, err error) (Outcome, error) {
	w.emit(Event{Kind: EventFailed, Stage: stage, Address: addr, Previous: previous, Err: err})
	return OutcomeFailed, err
}

// jitter picks the startup delay uniformly in [JitterMin, JitterMax]
func (w *Watcher) jitter() time.Duration {
	span := w.opts.JitterMax - w.opts.JitterMin
	if span <= 0 {
		return w.opts.JitterMin
	}
	return w.opts.JitterMin + rand.N(span+1)
}

func (w *Watcher) emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	w.handler(e)
}

func (w *Watcher) setStage(stage Stage) {
	w.mu.Lock()
	w.status.Stage = stage
	w.mu.Unlock()
}

func (w *Watcher) setAddress(addr netip.Addr) {
	w.mu.Lock()
	w.status.LastAddress = addr
	w.mu.Unlock()
}

func (w *Watcher) finishCycle(outcome Outcome, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status.Stage = StageIdle
	w.status.Cycles++
	w.status.LastCycle = time.Now().UTC()
	w.status.LastOutcome = outcome
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
}

// sleep waits for d unless ctx is done first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
