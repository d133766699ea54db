package watcher

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"ipwatch/internal/notify"
	"ipwatch/internal/types"
)

var (
	addrX = netip.MustParseAddr("203.0.113.5")
	addrY = netip.MustParseAddr("198.51.100.9")
)

type resolveResult struct {
	addr netip.Addr
	err  error
}

// fakeResolver returns results in order, repeating the last one
type fakeResolver struct {
	mu      sync.Mutex
	results []resolveResult
	calls   int
	hook    func()
}

func (f *fakeResolver) Resolve(ctx context.Context, sources []string) (netip.Addr, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if len(f.results) == 0 {
		return netip.Addr{}, types.ErrAllSourcesFailed
	}
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx].addr, f.results[idx].err
}

func (f *fakeResolver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStore is an in-memory history
type fakeStore struct {
	mu           sync.Mutex
	addrs        []netip.Addr
	readErr      error
	writeErr     error
	reads        int
	onRead       func()
	appendCtxErr error
}

func (f *fakeStore) LastAddress(ctx context.Context) (netip.Addr, bool, error) {
	f.mu.Lock()
	f.reads++
	onRead := f.onRead
	f.mu.Unlock()

	if onRead != nil {
		onRead()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return netip.Addr{}, false, f.readErr
	}
	if len(f.addrs) == 0 {
		return netip.Addr{}, false, nil
	}
	return f.addrs[len(f.addrs)-1], true, nil
}

func (f *fakeStore) Append(ctx context.Context, addr netip.Addr) (types.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.appendCtxErr = ctx.Err()
	if f.writeErr != nil {
		return types.Observation{}, f.writeErr
	}
	if ctx.Err() != nil {
		return types.Observation{}, ctx.Err()
	}
	f.addrs = append(f.addrs, addr)
	obs := types.NewObservation(addr)
	obs.ID = int64(len(f.addrs))
	return obs, nil
}

func (f *fakeStore) Appended() []netip.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]netip.Addr(nil), f.addrs...)
}

// fakeNotifier records every message
type fakeNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	if f.err != nil {
		return f.err
	}
	return ctx.Err()
}

func (f *fakeNotifier) Messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.messages...)
}

// eventRecorder collects emitted events
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (r *eventRecorder) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

var errBoom = errors.New("boom")

func testOptions() Options {
	return Options{
		Sources:       []string{"https://source.example"},
		Interval:      time.Minute,
		FinishTimeout: time.Second,
	}
}
