package agentwrapper

import (
	"context"
	"sync"
)

// runIDContextKey is the unexported context key Gateway.Run uses to pass
// its generated correlation id down to the dispatched Backend.Run, so the
// id a backend stamps on its RunHandle is the same one Gateway logged and
// traced the run under.
type runIDContextKey struct{}

// WithRunID returns a context carrying runID for a backend to pick up via
// RunIDFromContext. Gateway.Run calls this before dispatching to a
// registered Backend.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDContextKey{}, runID)
}

// RunIDFromContext returns the run id stashed by WithRunID, if any. A
// Backend.Run invoked directly (not through a Gateway) will not find one;
// callers should fall back to minting their own.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDContextKey{}).(string)
	return id, ok
}

// eventChannelCapacity is the bounded producer→consumer channel capacity
// shared by every backend's run pipeline.
const eventChannelCapacity = 32

// CompletionResult is the value a backend's completion task delivers to the
// gate once the native stream has ended and the child's outcome is known.
type CompletionResult struct {
	Completion Completion
	Err        error
}

// EventSink is the producer side of a run's bounded event channel. A
// backend's draining goroutine calls Send for every mapped, bounds-enforced
// event. Send reports false once the consumer has abandoned the stream
// (RunHandle.CloseEvents was called); the backend MUST keep pulling from
// its native stream in that case (to avoid leaking the child) but may stop
// calling Send.
type EventSink struct {
	out     chan Event
	abandon <-chan struct{}
}

// Send attempts to deliver ev to the consumer. It reports false if the
// consumer has abandoned the event stream.
func (s *EventSink) Send(ev Event) bool {
	select {
	case s.out <- ev:
		return true
	case <-s.abandon:
		return false
	}
}

// Close signals end-of-sequence on the event stream. The backend's
// draining goroutine MUST call this exactly once, after its native stream
// has ended, regardless of whether forwarding was still active.
func (s *EventSink) Close() { close(s.out) }

// RunHandle is the aggregate of a run's event stream and completion
// future. Per DR-0012, Completion does not resolve until the consumer has
// drained Events to end-of-sequence (Recv returns ok=false) or has called
// CloseEvents to abandon the stream early.
type RunHandle struct {
	runID string

	events  chan Event
	abandon chan struct{}

	abandonOnce    sync.Once
	eventsDoneOnce sync.Once
	eventsDone     chan struct{}

	ready         chan struct{}
	readyOnce     sync.Once
	completion    Completion
	completionErr error

	cancel context.CancelFunc
}

// NewGatedRunHandle constructs a RunHandle together with the producer-side
// EventSink and completion-result channel a backend uses to drive it. cancel
// is invoked when the full handle is closed (Close), and should cancel the
// context under which the child process was spawned so it is killed.
func NewGatedRunHandle(runID string, cancel context.CancelFunc) (handle *RunHandle, sink *EventSink, completionCh chan<- CompletionResult) {
	h := &RunHandle{
		runID:      runID,
		events:     make(chan Event, eventChannelCapacity),
		abandon:    make(chan struct{}),
		eventsDone: make(chan struct{}),
		ready:      make(chan struct{}),
		cancel:     cancel,
	}
	resultCh := make(chan CompletionResult, 1)

	go h.awaitCompletion(resultCh)

	return h, &EventSink{out: h.events, abandon: h.abandon}, resultCh
}

func (h *RunHandle) awaitCompletion(resultCh <-chan CompletionResult) {
	result := <-resultCh
	<-h.eventsDone
	h.completion = result.Completion
	h.completionErr = result.Err
	h.readyOnce.Do(func() { close(h.ready) })
}

// RunID returns the correlation id assigned to this run.
func (h *RunHandle) RunID() string { return h.runID }

// Recv returns the next event, blocking until one is available, the stream
// ends (ok=false, err=nil), or ctx is done. Once Recv observes end of
// sequence, it signals the completion gate.
func (h *RunHandle) Recv(ctx context.Context) (ev Event, ok bool, err error) {
	select {
	case ev, open := <-h.events:
		if !open {
			h.signalEventsDone()
			return Event{}, false, nil
		}
		return ev, true, nil
	case <-ctx.Done():
		return Event{}, false, ctx.Err()
	}
}

// CloseEvents abandons the event stream without draining it to completion.
// This is the Go substitute for dropping the Rust event stream: it signals
// the completion gate immediately but — unlike Close — does not cancel the
// run, so the backend keeps draining its native stream to avoid leaking
// the child process.
func (h *RunHandle) CloseEvents() {
	h.abandonOnce.Do(func() { close(h.abandon) })
	h.signalEventsDone()
}

func (h *RunHandle) signalEventsDone() {
	h.eventsDoneOnce.Do(func() { close(h.eventsDone) })
}

// Close abandons the event stream and cancels the run, killing the child
// process. This is the Go substitute for dropping the entire RunHandle.
func (h *RunHandle) Close() {
	h.CloseEvents()
	if h.cancel != nil {
		h.cancel()
	}
}

// Completion blocks until the run's completion result is available, or
// until ctx is done. It may be called more than once; after the first
// successful resolution the cached result is returned immediately.
func (h *RunHandle) Completion(ctx context.Context) (Completion, error) {
	select {
	case <-h.ready:
		return h.completion, h.completionErr
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}
