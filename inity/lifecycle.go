package inity

import (
	"context"
	"errors"
	"sync"
)

// SaveState is the phase of a form submission.
type SaveState string

const (
	Idle   SaveState = "idle"
	Saving SaveState = "saving"
	Saved  SaveState = "saved"
	Error  SaveState = "error"
)

// Status is a snapshot of a Lifecycle.
type Status struct {
	State    SaveState `json:"state"`
	Message  string    `json:"message,omitempty"`
	Redirect string    `json:"redirect,omitempty"`
	Cycle    int       `json:"cycle"`
}

// Busy reports whether the submit control is disabled.
func (s Status) Busy() bool {
	return s.State == Saving
}

var ErrBusy = errors.New("inity: submission already in progress")

// Lifecycle tracks the save state of one island. Each submission is a cycle
// that enters Saving and then ends in exactly one of Saved or Error.
type Lifecycle struct {
	mu     sync.Mutex
	status Status
	subs   map[int]func(Status)
	nextID int
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		status: Status{State: Idle},
		subs:   make(map[int]func(Status)),
	}
}

func (l *Lifecycle) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Begin starts a new cycle. It fails while a cycle is still saving.
func (l *Lifecycle) Begin() (int, bool) {
	l.mu.Lock()
	if l.status.State == Saving {
		l.mu.Unlock()
		return 0, false
	}
	l.status = Status{State: Saving, Cycle: l.status.Cycle + 1}
	st := l.status
	l.mu.Unlock()

	l.publish(st)
	return st.Cycle, true
}

// Saved ends cycle successfully. Reports for another cycle, or for a cycle
// that already ended, are ignored.
func (l *Lifecycle) Saved(cycle int, redirect string) bool {
	return l.finish(cycle, Status{State: Saved, Redirect: redirect})
}

// Failed ends cycle with msg.
func (l *Lifecycle) Failed(cycle int, msg string) bool {
	return l.finish(cycle, Status{State: Error, Message: msg})
}

func (l *Lifecycle) finish(cycle int, next Status) bool {
	l.mu.Lock()
	if l.status.State != Saving || l.status.Cycle != cycle {
		l.mu.Unlock()
		return false
	}
	next.Cycle = cycle
	l.status = next
	l.mu.Unlock()

	l.publish(next)
	return true
}

// Subscribe registers fn for every state transition; the returned function
// removes it.
func (l *Lifecycle) Subscribe(fn func(Status)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Close drops every subscription.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	l.subs = make(map[int]func(Status))
	l.mu.Unlock()
}

func (l *Lifecycle) publish(st Status) {
	l.mu.Lock()
	fns := make([]func(Status), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// Reporter is how a submit handler reports progress for its cycle.
type Reporter interface {
	Saving()
	Saved(redirect string)
	Failed(err error)
}

// SubmitHandler receives the serialized document of an island. It reports
// through r and may use anchor to tell islands apart. The result must be
// reported before the handler returns: Submit ends the cycle as soon as the
// handler is done, so a report made later from another goroutine is dropped.
type SubmitHandler func(ctx context.Context, doc any, r Reporter, anchor Anchor)

type cycleReporter struct {
	l     *Lifecycle
	cycle int
}

// Saving is a no-op: Submit enters Saving before the handler runs.
func (r cycleReporter) Saving() {}

func (r cycleReporter) Saved(redirect string) {
	r.l.Saved(r.cycle, redirect)
}

func (r cycleReporter) Failed(err error) {
	msg := "Save failed"
	if err != nil {
		msg = err.Error()
	}
	r.l.Failed(r.cycle, msg)
}

const msgNoResult = "Save did not complete"

// Submit runs one cycle: Saving, then handler, then a terminal state. A
// handler that returns without reporting a result ends the cycle in Error.
func Submit(ctx context.Context, l *Lifecycle, handler SubmitHandler, doc any, anchor Anchor) (Status, error) {
	cycle, ok := l.Begin()
	if !ok {
		return l.Status(), ErrBusy
	}

	r := cycleReporter{l: l, cycle: cycle}
	if handler == nil {
		r.Failed(errors.New("no submit handler"))
		return l.Status(), nil
	}

	handler(ctx, doc, r, anchor)
	l.Failed(cycle, msgNoResult)

	return l.Status(), nil
}
