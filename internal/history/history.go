// Package history owns the in-memory event set and the undo/redo stacks.
// Every model mutation, user-driven or replayed, goes through Commit, Undo or
// Redo, which keep the interval index in lockstep and write changes through
// to persistence.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"dayplan/internal/event"
	"dayplan/internal/index"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Flusher writes one applied change through to durable storage. A nil Before
// means the event was created, a nil After that it was deleted. Flush errors
// do not roll the in-memory change back; the caller sees them and the change
// stays queued for retry inside the flusher.
type Flusher interface {
	Flush(ctx context.Context, before, after *event.Event) error
}

// History is the only writer of the event arena and the interval index.
// Reads may come from any goroutine; the internal mutex serializes access.
type History struct {
	mu        sync.RWMutex
	events    map[string]event.Event
	idx       *index.Tree
	flusher   Flusher
	listeners []func()
	undo      []Command
	redo      []Command
}

func New(flusher Flusher) *History {
	return &History{
		events:  make(map[string]event.Event),
		idx:     index.NewTree(),
		flusher: flusher,
	}
}

// OnChange registers a callback invoked after every successful in-memory
// mutation (commit, undo, redo, seed). Callbacks must be fast and must not
// call back into History.
func (h *History) OnChange(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Seed replaces the whole event set, e.g. after loading calendar files.
// It is not an edit: both stacks are cleared.
func (h *History) Seed(events []event.Event) {
	h.mu.Lock()
	h.events = make(map[string]event.Event, len(events))
	h.idx = index.NewTree()
	for _, e := range events {
		if _, ok := h.events[e.ID]; ok {
			log.Warnf("duplicate event %q while seeding, keeping first", e.ID)
			continue
		}
		h.events[e.ID] = e
		h.idx.Insert(intervalOf(e))
	}
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
	h.mu.Unlock()
	h.notify()
}

// Commit validates the command, applies its forward effect to the model and
// index, pushes it on the undo stack and clears the redo stack, then writes
// it through to persistence. A persistence error is returned but the edit
// stays applied and undoable.
func (h *History) Commit(ctx context.Context, cmd Command) error {
	h.mu.Lock()
	if err := h.validate(cmd); err != nil {
		h.mu.Unlock()
		return err
	}
	h.apply(cmd)
	h.undo = append(h.undo, cmd)
	h.redo = h.redo[:0]
	h.mu.Unlock()
	h.notify()

	return h.flush(ctx, cmd)
}

// Undo reverts the most recent command and moves it onto the redo stack.
func (h *History) Undo(ctx context.Context) error {
	h.mu.Lock()
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return ErrNothingToUndo
	}
	cmd := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	inv := cmd.inverse()
	h.apply(inv)
	h.redo = append(h.redo, cmd)
	h.mu.Unlock()
	h.notify()

	return h.flush(ctx, inv)
}

// Redo reapplies the most recently undone command.
func (h *History) Redo(ctx context.Context) error {
	h.mu.Lock()
	if len(h.redo) == 0 {
		h.mu.Unlock()
		return ErrNothingToRedo
	}
	cmd := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.apply(cmd)
	h.undo = append(h.undo, cmd)
	h.mu.Unlock()
	h.notify()

	return h.flush(ctx, cmd)
}

// Get returns the current state of one event.
func (h *History) Get(id string) (event.Event, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.events[id]
	if !ok {
		return event.Event{}, fmt.Errorf("event %q: %w", id, event.ErrNotFound)
	}
	return e, nil
}

// EventsInRange returns the events overlapping [from, to), ordered by start
// time then id.
func (h *History) EventsInRange(from, to time.Time) []event.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ivs := h.idx.Query(from, to)
	out := make([]event.Event, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, h.events[iv.ID])
	}
	return out
}

// All returns every event, unordered.
func (h *History) All() []event.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]event.Event, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e)
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

func (h *History) validate(cmd Command) error {
	if cmd.After != nil {
		if err := cmd.After.Validate(); err != nil {
			return err
		}
	}
	_, exists := h.events[cmd.EventID]
	if cmd.Before == nil {
		if exists {
			return fmt.Errorf("create %q: %w", cmd.EventID, event.ErrDuplicateID)
		}
		return nil
	}
	if !exists {
		return fmt.Errorf("%s %q: %w", cmd.Kind, cmd.EventID, event.ErrNotFound)
	}
	return nil
}

// apply mutates the arena and index; caller holds the lock and has validated.
func (h *History) apply(cmd Command) {
	if cmd.Before != nil {
		h.idx.Remove(intervalOf(*cmd.Before))
		delete(h.events, cmd.EventID)
	}
	if cmd.After != nil {
		h.events[cmd.EventID] = *cmd.After
		h.idx.Insert(intervalOf(*cmd.After))
	}
}

func (h *History) flush(ctx context.Context, cmd Command) error {
	if h.flusher == nil {
		return nil
	}
	if err := h.flusher.Flush(ctx, cmd.Before, cmd.After); err != nil {
		log.Errorf("failed to persist %s of %q: %v", cmd.Kind, cmd.EventID, err)
		return err
	}
	return nil
}

func (h *History) notify() {
	h.mu.RLock()
	listeners := make([]func(), len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

func intervalOf(e event.Event) index.Interval {
	return index.Interval{ID: e.ID, Start: e.Start, End: e.End}
}
