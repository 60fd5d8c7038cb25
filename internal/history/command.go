package history

import (
	"time"

	"dayplan/internal/event"
)

// Kind names the user-visible mutation a command performs.
type Kind int

const (
	KindCreate Kind = iota
	KindDelete
	KindMove
	KindResize
	KindRetitle
	KindMarkComplete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindDelete:
		return "delete"
	case KindMove:
		return "move"
	case KindResize:
		return "resize"
	case KindRetitle:
		return "retitle"
	case KindMarkComplete:
		return "mark-complete"
	}
	return "unknown"
}

// Command captures one reversible mutation. Before and After hold the full
// pre- and post-state of the affected event, so inverting a command never
// consults the model: the inverse is just the swap. A nil Before means the
// event did not exist (create); a nil After means it no longer does (delete).
type Command struct {
	Kind    Kind
	EventID string
	Before  *event.Event
	After   *event.Event
}

func (c Command) inverse() Command {
	return Command{Kind: c.Kind, EventID: c.EventID, Before: c.After, After: c.Before}
}

func NewCreate(e event.Event) Command {
	return Command{Kind: KindCreate, EventID: e.ID, After: &e}
}

func NewDelete(before event.Event) Command {
	return Command{Kind: KindDelete, EventID: before.ID, Before: &before}
}

// NewMove shifts the event to a new start, preserving duration.
func NewMove(before event.Event, newStart time.Time, now time.Time) Command {
	after := before
	after.End = newStart.Add(before.Duration())
	after.Start = newStart
	after.ModifiedAt = now
	return Command{Kind: KindMove, EventID: before.ID, Before: &before, After: &after}
}

// NewResize replaces both endpoints; the caller (drag engine) has already
// enforced end >= start.
func NewResize(before event.Event, newStart, newEnd time.Time, now time.Time) Command {
	after := before
	after.Start = newStart
	after.End = newEnd
	after.ModifiedAt = now
	return Command{Kind: KindResize, EventID: before.ID, Before: &before, After: &after}
}

// NewRetitle updates the textual fields.
func NewRetitle(before event.Event, title, notes string, now time.Time) Command {
	after := before
	after.Title = title
	after.Notes = notes
	after.ModifiedAt = now
	return Command{Kind: KindRetitle, EventID: before.ID, Before: &before, After: &after}
}

func NewMarkComplete(before event.Event, done bool, now time.Time) Command {
	after := before
	after.Done = done
	after.ModifiedAt = now
	return Command{Kind: KindMarkComplete, EventID: before.ID, Before: &before, After: &after}
}
