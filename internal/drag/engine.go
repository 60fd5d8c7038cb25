// Package drag turns a continuous pointer time into a proposed event time
// range. It performs no rendering and never mutates events; the caller turns
// an accepted proposal into an edit command.
package drag

import (
	"time"

	"dayplan/internal/event"
	"dayplan/internal/util"
)

// Op selects which part of the event the pointer grabbed.
type Op int

const (
	// Move shifts start and end by the same delta, preserving duration.
	Move Op = iota
	// ResizeStart moves only the start; it cannot cross the end.
	ResizeStart
	// ResizeEnd moves only the end; it cannot cross the start.
	ResizeEnd
	// Clone behaves like Move but targets a copy with a fresh identifier.
	Clone
)

// Mode selects how pointer times are quantized.
type Mode int

const (
	// Snap rounds to the nearest multiple of the configured granularity.
	Snap Mode = iota
	// Precision passes the pointer time through at full resolution.
	Precision
)

const (
	DefaultGranularity = 15 * time.Minute
	// Quantum is the minimal duration a resize may shrink an event to.
	Quantum = time.Minute
)

type Engine struct {
	granularity time.Duration
}

func New(granularity time.Duration) *Engine {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return &Engine{granularity: granularity}
}

// Proposal is a candidate (start, end) pair. Valid is false when the drag
// would violate an invariant, e.g. relocate the event across midnight; an
// invalid proposal must not be committed.
type Proposal struct {
	Start time.Time
	End   time.Time
	Valid bool
}

// Propose computes the time range the event would get if the grabbed part
// were released at the given pointer time.
//
// For Move and Clone, the pointer time is the new start. Resizes clamp the
// grabbed endpoint one quantum short of the opposite endpoint instead of
// letting the range invert.
func (e *Engine) Propose(ev event.Event, pointer time.Time, op Op, mode Mode) Proposal {
	t := e.resolve(pointer, mode)

	switch op {
	case Move, Clone:
		end := t.Add(ev.Duration())
		return Proposal{Start: t, End: end, Valid: util.SameDay(t, end)}
	case ResizeStart:
		if latest := ev.End.Add(-Quantum); t.After(latest) {
			t = latest
		}
		return Proposal{Start: t, End: ev.End, Valid: util.SameDay(t, ev.End)}
	case ResizeEnd:
		if earliest := ev.Start.Add(Quantum); t.Before(earliest) {
			t = earliest
		}
		return Proposal{Start: ev.Start, End: t, Valid: util.SameDay(ev.Start, t)}
	}
	return Proposal{}
}

func (e *Engine) resolve(pointer time.Time, mode Mode) time.Time {
	if mode == Precision {
		return pointer
	}
	return snap(pointer, e.granularity)
}

// snap rounds to the nearest grid multiple, half-up: at granularity 15m,
// 10:07 comes back as 10:00 and 10:08 as 10:15.
func snap(t time.Time, granularity time.Duration) time.Time {
	g := granularity.Nanoseconds()
	n := t.UnixNano()
	snapped := ((n + g/2) / g) * g
	return time.Unix(0, snapped).In(t.Location())
}
