// Package app is the surface the UI collaborator talks to: range queries with
// layout, drag proposals, and command submission with undo/redo.
package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"dayplan/internal/drag"
	"dayplan/internal/event"
	"dayplan/internal/history"
	"dayplan/internal/hook"
	"dayplan/internal/index"
	"dayplan/internal/notify"
	"dayplan/internal/scheduler"
	"dayplan/internal/storage"
	"dayplan/internal/util"
)

// Placed pairs an event with its column assignment for rendering.
type Placed struct {
	Event  event.Event
	Layout index.Assignment
}

type App struct {
	History   *history.History
	Bridge    *storage.Bridge
	Engine    *drag.Engine
	Scheduler *scheduler.Scheduler
	Hook      *hook.Executor
}

func New(bridge *storage.Bridge, engine *drag.Engine, schedConfig scheduler.Config, notifier notify.Notifier, hookExec *hook.Executor) *App {
	h := history.New(bridge)
	a := &App{
		History:   h,
		Bridge:    bridge,
		Engine:    engine,
		Scheduler: scheduler.New(schedConfig, h, notifier),
		Hook:      hookExec,
	}
	a.History.OnChange(func() {
		if a.Scheduler != nil {
			a.Scheduler.Wake()
		}
		if a.Hook != nil {
			a.Hook.ReportUpdated()
		}
	})
	return a
}

// Load opens the calendar directory, seeds the model and reports per-file
// parse failures without failing the whole load.
func (a *App) Load(ctx context.Context) (storage.LoadReport, error) {
	report, err := a.Bridge.Load(ctx)
	if err != nil {
		return report, err
	}
	a.History.Seed(report.Events)
	log.Infof("loaded %d event(s) (%d file(s) from cache, %d parsed, %d failed)",
		len(report.Events), report.FromCache, report.Parsed, len(report.Failed))
	return report, nil
}

// EventsInRange returns the events overlapping [from, to) along with their
// column assignments. Layout is recomputed per day from the events of that
// whole day, so an event half outside the window still gets its true columns.
func (a *App) EventsInRange(from, to time.Time) []Placed {
	events := a.History.EventsInRange(from, to)
	assignments := make(map[string]index.Assignment, len(events))

	for day := util.TruncateToDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		dayEvents := a.History.EventsInRange(day, day.AddDate(0, 0, 1))
		ivs := make([]index.Interval, 0, len(dayEvents))
		for _, e := range dayEvents {
			ivs = append(ivs, index.Interval{ID: e.ID, Start: e.Start, End: e.End})
		}
		for id, as := range index.Columns(ivs) {
			assignments[id] = as
		}
	}

	out := make([]Placed, 0, len(events))
	for _, e := range events {
		as, ok := assignments[e.ID]
		if !ok {
			as = index.Assignment{Column: 0, Columns: 1}
		}
		out = append(out, Placed{Event: e, Layout: as})
	}
	return out
}

// ProposeDrag resolves a pointer time against the event's current range.
func (a *App) ProposeDrag(id string, pointer time.Time, op drag.Op, mode drag.Mode) (drag.Proposal, error) {
	e, err := a.History.Get(id)
	if err != nil {
		return drag.Proposal{}, err
	}
	return a.Engine.Propose(e, pointer, op, mode), nil
}

// Commit submits one edit command.
func (a *App) Commit(ctx context.Context, cmd history.Command) error {
	return a.History.Commit(ctx, cmd)
}

func (a *App) Undo(ctx context.Context) error { return a.History.Undo(ctx) }

func (a *App) Redo(ctx context.Context) error { return a.History.Redo(ctx) }

// CloneAt materializes an accepted Clone proposal: a new event with a fresh
// identifier and the dragged time range, committed as a create so it composes
// with undo; the source event is untouched.
func (a *App) CloneAt(ctx context.Context, id string, pointer time.Time, mode drag.Mode) (event.Event, error) {
	src, err := a.History.Get(id)
	if err != nil {
		return event.Event{}, err
	}
	prop := a.Engine.Propose(src, pointer, drag.Clone, mode)
	if !prop.Valid {
		return event.Event{}, fmt.Errorf("clone of %q: %w", id, event.ErrInvalidRange)
	}
	clone := src
	clone.ID = event.NewID()
	clone.Start = prop.Start
	clone.End = prop.End
	now := time.Now()
	clone.CreatedAt = now
	clone.ModifiedAt = now
	if err := a.History.Commit(ctx, history.NewCreate(clone)); err != nil {
		return event.Event{}, err
	}
	return clone, nil
}

// RetryPersistence replays flushes that previously failed.
func (a *App) RetryPersistence(ctx context.Context) error {
	return a.Bridge.RetryFailed(ctx)
}

func (a *App) Close() {
	if a.Hook != nil {
		a.Hook.Stop()
	}
}
