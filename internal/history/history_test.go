package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dayplan/internal/event"
	"dayplan/internal/history"
)

// recordingFlusher captures flushed changes and can be told to fail.
type recordingFlusher struct {
	calls []flushCall
	err   error
}

type flushCall struct {
	before *event.Event
	after  *event.Event
}

func (f *recordingFlusher) Flush(_ context.Context, before, after *event.Event) error {
	f.calls = append(f.calls, flushCall{before: before, after: after})
	return f.err
}

func at(h, m int) time.Time {
	return time.Date(2026, 4, 10, h, m, 0, 0, time.UTC)
}

func newEvent(t *testing.T, title string, start, end time.Time) event.Event {
	t.Helper()
	e := event.New(title, start, end, "work")
	require.NoError(t, e.Validate())
	return e
}

func TestCommitAndUndoCreate(t *testing.T) {
	ctx := context.Background()
	fl := &recordingFlusher{}
	h := history.New(fl)

	e := newEvent(t, "standup", at(9, 0), at(9, 30))
	require.NoError(t, h.Commit(ctx, history.NewCreate(e)))

	got, err := h.Get(e.ID)
	require.NoError(t, err)
	require.Equal(t, e, got)
	require.Len(t, h.EventsInRange(at(9, 0), at(10, 0)), 1)

	require.NoError(t, h.Undo(ctx))
	_, err = h.Get(e.ID)
	require.ErrorIs(t, err, event.ErrNotFound)
	require.Empty(t, h.EventsInRange(at(9, 0), at(10, 0)))

	require.NoError(t, h.Redo(ctx))
	got, err = h.Get(e.ID)
	require.NoError(t, err)
	require.Equal(t, e, got, "redo restores the exact state")

	// create, undo-as-delete, redo-as-create
	require.Len(t, fl.calls, 3)
	require.Nil(t, fl.calls[0].before)
	require.Nil(t, fl.calls[1].after)
	require.Nil(t, fl.calls[2].before)
}

func TestUndoMoveRestoresExactState(t *testing.T) {
	ctx := context.Background()
	h := history.New(nil)

	e := newEvent(t, "review", at(14, 0), at(15, 0))
	require.NoError(t, h.Commit(ctx, history.NewCreate(e)))

	now := at(16, 0)
	require.NoError(t, h.Commit(ctx, history.NewMove(e, at(10, 0), now)))

	moved, err := h.Get(e.ID)
	require.NoError(t, err)
	require.Equal(t, at(10, 0), moved.Start)
	require.Equal(t, at(11, 0), moved.End)
	require.Equal(t, now, moved.ModifiedAt)
	require.Empty(t, h.EventsInRange(at(14, 0), at(15, 0)), "index follows the move")

	require.NoError(t, h.Undo(ctx))
	got, err := h.Get(e.ID)
	require.NoError(t, err)
	require.Equal(t, e, got)
	require.Len(t, h.EventsInRange(at(14, 0), at(15, 0)), 1)
}

func TestCommitClearsRedoStack(t *testing.T) {
	ctx := context.Background()
	h := history.New(nil)

	e := newEvent(t, "focus", at(9, 0), at(11, 0))
	require.NoError(t, h.Commit(ctx, history.NewCreate(e)))
	require.NoError(t, h.Commit(ctx, history.NewRetitle(e, "deep focus", "", at(11, 0))))
	require.NoError(t, h.Undo(ctx))

	require.NoError(t, h.Commit(ctx, history.NewMarkComplete(e, true, at(12, 0))))
	require.ErrorIs(t, h.Redo(ctx), history.ErrNothingToRedo)

	got, err := h.Get(e.ID)
	require.NoError(t, err)
	require.True(t, got.Done)
	require.Equal(t, "focus", got.Title, "the undone retitle stays undone")
}

func TestEmptyStacks(t *testing.T) {
	ctx := context.Background()
	h := history.New(nil)
	require.ErrorIs(t, h.Undo(ctx), history.ErrNothingToUndo)
	require.ErrorIs(t, h.Redo(ctx), history.ErrNothingToRedo)
}

func TestCommitRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	h := history.New(nil)

	backwards := event.New("broken", at(10, 0), at(9, 0), "work")
	require.ErrorIs(t, h.Commit(ctx, history.NewCreate(backwards)), event.ErrInvalidRange)
	require.Zero(t, h.Len())

	e := newEvent(t, "standup", at(9, 0), at(9, 30))
	require.NoError(t, h.Commit(ctx, history.NewCreate(e)))
	require.ErrorIs(t, h.Commit(ctx, history.NewCreate(e)), event.ErrDuplicateID)

	ghost := newEvent(t, "ghost", at(12, 0), at(13, 0))
	err := h.Commit(ctx, history.NewMove(ghost, at(14, 0), at(14, 0)))
	require.ErrorIs(t, err, event.ErrNotFound)
	require.NoError(t, h.Undo(ctx), "only the valid create is undoable")
	require.ErrorIs(t, h.Undo(ctx), history.ErrNothingToUndo)
}

func TestSeedClearsStacks(t *testing.T) {
	ctx := context.Background()
	h := history.New(nil)

	e := newEvent(t, "standup", at(9, 0), at(9, 30))
	require.NoError(t, h.Commit(ctx, history.NewCreate(e)))

	other := newEvent(t, "planning", at(11, 0), at(12, 0))
	h.Seed([]event.Event{other})

	require.Equal(t, 1, h.Len())
	_, err := h.Get(e.ID)
	require.ErrorIs(t, err, event.ErrNotFound)
	require.ErrorIs(t, h.Undo(ctx), history.ErrNothingToUndo)
}

func TestFlushErrorKeepsChangeApplied(t *testing.T) {
	ctx := context.Background()
	fl := &recordingFlusher{err: errors.New("disk full")}
	h := history.New(fl)

	e := newEvent(t, "standup", at(9, 0), at(9, 30))
	err := h.Commit(ctx, history.NewCreate(e))
	require.ErrorContains(t, err, "disk full")

	got, getErr := h.Get(e.ID)
	require.NoError(t, getErr)
	require.Equal(t, e, got, "the edit stays applied")

	fl.err = nil
	require.NoError(t, h.Undo(ctx))
	require.Zero(t, h.Len(), "and stays undoable")
}

func TestOnChangeFiresPerMutation(t *testing.T) {
	ctx := context.Background()
	h := history.New(nil)

	var fired int
	h.OnChange(func() { fired++ })

	e := newEvent(t, "standup", at(9, 0), at(9, 30))
	require.NoError(t, h.Commit(ctx, history.NewCreate(e)))
	require.NoError(t, h.Undo(ctx))
	require.NoError(t, h.Redo(ctx))
	h.Seed(nil)
	require.Equal(t, 4, fired)

	require.ErrorIs(t, h.Undo(ctx), history.ErrNothingToUndo)
	require.Equal(t, 4, fired, "failed mutations do not notify")
}

func TestEventsInRangeOrdering(t *testing.T) {
	ctx := context.Background()
	h := history.New(nil)

	late := newEvent(t, "late", at(15, 0), at(16, 0))
	early := newEvent(t, "early", at(9, 0), at(10, 0))
	mid := newEvent(t, "mid", at(12, 0), at(13, 0))
	for _, e := range []event.Event{late, early, mid} {
		require.NoError(t, h.Commit(ctx, history.NewCreate(e)))
	}

	got := h.EventsInRange(at(0, 0), at(23, 59))
	require.Len(t, got, 3)
	require.Equal(t, []string{"early", "mid", "late"},
		[]string{got[0].Title, got[1].Title, got[2].Title})

	got = h.EventsInRange(at(10, 0), at(15, 0))
	require.Len(t, got, 1)
	require.Equal(t, "mid", got[0].Title)
}
