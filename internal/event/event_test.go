package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dayplan/internal/event"
)

func TestNewAndValidate(t *testing.T) {
	start := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	e := event.New("standup", start, start.Add(30*time.Minute), "work")
	require.NotEmpty(t, e.ID)
	require.NoError(t, e.Validate())
	require.Equal(t, 30*time.Minute, e.Duration())

	reminder := event.New("break", start, start, "work")
	require.NoError(t, reminder.Validate(), "zero duration is a reminder")
	require.Zero(t, reminder.Duration())

	backwards := event.New("broken", start, start.Add(-time.Minute), "work")
	require.ErrorIs(t, backwards.Validate(), event.ErrInvalidRange)

	require.NotEqual(t, e.ID, reminder.ID)
}

func TestPatchApply(t *testing.T) {
	start := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	e := event.New("standup", start, start.Add(time.Hour), "work")

	title := "standup (moved)"
	done := true
	newEnd := start.Add(30 * time.Minute)
	now := start.Add(2 * time.Hour)

	got, err := event.Patch{Title: &title, Done: &done, End: &newEnd}.Apply(e, now)
	require.NoError(t, err)
	require.Equal(t, title, got.Title)
	require.True(t, got.Done)
	require.Equal(t, newEnd, got.End)
	require.Equal(t, now, got.ModifiedAt)
	require.Equal(t, e.Start, got.Start, "unset fields stay put")
	require.Equal(t, e.Notes, got.Notes)

	badEnd := start.Add(-time.Hour)
	_, err = event.Patch{End: &badEnd}.Apply(e, now)
	require.ErrorIs(t, err, event.ErrInvalidRange)
}
