package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dayplan/internal/event"
)

type sliceSource []event.Event

func (s sliceSource) All() []event.Event { return s }

type capturingNotifier struct {
	mu    sync.Mutex
	fired []string
}

func (n *capturingNotifier) Notify(title, _ string, _ time.Time) {
	n.mu.Lock()
	n.fired = append(n.fired, title)
	n.mu.Unlock()
}

func (n *capturingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.fired...)
}

func at(h, m int) time.Time {
	return time.Date(2026, 4, 10, h, m, 0, 0, time.UTC)
}

func testEvent(id, title string, start time.Time) event.Event {
	return event.Event{ID: id, Title: title, Start: start, End: start.Add(30 * time.Minute)}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecheckFiresDueOnce(t *testing.T) {
	src := sliceSource{
		testEvent("a", "due", at(9, 0)),
		testEvent("b", "later", at(11, 0)),
	}
	n := &capturingNotifier{}
	s := New(Config{Enabled: true}, src, n)
	s.started = at(8, 0)
	s.now = fixedClock(at(9, 0))

	s.Recheck()
	require.Equal(t, []string{"due"}, n.titles())

	s.Recheck()
	require.Equal(t, []string{"due"}, n.titles(), "recheck without clock advance is a no-op")

	s.now = fixedClock(at(11, 0))
	s.Recheck()
	require.Equal(t, []string{"due", "later"}, n.titles())
}

func TestRecheckSkipsEventsBeforeStartup(t *testing.T) {
	src := sliceSource{
		testEvent("old", "yesterday", at(9, 0).Add(-24*time.Hour)),
		testEvent("new", "today", at(9, 0)),
	}
	n := &capturingNotifier{}
	s := New(Config{Enabled: true}, src, n)
	s.started = at(8, 0)
	s.now = fixedClock(at(9, 30))

	s.Recheck()
	require.Equal(t, []string{"today"}, n.titles())
}

func TestRecheckDisabledStillMarks(t *testing.T) {
	src := sliceSource{testEvent("a", "due", at(9, 0))}
	n := &capturingNotifier{}
	s := New(Config{Enabled: false}, src, n)
	s.started = at(8, 0)
	s.now = fixedClock(at(9, 0))

	s.Recheck()
	require.Empty(t, n.titles())

	s.enabled = true
	s.Recheck()
	require.Empty(t, n.titles(), "a marked event is not replayed after enabling")
}

func TestNextWake(t *testing.T) {
	src := sliceSource{
		testEvent("a", "past", at(8, 0)),
		testEvent("b", "soon", at(10, 0)),
		testEvent("c", "later", at(12, 0)),
	}
	s := New(Config{Enabled: true}, src, &capturingNotifier{})
	s.now = fixedClock(at(9, 0))

	target, ok := s.nextWake()
	require.True(t, ok)
	require.Equal(t, at(10, 0), target)

	s.notified["b"] = struct{}{}
	target, ok = s.nextWake()
	require.True(t, ok)
	require.Equal(t, at(12, 0), target)

	s.notified["c"] = struct{}{}
	_, ok = s.nextWake()
	require.False(t, ok, "past events never produce a wake target")
}

func TestRunReturnsOnCancel(t *testing.T) {
	s := New(Config{Enabled: true}, sliceSource{}, &capturingNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunNotifiesOnWake(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	src := sliceSource{testEvent("a", "due", start)}
	n := &capturingNotifier{}
	s := New(Config{Enabled: true}, src, n)
	s.started = start.Add(-time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got := n.titles()
		return len(got) == 1 && got[0] == "due"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWakeNeverBlocks(t *testing.T) {
	s := New(Config{Enabled: true}, sliceSource{}, &capturingNotifier{})
	for i := 0; i < 100; i++ {
		s.Wake()
	}
}
