// Package scheduler fires one notification per upcoming event start. It keeps
// a single pending-wake time, the minimum future begin among unnotified
// events, and sleeps until then; any model mutation wakes it early. Every
// wake re-derives everything from wall-clock now, so clock jumps (DST, manual
// changes) cost at most one extra recheck and never a missed or duplicated
// notification.
package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"dayplan/internal/event"
	"dayplan/internal/notify"
)

// clockTolerance is how much earlier than its target a timer wake may arrive
// before it is logged as a clock anomaly.
const clockTolerance = 2 * time.Second

// Source exposes the current event set. The scheduler never caches it: edits
// may have happened between the wake and the recheck.
type Source interface {
	All() []event.Event
}

type Config struct {
	Enabled bool
}

type Scheduler struct {
	source   Source
	notifier notify.Notifier
	enabled  bool

	// now is replaceable in tests
	now func() time.Time

	wake chan struct{}

	mu       sync.Mutex
	started  time.Time
	notified map[string]struct{}
}

func New(config Config, source Source, notifier notify.Notifier) *Scheduler {
	return &Scheduler{
		source:   source,
		notifier: notifier,
		enabled:  config.Enabled,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		notified: make(map[string]struct{}),
	}
}

// Wake interrupts the current wait; called on every model mutation that could
// change the next due time. Never blocks.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done. It is the only long-lived suspension in the
// core; everything else completes in bounded time.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.started.IsZero() {
		s.started = s.now()
	}
	s.mu.Unlock()

	s.Recheck()

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer stopTimer(timer)

	for {
		target, ok := s.nextWake()
		if !ok {
			// nothing upcoming, sleep until a mutation wakes us
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
		} else {
			d := target.Sub(s.now())
			if d < 0 {
				d = 0
			}
			stopTimer(timer)
			timer.Reset(d)
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			case <-timer.C:
				if now := s.now(); now.Before(target.Add(-clockTolerance)) {
					// timer fired way before its target: the wall clock
					// jumped backwards under us, best effort detection
					log.Warnf("clock anomaly: woke at %s for target %s", now, target)
				}
			}
		}
		s.Recheck()
	}
}

// Recheck fires every due, not-yet-notified event and marks it. Calling it
// twice without clock advance or model change is a no-op.
func (s *Scheduler) Recheck() {
	events := s.source.All()
	now := s.now()

	s.mu.Lock()
	started := s.started
	if started.IsZero() {
		started = now
		s.started = started
	}
	var due []event.Event
	for _, e := range events {
		if e.Start.After(now) {
			continue
		}
		if e.Start.Before(started) {
			// was already in the past when we came up, not our notification
			continue
		}
		if _, done := s.notified[e.ID]; done {
			continue
		}
		s.notified[e.ID] = struct{}{}
		due = append(due, e)
	}
	s.mu.Unlock()

	if !s.enabled {
		return
	}
	for _, e := range due {
		log.Debugf("notifying %q (start %s)", e.ID, e.Start)
		s.notifier.Notify(e.Title, e.Notes, e.Start)
	}
}

// nextWake returns the minimum future begin among unnotified events.
func (s *Scheduler) nextWake() (time.Time, bool) {
	events := s.source.All()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	for _, e := range events {
		if !e.Start.After(now) {
			continue
		}
		if _, done := s.notified[e.ID]; done {
			continue
		}
		if next.IsZero() || e.Start.Before(next) {
			next = e.Start
		}
	}
	return next, !next.IsZero()
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
