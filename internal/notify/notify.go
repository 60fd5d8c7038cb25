// Package notify defines the outbound notification interface. Actual desktop
// delivery is an external collaborator; the core fires and forgets.
package notify

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type Notifier interface {
	// Notify delivers one pre-rendered message. Implementations must not
	// block; delivery confirmation is never awaited.
	Notify(title, body string, fireTime time.Time)
}

// LogNotifier writes notifications to the log, useful headless and in tests.
type LogNotifier struct{}

func (LogNotifier) Notify(title, body string, fireTime time.Time) {
	log.Infof("notification %q (due %s): %s", title, fireTime.Format(time.RFC3339), body)
}

// Func adapts a function to the Notifier interface.
type Func func(title, body string, fireTime time.Time)

func (f Func) Notify(title, body string, fireTime time.Time) {
	f(title, body, fireTime)
}
