// Package hook runs an optional user-configured command after model changes,
// e.g. to kick off a vdir sync tool. Runs are debounced: a burst of edits
// spawns a single invocation after the configured delay.
package hook

import (
	"os/exec"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	// Command and its arguments; empty disables the hook.
	Command []string
	// DelayMs is the debounce window in milliseconds.
	DelayMs int
}

const defaultDelay = 2 * time.Second

type Executor struct {
	command []string
	delay   time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func New(config Config) *Executor {
	delay := defaultDelay
	if config.DelayMs > 0 {
		delay = time.Duration(config.DelayMs) * time.Millisecond
	}
	return &Executor{command: config.Command, delay: delay}
}

// ReportUpdated schedules a hook run, replacing any not-yet-fired one.
func (e *Executor) ReportUpdated() {
	if len(e.command) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.delay, e.run)
}

// Stop cancels a pending run.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Executor) run() {
	cmd := exec.Command(e.command[0], e.command[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Errorf("post-update hook failed: %v (output: %s)", err, out)
		return
	}
	log.Debugf("post-update hook finished")
}
