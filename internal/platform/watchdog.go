package platform

import (
	"sync"
	"time"
)

// DefaultWatchdogTimeout is how long the realtime channel may stay down
// before a communication failure is logged.
const DefaultWatchdogTimeout = 30 * time.Second

// watchdogMessage is logged when the channel stays down past the timeout.
const watchdogMessage = "error establishing the socket with Abode"

// Watchdog reports a persistent realtime channel outage.
//
// Disconnected arms a timer; Connected disarms it. If the timer fires the
// failure is logged at error level and counted. The watchdog never retries
// anything itself.
type Watchdog struct {
	timeout time.Duration
	logger  Logger

	mu        sync.Mutex
	timer     *time.Timer
	connected bool
	failures  int
	stopped   bool
}

// NewWatchdog creates a disarmed watchdog.
func NewWatchdog(timeout time.Duration, logger Logger) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultWatchdogTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Watchdog{timeout: timeout, logger: logger}
}

// Connected records that the channel is up and disarms the timer.
func (w *Watchdog) Connected() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.connected = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Disconnected records that the channel is down and arms the timer if it
// is not already running.
func (w *Watchdog) Disconnected() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.connected = false
	if w.stopped || w.timer != nil {
		return
	}
	w.timer = time.AfterFunc(w.timeout, w.fire)
}

func (w *Watchdog) fire() {
	w.mu.Lock()
	w.timer = nil
	if w.connected || w.stopped {
		w.mu.Unlock()
		return
	}
	w.failures++
	w.mu.Unlock()

	w.logger.Error(watchdogMessage, "timeout", w.timeout.String())
}

// Failures returns how many times the watchdog has fired.
func (w *Watchdog) Failures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}

// Stop disarms the watchdog permanently.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
