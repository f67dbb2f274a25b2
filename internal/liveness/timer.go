package liveness

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HardwareTimer models the board's reset timer: an external mechanism that
// forcibly restarts the process when the deadline passes without a feed.
// Suspend does not disarm it completely; the absolute ceiling still applies.
type HardwareTimer interface {
	Arm(timeout time.Duration)
	Feed()
	Suspend()
	Resume()
	Disarm()
}

// suspendCeilingFactor bounds how long a suspended context may stay off the
// roster before the backstop fires anyway.
const suspendCeilingFactor = 5

// ProcessTimer is the hosted-platform stand-in for a hardware watchdog: a
// deadline goroutine that force-exits the process, relying on the service
// supervisor to relaunch the binary.
type ProcessTimer struct {
	mu      sync.Mutex
	logger  *zap.Logger
	timeout time.Duration
	timer   *time.Timer
	exit    func(int)
}

func NewProcessTimer(logger *zap.Logger) *ProcessTimer {
	return &ProcessTimer{logger: logger, exit: os.Exit}
}

func (t *ProcessTimer) Arm(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timeout = timeout
	t.timer = time.AfterFunc(timeout, t.expire)
	t.logger.Info("Watchdog timer armed", zap.Duration("timeout", timeout))
}

func (t *ProcessTimer) Feed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Reset(t.timeout)
	}
}

func (t *ProcessTimer) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Reset(t.timeout * suspendCeilingFactor)
	}
}

func (t *ProcessTimer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Reset(t.timeout)
	}
}

func (t *ProcessTimer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *ProcessTimer) expire() {
	t.logger.Error("Watchdog deadline expired, forcing restart")
	// Sync is best-effort; the process is going down either way.
	_ = t.logger.Sync()
	t.exit(1)
}
