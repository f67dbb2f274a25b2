package liveness

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RestartRequester is the capability to request a full device restart after
// a delay. Injected wherever a restart must be triggered so no component
// holds a raw callback into the control loop.
type RestartRequester interface {
	RequestRestart(delay time.Duration, reason string)
}

type Config struct {
	// Timeout is the hardware-enforced reset deadline.
	Timeout time.Duration

	// FeedInterval throttles deadline resets; feeding more often is a no-op.
	FeedInterval time.Duration

	// MaxConsecutiveErrors is the one-way restart trigger threshold.
	MaxConsecutiveErrors int

	// ErrorCooldown clears the consecutive tally after a quiet period.
	ErrorCooldown time.Duration
}

// Supervisor reconciles the hardware-enforced reset timer with software
// error accounting. Armed is the normal state; Suspend/Resume bracket
// operations that must block longer than the timer tolerates.
type Supervisor struct {
	mu     sync.Mutex
	cfg    Config
	timer  HardwareTimer
	logger *zap.Logger
	now    func() time.Time

	start     time.Time
	lastFeed  time.Time
	suspended bool

	totalErrors       int
	consecutiveErrors int
	lastError         string
	lastErrorTime     time.Time

	restartPending bool
}

// NewSupervisor arms the hardware timer and starts the uptime clock.
// now may be nil; it exists so tests can drive time explicitly.
func NewSupervisor(cfg Config, timer HardwareTimer, logger *zap.Logger, now func() time.Time) *Supervisor {
	if now == nil {
		now = time.Now
	}
	s := &Supervisor{
		cfg:      cfg,
		timer:    timer,
		logger:   logger,
		now:      now,
		start:    now(),
		lastFeed: now(),
	}
	s.timer.Arm(cfg.Timeout)
	return s
}

// Feed resets the hardware deadline, throttled to one real reset per
// FeedInterval. It also evaluates the error cooldown: a consecutive tally
// with no new errors for ErrorCooldown is cleared. Feeding never clears a
// pending restart decision.
func (s *Supervisor) Feed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastFeed) < s.cfg.FeedInterval {
		return
	}

	if !s.suspended {
		s.timer.Feed()
	}
	s.lastFeed = now

	if s.consecutiveErrors > 0 && now.Sub(s.lastErrorTime) > s.cfg.ErrorCooldown {
		s.logger.Info("Error cooldown complete, clearing consecutive errors",
			zap.Int("cleared", s.consecutiveErrors))
		s.consecutiveErrors = 0
	}
}

// Suspend removes the control loop from hardware monitoring for a
// known-long operation. Every Suspend must be paired with a Resume; an
// unmatched suspend that outlives the timer's absolute ceiling is fatal and
// is the caller's defect, not a recoverable condition.
func (s *Supervisor) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("Suspending watchdog monitoring")
	s.suspended = true
	s.timer.Suspend()
}

// Resume re-establishes monitoring and immediately resets the deadline.
func (s *Supervisor) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("Resuming watchdog monitoring")
	s.suspended = false
	s.timer.Resume()
	s.lastFeed = s.now()
}

// RegisterError records an operational failure. Reaching the configured
// threshold latches the restart recommendation; the latch is one-way and is
// acted upon exactly once by the control loop.
func (s *Supervisor) RegisterError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalErrors++
	s.consecutiveErrors++
	s.lastError = message
	s.lastErrorTime = s.now()

	s.logger.Warn("Error registered",
		zap.String("error", message),
		zap.Int("total", s.totalErrors),
		zap.Int("consecutive", s.consecutiveErrors))

	if s.consecutiveErrors >= s.cfg.MaxConsecutiveErrors && !s.restartPending {
		s.logger.Error("Maximum consecutive errors reached",
			zap.Int("threshold", s.cfg.MaxConsecutiveErrors))
		s.restartPending = true
	}
}

// ClearErrors resets the consecutive tally after an explicit recovery such
// as a successful reconnection. The restart latch, once set, stays set.
func (s *Supervisor) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors = 0
}

// ShouldRestart reports whether the error threshold has been reached and
// not yet acted upon.
func (s *Supervisor) ShouldRestart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartPending
}

// UptimeSeconds is the whole-second uptime since supervisor start.
func (s *Supervisor) UptimeSeconds() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.now().Sub(s.start) / time.Second)
}

// Stats is a point-in-time view of the error accounting for status reports.
type Stats struct {
	UptimeSeconds     int64  `json:"uptimeSeconds"`
	TotalErrors       int    `json:"errorCount"`
	ConsecutiveErrors int    `json:"consecutiveErrors"`
	LastError         string `json:"lastError"`
	Suspended         bool   `json:"suspended"`
}

func (s *Supervisor) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		UptimeSeconds:     int64(s.now().Sub(s.start) / time.Second),
		TotalErrors:       s.totalErrors,
		ConsecutiveErrors: s.consecutiveErrors,
		LastError:         s.lastError,
		Suspended:         s.suspended,
	}
}
