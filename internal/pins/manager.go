package pins

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mhartlieb/pincore/internal/hal"
	"go.uber.org/zap"
)

// Mode is the configured role of a pin.
type Mode int

const (
	ModeUnconfigured Mode = iota
	ModeDigitalOutput
	ModePWMOutput
	ModeDigitalInput
)

func (m Mode) String() string {
	switch m {
	case ModeDigitalOutput:
		return "digital"
	case ModePWMOutput:
		return "pwm"
	case ModeDigitalInput:
		return "input"
	default:
		return "unconfigured"
	}
}

var (
	ErrInvalidPin   = errors.New("pin is not on the whitelist")
	ErrInvalidValue = errors.New("value out of range")
	ErrPWMExhausted = errors.New("no free PWM channel")
	ErrReadFailed   = errors.New("digital read failed")
)

// record tracks one pin that has been configured during the current uptime.
type record struct {
	mode        Mode
	value       int
	initialized bool
}

// ChangeListener is notified after every successful state mutation. It must
// not block; the web surface uses it to push live updates.
type ChangeListener func(Snapshot)

// Manager owns the authoritative state of every addressable pin and is the
// only component that touches the hardware driver. All mutations go through
// its mutex so the network loop, web surface and console can share it.
type Manager struct {
	mu     sync.Mutex
	driver hal.PinDriver
	logger *zap.Logger

	safeSet map[int]struct{}

	states      map[int]*record
	pinChannel  map[int]int
	nextChannel int

	maxChannels  int
	pwmFrequency int

	listener ChangeListener
}

type Options struct {
	SafePins     []int
	PWMChannels  int
	PWMFrequency int
}

func NewManager(driver hal.PinDriver, opts Options, logger *zap.Logger) *Manager {
	safeSet := make(map[int]struct{}, len(opts.SafePins))
	for _, p := range opts.SafePins {
		safeSet[p] = struct{}{}
	}

	return &Manager{
		driver:       driver,
		logger:       logger,
		safeSet:      safeSet,
		states:       make(map[int]*record),
		pinChannel:   make(map[int]int),
		maxChannels:  opts.PWMChannels,
		pwmFrequency: opts.PWMFrequency,
	}
}

// SetChangeListener registers the live-update callback.
func (m *Manager) SetChangeListener(l ChangeListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// ValidPin reports whether pin is on the whitelist.
func (m *Manager) ValidPin(pin int) bool {
	_, ok := m.safeSet[pin]
	return ok
}

// SetDigital drives a whitelisted pin to 0 or 1, reconfiguring it for
// digital output first if needed. Switching from PWM re-initializes the pin;
// a record never claims two output modes at once.
func (m *Manager) SetDigital(pin, value int) error {
	if !m.ValidPin(pin) {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	if value != 0 && value != 1 {
		return fmt.Errorf("%w: digital value must be 0 or 1 (got %d)", ErrInvalidValue, value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[pin]
	if !ok || !state.initialized || state.mode != ModeDigitalOutput {
		if err := m.configureDigitalOutput(pin); err != nil {
			return err
		}
		state = m.states[pin]
	}

	if err := m.driver.WriteDigital(pin, hal.Level(value)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	state.value = value

	m.logger.Debug("Pin set", zap.Int("pin", pin), zap.Int("value", value))
	m.notifyLocked(pin, state)
	return nil
}

// GetDigital returns the cached value of a digital-output pin without a
// hardware read, so an output is never disturbed. Any other whitelisted pin
// is configured as an input and sampled live. Returns -1 for an invalid pin
// or a failed read.
func (m *Manager) GetDigital(pin int) int {
	if !m.ValidPin(pin) {
		return -1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.states[pin]; ok && state.initialized && state.mode == ModeDigitalOutput {
		return state.value
	}

	if err := m.driver.ConfigureInput(pin); err != nil {
		m.logger.Warn("Input configure failed", zap.Int("pin", pin), zap.Error(err))
		return -1
	}
	level, err := m.driver.ReadDigital(pin)
	if err != nil {
		m.logger.Warn("Digital read failed", zap.Int("pin", pin), zap.Error(err))
		return -1
	}
	return int(level)
}

// Toggle reads the current digital value and writes its complement.
func (m *Manager) Toggle(pin int) error {
	if !m.ValidPin(pin) {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}

	current := m.GetDigital(pin)
	if current < 0 {
		return fmt.Errorf("%w: pin %d", ErrReadFailed, pin)
	}

	next := 0
	if current == 0 {
		next = 1
	}
	return m.SetDigital(pin, next)
}

// SetPWM writes a duty value to a whitelisted pin, allocating the next free
// hardware channel on first use. Channels are never reclaimed individually;
// ResetAllPins is the only reclamation path.
func (m *Manager) SetPWM(pin, value int) error {
	if !m.ValidPin(pin) {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	if value < 0 || value > 255 {
		return fmt.Errorf("%w: PWM value must be 0-255 (got %d)", ErrInvalidValue, value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[pin]
	if !ok || !state.initialized || state.mode != ModePWMOutput {
		if err := m.configurePWMOutput(pin); err != nil {
			return err
		}
		state = m.states[pin]
	}

	channel := m.pinChannel[pin]
	if err := m.driver.WritePWM(channel, value); err != nil {
		return fmt.Errorf("write pwm channel %d: %w", channel, err)
	}
	state.value = value

	m.logger.Debug("PWM set",
		zap.Int("pin", pin),
		zap.Int("value", value),
		zap.Int("channel", channel))
	m.notifyLocked(pin, state)
	return nil
}

// GetPWM returns the cached duty value of a pin in PWM mode, else -1.
func (m *Manager) GetPWM(pin int) int {
	if !m.ValidPin(pin) {
		return -1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.states[pin]; ok && state.initialized && state.mode == ModePWMOutput {
		return state.value
	}
	return -1
}

// Mode reports the configured mode of a pin.
func (m *Manager) Mode(pin int) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.states[pin]; ok && state.initialized {
		return state.mode
	}
	return ModeUnconfigured
}

// ResetAllPins drives every configured digital output low and every PWM
// channel to zero, then discards all records and channel assignments and
// restarts the allocator from zero. Always succeeds.
func (m *Manager) ResetAllPins() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Resetting all pins", zap.Int("configured", len(m.states)))

	for pin, state := range m.states {
		if !state.initialized {
			continue
		}
		switch state.mode {
		case ModeDigitalOutput:
			if err := m.driver.WriteDigital(pin, hal.Low); err != nil {
				m.logger.Warn("Reset write failed", zap.Int("pin", pin), zap.Error(err))
			}
		case ModePWMOutput:
			if err := m.driver.WritePWM(m.pinChannel[pin], 0); err != nil {
				m.logger.Warn("Reset pwm failed", zap.Int("pin", pin), zap.Error(err))
			}
		}
	}

	m.states = make(map[int]*record)
	m.pinChannel = make(map[int]int)
	m.nextChannel = 0

	if m.listener != nil {
		m.listener(Snapshot{Pin: -1, Mode: ModeUnconfigured.String()})
	}
}

func (m *Manager) configureDigitalOutput(pin int) error {
	if err := m.driver.ConfigureOutput(pin); err != nil {
		return fmt.Errorf("configure pin %d for output: %w", pin, err)
	}

	m.logger.Debug("Pin configured for digital output", zap.Int("pin", pin))
	m.states[pin] = &record{mode: ModeDigitalOutput, value: 0, initialized: true}
	return nil
}

func (m *Manager) configurePWMOutput(pin int) error {
	if m.nextChannel >= m.maxChannels {
		return fmt.Errorf("%w: all %d channels assigned", ErrPWMExhausted, m.maxChannels)
	}

	channel := m.nextChannel

	if err := m.driver.SetupPWMChannel(channel, m.pwmFrequency); err != nil {
		return fmt.Errorf("setup pwm channel %d: %w", channel, err)
	}
	if err := m.driver.AttachPWMPin(pin, channel); err != nil {
		return fmt.Errorf("attach pin %d to channel %d: %w", pin, channel, err)
	}
	if err := m.driver.WritePWM(channel, 0); err != nil {
		return fmt.Errorf("zero pwm channel %d: %w", channel, err)
	}

	// Allocation is committed only after the hardware accepted the channel.
	m.nextChannel++

	m.logger.Debug("Pin configured for PWM output",
		zap.Int("pin", pin),
		zap.Int("channel", channel))
	m.states[pin] = &record{mode: ModePWMOutput, value: 0, initialized: true}
	m.pinChannel[pin] = channel
	return nil
}

func (m *Manager) notifyLocked(pin int, state *record) {
	if m.listener == nil {
		return
	}
	m.listener(Snapshot{Pin: pin, Mode: state.mode.String(), Value: state.value})
}

// Snapshot is one initialized pin's state for status reporting.
type Snapshot struct {
	Pin   int    `json:"pin"`
	Mode  string `json:"mode"`
	Value int    `json:"value"`
}

// Snapshots returns a read-only view of all initialized records, sorted by
// pin number.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, len(m.states))
	for pin, state := range m.states {
		if !state.initialized {
			continue
		}
		out = append(out, Snapshot{Pin: pin, Mode: state.mode.String(), Value: state.value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pin < out[j].Pin })
	return out
}
