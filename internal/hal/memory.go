package hal

import (
	"fmt"
	"sync"
)

// MemoryDriver is a PinDriver backed by plain maps. It is the default driver
// for hosted builds and the test double for the pin manager; a real board
// port implements PinDriver against its GPIO library instead.
type MemoryDriver struct {
	mu sync.Mutex

	outputs map[int]Level
	inputs  map[int]Level
	pwm     map[int]int // channel -> duty
	routed  map[int]int // pin -> channel

	// InputLevels seeds the level returned by ReadDigital for unconfigured
	// pins. Tests use it to simulate external signals.
	InputLevels map[int]Level
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		outputs:     make(map[int]Level),
		inputs:      make(map[int]Level),
		pwm:         make(map[int]int),
		routed:      make(map[int]int),
		InputLevels: make(map[int]Level),
	}
}

func (d *MemoryDriver) ConfigureOutput(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inputs, pin)
	d.outputs[pin] = Low
	return nil
}

func (d *MemoryDriver) ConfigureInput(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.outputs, pin)
	d.inputs[pin] = d.InputLevels[pin]
	return nil
}

func (d *MemoryDriver) WriteDigital(pin int, level Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.outputs[pin]; !ok {
		return fmt.Errorf("pin %d not configured as output", pin)
	}
	d.outputs[pin] = level
	return nil
}

func (d *MemoryDriver) ReadDigital(pin int) (Level, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if level, ok := d.inputs[pin]; ok {
		return level, nil
	}
	return Low, fmt.Errorf("pin %d not configured as input", pin)
}

func (d *MemoryDriver) SetupPWMChannel(channel int, frequencyHz int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pwm[channel] = 0
	return nil
}

func (d *MemoryDriver) AttachPWMPin(pin int, channel int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pwm[channel]; !ok {
		return fmt.Errorf("pwm channel %d not set up", channel)
	}
	delete(d.outputs, pin)
	delete(d.inputs, pin)
	d.routed[pin] = channel
	return nil
}

func (d *MemoryDriver) WritePWM(channel int, duty int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pwm[channel]; !ok {
		return fmt.Errorf("pwm channel %d not set up", channel)
	}
	d.pwm[channel] = duty
	return nil
}

// OutputLevel reports the currently driven level of an output pin.
func (d *MemoryDriver) OutputLevel(pin int) (Level, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	level, ok := d.outputs[pin]
	return level, ok
}

// Duty reports the duty value of a channel.
func (d *MemoryDriver) Duty(channel int) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	duty, ok := d.pwm[channel]
	return duty, ok
}

// ChannelFor reports the channel routed to a pin.
func (d *MemoryDriver) ChannelFor(pin int) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.routed[pin]
	return ch, ok
}
