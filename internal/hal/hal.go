// Package hal is the hardware seam of the controller. The pin manager talks
// to a PinDriver and never to registers directly, so the rest of the system
// can be exercised on a desktop machine with the in-memory driver.
package hal

// Level is a digital logic level.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

// PinDriver abstracts the board's GPIO and PWM peripherals. Implementations
// are expected to be cheap per call; none of these operations may block.
type PinDriver interface {
	// ConfigureOutput puts the pin into push-pull output mode, driven low.
	ConfigureOutput(pin int) error

	// ConfigureInput puts the pin into input mode.
	ConfigureInput(pin int) error

	// WriteDigital drives an output pin.
	WriteDigital(pin int, level Level) error

	// ReadDigital samples the live level of an input pin.
	ReadDigital(pin int) (Level, error)

	// SetupPWMChannel initialises one duty-cycle generator.
	SetupPWMChannel(channel int, frequencyHz int) error

	// AttachPWMPin routes a channel's output to a pin.
	AttachPWMPin(pin int, channel int) error

	// WritePWM sets a channel's duty value (0-255).
	WritePWM(channel int, duty int) error
}
