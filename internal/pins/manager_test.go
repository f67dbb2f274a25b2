package pins

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mhartlieb/pincore/internal/hal"
)

func newTestManager(t *testing.T, channels int) (*Manager, *hal.MemoryDriver) {
	t.Helper()
	driver := hal.NewMemoryDriver()
	m := NewManager(driver, Options{
		SafePins:     []int{4, 5, 12, 13, 27},
		PWMChannels:  channels,
		PWMFrequency: 5000,
	}, zap.NewNop())
	return m, driver
}

func TestSetDigital(t *testing.T) {
	m, driver := newTestManager(t, 16)

	require.NoError(t, m.SetDigital(13, 1))

	level, ok := driver.OutputLevel(13)
	require.True(t, ok)
	assert.Equal(t, hal.High, level)
	assert.Equal(t, ModeDigitalOutput, m.Mode(13))
	assert.Equal(t, 1, m.GetDigital(13))

	require.NoError(t, m.SetDigital(13, 0))
	assert.Equal(t, 0, m.GetDigital(13))
}

func TestSetDigitalRejectsUnlistedPin(t *testing.T) {
	m, _ := newTestManager(t, 16)

	err := m.SetDigital(2, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPin))

	// A rejected request must not create a record.
	assert.Equal(t, ModeUnconfigured, m.Mode(2))
	assert.Empty(t, m.Snapshots())
}

func TestSetDigitalRejectsBadValue(t *testing.T) {
	m, _ := newTestManager(t, 16)

	err := m.SetDigital(13, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidValue))
	assert.Equal(t, ModeUnconfigured, m.Mode(13))
}

func TestGetDigitalReturnsCachedOutputValue(t *testing.T) {
	m, driver := newTestManager(t, 16)

	require.NoError(t, m.SetDigital(13, 1))

	// Seeding a contradicting input level must not matter; an output pin is
	// answered from the cache and never re-sampled.
	driver.InputLevels[13] = hal.Low
	assert.Equal(t, 1, m.GetDigital(13))
	assert.Equal(t, ModeDigitalOutput, m.Mode(13))
}

func TestGetDigitalSamplesUnconfiguredPin(t *testing.T) {
	m, driver := newTestManager(t, 16)

	driver.InputLevels[27] = hal.High
	assert.Equal(t, 1, m.GetDigital(27))

	driver.InputLevels[27] = hal.Low
	assert.Equal(t, 0, m.GetDigital(27))
}

func TestGetDigitalInvalidPin(t *testing.T) {
	m, _ := newTestManager(t, 16)
	assert.Equal(t, -1, m.GetDigital(99))
}

func TestToggleIsInvolution(t *testing.T) {
	m, _ := newTestManager(t, 16)

	require.NoError(t, m.SetDigital(13, 0))
	require.NoError(t, m.Toggle(13))
	assert.Equal(t, 1, m.GetDigital(13))
	require.NoError(t, m.Toggle(13))
	assert.Equal(t, 0, m.GetDigital(13))
}

func TestToggleUnlistedPin(t *testing.T) {
	m, _ := newTestManager(t, 16)
	assert.True(t, errors.Is(m.Toggle(99), ErrInvalidPin))
}

func TestSetPWMAllocatesChannelsInOrder(t *testing.T) {
	m, driver := newTestManager(t, 16)

	require.NoError(t, m.SetPWM(4, 10))
	require.NoError(t, m.SetPWM(5, 20))
	require.NoError(t, m.SetPWM(12, 30))

	ch, ok := driver.ChannelFor(4)
	require.True(t, ok)
	assert.Equal(t, 0, ch)
	ch, _ = driver.ChannelFor(5)
	assert.Equal(t, 1, ch)
	ch, _ = driver.ChannelFor(12)
	assert.Equal(t, 2, ch)

	// A second write to the same pin reuses its channel.
	require.NoError(t, m.SetPWM(4, 99))
	ch, _ = driver.ChannelFor(4)
	assert.Equal(t, 0, ch)
	duty, _ := driver.Duty(0)
	assert.Equal(t, 99, duty)
	assert.Equal(t, 99, m.GetPWM(4))
}

func TestSetPWMExhaustion(t *testing.T) {
	m, _ := newTestManager(t, 2)

	require.NoError(t, m.SetPWM(4, 1))
	require.NoError(t, m.SetPWM(5, 2))

	err := m.SetPWM(12, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPWMExhausted))

	// Already-routed pins keep working after exhaustion.
	require.NoError(t, m.SetPWM(4, 200))
	assert.Equal(t, 200, m.GetPWM(4))
}

func TestSetPWMRejectsOutOfRange(t *testing.T) {
	m, _ := newTestManager(t, 16)

	assert.True(t, errors.Is(m.SetPWM(13, 256), ErrInvalidValue))
	assert.True(t, errors.Is(m.SetPWM(13, -1), ErrInvalidValue))
	assert.Equal(t, ModeUnconfigured, m.Mode(13))
}

func TestModeSwitchReinitializes(t *testing.T) {
	m, _ := newTestManager(t, 16)

	require.NoError(t, m.SetDigital(13, 1))
	require.NoError(t, m.SetPWM(13, 128))
	assert.Equal(t, ModePWMOutput, m.Mode(13))
	assert.Equal(t, 128, m.GetPWM(13))

	require.NoError(t, m.SetDigital(13, 1))
	assert.Equal(t, ModeDigitalOutput, m.Mode(13))
	assert.Equal(t, -1, m.GetPWM(13), "a digital pin has no PWM value")
}

func TestResetAllPins(t *testing.T) {
	m, driver := newTestManager(t, 2)

	require.NoError(t, m.SetDigital(13, 1))
	require.NoError(t, m.SetPWM(4, 128))
	require.NoError(t, m.SetPWM(5, 64))

	m.ResetAllPins()

	level, _ := driver.OutputLevel(13)
	assert.Equal(t, hal.Low, level)
	duty, _ := driver.Duty(0)
	assert.Equal(t, 0, duty)
	duty, _ = driver.Duty(1)
	assert.Equal(t, 0, duty)

	assert.Empty(t, m.Snapshots())
	assert.Equal(t, ModeUnconfigured, m.Mode(13))

	// The channel allocator restarts from zero.
	require.NoError(t, m.SetPWM(12, 1))
	ch, ok := driver.ChannelFor(12)
	require.True(t, ok)
	assert.Equal(t, 0, ch)
}

func TestSnapshotsSortedByPin(t *testing.T) {
	m, _ := newTestManager(t, 16)

	require.NoError(t, m.SetDigital(27, 1))
	require.NoError(t, m.SetDigital(4, 0))
	require.NoError(t, m.SetPWM(13, 50))

	snaps := m.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, Snapshot{Pin: 4, Mode: "digital", Value: 0}, snaps[0])
	assert.Equal(t, Snapshot{Pin: 13, Mode: "pwm", Value: 50}, snaps[1])
	assert.Equal(t, Snapshot{Pin: 27, Mode: "digital", Value: 1}, snaps[2])
}

func TestChangeListener(t *testing.T) {
	m, _ := newTestManager(t, 16)

	var events []Snapshot
	m.SetChangeListener(func(s Snapshot) { events = append(events, s) })

	require.NoError(t, m.SetDigital(13, 1))
	require.NoError(t, m.SetPWM(4, 128))
	m.ResetAllPins()

	require.Len(t, events, 3)
	assert.Equal(t, Snapshot{Pin: 13, Mode: "digital", Value: 1}, events[0])
	assert.Equal(t, Snapshot{Pin: 4, Mode: "pwm", Value: 128}, events[1])
	assert.Equal(t, -1, events[2].Pin, "reset is signalled with pin -1")
}
