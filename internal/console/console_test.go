package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mhartlieb/pincore/internal/hal"
	"github.com/mhartlieb/pincore/internal/pins"
	"github.com/mhartlieb/pincore/internal/pipeline"
	"github.com/mhartlieb/pincore/internal/protocol"
)

type nopRestarter struct{}

func (nopRestarter) RequestRestart(time.Duration, string) {}

func newTestConsole(input string) (*Console, *bytes.Buffer) {
	logger := zap.NewNop()
	safePins := []int{13}

	manager := pins.NewManager(hal.NewMemoryDriver(), pins.Options{
		SafePins:     safePins,
		PWMChannels:  4,
		PWMFrequency: 5000,
	}, logger)

	pipe := pipeline.New(protocol.NewParser(safePins), manager, nil, nopRestarter{}, 2*time.Second, logger)

	out := &bytes.Buffer{}
	return New(pipe, strings.NewReader(input), out, logger), out
}

func TestConsoleExecutesCommands(t *testing.T) {
	c, out := newTestConsole("SET 13 1\nGET 13\n")
	c.Run()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message":"Pin set successfully"`)
	assert.Contains(t, lines[1], `"value":1`)
}

func TestConsoleSkipsBlankLines(t *testing.T) {
	c, out := newTestConsole("\n   \nSET 13 0\n")
	c.Run()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 1)
}

func TestConsoleHelpBanner(t *testing.T) {
	c, out := newTestConsole("HELP\n")
	c.Run()

	text := out.String()
	assert.Contains(t, text, "Command Help")
	assert.Contains(t, text, "Available pins: 13")
}
