// Package pipeline is the shared parse→execute→render path. The network
// multiplexer, the web surface and the debug console all feed request lines
// through the same Pipeline so every transport speaks the same protocol.
package pipeline

import (
	"time"

	"github.com/mhartlieb/pincore/internal/liveness"
	"github.com/mhartlieb/pincore/internal/pins"
	"github.com/mhartlieb/pincore/internal/protocol"
	"github.com/mhartlieb/pincore/internal/status"
	"go.uber.org/zap"
)

type Pipeline struct {
	parser       *protocol.Parser
	pins         *pins.Manager
	reporter     *status.Reporter
	restarter    liveness.RestartRequester
	restartDelay time.Duration
	logger       *zap.Logger
}

func New(
	parser *protocol.Parser,
	pinManager *pins.Manager,
	reporter *status.Reporter,
	restarter liveness.RestartRequester,
	restartDelay time.Duration,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		parser:       parser,
		pins:         pinManager,
		reporter:     reporter,
		restarter:    restarter,
		restartDelay: restartDelay,
		logger:       logger,
	}
}

// Parser exposes the translator for surfaces that need the help text or the
// whitelist.
func (p *Pipeline) Parser() *protocol.Parser {
	return p.parser
}

// Process executes one request line and returns exactly one response.
// Malformed input is answered with a rejection document and never escalates
// past this function.
func (p *Pipeline) Process(line string) string {
	cmd := p.parser.Parse(line)

	if !cmd.Valid() {
		return protocol.Render(cmd, false, "", -1)
	}

	return p.Execute(cmd)
}

// Execute runs an already-validated command against the pin manager.
func (p *Pipeline) Execute(cmd protocol.Command) string {
	success := false
	message := ""
	resultValue := -1

	switch cmd.Type {
	case protocol.CommandSet:
		err := p.pins.SetDigital(cmd.Pin, cmd.Value)
		success = err == nil
		// The requested value is echoed even on failure.
		resultValue = cmd.Value
		if success {
			message = "Pin set successfully"
		} else {
			message = "Failed to set pin: " + err.Error()
		}

	case protocol.CommandGet:
		resultValue = p.pins.GetDigital(cmd.Pin)
		success = resultValue >= 0
		if success {
			message = "Pin value retrieved"
		} else {
			message = "Failed to get pin value"
		}

	case protocol.CommandToggle:
		err := p.pins.Toggle(cmd.Pin)
		success = err == nil
		if success {
			resultValue = p.pins.GetDigital(cmd.Pin)
			message = "Pin toggled successfully"
		} else {
			message = "Failed to toggle pin: " + err.Error()
		}

	case protocol.CommandPWM:
		err := p.pins.SetPWM(cmd.Pin, cmd.Value)
		success = err == nil
		resultValue = cmd.Value
		if success {
			message = "PWM set successfully"
		} else {
			message = "Failed to set PWM: " + err.Error()
		}

	case protocol.CommandStatus:
		return p.reporter.DocumentJSON()

	case protocol.CommandReset:
		success = true
		message = "System will restart in 2 seconds"
		if p.restarter != nil {
			p.restarter.RequestRestart(p.restartDelay, "user requested restart")
		}

	case protocol.CommandResetPins:
		p.pins.ResetAllPins()
		success = true
		message = "All pins reset"

	case protocol.CommandHelp:
		return p.parser.HelpText()

	default:
		message = "Unknown command"
	}

	return protocol.Render(cmd, success, message, resultValue)
}
