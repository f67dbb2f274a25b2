package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Parser translates raw request lines into validated commands. It knows the
// pin whitelist and nothing else; parsing is pure and side-effect free.
type Parser struct {
	safePins []int
	safeSet  map[int]struct{}
}

func NewParser(safePins []int) *Parser {
	set := make(map[int]struct{}, len(safePins))
	for _, p := range safePins {
		set[p] = struct{}{}
	}
	return &Parser{safePins: safePins, safeSet: set}
}

// SafePins returns the whitelist in presentation order.
func (p *Parser) SafePins() []int {
	return p.safePins
}

// ValidPin reports whether pin is on the whitelist.
func (p *Parser) ValidPin(pin int) bool {
	_, ok := p.safeSet[pin]
	return ok
}

// Parse auto-detects the request syntax: input starting with '{' is decoded
// as a JSON document, anything else as the whitespace-delimited text form.
// Both converge on the same per-verb validation. The result is either a
// valid command or CommandInvalid with a human-readable reason; partial
// commands are never returned as valid.
func (p *Parser) Parse(raw string) Command {
	cmd := invalidCommand("")

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		cmd.ErrorMessage = "Empty command"
		return cmd
	}

	if strings.HasPrefix(trimmed, "{") {
		return p.parseJSON(trimmed)
	}
	return p.parseText(trimmed)
}

// jsonRequest mirrors the structured request document. Pointer fields
// distinguish "absent" from zero values.
type jsonRequest struct {
	Cmd   *string `json:"cmd"`
	Pin   *int    `json:"pin"`
	Value *int    `json:"value"`
}

func (p *Parser) parseJSON(raw string) Command {
	cmd := invalidCommand("")

	var req jsonRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		cmd.ErrorMessage = "JSON parse error: " + err.Error()
		return cmd
	}

	if req.Cmd == nil {
		cmd.ErrorMessage = "Missing 'cmd' field"
		return cmd
	}

	verb := strings.ToUpper(strings.TrimSpace(*req.Cmd))
	cmd.Type = commandTypeFromString(verb)
	if cmd.Type == CommandInvalid {
		cmd.ErrorMessage = "Invalid command type: " + verb
		return cmd
	}

	switch cmd.Type {
	case CommandSet, CommandGet, CommandToggle, CommandPWM:
		if req.Pin == nil {
			return invalidCommand("Missing 'pin' field")
		}
		cmd.Pin = *req.Pin

		if !p.ValidPin(cmd.Pin) {
			return invalidCommand("Invalid pin number: " + strconv.Itoa(cmd.Pin))
		}

		// SET and PWM carry a value
		if cmd.Type == CommandSet || cmd.Type == CommandPWM {
			if req.Value == nil {
				return invalidCommand("Missing 'value' field")
			}
			cmd.Value = *req.Value

			if reason := validateValue(cmd.Type, cmd.Value); reason != "" {
				return invalidCommand(reason)
			}
		}
	}

	return cmd
}

func (p *Parser) parseText(raw string) Command {
	text := strings.ToUpper(raw)

	verb, params, _ := strings.Cut(text, " ")
	verb = strings.TrimSpace(verb)
	params = strings.TrimSpace(params)

	cmd := invalidCommand("")
	cmd.Type = commandTypeFromString(verb)
	if cmd.Type == CommandInvalid {
		cmd.ErrorMessage = "Invalid command: " + verb
		return cmd
	}

	switch cmd.Type {
	case CommandSet, CommandPWM:
		// Format: SET pin value / PWM pin value
		pinStr, valueStr, found := strings.Cut(params, " ")
		if !found {
			return invalidCommand("Missing parameters (expected: pin value)")
		}

		pin, err := strconv.Atoi(strings.TrimSpace(pinStr))
		if err != nil {
			return invalidCommand("Invalid pin number: " + strings.TrimSpace(pinStr))
		}
		cmd.Pin = pin

		if !p.ValidPin(cmd.Pin) {
			return invalidCommand("Invalid pin number: " + strconv.Itoa(cmd.Pin))
		}

		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return invalidCommand(valueReason(cmd.Type))
		}
		cmd.Value = value

		if reason := validateValue(cmd.Type, cmd.Value); reason != "" {
			return invalidCommand(reason)
		}

	case CommandGet, CommandToggle:
		// Format: GET pin / TOGGLE pin
		if params == "" {
			return invalidCommand("Missing pin parameter")
		}

		pin, err := strconv.Atoi(params)
		if err != nil {
			return invalidCommand("Invalid pin number: " + params)
		}
		cmd.Pin = pin

		if !p.ValidPin(cmd.Pin) {
			return invalidCommand("Invalid pin number: " + strconv.Itoa(cmd.Pin))
		}
	}

	return cmd
}

func validateValue(t CommandType, value int) string {
	switch t {
	case CommandSet:
		if value != 0 && value != 1 {
			return fmt.Sprintf("SET value must be 0 or 1 (got %d)", value)
		}
	case CommandPWM:
		if value < 0 || value > 255 {
			return fmt.Sprintf("PWM value must be 0-255 (got %d)", value)
		}
	}
	return ""
}

func valueReason(t CommandType) string {
	if t == CommandSet {
		return "SET value must be 0 or 1"
	}
	return "PWM value must be 0-255"
}

func invalidCommand(reason string) Command {
	return Command{Type: CommandInvalid, Pin: -1, Value: -1, ErrorMessage: reason}
}
