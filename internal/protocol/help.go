package protocol

import (
	"strconv"
	"strings"
)

// HelpText renders the human-readable command reference, including the pin
// whitelist. Returned as plain text, not a JSON document.
func (p *Parser) HelpText() string {
	var b strings.Builder

	b.WriteString("Pin Controller - Command Reference\n\n")
	b.WriteString("JSON Format:\n")
	b.WriteString("  Set pin:    {\"cmd\":\"SET\",\"pin\":13,\"value\":1}\n")
	b.WriteString("  Get pin:    {\"cmd\":\"GET\",\"pin\":13}\n")
	b.WriteString("  Toggle pin: {\"cmd\":\"TOGGLE\",\"pin\":13}\n")
	b.WriteString("  PWM:        {\"cmd\":\"PWM\",\"pin\":13,\"value\":128}\n")
	b.WriteString("  Status:     {\"cmd\":\"STATUS\"}\n")
	b.WriteString("  Reset:      {\"cmd\":\"RESET\"}\n\n")
	b.WriteString("Text Format:\n")
	b.WriteString("  Set pin:    SET 13 1\n")
	b.WriteString("  Get pin:    GET 13\n")
	b.WriteString("  Toggle pin: TOGGLE 13\n")
	b.WriteString("  PWM:        PWM 13 128\n")
	b.WriteString("  Status:     STATUS\n")
	b.WriteString("  Reset:      RESET\n\n")

	b.WriteString("Available pins: ")
	for i, pin := range p.safePins {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(pin))
	}
	b.WriteString("\n")

	return b.String()
}
