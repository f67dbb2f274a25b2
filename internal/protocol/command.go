package protocol

// CommandType enumerates the verbs the controller understands.
type CommandType int

const (
	CommandInvalid CommandType = iota
	CommandSet
	CommandGet
	CommandToggle
	CommandPWM
	CommandStatus
	CommandReset
	CommandResetPins
	CommandHelp
)

func (t CommandType) String() string {
	switch t {
	case CommandSet:
		return "SET"
	case CommandGet:
		return "GET"
	case CommandToggle:
		return "TOGGLE"
	case CommandPWM:
		return "PWM"
	case CommandStatus:
		return "STATUS"
	case CommandReset:
		return "RESET"
	case CommandResetPins:
		return "RESET_PINS"
	case CommandHelp:
		return "HELP"
	default:
		return "INVALID"
	}
}

// commandTypeFromString maps an upper-cased verb to its type.
func commandTypeFromString(s string) CommandType {
	switch s {
	case "SET":
		return CommandSet
	case "GET":
		return CommandGet
	case "TOGGLE":
		return CommandToggle
	case "PWM":
		return CommandPWM
	case "STATUS":
		return CommandStatus
	case "RESET":
		return CommandReset
	case "RESET_PINS":
		return CommandResetPins
	case "HELP":
		return CommandHelp
	default:
		return CommandInvalid
	}
}

// Command is one parsed request. Pin and Value are -1 when not applicable.
// A Command is constructed by Parse, consumed once and never mutated after.
type Command struct {
	Type         CommandType
	Pin          int
	Value        int
	ErrorMessage string
}

// Valid reports whether the command survived parsing and validation.
func (c Command) Valid() bool {
	return c.Type != CommandInvalid
}
