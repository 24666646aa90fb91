package command

import (
	"fmt"

	"github.com/tidwall/gjson"
)

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrUnknownAccount  = Error("account not known")
	ErrUnknownGateway  = Error("gateway not known")
	ErrUnknownBlind    = Error("blind not known")
	ErrUnknownCommand  = Error("command not recognised")
	ErrInvalidPosition = Error("position out of range")
)

// Command is a request against a single blind. Position values are on the
// external scale, 0 fully closed through 100 fully open.
type Command interface {
	isCommand()
}

type Refresh struct{}
type Up struct{}
type Down struct{}
type Stop struct{}

type SetPosition struct {
	Position int
}

func (Refresh) isCommand()     {}
func (Up) isCommand()          {}
func (Down) isCommand()        {}
func (Stop) isCommand()        {}
func (SetPosition) isCommand() {}

// Parse maps a command name and its raw JSON arguments onto a Command. Names
// are the lower case forms used on both the HTTP and MQTT surfaces.
func Parse(name string, args []byte) (Command, error) {
	switch name {
	case "refresh":
		return Refresh{}, nil
	case "up":
		return Up{}, nil
	case "down":
		return Down{}, nil
	case "stop":
		return Stop{}, nil
	case "setposition":
		position := gjson.GetBytes(args, "position")
		if !position.Exists() {
			return nil, fmt.Errorf("%w: setposition requires a position argument", ErrInvalidPosition)
		}

		value := int(position.Int())
		if value < 0 || value > 100 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPosition, value)
		}

		return SetPosition{Position: value}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}
