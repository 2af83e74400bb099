package engine

import "fmt"

// RunState is the controller lifecycle state.
type RunState int32

const (
	// StateStarting is the state from construction to the first reminder
	// emission.
	StateStarting RunState = iota
	// StateRunning means reminder emissions and fixes are being processed.
	StateRunning
	// StateStopping means the controller is completing reminders and
	// releasing resources.
	StateStopping
	// StateStopped is terminal.
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("RunState(%d)", int32(s))
	}
}
