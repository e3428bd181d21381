package domain

import (
	"fmt"
	"strings"
)

// Status is a result code reported by the motion controller.
type Status int

const (
	StatusSuccess Status = 0
	StatusFailure Status = 1
	// StatusCanceled is reported locally when a wait is abandoned on shutdown.
	StatusCanceled Status = 2
	// StatusTransport is reported locally when the controller could not be reached.
	StatusTransport Status = 3
	// StatusInvalidHub is the controller's code for an unknown hub name.
	StatusInvalidHub Status = 4004
)

// OK reports whether the status is a success.
func (s Status) OK() bool {
	return s == StatusSuccess
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusCanceled:
		return "canceled"
	case StatusTransport:
		return "transport_error"
	case StatusInvalidHub:
		return "invalid_hub"
	default:
		return fmt.Sprintf("code_%d", int(s))
	}
}

// Mode is the operating mode of the motion controller.
type Mode string

const (
	ModeUnknown   Mode = "UNKNOWN"
	ModeConfig    Mode = "CONFIG"
	ModeOperation Mode = "OPERATION"
	ModeFault     Mode = "FAULT"
)

// ParseMode maps the controller's mode string onto a Mode.
func ParseMode(s string) Mode {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeConfig:
		return ModeConfig
	case ModeOperation:
		return ModeOperation
	case ModeFault:
		return ModeFault
	default:
		return ModeUnknown
	}
}

// OperationKind identifies what an in-flight operation asks the controller to do.
type OperationKind string

const (
	KindMoveToHub    OperationKind = "move-to-hub"
	KindMoveToPose   OperationKind = "move-to-pose"
	KindBlindMove    OperationKind = "blind-move"
	KindPickAndPlace OperationKind = "pick-and-place-composite"
)
