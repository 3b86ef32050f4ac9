// Package core is the orchestration layer.  It picks one operational
// mode at process start and runs it to completion:
//
//	clear   blank the display and exit
//	manual  show the last session and poll for connectivity
//	auto    start the agent and run the epoch loop
//
// Everything that touches the radio, the screen or the plugins sits
// behind the interfaces in interfaces.go.
package core

import "context"

// Mode is a complete operational mode of gopwn.  Run blocks until the
// mode is done or ctx is cancelled; cancellation is a clean exit.
type Mode interface {
	Run(ctx context.Context) error
}

// Kind names a Mode.
type Kind int

const (
	KindAuto Kind = iota
	KindManual
	KindClear
)

func (k Kind) String() string {
	switch k {
	case KindClear:
		return "clear"
	case KindManual:
		return "manual"
	default:
		return "auto"
	}
}

// Select applies the fixed priority clear > manual > auto.
func Select(clear, manual bool) Kind {
	switch {
	case clear:
		return KindClear
	case manual:
		return KindManual
	default:
		return KindAuto
	}
}

// announcement is logged once the mode is chosen.
func (k Kind) announcement() string {
	switch k {
	case KindClear:
		return "clearing the display ..."
	case KindManual:
		return "entering manual mode ..."
	default:
		return "entering auto mode ..."
	}
}
