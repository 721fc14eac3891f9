// Package node wires the building blocks into the two device roles.
//
// Each role owns all of its state in one struct. The owner calls Step once
// per poll tick from a single goroutine; radio callbacks only reach the node
// through the link event queue drained inside Step.
package node

import (
	"time"

	"github.com/itohio/gohrm/pkg/actuator"
	"github.com/itohio/gohrm/pkg/heartrate"
)

// Reading is what the display node currently knows about the wearer.
type Reading struct {
	Timestamp    time.Time
	HeartRate    int
	Zone         heartrate.Zone
	Touch        bool
	Hydrated     bool
	MotorForward bool // as reported by the sensing node
	Connected    bool
	Threshold    actuator.State
}
