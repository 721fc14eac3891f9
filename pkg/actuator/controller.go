package actuator

import (
	"time"

	"github.com/itohio/gohrm/pkg/config"
)

// State is the threshold state of the controller.
type State int

const (
	StateUnknown State = iota // cold start or after link loss, acts as Low
	StateLow
	StateHigh
)

func (s State) String() string {
	switch s {
	case StateLow:
		return "low"
	case StateHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Controller turns a heart rate (or any boolean trigger) into LED and motor
// actions.
//
// Transitions are edge triggered against the last accepted state. Low to High
// starts the blink sequence and moves forward; High to Low switches the LED
// off and moves backward. A transition is only accepted when at least Dwell
// has passed since the previous move; a crossing that arrives earlier stays
// pending and is accepted by a later Update, Set or Tick if it still holds.
type Controller struct {
	threshold int
	dwell     time.Duration
	blinker   *Blinker
	mover     Mover

	state    State
	want     State
	lastMove time.Time
	moves    int
}

// NewController creates a controller from the actuator configuration.
func NewController(cfg config.ActuatorConfig, blinker *Blinker, mover Mover) *Controller {
	return &Controller{
		threshold: cfg.Threshold,
		dwell:     cfg.Dwell,
		blinker:   blinker,
		mover:     mover,
	}
}

// Update compares bpm with the threshold. It reports whether a transition
// was performed.
func (c *Controller) Update(bpm int, now time.Time) bool {
	return c.Set(bpm >= c.threshold, now)
}

// Set requests the High (true) or Low state. It reports whether a
// transition was performed.
func (c *Controller) Set(high bool, now time.Time) bool {
	c.want = StateLow
	if high {
		c.want = StateHigh
	}
	return c.apply(now)
}

// Tick applies a pending transition once the dwell allows it and advances
// the LED and the motor.
func (c *Controller) Tick(now time.Time) {
	c.apply(now)
	c.blinker.Tick(now)
	c.mover.Tick(now)
}

// Reset returns the outputs to their neutral state: LED off, motor backward.
// The threshold state becomes unknown.
func (c *Controller) Reset(now time.Time) {
	c.blinker.Off()
	if c.state == StateHigh {
		c.lastMove = now
		c.moves++
	}
	c.mover.MoveTo(Backward, now)
	c.state = StateUnknown
	c.want = StateUnknown
}

func (c *Controller) apply(now time.Time) bool {
	if c.want == StateUnknown || c.level(c.want) == c.level(c.state) {
		// Nothing to do; an unknown state silently becomes Low.
		if c.want == StateLow {
			c.state = StateLow
		}
		return false
	}
	if c.moves > 0 && now.Sub(c.lastMove) < c.dwell {
		return false
	}

	c.state = c.want
	c.lastMove = now
	c.moves++

	if c.state == StateHigh {
		c.blinker.Start(now)
		c.mover.MoveTo(Forward, now)
	} else {
		c.blinker.Off()
		c.mover.MoveTo(Backward, now)
	}
	return true
}

func (c *Controller) level(s State) bool { return s == StateHigh }

// State returns the last accepted state.
func (c *Controller) State() State { return c.state }

// Pending reports whether a crossing is waiting for the dwell to expire.
func (c *Controller) Pending() bool {
	return c.want != StateUnknown && c.level(c.want) != c.level(c.state)
}

// Moves returns the number of motor moves issued.
func (c *Controller) Moves() int { return c.moves }

// Threshold returns the BPM threshold.
func (c *Controller) Threshold() int { return c.threshold }

// Mover returns the motor mover.
func (c *Controller) Mover() Mover { return c.mover }

// LED returns the LED blinker.
func (c *Controller) LED() *Blinker { return c.blinker }
