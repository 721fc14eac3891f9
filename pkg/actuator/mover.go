package actuator

import "time"

// Endpoint is one of the two motor travel limits.
type Endpoint int

const (
	Backward Endpoint = iota // low / neutral
	Forward                  // high
)

func (e Endpoint) String() string {
	if e == Forward {
		return "forward"
	}
	return "backward"
}

// Mover moves the motor open-loop between the two endpoints.
type Mover interface {
	// MoveTo starts (or, for blocking movers, performs) a move to target.
	MoveTo(target Endpoint, now time.Time)
	// Tick advances a move in progress.
	Tick(now time.Time)
	// Busy reports whether a move is in progress.
	Busy() bool
	// Position returns the logical step position, 0 at the backward endpoint.
	Position() int
	// Release de-energises the coils.
	Release()
}

var (
	_ Mover = (*IncrementalMover)(nil)
	_ Mover = (*BlockingMover)(nil)
)

// IncrementalMover walks an integer position one step per tick toward 0 or
// TotalSteps, never stepping faster than Interval. A new target during a move
// only changes the direction of the next step.
type IncrementalMover struct {
	stepper  *Stepper
	total    int
	interval time.Duration

	pos      int
	target   int
	moving   bool
	lastStep time.Time
}

// NewIncrementalMover creates a mover covering totalSteps with one step per interval.
func NewIncrementalMover(s *Stepper, totalSteps int, interval time.Duration) *IncrementalMover {
	return &IncrementalMover{
		stepper:  s,
		total:    totalSteps,
		interval: interval,
	}
}

// MoveTo sets the target endpoint. The first step happens on the next Tick.
func (m *IncrementalMover) MoveTo(target Endpoint, now time.Time) {
	m.target = 0
	if target == Forward {
		m.target = m.total
	}
	if m.pos == m.target {
		return
	}
	if !m.moving {
		m.moving = true
		m.lastStep = now.Add(-m.interval)
	}
}

// Tick takes at most one step toward the target.
func (m *IncrementalMover) Tick(now time.Time) {
	if !m.moving || now.Sub(m.lastStep) < m.interval {
		return
	}

	forward := m.target > m.pos
	m.stepper.Step(forward)
	if forward {
		m.pos++
	} else {
		m.pos--
	}
	m.lastStep = now

	if m.pos == m.target {
		m.moving = false
		m.stepper.Release()
	}
}

func (m *IncrementalMover) Busy() bool    { return m.moving }
func (m *IncrementalMover) Position() int { return m.pos }
func (m *IncrementalMover) Release()      { m.stepper.Release() }

// Target returns the step position being moved to.
func (m *IncrementalMover) Target() int { return m.target }

// Burster performs a blocking move of a signed number of single steps.
// *easystepper.Device satisfies it.
type Burster interface {
	Move(steps int32)
	Off()
}

// BlockingMover is the legacy mover: each move is one uninterrupted burst of
// Steps full sequences (4 phases each). Nothing else runs during the burst.
type BlockingMover struct {
	drv     Burster
	steps   int32
	forward bool
}

// NewBlockingMover creates a mover that bursts steps full sequences per move.
func NewBlockingMover(drv Burster, steps int) *BlockingMover {
	return &BlockingMover{drv: drv, steps: int32(steps) * int32(len(fullStep))}
}

// MoveTo runs the whole move before returning. Moving to the endpoint the
// motor is already at is a no-op.
func (m *BlockingMover) MoveTo(target Endpoint, _ time.Time) {
	forward := target == Forward
	if forward == m.forward {
		return
	}

	if forward {
		m.drv.Move(m.steps)
	} else {
		m.drv.Move(-m.steps)
	}
	m.drv.Off()
	m.forward = forward
}

func (m *BlockingMover) Tick(time.Time) {}
func (m *BlockingMover) Busy() bool     { return false }
func (m *BlockingMover) Release()       { m.drv.Off() }

func (m *BlockingMover) Position() int {
	if m.forward {
		return int(m.steps)
	}
	return 0
}

// SequenceBurster drives a Stepper one phase at a time, sleeping Delay after
// each phase. Sleep defaults to time.Sleep.
type SequenceBurster struct {
	Stepper *Stepper
	Delay   time.Duration
	Sleep   func(time.Duration)
}

// Move steps |steps| phases in the direction of the sign.
func (b *SequenceBurster) Move(steps int32) {
	sleep := b.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	forward := steps > 0
	if steps < 0 {
		steps = -steps
	}
	for i := int32(0); i < steps; i++ {
		b.Stepper.Step(forward)
		sleep(b.Delay)
	}
}

// Off releases the coils.
func (b *SequenceBurster) Off() { b.Stepper.Release() }
