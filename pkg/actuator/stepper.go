package actuator

// Pin is a digital output. machine.Pin satisfies it on TinyGo targets.
type Pin interface {
	Set(high bool)
}

// PinFunc adapts a function to Pin.
type PinFunc func(high bool)

// Set calls f(high).
func (f PinFunc) Set(high bool) { f(high) }

// fullStep is the coil energisation sequence of a four-coil unipolar stepper.
var fullStep = [4][4]bool{
	{true, false, true, false},
	{false, true, true, false},
	{false, true, false, true},
	{true, false, false, true},
}

// Stepper drives four coil lines through the full-step sequence.
// Position is never read back from hardware.
type Stepper struct {
	coils [4]Pin
	phase int
}

// NewStepper creates a stepper on coils a, b, c and d.
func NewStepper(a, b, c, d Pin) *Stepper {
	return &Stepper{coils: [4]Pin{a, b, c, d}, phase: -1}
}

// Step advances one phase forward or backward and energises the coils.
func (s *Stepper) Step(forward bool) {
	switch {
	case s.phase < 0:
		s.phase = 0
	case forward:
		s.phase = (s.phase + 1) % len(fullStep)
	default:
		s.phase = (s.phase + len(fullStep) - 1) % len(fullStep)
	}

	for i, on := range fullStep[s.phase] {
		s.coils[i].Set(on)
	}
}

// Release de-energises every coil. The phase is kept so the next step
// continues the sequence.
func (s *Stepper) Release() {
	for _, c := range s.coils {
		c.Set(false)
	}
}

// Phase returns the current index into the step sequence, -1 before the first step.
func (s *Stepper) Phase() int { return s.phase }
