package sensor

import "time"

// InputPin is a digital input. machine.Pin satisfies it on TinyGo targets.
type InputPin interface {
	Get() bool
}

// PinTouch reads a touch module (TTP223 style) on a digital pin.
type PinTouch struct {
	Pin       InputPin
	ActiveLow bool
}

func (t PinTouch) Touched() bool {
	return t.Pin.Get() != t.ActiveLow
}

// Debounced samples a Touch no more often than Interval and reports changes.
type Debounced struct {
	src      Touch
	interval time.Duration

	state bool
	last  time.Time
}

// NewDebounced wraps src with the given read cadence.
func NewDebounced(src Touch, interval time.Duration) *Debounced {
	return &Debounced{src: src, interval: interval}
}

// Sample reads the pad if Interval has passed since the last read. It
// returns the current state and whether it changed on this call.
func (d *Debounced) Sample(now time.Time) (touched, changed bool) {
	if !d.last.IsZero() && now.Sub(d.last) < d.interval {
		return d.state, false
	}
	d.last = now

	v := d.src.Touched()
	changed = v != d.state
	d.state = v
	return v, changed
}

// Touched returns the last sampled state.
func (d *Debounced) Touched() bool { return d.state }

// Reset forgets the sampled state.
func (d *Debounced) Reset() {
	d.state = false
	d.last = time.Time{}
}
