package actuator

import "time"

// Blinker drives an LED through a short blink sequence and then holds it on.
type Blinker struct {
	led      Pin
	interval time.Duration
	toggles  int

	on        bool
	remaining int
	last      time.Time
}

// NewBlinker creates a blinker toggling led every interval, toggles times.
func NewBlinker(led Pin, interval time.Duration, toggles int) *Blinker {
	return &Blinker{led: led, interval: interval, toggles: toggles}
}

// Start switches the LED on and begins the sequence. Restarting a running
// sequence rewinds it.
func (b *Blinker) Start(now time.Time) {
	b.set(true)
	b.remaining = b.toggles
	b.last = now
}

// Tick performs at most one toggle. The sequence always ends with the LED on.
func (b *Blinker) Tick(now time.Time) {
	if b.remaining == 0 || now.Sub(b.last) < b.interval {
		return
	}

	b.set(!b.on)
	b.remaining--
	b.last = now

	if b.remaining == 0 && !b.on {
		b.set(true)
	}
}

// Off stops any sequence and switches the LED off.
func (b *Blinker) Off() {
	b.remaining = 0
	b.set(false)
}

// On reports the LED level.
func (b *Blinker) On() bool { return b.on }

// Blinking reports whether toggles are still pending.
func (b *Blinker) Blinking() bool { return b.remaining > 0 }

func (b *Blinker) set(on bool) {
	b.on = on
	b.led.Set(on)
}
