package heartrate

// Detector decides, one sample at a time, whether a heartbeat just occurred.
type Detector interface {
	Beat(sample uint32) bool
	Reset()
}

const (
	// DefaultMinAmplitude and DefaultMaxAmplitude bound the peak-to-peak swing
	// (sensor units) of a waveform cycle that counts as a beat.
	DefaultMinAmplitude = 20
	DefaultMaxAmplitude = 1000

	// dcSmoothing is the divisor of the exponential DC estimator.
	dcSmoothing = 16
)

var _ Detector = (*PeakDetector)(nil)

// PeakDetector is a threshold-crossing peak detector for PPG samples.
//
// The slowly varying DC level is tracked with an exponential estimator and
// subtracted; a beat fires when the remaining AC signal crosses zero going
// up and the swing of the previous cycle was within [MinAmplitude, MaxAmplitude].
type PeakDetector struct {
	MinAmplitude float32
	MaxAmplitude float32

	dc     float32
	seeded bool

	prev float32
	cur  float32

	swingMax float32
	swingMin float32
	rising   bool
	falling  bool
}

// NewPeakDetector creates a detector with the default amplitude window.
func NewPeakDetector() *PeakDetector {
	return &PeakDetector{
		MinAmplitude: DefaultMinAmplitude,
		MaxAmplitude: DefaultMaxAmplitude,
	}
}

// Beat feeds one sample and reports whether it completes a beat.
// It fires at most once per call.
func (d *PeakDetector) Beat(sample uint32) bool {
	x := float32(sample)
	if !d.seeded {
		d.dc = x
		d.seeded = true
	}
	d.dc += (x - d.dc) / dcSmoothing

	d.prev = d.cur
	d.cur = x - d.dc

	beat := false

	// Rising zero crossing closes the previous cycle.
	if d.prev < 0 && d.cur >= 0 {
		swing := d.swingMax - d.swingMin
		d.rising = true
		d.falling = false
		d.swingMax = 0
		if swing > d.MinAmplitude && swing < d.MaxAmplitude {
			beat = true
		}
	}

	if d.prev > 0 && d.cur <= 0 {
		d.rising = false
		d.falling = true
		d.swingMin = 0
	}

	if d.rising && d.cur > d.prev {
		d.swingMax = d.cur
	}
	if d.falling && d.cur < d.prev {
		d.swingMin = d.cur
	}

	return beat
}

// Reset forgets the DC estimate and the current cycle.
func (d *PeakDetector) Reset() {
	*d = PeakDetector{
		MinAmplitude: d.MinAmplitude,
		MaxAmplitude: d.MaxAmplitude,
	}
}
