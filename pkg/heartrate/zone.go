package heartrate

import "time"

// Zone is a coarse heart rate classification.
type Zone int

const (
	ZoneUnknown Zone = iota
	ZoneLow
	ZoneNormal
	ZoneElevated
	ZoneHigh
)

// Classify maps a BPM value to its zone. Non-positive values are unknown.
func Classify(bpm int) Zone {
	switch {
	case bpm <= 0:
		return ZoneUnknown
	case bpm < 60:
		return ZoneLow
	case bpm < 100:
		return ZoneNormal
	case bpm < 120:
		return ZoneElevated
	default:
		return ZoneHigh
	}
}

func (z Zone) String() string {
	switch z {
	case ZoneLow:
		return "Low"
	case ZoneNormal:
		return "Normal"
	case ZoneElevated:
		return "Elevated"
	case ZoneHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Summary is the result of one fixed measurement window.
type Summary struct {
	Start   time.Time
	End     time.Time
	Average int
	Zone    Zone
	Valid   bool // false when no heart rate could be determined
}

// Session cuts the reading stream into fixed windows that restart whenever
// the finger is placed on or removed from the sensor.
type Session struct {
	window  time.Duration
	start   time.Time
	present bool
}

// NewSession creates a session producing one summary per window.
func NewSession(window time.Duration) *Session {
	return &Session{window: window}
}

// Observe consumes a reading and returns a summary when a window completes.
func (s *Session) Observe(r Reading) (Summary, bool) {
	if r.Present != s.present {
		s.present = r.Present
		s.start = r.Timestamp
		return Summary{}, false
	}
	if !s.present || s.window <= 0 {
		return Summary{}, false
	}
	if r.Timestamp.Sub(s.start) < s.window {
		return Summary{}, false
	}

	sum := Summary{
		Start:   s.start,
		End:     r.Timestamp,
		Average: r.Average,
		Zone:    Classify(r.Average),
		Valid:   r.Average > 0,
	}
	s.start = r.Timestamp
	return sum, true
}
