package heartrate

import (
	"time"

	"github.com/itohio/gohrm/pkg/config"
)

// Reading is the monitor state after processing one sample.
type Reading struct {
	Timestamp time.Time
	Sample    uint32
	Present   bool    // Sample at or above the presence threshold
	Beat      bool    // A beat was accepted into the rate buffer on this sample
	Instant   float32 // Most recent beat-to-beat BPM, accepted or not
	Average   int     // Smoothed BPM, 0 when no valid beats yet
}

// Monitor turns a stream of IR amplitude samples into a smoothed BPM.
// It is not safe for concurrent use; it is driven from a single poll loop.
type Monitor struct {
	detector Detector
	buffer   *RateBuffer

	presence uint32
	minBPM   int
	maxBPM   int

	present  bool
	lastBeat time.Time
	instant  float32
	average  int
}

// NewMonitor creates a monitor from the heart rate configuration.
// A nil detector selects the default PeakDetector.
func NewMonitor(cfg *config.Config, detector Detector) *Monitor {
	if detector == nil {
		detector = NewPeakDetector()
	}
	return &Monitor{
		detector: detector,
		buffer:   NewRateBuffer(cfg.HeartRate.RateSize, cfg.HeartRate.IncludeEmptySlots),
		presence: cfg.HeartRate.PresenceThreshold,
		minBPM:   cfg.HeartRate.MinBPM,
		maxBPM:   cfg.HeartRate.MaxBPM,
	}
}

// Process evaluates one sample taken at now.
//
// A sample below the presence threshold synchronously clears the rate buffer,
// the average, the detector and the last beat timestamp, so a stale reading
// never survives finger removal.
func (m *Monitor) Process(sample uint32, now time.Time) Reading {
	r := Reading{Timestamp: now, Sample: sample}

	if sample < m.presence {
		m.Reset()
		return r
	}

	m.present = true
	r.Present = true

	if m.detector.Beat(sample) {
		if !m.lastBeat.IsZero() {
			delta := now.Sub(m.lastBeat).Milliseconds()
			if delta > 0 {
				m.instant = 60000 / float32(delta)
				bpm := int(m.instant)
				if bpm >= m.minBPM && bpm <= m.maxBPM {
					m.buffer.Add(bpm)
					m.average = m.buffer.Average()
					r.Beat = true
				}
			}
		}
		m.lastBeat = now
	}

	r.Instant = m.instant
	r.Average = m.average
	return r
}

// Reset clears all accumulated state.
func (m *Monitor) Reset() {
	m.buffer.Reset()
	m.detector.Reset()
	m.present = false
	m.lastBeat = time.Time{}
	m.instant = 0
	m.average = 0
}

// Average returns the current smoothed BPM.
func (m *Monitor) Average() int { return m.average }

// Present reports whether the last sample was above the presence threshold.
func (m *Monitor) Present() bool { return m.present }

// Rates returns a copy of the rate buffer slots.
func (m *Monitor) Rates() []int { return m.buffer.Values() }
