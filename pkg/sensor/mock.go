package sensor

import (
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/gohrm/pkg/config"
)

const (
	// absentLevel is the IR level with no finger on the sensor.
	absentLevel = 1000
	// presentShare is the part of each TouchPeriod with a finger on the sensor.
	presentShare = 0.8
	// wanderHz is the baseline wander frequency (breathing).
	wanderHz = 0.25
)

var (
	_ Optical = (*Mock)(nil)
	_ Touch   = (*Mock)(nil)
)

// Mock simulates a finger on a PPG sensor and a touch pad.
//
// Each TouchPeriod starts with the finger on the sensor for 80% of the
// period, then off. The touch pad is pressed during the first half.
// While present the IR level is DCLevel plus a sine pulse at BPM, slow
// baseline wander of Noise amplitude and a small deterministic jitter.
type Mock struct {
	cfg config.MockConfig

	mu    sync.RWMutex
	start time.Time
	clock func() time.Time
	bpm   float32
}

// NewMock creates a simulator. A nil clock uses time.Now.
func NewMock(cfg config.MockConfig, clock func() time.Time) *Mock {
	if clock == nil {
		clock = time.Now
	}
	return &Mock{
		cfg:   cfg,
		start: clock(),
		clock: clock,
		bpm:   float32(cfg.BPM),
	}
}

// SetBPM changes the simulated heart rate.
func (m *Mock) SetBPM(bpm float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bpm = float32(bpm)
}

// BPM returns the simulated heart rate.
func (m *Mock) BPM() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.bpm)
}

// IR returns the simulated IR level at the current clock.
func (m *Mock) IR() (uint32, error) {
	return m.At(m.clock()), nil
}

// Touched reports the simulated touch pad at the current clock.
func (m *Mock) Touched() bool {
	phase := m.phase(m.clock())
	return phase < 0.5
}

// Present reports whether the simulated finger is on the sensor at now.
func (m *Mock) Present(now time.Time) bool {
	return m.phase(now) < presentShare
}

// At returns the IR level at now.
func (m *Mock) At(now time.Time) uint32 {
	m.mu.RLock()
	bpm := m.bpm
	m.mu.RUnlock()

	t := float32(now.Sub(m.start).Seconds())
	noise := float32(m.cfg.Noise)
	jitter := noise * 0.05 * (math32.Sin(t*37.1) + math32.Cos(t*53.7)) * 0.5

	if !m.Present(now) {
		return uint32(absentLevel + jitter + noise)
	}

	pulse := float32(m.cfg.Amplitude) * math32.Sin(2*math32.Pi*bpm/60*t)
	wander := noise * math32.Sin(2*math32.Pi*wanderHz*t)
	v := float32(m.cfg.DCLevel) + pulse + wander + jitter
	if v < 0 {
		v = 0
	}
	return uint32(v)
}

// phase returns the position within the touch period in [0, 1).
func (m *Mock) phase(now time.Time) float32 {
	period := m.cfg.TouchPeriod
	if period <= 0 {
		return 0
	}
	elapsed := now.Sub(m.start) % period
	return float32(elapsed) / float32(period)
}
