package history

import (
	"sync"
	"time"
)

// Point is one received reading.
type Point struct {
	Timestamp time.Time
	BPM       int
	Touch     bool
	Hydrated  bool
}

// Episode is a span where the heart rate stayed at or above the threshold.
type Episode struct {
	StartIndex int // Index of the first point in the buffer
	EndIndex   int // Index of the last point (updated while the episode continues)
	StartTime  time.Time
	EndTime    time.Time
	Peak       int
}

// Duration returns the episode length.
func (e Episode) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Recorder keeps a time window of points and the elevated episodes inside it.
// Points are ordered oldest first; removal is based on timestamp, not count.
type Recorder struct {
	mu       sync.RWMutex
	points   []Point
	episodes []Episode
	open     bool // last episode is still running

	callbacks []func(points []Point, episodes []Episode)
	cbMu      sync.RWMutex

	window      time.Duration
	threshold   int
	minDuration time.Duration

	// shutdown is set when the input channel closes and stops callbacks.
	shutdown bool
}

// NewRecorder creates a recorder keeping window worth of points. Episodes
// shorter than minDuration are dropped once they end.
func NewRecorder(window time.Duration, threshold int, minDuration time.Duration) *Recorder {
	return &Recorder{
		window:      window,
		threshold:   threshold,
		minDuration: minDuration,
	}
}

// Process consumes points until input closes.
func (r *Recorder) Process(input <-chan Point) {
	for p := range input {
		r.Add(p)
	}
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()
}

// Add records a point and notifies listeners.
func (r *Recorder) Add(p Point) {
	r.mu.Lock()
	r.points = append(r.points, p)
	if r.window > 0 {
		r.trim(p.Timestamp.Add(-r.window))
	}
	r.updateEpisodes()
	notify := !r.shutdown
	r.mu.Unlock()

	if notify {
		r.notifyCallbacks()
	}
}

// trim drops points not after cutoff and shifts episode indices.
func (r *Recorder) trim(cutoff time.Time) {
	cut := 0
	for cut < len(r.points) && !r.points[cut].Timestamp.After(cutoff) {
		cut++
	}
	if cut == 0 {
		return
	}
	r.points = r.points[cut:]

	kept := r.episodes[:0]
	for _, e := range r.episodes {
		e.StartIndex -= cut
		e.EndIndex -= cut
		if e.EndIndex < 0 {
			continue
		}
		if e.StartIndex < 0 {
			e.StartIndex = 0
			e.StartTime = r.points[0].Timestamp
		}
		kept = append(kept, e)
	}
	r.episodes = kept
	if len(r.episodes) == 0 {
		r.open = false
	}
}

// updateEpisodes extends or opens an episode for the newest point.
func (r *Recorder) updateEpisodes() {
	last := len(r.points) - 1
	p := r.points[last]
	elevated := p.BPM > 0 && p.BPM >= r.threshold

	if elevated {
		if r.open {
			e := &r.episodes[len(r.episodes)-1]
			e.EndIndex = last
			e.EndTime = p.Timestamp
			if p.BPM > e.Peak {
				e.Peak = p.BPM
			}
			return
		}
		r.episodes = append(r.episodes, Episode{
			StartIndex: last,
			EndIndex:   last,
			StartTime:  p.Timestamp,
			EndTime:    p.Timestamp,
			Peak:       p.BPM,
		})
		r.open = true
		return
	}

	if r.open {
		r.open = false
		// Noise filtering
		if e := r.episodes[len(r.episodes)-1]; e.Duration() < r.minDuration {
			r.episodes = r.episodes[:len(r.episodes)-1]
		}
	}
}

// Points returns a copy of the buffered points.
func (r *Recorder) Points() []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Point, len(r.points))
	copy(result, r.points)
	return result
}

// Episodes returns a copy of the episodes within the window.
func (r *Recorder) Episodes() []Episode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Episode, len(r.episodes))
	copy(result, r.episodes)
	return result
}

// Reset clears the buffer. Listeners are not notified.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = nil
	r.episodes = nil
	r.open = false
}

// OnUpdate registers a callback invoked after every added point with copies
// of the buffered points and episodes. Callbacks should return quickly.
func (r *Recorder) OnUpdate(callback func(points []Point, episodes []Episode)) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.callbacks = append(r.callbacks, callback)
}

// ResetShutdown allows callbacks again after Process returned.
func (r *Recorder) ResetShutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = false
}

func (r *Recorder) notifyCallbacks() {
	r.mu.RLock()
	points := make([]Point, len(r.points))
	copy(points, r.points)
	episodes := make([]Episode, len(r.episodes))
	copy(episodes, r.episodes)
	r.mu.RUnlock()

	r.cbMu.RLock()
	callbacks := make([]func([]Point, []Episode), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(points, episodes)
		}
	}
}
