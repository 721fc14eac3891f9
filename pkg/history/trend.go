// Package history keeps recent heart rate values for display.
package history

// Trend is a fixed-size ring of the most recent heart rate values, one per
// display refresh. Zero values mean "no reading".
type Trend struct {
	values []int
	next   int
	filled bool
}

// NewTrend creates a trend of size values.
func NewTrend(size int) *Trend {
	if size <= 0 {
		size = 1
	}
	return &Trend{values: make([]int, size)}
}

// Add appends bpm, overwriting the oldest value once full.
func (t *Trend) Add(bpm int) {
	t.values[t.next] = bpm
	t.next = (t.next + 1) % len(t.values)
	if t.next == 0 {
		t.filled = true
	}
}

// Points returns the stored values oldest first.
func (t *Trend) Points() []int {
	if !t.filled {
		out := make([]int, t.next)
		copy(out, t.values[:t.next])
		return out
	}
	out := make([]int, 0, len(t.values))
	out = append(out, t.values[t.next:]...)
	return append(out, t.values[:t.next]...)
}

// MinuteAverage returns the mean of the non-zero values, or 0.
func (t *Trend) MinuteAverage() int {
	var sum, n int
	for _, v := range t.values {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// Last returns the newest value, or 0 when empty.
func (t *Trend) Last() int {
	if !t.filled && t.next == 0 {
		return 0
	}
	return t.values[(t.next+len(t.values)-1)%len(t.values)]
}

// Len returns the number of stored values.
func (t *Trend) Len() int {
	if t.filled {
		return len(t.values)
	}
	return t.next
}

// Cap returns the trend size.
func (t *Trend) Cap() int { return len(t.values) }

// Full reports whether the ring wrapped at least once.
func (t *Trend) Full() bool { return t.filled }

// Reset clears all values.
func (t *Trend) Reset() {
	for i := range t.values {
		t.values[i] = 0
	}
	t.next = 0
	t.filled = false
}
