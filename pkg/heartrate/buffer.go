package heartrate

// RateBuffer is a fixed-capacity circular buffer of BPM values.
// The write index wraps modulo capacity, overwriting the oldest value.
//
// Before the buffer fills, unwritten slots hold zero. IncludeEmpty selects
// whether those zero slots take part in the average (the average is then
// dragged towards zero until the buffer is full) or are skipped.
type RateBuffer struct {
	rates        []int
	next         int
	filled       int
	IncludeEmpty bool
}

// NewRateBuffer creates a buffer holding capacity values.
func NewRateBuffer(capacity int, includeEmpty bool) *RateBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RateBuffer{
		rates:        make([]int, capacity),
		IncludeEmpty: includeEmpty,
	}
}

// Add stores bpm in the next slot and advances the write index.
func (b *RateBuffer) Add(bpm int) {
	b.rates[b.next] = bpm
	b.next = (b.next + 1) % len(b.rates)
	if b.filled < len(b.rates) {
		b.filled++
	}
}

// Average returns the integer mean of the buffer, or 0 when nothing was added.
func (b *RateBuffer) Average() int {
	var sum, n int
	for _, r := range b.rates {
		if r == 0 && !b.IncludeEmpty {
			continue
		}
		sum += r
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// Reset clears every slot and rewinds the write index.
func (b *RateBuffer) Reset() {
	for i := range b.rates {
		b.rates[i] = 0
	}
	b.next = 0
	b.filled = 0
}

// Len returns how many slots have been written since the last reset,
// capped at capacity.
func (b *RateBuffer) Len() int { return b.filled }

// Cap returns the buffer capacity.
func (b *RateBuffer) Cap() int { return len(b.rates) }

// Values returns a copy of the slots in storage order.
func (b *RateBuffer) Values() []int {
	out := make([]int, len(b.rates))
	copy(out, b.rates)
	return out
}
