package history

// Downsample reduces src to at most maxPoints values by decimation.
// Destination-based: reuses dst if it has sufficient capacity, otherwise
// allocates. If len(src) <= maxPoints all values are copied.
func Downsample[T any](dst, src []T, maxPoints int) []T {
	if maxPoints <= 0 {
		return dst[:0]
	}

	if len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
			copy(dst, src)
			return dst
		}
		out := make([]T, len(src))
		copy(out, src)
		return out
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	step := float64(len(src)) / float64(maxPoints)
	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(src) {
			dst = append(dst, src[idx])
		}
	}
	return dst
}
