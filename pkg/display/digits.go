package display

import "image/color"

// Segment bits a..g of a seven-segment digit.
const (
	segA = 1 << iota
	segB
	segC
	segD
	segE
	segF
	segG
)

var digitSegments = [10]uint8{
	segA | segB | segC | segD | segE | segF,        // 0
	segB | segC,                                    // 1
	segA | segB | segD | segE | segG,               // 2
	segA | segB | segC | segD | segG,               // 3
	segB | segC | segF | segG,                      // 4
	segA | segC | segD | segF | segG,               // 5
	segA | segC | segD | segE | segF | segG,        // 6
	segA | segB | segC,                             // 7
	segA | segB | segC | segD | segE | segF | segG, // 8
	segA | segB | segC | segD | segF | segG,        // 9
}

// maxDigits is enough for any accepted heart rate.
const maxDigits = 3

// drawNumber draws v right aligned inside [x0, x1) x [y0, y1).
func (s *Screen) drawNumber(v int, x0, y0, x1, y1 int16, c color.RGBA) {
	if v < 0 {
		return
	}
	cell := (x1 - x0) / maxDigits
	gap := cell / 5
	w := cell - gap
	if w < 3 || y1-y0 < 5 {
		return
	}

	x := x1 - cell
	for i := 0; i < maxDigits; i++ {
		s.drawDigit(v%10, x+gap, y0, w, y1-y0, c)
		v /= 10
		if v == 0 {
			return
		}
		x -= cell
	}
}

func (s *Screen) drawDigit(d int, x, y, w, h int16, c color.RGBA) {
	t := w / 6
	if t < 1 {
		t = 1
	}
	mid := y + h/2
	seg := digitSegments[d]

	if seg&segA != 0 {
		s.fill(x, y, x+w, y+t, c)
	}
	if seg&segB != 0 {
		s.fill(x+w-t, y, x+w, mid, c)
	}
	if seg&segC != 0 {
		s.fill(x+w-t, mid, x+w, y+h, c)
	}
	if seg&segD != 0 {
		s.fill(x, y+h-t, x+w, y+h, c)
	}
	if seg&segE != 0 {
		s.fill(x, mid, x+t, y+h, c)
	}
	if seg&segF != 0 {
		s.fill(x, y, x+t, mid, c)
	}
	if seg&segG != 0 {
		s.fill(x, mid-t/2, x+w, mid-t/2+t, c)
	}
}
