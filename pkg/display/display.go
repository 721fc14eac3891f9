// Package display renders the heart rate status and trend on a pixel display.
//
// The screen is split in two: a status block on the left filled with the
// colour of the current zone and showing the BPM as seven-segment digits,
// and the trend graph on the right.
package display

import (
	"fmt"
	"image/color"

	"github.com/itohio/gohrm/pkg/actuator"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/heartrate"
	"tinygo.org/x/drivers"
)

// Grid lines drawn across the graph.
var GridBPM = []int{40, 80, 120, 160}

// Colours.
var (
	Black   = color.RGBA{0, 0, 0, 255}
	White   = color.RGBA{255, 255, 255, 255}
	Grey    = color.RGBA{64, 64, 64, 255}
	Blue    = color.RGBA{0, 96, 255, 255}
	Green   = color.RGBA{0, 200, 0, 255}
	Orange  = color.RGBA{255, 160, 0, 255}
	Red     = color.RGBA{255, 0, 0, 255}
	Cyan    = color.RGBA{0, 200, 200, 255}
	Average = color.RGBA{200, 200, 200, 255}
)

// ZoneColor returns the colour used for a zone.
func ZoneColor(z heartrate.Zone) color.RGBA {
	switch z {
	case heartrate.ZoneLow:
		return Blue
	case heartrate.ZoneNormal:
		return Green
	case heartrate.ZoneElevated:
		return Orange
	case heartrate.ZoneHigh:
		return Red
	default:
		return Grey
	}
}

// Status is the state shown in the status block.
type Status struct {
	BPM       int
	Connected bool
	Hydrated  bool
	Touch     bool
}

// rectFiller is implemented by drivers that fill rectangles natively, such
// as st7789.
type rectFiller interface {
	FillRectangle(x, y, width, height int16, c color.RGBA) error
}

// Screen draws on a drivers.Displayer.
type Screen struct {
	dev drivers.Displayer
	cfg config.DisplayConfig

	width, height int16
	split         int16 // first column of the graph
}

// New creates a screen and switches the backlight on. backlight may be nil.
func New(dev drivers.Displayer, cfg config.DisplayConfig, backlight actuator.Pin) *Screen {
	if backlight != nil {
		backlight.Set(true)
	}
	w, h := dev.Size()
	return &Screen{
		dev:    dev,
		cfg:    cfg,
		width:  w,
		height: h,
		split:  w / 3,
	}
}

// Render redraws the whole screen and flushes it to the device.
func (s *Screen) Render(st Status, trend []int, minuteAvg int) error {
	s.fill(0, 0, s.width, s.height, Black)
	s.drawStatus(st)
	s.drawGraph(trend, minuteAvg)
	if err := s.dev.Display(); err != nil {
		return fmt.Errorf("failed to flush display: %w", err)
	}
	return nil
}

func (s *Screen) drawStatus(st Status) {
	bg := Grey
	if st.Connected {
		bg = ZoneColor(heartrate.Classify(st.BPM))
	}
	s.fill(0, 0, s.split-1, s.height, bg)

	if st.Connected && st.BPM > 0 {
		s.drawNumber(st.BPM, 2, 2, s.split-3, s.height/2, Black)
	}

	// Indicator dots along the bottom edge.
	dot := s.height / 10
	if dot < 2 {
		dot = 2
	}
	y := s.height - dot - 1
	if st.Hydrated {
		s.fill(1, y, 1+dot, y+dot, Cyan)
	}
	if st.Touch {
		s.fill(2+dot*2, y, 2+dot*3, y+dot, White)
	}
}

func (s *Screen) drawGraph(trend []int, minuteAvg int) {
	x0, x1 := s.split, s.width-1

	for _, bpm := range GridBPM {
		y := s.yFor(bpm)
		for x := x0; x <= x1; x += 2 {
			s.dev.SetPixel(x, y, Grey)
		}
	}

	if minuteAvg > 0 {
		y := s.yFor(minuteAvg)
		for x := x0; x <= x1; x += 4 {
			s.dev.SetPixel(x, y, Average)
			if x+1 <= x1 {
				s.dev.SetPixel(x+1, y, Average)
			}
		}
	}

	n := s.cfg.HistorySize
	if n < 2 {
		n = 2
	}
	if len(trend) > n {
		trend = trend[len(trend)-n:]
	}
	span := int(x1 - x0)
	for i := 1; i < len(trend); i++ {
		prev, cur := trend[i-1], trend[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		xa := x0 + int16((i-1)*span/(n-1))
		xb := x0 + int16(i*span/(n-1))
		s.line(xa, s.yFor(prev), xb, s.yFor(cur), ZoneColor(heartrate.Classify(cur)))
	}
}

// yFor maps bpm onto a graph row, clamped to the screen.
func (s *Screen) yFor(bpm int) int16 {
	lo, hi := s.cfg.GraphMinBPM, s.cfg.GraphMaxBPM
	if hi <= lo {
		lo, hi = 40, 180
	}
	if bpm < lo {
		bpm = lo
	}
	if bpm > hi {
		bpm = hi
	}
	rows := int(s.height - 1)
	return int16(rows - (bpm-lo)*rows/(hi-lo))
}

// fill paints the rectangle [x0, x1) x [y0, y1).
func (s *Screen) fill(x0, y0, x1, y1 int16, c color.RGBA) {
	if x1 <= x0 || y1 <= y0 {
		return
	}
	if f, ok := s.dev.(rectFiller); ok {
		if f.FillRectangle(x0, y0, x1-x0, y1-y0, c) == nil {
			return
		}
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			s.dev.SetPixel(x, y, c)
		}
	}
}

// line draws a Bresenham line including both end points.
func (s *Screen) line(x0, y0, x1, y1 int16, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := int16(1), int16(1)
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		s.dev.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
