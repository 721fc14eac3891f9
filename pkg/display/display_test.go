package display

import (
	"errors"
	"image/color"
	"testing"

	"github.com/itohio/gohrm/pkg/actuator"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/heartrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDisplay struct {
	w, h    int16
	px      [][]color.RGBA
	outside int
	flushes int
	err     error
}

func newFakeDisplay(w, h int16) *fakeDisplay {
	d := &fakeDisplay{w: w, h: h, px: make([][]color.RGBA, h)}
	for y := range d.px {
		d.px[y] = make([]color.RGBA, w)
	}
	return d
}

func (d *fakeDisplay) Size() (int16, int16) { return d.w, d.h }

func (d *fakeDisplay) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		d.outside++
		return
	}
	d.px[y][x] = c
}

func (d *fakeDisplay) Display() error {
	d.flushes++
	return d.err
}

func (d *fakeDisplay) count(x0, y0, x1, y1 int16, c color.RGBA) int {
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if d.px[y][x] == c {
				n++
			}
		}
	}
	return n
}

func testConfig(history int) config.DisplayConfig {
	cfg := config.Default().Display
	cfg.HistorySize = history
	return cfg
}

func TestNew_Backlight(t *testing.T) {
	var on bool
	New(newFakeDisplay(96, 64), testConfig(60), actuator.PinFunc(func(high bool) { on = high }))
	assert.True(t, on)

	assert.NotPanics(t, func() { New(newFakeDisplay(96, 64), testConfig(60), nil) })
}

func TestYFor(t *testing.T) {
	s := New(newFakeDisplay(96, 64), testConfig(60), nil)
	tests := []struct {
		bpm  int
		want int16
	}{
		{bpm: 40, want: 63},
		{bpm: 80, want: 45},
		{bpm: 120, want: 27},
		{bpm: 160, want: 9},
		{bpm: 180, want: 0},
		{bpm: 10, want: 63},
		{bpm: 250, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.yFor(tt.bpm), "bpm %d", tt.bpm)
	}
}

func TestRender_Disconnected(t *testing.T) {
	d := newFakeDisplay(96, 64)
	s := New(d, testConfig(60), nil)

	require.NoError(t, s.Render(Status{BPM: 72}, nil, 0))
	assert.Equal(t, 1, d.flushes)
	assert.Zero(t, d.outside)

	// Whole status block grey, no digits.
	assert.Equal(t, 31*64, d.count(0, 0, 31, 64, Grey))
	// Grid lines are dotted.
	assert.Equal(t, Grey, d.px[45][32])
	assert.Equal(t, Black, d.px[45][33])
}

func TestRender_Status(t *testing.T) {
	d := newFakeDisplay(96, 64)
	s := New(d, testConfig(60), nil)

	require.NoError(t, s.Render(Status{BPM: 72, Connected: true, Hydrated: true}, nil, 0))
	assert.Zero(t, d.outside)

	assert.Positive(t, d.count(0, 0, 31, 64, Green))
	assert.Positive(t, d.count(0, 0, 31, 32, Black), "digits")
	assert.Zero(t, d.count(0, 32, 31, 64, Black), "digits only in the upper half")
	assert.Equal(t, Cyan, d.px[57][1])
	assert.Equal(t, Green, d.px[57][14], "no touch indicator")

	require.NoError(t, s.Render(Status{BPM: 130, Connected: true, Touch: true}, nil, 0))
	assert.Equal(t, Red, d.px[62][0])
	assert.Equal(t, White, d.px[57][14])
}

func TestRender_Trend(t *testing.T) {
	d := newFakeDisplay(96, 64)
	s := New(d, testConfig(3), nil)

	require.NoError(t, s.Render(Status{Connected: true}, []int{0, 60, 60}, 0))
	y := s.yFor(60)
	assert.Equal(t, int16(54), y)
	assert.Equal(t, Black, d.px[y][40], "gap after a missing reading")
	for x := int16(63); x <= 95; x++ {
		assert.Equal(t, ZoneColor(heartrate.ZoneNormal), d.px[y][x])
	}

	d = newFakeDisplay(96, 64)
	s = New(d, testConfig(2), nil)
	require.NoError(t, s.Render(Status{Connected: true}, []int{90, 100, 130}, 100))
	assert.Zero(t, d.outside)
	assert.Equal(t, Red, d.px[s.yFor(100)][32], "only the newest points fit")
	assert.Equal(t, Red, d.px[s.yFor(130)][95])
	assert.Equal(t, Average, d.px[36][36], "minute average line")
}

func TestRender_FlushError(t *testing.T) {
	d := newFakeDisplay(96, 64)
	d.err = errors.New("spi")
	err := New(d, testConfig(60), nil).Render(Status{}, nil, 0)
	assert.ErrorIs(t, err, d.err)
}

func TestZoneColor(t *testing.T) {
	assert.Equal(t, Blue, ZoneColor(heartrate.ZoneLow))
	assert.Equal(t, Green, ZoneColor(heartrate.ZoneNormal))
	assert.Equal(t, Orange, ZoneColor(heartrate.ZoneElevated))
	assert.Equal(t, Red, ZoneColor(heartrate.ZoneHigh))
	assert.Equal(t, Grey, ZoneColor(heartrate.ZoneUnknown))
}

type fillingDisplay struct {
	*fakeDisplay
	fills int
}

func (d *fillingDisplay) FillRectangle(x, y, w, h int16, c color.RGBA) error {
	d.fills++
	d.fakeDisplay.fill(x, y, x+w, y+h, c)
	return nil
}

func (d *fakeDisplay) fill(x0, y0, x1, y1 int16, c color.RGBA) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			d.SetPixel(x, y, c)
		}
	}
}

func TestRender_NativeFill(t *testing.T) {
	d := &fillingDisplay{fakeDisplay: newFakeDisplay(96, 64)}
	s := New(d, testConfig(60), nil)

	require.NoError(t, s.Render(Status{BPM: 88, Connected: true}, nil, 0))
	assert.Positive(t, d.fills)
	assert.Equal(t, Green, d.px[40][0])
	assert.Zero(t, d.outside)
}
