package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/gohrm/pkg/display"
	"github.com/itohio/gohrm/pkg/heartrate"
	"github.com/itohio/gohrm/pkg/history"
)

var (
	gridColor      = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor     = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	episodeColor   = color.RGBA{R: 255, G: 0, B: 0, A: 40}
	thresholdColor = color.RGBA{R: 255, G: 165, B: 0, A: 160}
)

// Plot margins.
const (
	marginLeft   = float32(50)
	marginRight  = float32(20)
	marginTop    = float32(30)
	marginBottom = float32(40)

	hydrationBar = float32(4)
	gridStepBPM  = 20
)

// trendRenderer renders the trend widget.
type trendRenderer struct {
	trend *TrendWidget

	bg *canvas.Rectangle

	// Per-refresh objects, rebuilt on every Refresh
	gridLines    []*canvas.Line
	gridTexts    []*canvas.Text
	episodeRects []*canvas.Rectangle
	segments     []*canvas.Line
	currentLabel *canvas.Text

	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// plotArea is the rectangle inside the margins.
type plotArea struct {
	x, y, w, h float32
	yMin, yMax float64
	xMin, xMax time.Time
}

func (p plotArea) px(t time.Time) float32 {
	span := p.xMax.Sub(p.xMin).Seconds()
	if span <= 0 {
		return p.x
	}
	return p.x + float32(t.Sub(p.xMin).Seconds()/span)*p.w
}

func (p plotArea) py(bpm float64) float32 {
	return p.y + p.h - float32((bpm-p.yMin)/(p.yMax-p.yMin))*p.h
}

// MinSize returns the minimum size of the widget.
func (r *trendRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 240)
}

// Layout arranges the widget components.
func (r *trendRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.trend.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the plot from the widget data.
func (r *trendRenderer) Refresh() {
	r.trend.mu.RLock()
	points := r.trend.displayPoints
	episodes := r.trend.episodes
	area := plotArea{
		yMin: r.trend.yMin,
		yMax: r.trend.yMax,
		xMin: r.trend.xMin,
		xMax: r.trend.xMax,
	}
	r.trend.mu.RUnlock()

	size := r.trend.Size()
	r.objects = []fyne.CanvasObject{r.bg}
	r.gridLines = r.gridLines[:0]
	r.gridTexts = r.gridTexts[:0]
	r.episodeRects = r.episodeRects[:0]
	r.segments = r.segments[:0]
	r.currentLabel = nil
	if size.Width == 0 || size.Height == 0 {
		return
	}

	area.x = marginLeft
	area.y = marginTop
	area.w = size.Width - marginLeft - marginRight
	area.h = size.Height - marginTop - marginBottom

	r.drawEpisodes(area, episodes)
	r.drawGrid(area)
	r.drawThreshold(area, r.trend.cfg.Actuator.Threshold)
	r.drawHydration(area, points)
	r.drawSegments(area, points)
	r.drawCurrent(area, points)
}

// drawGrid draws horizontal BPM lines and vertical time lines.
func (r *trendRenderer) drawGrid(a plotArea) {
	first := (int(a.yMin)/gridStepBPM + 1) * gridStepBPM
	for bpm := first; float64(bpm) < a.yMax; bpm += gridStepBPM {
		y := a.py(float64(bpm))
		r.gridLines = append(r.gridLines, r.addLine(gridColor, 1, a.x, y, a.x+a.w, y))

		text := canvas.NewText(fmt.Sprintf("%d", bpm), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(a.x-5, y-6))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}

	const numVLines = 10
	span := a.xMax.Sub(a.xMin)
	for i := range numVLines + 1 {
		x := a.x + float32(i)*a.w/numVLines
		r.gridLines = append(r.gridLines, r.addLine(gridColor, 1, x, a.y, x, a.y+a.h))

		offset := span * time.Duration(i) / numVLines
		text := canvas.NewText(formatTime(offset), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, a.y+a.h+5))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}
}

// drawEpisodes shades every elevated episode and labels its peak.
func (r *trendRenderer) drawEpisodes(a plotArea, episodes []history.Episode) {
	for _, e := range episodes {
		x0 := clamp(a.px(e.StartTime), a.x, a.x+a.w)
		x1 := clamp(a.px(e.EndTime), a.x, a.x+a.w)
		if x1-x0 < 2 {
			x1 = x0 + 2
		}
		rect := canvas.NewRectangle(episodeColor)
		rect.Move(fyne.NewPos(x0, a.y))
		rect.Resize(fyne.NewSize(x1-x0, a.h))
		r.episodeRects = append(r.episodeRects, rect)
		r.objects = append(r.objects, rect)

		text := canvas.NewText(fmt.Sprintf("peak %d", e.Peak), display.Red)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos((x0+x1)/2-20, a.y-14))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}
}

// drawThreshold draws the actuator threshold line.
func (r *trendRenderer) drawThreshold(a plotArea, threshold int) {
	v := float64(threshold)
	if v <= a.yMin || v >= a.yMax {
		return
	}
	y := a.py(v)
	r.addLine(thresholdColor, 1, a.x, y, a.x+a.w, y)
}

// drawHydration marks hydrated spans along the bottom of the plot.
func (r *trendRenderer) drawHydration(a plotArea, points []history.Point) {
	y := a.y + a.h - hydrationBar/2
	for i := 1; i < len(points); i++ {
		if !points[i-1].Hydrated || !points[i].Hydrated {
			continue
		}
		r.addLine(display.Cyan, hydrationBar, a.px(points[i-1].Timestamp), y, a.px(points[i].Timestamp), y)
	}
}

// drawSegments draws the BPM curve coloured by the zone of each segment's
// newer point. Segments touching a missing reading are skipped.
func (r *trendRenderer) drawSegments(a plotArea, points []history.Point) {
	for i := 1; i < len(points); i++ {
		p0, p1 := points[i-1], points[i]
		if p0.BPM <= 0 || p1.BPM <= 0 {
			continue
		}
		line := r.addLine(display.ZoneColor(heartrate.Classify(p1.BPM)), 2,
			a.px(p0.Timestamp), a.py(float64(p0.BPM)),
			a.px(p1.Timestamp), a.py(float64(p1.BPM)))
		r.segments = append(r.segments, line)
	}
}

// drawCurrent draws the latest reading in the top left corner.
func (r *trendRenderer) drawCurrent(a plotArea, points []history.Point) {
	text := "-- BPM"
	c := color.Color(labelColor)
	if n := len(points); n > 0 && points[n-1].BPM > 0 {
		bpm := points[n-1].BPM
		zone := heartrate.Classify(bpm)
		text = fmt.Sprintf("%d BPM  %s", bpm, zone)
		c = display.ZoneColor(zone)
	}
	label := canvas.NewText(text, c)
	label.TextSize = 14
	label.TextStyle = fyne.TextStyle{Bold: true}
	label.Move(fyne.NewPos(a.x+10, 6))
	r.currentLabel = label
	r.objects = append(r.objects, label)
}

func (r *trendRenderer) addLine(c color.Color, width, x0, y0, x1, y1 float32) *canvas.Line {
	line := canvas.NewLine(c)
	line.Position1 = fyne.NewPos(x0, y0)
	line.Position2 = fyne.NewPos(x1, y1)
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
	return line
}

// Objects returns all canvas objects for rendering.
func (r *trendRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *trendRenderer) Destroy() {}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatTime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
