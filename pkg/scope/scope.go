package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/history"
)

// TrendWidget is a custom Fyne widget that plots the heart rate history
// with elevated episodes shaded.
type TrendWidget struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu       sync.RWMutex
	points   []history.Point
	episodes []history.Episode

	// Display buffer (reused for downsampling)
	displayPoints []history.Point

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time

	// Display settings
	maxDisplayPoints int
}

// New creates a new TrendWidget instance.
func New(cfg *config.Config) *TrendWidget {
	s := &TrendWidget{
		cfg:              cfg,
		displayPoints:    make([]history.Point, 0, 1000),
		maxDisplayPoints: 1000,
	}
	s.ExtendBaseWidget(s)
	s.updateAutoScale()
	s.Refresh()
	return s
}

// UpdateData replaces the plotted history. Call it on the main thread
// (fyne.Do) from the recorder callback.
func (s *TrendWidget) UpdateData(points []history.Point, episodes []history.Episode) {
	s.mu.Lock()
	s.displayPoints = history.Downsample(s.displayPoints, points, s.maxDisplayPoints)
	s.points = points
	s.episodes = episodes
	s.updateAutoScale()
	s.mu.Unlock()

	// Refresh outside the lock; the renderer takes a read lock.
	s.Refresh()
}

// Clear drops all plotted data.
func (s *TrendWidget) Clear() {
	s.UpdateData(nil, nil)
}

// Latest returns the newest plotted point.
func (s *TrendWidget) Latest() (history.Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.points) == 0 {
		return history.Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// updateAutoScale widens the configured BPM range to fit the data and sets
// the time axis to at least one trend length.
func (s *TrendWidget) updateAutoScale() {
	s.yMin = float64(s.cfg.Display.GraphMinBPM)
	s.yMax = float64(s.cfg.Display.GraphMaxBPM)
	for _, p := range s.displayPoints {
		if p.BPM <= 0 {
			continue
		}
		if v := float64(p.BPM); v < s.yMin {
			s.yMin = v
		} else if v > s.yMax {
			s.yMax = v
		}
	}
	if s.yMax <= s.yMin {
		s.yMax = s.yMin + 1
	}

	minWindow := time.Duration(s.cfg.Display.HistorySize) * s.cfg.Display.RefreshInterval
	if len(s.displayPoints) == 0 {
		s.xMin = time.Now()
		s.xMax = s.xMin.Add(minWindow)
		return
	}
	s.xMin = s.displayPoints[0].Timestamp
	s.xMax = s.displayPoints[len(s.displayPoints)-1].Timestamp
	if s.xMax.Sub(s.xMin) < minWindow {
		s.xMax = s.xMin.Add(minWindow)
	}
}

// CreateRenderer creates the widget renderer.
func (s *TrendWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &trendRenderer{
		trend:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
