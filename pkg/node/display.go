package node

import (
	"time"

	"github.com/itohio/gohrm/pkg/actuator"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/display"
	"github.com/itohio/gohrm/pkg/heartrate"
	"github.com/itohio/gohrm/pkg/history"
	"github.com/itohio/gohrm/pkg/link"
	"github.com/itohio/gohrm/pkg/payload"
	"go.uber.org/zap"
)

// Renderer draws the status and trend. *display.Screen satisfies it.
type Renderer interface {
	Render(st display.Status, trend []int, minuteAvg int) error
}

// Display is the display/actuator node: link client in, LED, motor and
// screen out.
type Display struct {
	cfg    *config.Config
	log    *zap.Logger
	client *link.Client
	ctrl   *actuator.Controller
	trend  *history.Trend
	screen Renderer

	now         time.Time
	reading     Reading
	malformed   int
	nextRefresh time.Time
	nextMinute  time.Time
	onReading   func(Reading)
}

// NewDisplay creates a display node. screen may be nil. A nil logger
// disables logging.
func NewDisplay(cfg *config.Config, client *link.Client, ctrl *actuator.Controller, screen Renderer, log *zap.Logger) *Display {
	if log == nil {
		log = zap.NewNop()
	}
	return &Display{
		cfg:    cfg,
		log:    log,
		client: client,
		ctrl:   ctrl,
		trend:  history.NewTrend(cfg.Display.HistorySize),
		screen: screen,
	}
}

// OnReading registers a hook called whenever the reading changes, including
// the reset on link loss.
func (d *Display) OnReading(fn func(Reading)) { d.onReading = fn }

// Step runs one poll tick: link events first, then outputs and the screen.
func (d *Display) Step(now time.Time) {
	d.now = now
	d.client.Poll(now, d)
	d.ctrl.Tick(now)
	d.reading.Threshold = d.ctrl.State()

	if now.Before(d.nextRefresh) {
		return
	}
	d.nextRefresh = now.Add(d.cfg.Display.RefreshInterval)
	d.trend.Add(d.reading.HeartRate)

	if !now.Before(d.nextMinute) {
		if !d.nextMinute.IsZero() {
			d.log.Info("minute average", zap.Int("bpm", d.trend.MinuteAverage()))
		}
		d.nextMinute = now.Add(d.cfg.Display.MinuteInterval)
	}

	if d.screen != nil {
		st := display.Status{
			BPM:       d.reading.HeartRate,
			Connected: d.reading.Connected,
			Hydrated:  d.reading.Hydrated,
			Touch:     d.reading.Touch,
		}
		if err := d.screen.Render(st, d.trend.Points(), d.trend.MinuteAverage()); err != nil {
			d.log.Warn("render failed", zap.Error(err))
		}
	}
}

// HandleEvent is the single dispatch point for link events.
func (d *Display) HandleEvent(ev link.Event) {
	switch ev.Kind {
	case link.EventDiscovered:
		d.log.Debug("sensing node found", zap.String("address", ev.Address))

	case link.EventConnected:
		d.log.Info("connected", zap.String("address", ev.Address))
		d.reading.Connected = true
		d.reading.Timestamp = d.now
		d.notify()

	case link.EventDisconnected:
		d.log.Warn("disconnected, resetting outputs", zap.String("address", ev.Address))
		d.reset()

	case link.EventData:
		msg, err := payload.Parse(ev.Data)
		if err != nil {
			d.malformed++
			d.log.Debug("dropped payload", zap.ByteString("data", ev.Data), zap.Error(err))
			return
		}
		d.apply(msg)
	}
}

func (d *Display) apply(msg payload.Message) {
	// The touch pad is the hydration sensor; each schema carries one of them.
	touch, hydrated := msg.Touch, msg.Hydrated
	switch msg.Format {
	case payload.CSV:
		hydrated = touch
	case payload.Tagged:
		touch = hydrated
	}

	prev := d.reading
	d.reading.Timestamp = d.now
	d.reading.HeartRate = msg.HeartRate
	d.reading.Zone = heartrate.Classify(msg.HeartRate)
	d.reading.Touch = touch
	d.reading.Hydrated = hydrated
	d.reading.MotorForward = msg.MotorForward

	var moved bool
	if d.cfg.Actuator.Trigger == config.TriggerTouch {
		moved = d.ctrl.Set(touch, d.now)
	} else {
		moved = d.ctrl.Update(msg.HeartRate, d.now)
	}
	d.reading.Threshold = d.ctrl.State()

	if moved {
		d.log.Info("threshold crossed",
			zap.Int("bpm", msg.HeartRate),
			zap.Int("threshold", d.ctrl.Threshold()),
			zap.Stringer("state", d.ctrl.State()))
	}
	if prev.Hydrated != hydrated {
		d.log.Info("hydration changed", zap.Bool("hydrated", hydrated))
	}
	d.notify()
}

// reset returns readings and outputs to their defaults after link loss.
func (d *Display) reset() {
	d.ctrl.Reset(d.now)
	d.trend.Reset()
	d.reading = Reading{Timestamp: d.now, Threshold: d.ctrl.State()}
	d.notify()
}

func (d *Display) notify() {
	if d.onReading != nil {
		d.onReading(d.reading)
	}
}

// Reading returns the current reading.
func (d *Display) Reading() Reading { return d.reading }

// Trend returns the trend buffer.
func (d *Display) Trend() *history.Trend { return d.trend }

// Controller returns the actuator controller.
func (d *Display) Controller() *actuator.Controller { return d.ctrl }

// Client returns the link client.
func (d *Display) Client() *link.Client { return d.client }

// Malformed returns the number of dropped payloads.
func (d *Display) Malformed() int { return d.malformed }

// Close disconnects the link and releases the motor.
func (d *Display) Close() error {
	d.ctrl.Mover().Release()
	return d.client.Close()
}
