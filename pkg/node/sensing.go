package node

import (
	"time"

	"github.com/itohio/gohrm/pkg/actuator"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/heartrate"
	"github.com/itohio/gohrm/pkg/link"
	"github.com/itohio/gohrm/pkg/payload"
	"github.com/itohio/gohrm/pkg/sensor"
	"go.uber.org/zap"
)

// Sensing is the sensing node: optical sensor and touch pad in, payload
// notifications out. It may also drive local outputs.
type Sensing struct {
	cfg     *config.Config
	log     *zap.Logger
	optical sensor.Optical
	touch   *sensor.Debounced
	monitor *heartrate.Monitor
	session *heartrate.Session
	server  *link.Server
	local   *actuator.Controller
	format  payload.Format

	reading   heartrate.Reading
	readFails int
	onReading func(heartrate.Reading)
	onSummary func(heartrate.Summary)
}

// SensingConfig holds the collaborators of a sensing node. Touch and Local
// are optional.
type SensingConfig struct {
	Optical sensor.Optical
	Touch   sensor.Touch
	Server  *link.Server
	Local   *actuator.Controller
}

// NewSensing creates a sensing node. A nil logger disables logging.
func NewSensing(cfg *config.Config, deps SensingConfig, log *zap.Logger) *Sensing {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sensing{
		cfg:     cfg,
		log:     log,
		optical: deps.Optical,
		monitor: heartrate.NewMonitor(cfg, nil),
		session: heartrate.NewSession(cfg.HeartRate.SummaryWindow),
		server:  deps.Server,
		local:   deps.Local,
		format:  payload.Format(cfg.Link.Format),
	}
	if s.optical == nil {
		s.optical = sensor.None{}
	}
	if deps.Touch != nil {
		s.touch = sensor.NewDebounced(deps.Touch, cfg.Sensor.TouchDebounce)
	}
	return s
}

// OnReading registers a hook called with every processed sample.
func (s *Sensing) OnReading(fn func(heartrate.Reading)) { s.onReading = fn }

// OnSummary registers a hook called when a measurement window completes.
func (s *Sensing) OnSummary(fn func(heartrate.Summary)) { s.onSummary = fn }

// Step runs one poll tick.
func (s *Sensing) Step(now time.Time) {
	s.server.Poll(now, link.HandlerFunc(s.handleEvent))

	touched := s.sampleTouch(now)

	ir, err := s.optical.IR()
	if err != nil {
		s.readFails++
		if s.readFails == 1 {
			s.log.Warn("sensor read failed", zap.Error(err))
		}
		if s.readFails == s.maxReadFails() {
			s.log.Warn("sensor lost, clearing heart rate", zap.Int("failures", s.readFails))
			s.monitor.Reset()
			s.reading = heartrate.Reading{}
		}
	} else {
		if s.readFails > 0 {
			s.log.Info("sensor read recovered", zap.Int("failures", s.readFails))
			s.readFails = 0
		}
		s.process(ir, now)
	}

	motorForward := false
	if s.local != nil {
		if s.cfg.Actuator.Trigger == config.TriggerTouch {
			s.local.Set(touched || s.reading.Present, now)
		} else {
			s.local.Update(s.reading.Average, now)
		}
		s.local.Tick(now)
		motorForward = s.local.State() == actuator.StateHigh
	}

	msg := payload.Message{
		HeartRate:    s.reading.Average,
		Touch:        touched,
		MotorForward: motorForward,
		Hydrated:     touched,
	}
	sent, err := s.server.Publish(now, payload.Encode(s.format, msg))
	if err != nil {
		s.log.Warn("notify failed", zap.Error(err))
	} else if sent {
		s.log.Debug("notified", zap.Int("bpm", msg.HeartRate), zap.Bool("touch", touched))
	}
}

func (s *Sensing) maxReadFails() int {
	if s.cfg.Sensor.MaxReadFailures > 0 {
		return s.cfg.Sensor.MaxReadFailures
	}
	return 1
}

func (s *Sensing) sampleTouch(now time.Time) bool {
	if s.touch == nil {
		return false
	}
	touched, changed := s.touch.Sample(now)
	if changed {
		s.log.Info("touch changed", zap.Bool("touched", touched))
	}
	return touched
}

func (s *Sensing) process(ir uint32, now time.Time) {
	prev := s.reading
	r := s.monitor.Process(ir, now)
	s.reading = r

	if r.Present != prev.Present {
		if r.Present {
			s.log.Info("finger detected", zap.Uint32("ir", ir))
		} else {
			s.log.Info("finger removed")
		}
	}
	if r.Beat {
		s.log.Debug("beat", zap.Float32("bpm", r.Instant), zap.Int("avg", r.Average))
	}
	if sum, ok := s.session.Observe(r); ok {
		s.log.Info("heart rate", zap.Int("avg", sum.Average), zap.Stringer("zone", sum.Zone), zap.Bool("valid", sum.Valid))
		if s.onSummary != nil {
			s.onSummary(sum)
		}
	}
	if s.onReading != nil {
		s.onReading(r)
	}
}

func (s *Sensing) handleEvent(ev link.Event) {
	switch ev.Kind {
	case link.EventConnected:
		s.log.Info("display connected", zap.String("address", ev.Address))
	case link.EventDisconnected:
		s.log.Info("display disconnected", zap.String("address", ev.Address))
	}
}

// Reading returns the latest monitor reading.
func (s *Sensing) Reading() heartrate.Reading { return s.reading }

// Touched returns the debounced touch state.
func (s *Sensing) Touched() bool {
	return s.touch != nil && s.touch.Touched()
}

// Server returns the link server.
func (s *Sensing) Server() *link.Server { return s.server }

// Local returns the local actuator controller, or nil.
func (s *Sensing) Local() *actuator.Controller { return s.local }
