package main

import (
	"context"
	"fmt"
	"time"

	"github.com/itohio/gohrm/pkg/actuator"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/history"
	"github.com/itohio/gohrm/pkg/link"
	"github.com/itohio/gohrm/pkg/node"
	"github.com/itohio/gohrm/pkg/publish"
	"github.com/itohio/gohrm/pkg/sensor"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// Connection modes.
const (
	modeBLE    = "ble"
	modeSerial = "serial"
	modeMock   = "mock"
)

const (
	loopInterval   = 10 * time.Millisecond
	statusInterval = 100 * time.Millisecond
	publishTimeout = 2 * time.Second
)

// status is a snapshot of the node taken on the loop goroutine.
type status struct {
	Reading   node.Reading
	Link      link.State
	LED       bool
	Position  int
	Malformed int
	Dropped   int
}

// session is one running display node with everything feeding off it.
// Only the loop goroutine touches the node.
type session struct {
	mode    string
	display *node.Display
	sensing *node.Sensing // mock mode only
	mock    *sensor.Mock  // mock mode only
	led     *virtualPin
	pub     publish.Publisher
	log     *zap.Logger

	points   chan history.Point
	readings chan publish.Reading

	cancel       context.CancelFunc
	loopDone     chan struct{}
	recorderDone chan struct{}
	publishDone  chan struct{}

	onStatus   func(status)
	nextStatus time.Time
}

// virtualPin stands in for a GPIO on the host.
type virtualPin struct{ on bool }

func (p *virtualPin) Set(high bool) { p.on = high }

// newCentral creates the central for mode. Mock mode also returns the
// simulated sensing node feeding it.
func newCentral(cfg *config.Config, mode string, profile link.Profile, log *zap.Logger) (link.Central, *node.Sensing, *sensor.Mock, error) {
	switch mode {
	case modeBLE:
		central, err := link.NewBLECentral(bluetooth.DefaultAdapter, log.Named("ble"))
		if err != nil {
			return nil, nil, nil, err
		}
		return central, nil, nil, nil

	case modeSerial:
		return link.NewSerialCentral(cfg.Serial.Port, cfg.Serial.BaudRate, log.Named("serial")), nil, nil, nil

	case modeMock:
		loop := link.NewLoopback(profile)
		server := link.NewServer(loop.Peripheral(), cfg.Link, log.Named("mock.server"))
		if err := server.Start(); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to start mock server: %w", err)
		}
		mock := sensor.NewMock(cfg.Mock, time.Now)
		sensing := node.NewSensing(cfg, node.SensingConfig{
			Optical: mock,
			Touch:   mock,
			Server:  server,
		}, log.Named("mock.sensing"))
		return loop.Central(), sensing, mock, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// openSession builds the node for mode and starts the loop, the recorder
// and the publishers. Points go to rec; publishers may be empty.
func openSession(cfg *config.Config, mode string, rec *history.Recorder, pub publish.Publisher, log *zap.Logger, onStatus func(status)) (*session, error) {
	profile, err := link.ProfileFromConfig(cfg.Link)
	if err != nil {
		return nil, err
	}

	central, sensing, mock, err := newCentral(cfg, mode, profile, log)
	if err != nil {
		return nil, err
	}

	led := &virtualPin{}
	var coils [4]actuator.Pin
	for i := range coils {
		coils[i] = &virtualPin{}
	}
	ctrl := actuator.New(cfg.Actuator, actuator.Outputs{
		LED:   led,
		Coils: coils,
		// The host has no motor; a blocking burst must not stall the loop.
		Sleep: func(time.Duration) {},
	})

	client := link.NewClient(central, profile, cfg.Link, log.Named("link"))

	s := &session{
		mode:         mode,
		display:      node.NewDisplay(cfg, client, ctrl, nil, log.Named("display")),
		sensing:      sensing,
		mock:         mock,
		led:          led,
		pub:          pub,
		log:          log,
		points:       make(chan history.Point, 100),
		readings:     make(chan publish.Reading, 100),
		loopDone:     make(chan struct{}),
		recorderDone: make(chan struct{}),
		publishDone:  make(chan struct{}),
		onStatus:     onStatus,
	}
	s.display.OnReading(s.handleReading)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	rec.ResetShutdown()
	go func() {
		defer close(s.recorderDone)
		rec.Process(s.points)
	}()
	go func() {
		defer close(s.publishDone)
		s.publishLoop()
	}()
	go func() {
		defer close(s.loopDone)
		s.run(ctx)
	}()

	return s, nil
}

// handleReading runs on the loop goroutine. Slow consumers lose points
// rather than stall the node.
func (s *session) handleReading(r node.Reading) {
	select {
	case s.points <- history.Point{
		Timestamp: r.Timestamp,
		BPM:       r.HeartRate,
		Touch:     r.Touch,
		Hydrated:  r.Hydrated,
	}:
	default:
	}

	select {
	case s.readings <- publish.NewReading(r.Timestamp, r.HeartRate, r.Touch, r.Hydrated, r.Connected):
	default:
		s.log.Debug("publish queue full")
	}
}

func (s *session) run(ctx context.Context) {
	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.display.Close(); err != nil {
				s.log.Warn("close failed", zap.Error(err))
			}
			return
		case now := <-ticker.C:
			if s.sensing != nil {
				s.sensing.Step(now)
			}
			s.display.Step(now)
			s.reportStatus(now)
		}
	}
}

func (s *session) reportStatus(now time.Time) {
	if s.onStatus == nil || now.Before(s.nextStatus) {
		return
	}
	s.nextStatus = now.Add(statusInterval)

	client := s.display.Client()
	s.onStatus(status{
		Reading:   s.display.Reading(),
		Link:      client.State(),
		LED:       s.led.on,
		Position:  s.display.Controller().Mover().Position(),
		Malformed: s.display.Malformed(),
		Dropped:   client.Dropped(),
	})
}

func (s *session) publishLoop() {
	for r := range s.readings {
		if s.pub == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := s.pub.Publish(ctx, r); err != nil {
			s.log.Warn("publish failed", zap.Error(err))
		}
		cancel()
	}
}

// close stops the loop, then drains the recorder and publisher goroutines.
func (s *session) close() {
	s.cancel()
	<-s.loopDone

	// The loop no longer writes to the channels.
	close(s.points)
	close(s.readings)
	<-s.recorderDone
	<-s.publishDone
}
