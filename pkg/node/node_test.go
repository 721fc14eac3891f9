package node

import (
	"errors"
	"testing"
	"time"

	"github.com/itohio/gohrm/pkg/actuator"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/display"
	"github.com/itohio/gohrm/pkg/heartrate"
	"github.com/itohio/gohrm/pkg/link"
	"github.com/itohio/gohrm/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 5 * time.Millisecond

type fakePin struct{ level bool }

func (p *fakePin) Set(high bool) { p.level = high }

type outputs struct {
	led   *fakePin
	coils [4]*fakePin
}

func newController(cfg config.ActuatorConfig) (*actuator.Controller, *outputs) {
	out := &outputs{led: &fakePin{}}
	var coils [4]actuator.Pin
	for i := range out.coils {
		out.coils[i] = &fakePin{}
		coils[i] = out.coils[i]
	}
	return actuator.New(cfg, actuator.Outputs{LED: out.led, Coils: coils}), out
}

type renderCall struct {
	status display.Status
	trend  []int
	avg    int
}

type fakeRenderer struct {
	calls []renderCall
	err   error
}

func (r *fakeRenderer) Render(st display.Status, trend []int, avg int) error {
	r.calls = append(r.calls, renderCall{st, trend, avg})
	return r.err
}

type displayRig struct {
	cfg    *config.Config
	node   *Display
	radio  *link.Loopback
	out    *outputs
	screen *fakeRenderer
	now    time.Time
}

func newDisplayRig(t *testing.T, cfg *config.Config) *displayRig {
	profile, err := link.ProfileFromConfig(cfg.Link)
	require.NoError(t, err)

	radio := link.NewLoopback(profile)
	client := link.NewClient(radio.Central(), profile, cfg.Link, nil)
	ctrl, out := newController(cfg.Actuator)
	screen := &fakeRenderer{}

	return &displayRig{
		cfg:    cfg,
		node:   NewDisplay(cfg, client, ctrl, screen, nil),
		radio:  radio,
		out:    out,
		screen: screen,
		now:    time.Unix(1000, 0),
	}
}

func (r *displayRig) step(n int) {
	for i := 0; i < n; i++ {
		r.node.Step(r.now)
		r.now = r.now.Add(tick)
	}
}

// connect advertises the peripheral and steps until the client connects.
func (r *displayRig) connect(t *testing.T) {
	require.NoError(t, r.radio.Peripheral().Advertise())
	r.step(3)
	require.True(t, r.node.Client().Connected())
	require.True(t, r.node.Reading().Connected)
}

func (r *displayRig) send(t *testing.T, value string) {
	require.NoError(t, r.radio.Peripheral().Notify([]byte(value)))
	r.step(1)
}

func TestDisplay_PayloadCrossesThreshold(t *testing.T) {
	rig := newDisplayRig(t, config.Default())
	rig.connect(t)
	ctrl := rig.node.Controller()

	rig.send(t, "72,1,0")

	r := rig.node.Reading()
	assert.Equal(t, 72, r.HeartRate)
	assert.True(t, r.Touch)
	assert.True(t, r.Hydrated)
	assert.False(t, r.MotorForward)
	assert.Equal(t, heartrate.ZoneNormal, r.Zone)
	assert.Equal(t, actuator.StateHigh, r.Threshold)

	assert.Equal(t, 1, ctrl.Moves(), "exactly one forward move")
	assert.Equal(t, rig.cfg.Actuator.TotalSteps, ctrl.Mover().(*actuator.IncrementalMover).Target())
	assert.True(t, ctrl.LED().Blinking())

	// Same side of the threshold: nothing new.
	for i := 0; i < 5; i++ {
		rig.send(t, "75,1,0")
	}
	assert.Equal(t, 1, ctrl.Moves())

	// Let the motor reach the endpoint and the blink sequence finish.
	rig.step(250)
	assert.Equal(t, rig.cfg.Actuator.TotalSteps, ctrl.Mover().Position())
	assert.True(t, rig.out.led.level, "LED holds solid after blinking")
}

func TestDisplay_TaggedPayload(t *testing.T) {
	rig := newDisplayRig(t, config.Default())
	rig.connect(t)

	rig.send(t, "HR:85,HYD:1")
	r := rig.node.Reading()
	assert.Equal(t, 85, r.HeartRate)
	assert.True(t, r.Hydrated)

	rig.send(t, "HR:60,HYD:0")
	r = rig.node.Reading()
	assert.Equal(t, 60, r.HeartRate)
	assert.False(t, r.Hydrated)
	assert.True(t, rig.node.Controller().Pending(), "dwell holds the backward move")

	rig.now = rig.now.Add(rig.cfg.Actuator.Dwell)
	rig.step(1)
	assert.Equal(t, actuator.StateLow, rig.node.Controller().State())
	assert.Equal(t, 2, rig.node.Controller().Moves())
	assert.False(t, rig.out.led.level)
}

func TestDisplay_MalformedPayloadDropped(t *testing.T) {
	rig := newDisplayRig(t, config.Default())
	rig.connect(t)
	rig.send(t, "HR:85,HYD:1")

	for _, bad := range []string{"garbage", "HR:", "85;1", ""} {
		rig.send(t, bad)
	}
	assert.Equal(t, 85, rig.node.Reading().HeartRate)
	assert.Equal(t, 4, rig.node.Malformed())
}

func TestDisplay_LinkLossResets(t *testing.T) {
	rig := newDisplayRig(t, config.Default())
	var readings []Reading
	rig.node.OnReading(func(r Reading) { readings = append(readings, r) })

	rig.connect(t)
	rig.send(t, "HR:95,HYD:1")
	rig.step(rig.cfg.Actuator.TotalSteps + 10)
	require.Equal(t, actuator.StateHigh, rig.node.Controller().State())

	rig.radio.Drop()
	rig.step(1)

	r := rig.node.Reading()
	assert.False(t, r.Connected)
	assert.Zero(t, r.HeartRate)
	assert.False(t, r.Hydrated)
	assert.Equal(t, actuator.StateUnknown, r.Threshold)
	assert.Equal(t, link.StateIdle, rig.node.Client().State())
	assert.False(t, rig.out.led.level)
	assert.Equal(t, 0, rig.node.Controller().Mover().(*actuator.IncrementalMover).Target(), "motor back to neutral")
	assert.Zero(t, rig.node.Trend().Len(), "trend restarted")

	require.NotEmpty(t, readings)
	assert.False(t, readings[len(readings)-1].Connected)

	// Reconnects after the retry interval and resumes.
	rig.now = rig.now.Add(rig.cfg.Link.RetryInterval)
	require.NoError(t, rig.radio.Peripheral().Advertise())
	rig.step(3)
	assert.True(t, rig.node.Client().Connected())
}

func TestDisplay_TouchTrigger(t *testing.T) {
	cfg := config.Default()
	cfg.Actuator.Trigger = config.TriggerTouch
	rig := newDisplayRig(t, cfg)
	rig.connect(t)

	rig.send(t, "40,1,0")
	assert.Equal(t, actuator.StateHigh, rig.node.Controller().State())

	rig.send(t, "120,0,1")
	assert.True(t, rig.node.Controller().Pending(), "heart rate is ignored, touch released")
}

func TestDisplay_ScreenRefresh(t *testing.T) {
	rig := newDisplayRig(t, config.Default())
	rig.connect(t)
	require.Len(t, rig.screen.calls, 1, "first tick renders")
	assert.False(t, rig.screen.calls[0].status.Connected)

	rig.send(t, "HR:80,HYD:1")
	rig.now = rig.now.Add(rig.cfg.Display.RefreshInterval)
	rig.step(1)

	require.Len(t, rig.screen.calls, 2)
	last := rig.screen.calls[1]
	assert.Equal(t, display.Status{BPM: 80, Connected: true, Hydrated: true, Touch: true}, last.status)
	assert.Equal(t, []int{0, 80}, last.trend)
	assert.Equal(t, 80, last.avg)

	rig.screen.err = errors.New("spi")
	rig.now = rig.now.Add(rig.cfg.Display.RefreshInterval)
	assert.NotPanics(t, func() { rig.step(1) })
}

type scriptedOptical struct {
	values []uint32
	err    error
}

func (o *scriptedOptical) IR() (uint32, error) {
	if o.err != nil {
		return 0, o.err
	}
	if len(o.values) == 0 {
		return 0, nil
	}
	v := o.values[0]
	if len(o.values) > 1 {
		o.values = o.values[1:]
	}
	return v, nil
}

type fakeTouch struct{ on bool }

func (f *fakeTouch) Touched() bool { return f.on }

func TestSensing_PublishesToCentral(t *testing.T) {
	cfg := config.Default()
	profile, err := link.ProfileFromConfig(cfg.Link)
	require.NoError(t, err)
	radio := link.NewLoopback(profile)

	touch := &fakeTouch{on: true}
	s := NewSensing(cfg, SensingConfig{
		Optical: &scriptedOptical{values: []uint32{1000}},
		Touch:   touch,
		Server:  link.NewServer(radio.Peripheral(), cfg.Link, nil),
	}, nil)

	now := time.Unix(1000, 0)
	s.Step(now)
	assert.True(t, s.Server().Advertising())

	peer, err := radio.Central().Connect(link.LoopbackPeripheralAddress)
	require.NoError(t, err)
	char, err := peer.Characteristic(profile)
	require.NoError(t, err)
	var got []string
	require.NoError(t, char.EnableNotifications(func(v []byte) { got = append(got, string(v)) }))

	now = now.Add(10 * time.Millisecond)
	s.Step(now)
	require.Equal(t, []string{"HR:0,HYD:1"}, got)
	assert.True(t, s.Touched())

	// Unchanged within the heartbeat: nothing.
	now = now.Add(200 * time.Millisecond)
	s.Step(now)
	assert.Len(t, got, 1)

	touch.on = false
	now = now.Add(200 * time.Millisecond)
	s.Step(now)
	assert.Equal(t, "HR:0,HYD:0", got[len(got)-1])
}

func TestSensing_DegradedSensor(t *testing.T) {
	cfg := config.Default()
	cfg.Link.Format = config.FormatCSV
	cfg.Actuator.Trigger = config.TriggerTouch
	profile, err := link.ProfileFromConfig(cfg.Link)
	require.NoError(t, err)
	radio := link.NewLoopback(profile)
	local, out := newController(cfg.Actuator)

	touch := &fakeTouch{on: true}
	s := NewSensing(cfg, SensingConfig{
		Optical: sensor.None{},
		Touch:   touch,
		Server:  link.NewServer(radio.Peripheral(), cfg.Link, nil),
		Local:   local,
	}, nil)

	now := time.Unix(1000, 0)
	s.Step(now)
	assert.Equal(t, actuator.StateHigh, local.State(), "touch still drives the outputs")
	assert.True(t, out.led.level)
	assert.Zero(t, s.Reading().Average)

	peer, err := radio.Central().Connect(link.LoopbackPeripheralAddress)
	require.NoError(t, err)
	char, err := peer.Characteristic(profile)
	require.NoError(t, err)
	var got []string
	require.NoError(t, char.EnableNotifications(func(v []byte) { got = append(got, string(v)) }))

	now = now.Add(10 * time.Millisecond)
	s.Step(now)
	assert.Equal(t, []string{"0,1,1"}, got)
}

func TestSensing_ReadErrorsKeepRunning(t *testing.T) {
	cfg := config.Default()
	profile, err := link.ProfileFromConfig(cfg.Link)
	require.NoError(t, err)
	radio := link.NewLoopback(profile)

	opt := &scriptedOptical{err: errors.New("i2c")}
	s := NewSensing(cfg, SensingConfig{
		Optical: opt,
		Server:  link.NewServer(radio.Peripheral(), cfg.Link, nil),
	}, nil)

	now := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		assert.NotPanics(t, func() { s.Step(now) })
		now = now.Add(10 * time.Millisecond)
	}
	assert.False(t, s.Reading().Present)

	opt.err = nil
	opt.values = []uint32{100000}
	s.Step(now)
	assert.True(t, s.Reading().Present)
	assert.False(t, s.Touched())
}

// flakyOptical forwards to an inner sensor until err is set.
type flakyOptical struct {
	inner sensor.Optical
	err   error
}

func (o *flakyOptical) IR() (uint32, error) {
	if o.err != nil {
		return 0, o.err
	}
	return o.inner.IR()
}

func TestSensing_ReadErrorsClearHeartRate(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.BPM = 100
	profile, err := link.ProfileFromConfig(cfg.Link)
	require.NoError(t, err)
	radio := link.NewLoopback(profile)

	now := time.Unix(1000, 0)
	mock := sensor.NewMock(cfg.Mock, func() time.Time { return now })
	opt := &flakyOptical{inner: mock}
	s := NewSensing(cfg, SensingConfig{
		Optical: opt,
		Touch:   &fakeTouch{},
		Server:  link.NewServer(radio.Peripheral(), cfg.Link, nil),
	}, nil)

	s.Step(now)
	peer, err := radio.Central().Connect(link.LoopbackPeripheralAddress)
	require.NoError(t, err)
	char, err := peer.Characteristic(profile)
	require.NoError(t, err)
	var got []string
	require.NoError(t, char.EnableNotifications(func(v []byte) { got = append(got, string(v)) }))

	end := now.Add(10 * time.Second)
	for now.Before(end) {
		s.Step(now)
		now = now.Add(cfg.Mock.SampleRate)
	}
	require.True(t, s.Reading().Present)
	require.NotZero(t, s.Reading().Average)

	opt.err = errors.New("i2c")
	for i := 0; i < cfg.Sensor.MaxReadFailures-1; i++ {
		s.Step(now)
		now = now.Add(cfg.Mock.SampleRate)
	}
	assert.NotZero(t, s.Reading().Average, "a short glitch keeps the last reading")

	end = now.Add(2 * time.Second)
	for now.Before(end) {
		s.Step(now)
		now = now.Add(cfg.Mock.SampleRate)
	}
	assert.Equal(t, heartrate.Reading{}, s.Reading())
	require.NotEmpty(t, got)
	assert.Equal(t, "HR:0,HYD:0", got[len(got)-1])

	opt.err = nil
	assert.NotPanics(t, func() { s.Step(now) })
}

func TestSensingAndDisplay_EndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.BPM = 90
	cfg.Mock.TouchPeriod = 20 * time.Second

	profile, err := link.ProfileFromConfig(cfg.Link)
	require.NoError(t, err)
	radio := link.NewLoopback(profile)

	now := time.Unix(1000, 0)
	mock := sensor.NewMock(cfg.Mock, func() time.Time { return now })
	sensing := NewSensing(cfg, SensingConfig{
		Optical: mock,
		Touch:   mock,
		Server:  link.NewServer(radio.Peripheral(), cfg.Link, nil),
	}, nil)

	client := link.NewClient(radio.Central(), profile, cfg.Link, nil)
	ctrl, _ := newController(cfg.Actuator)
	disp := NewDisplay(cfg, client, ctrl, nil, nil)

	end := now.Add(8 * time.Second)
	for now.Before(end) {
		sensing.Step(now)
		disp.Step(now)
		now = now.Add(cfg.Mock.SampleRate)
	}

	r := disp.Reading()
	assert.True(t, r.Connected)
	assert.InDelta(t, 90, r.HeartRate, 6)
	assert.True(t, r.Hydrated)
	assert.Equal(t, actuator.StateHigh, ctrl.State())
	assert.GreaterOrEqual(t, ctrl.Moves(), 1)
}
