//go:build tinygo

//go:generate tinygo flash -target=xiao-ble .

package main

import (
	"machine"
	"time"

	"github.com/itohio/gohrm/pkg/actuator"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/link"
	"github.com/itohio/gohrm/pkg/logging"
	"github.com/itohio/gohrm/pkg/node"
	"github.com/itohio/gohrm/pkg/payload"
	"github.com/itohio/gohrm/pkg/sensor"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

func main() {
	// Give the USB serial console time to attach.
	time.Sleep(2 * time.Second)

	cfg := config.Default()
	log := logging.NewWriter(machine.Serial, cfg.Log.Level).With(zap.String("node", "sensing"))
	log.Info("starting", zap.String("name", cfg.Link.LocalName))

	output := machine.PinConfig{Mode: machine.PinOutput}
	for _, pin := range []machine.Pin{PIN_LED, PIN_COIL_A1, PIN_COIL_A2, PIN_COIL_B1, PIN_COIL_B2} {
		pin.Configure(output)
		pin.Low()
	}
	PIN_TOUCH.Configure(machine.PinConfig{Mode: machine.PinInput})

	// Local outputs follow the touch pad or finger presence.
	cfg.Actuator.Trigger = config.TriggerTouch

	var local *actuator.Controller
	if LOCAL_ACTUATOR {
		local = actuator.New(cfg.Actuator, actuator.Outputs{
			LED:   PIN_LED,
			Coils: [4]actuator.Pin{PIN_COIL_A1, PIN_COIL_A2, PIN_COIL_B1, PIN_COIL_B2},
		})
		testMotor(local.Mover(), log)
	}

	optical := initSensor(cfg, log)

	profile, err := link.ProfileFromConfig(cfg.Link)
	if err != nil {
		fatal(log, "invalid link profile", err)
	}
	initial := payload.Encode(payload.Format(cfg.Link.Format), payload.Message{})
	periph, err := link.NewBLEPeripheral(bluetooth.DefaultAdapter, profile, cfg.Link.LocalName, initial)
	if err != nil {
		fatal(log, "bluetooth init failed", err)
	}

	n := node.NewSensing(cfg, node.SensingConfig{
		Optical: optical,
		Touch:   sensor.PinTouch{Pin: PIN_TOUCH},
		Server:  link.NewServer(periph, cfg.Link, log),
		Local:   local,
	}, log)

	log.Info("ready, place a finger on the sensor or touch the pad")
	for {
		n.Step(time.Now())
		time.Sleep(LOOP_INTERVAL)
	}
}

func initSensor(cfg *config.Config, log *zap.Logger) sensor.Optical {
	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: I2C_FREQUENCY,
		SDA:       PIN_SDA,
		SCL:       PIN_SCL,
	})
	if err != nil {
		log.Warn("i2c configure failed", zap.Error(err))
	}

	dev := sensor.NewMAX30102(machine.I2C0, cfg.Sensor.I2CAddress)
	optical, err := sensor.Init(dev, sensor.PolicyFromConfig(cfg.Sensor), log)
	if err != nil {
		fatal(log, "sensor missing", err)
	}
	return optical
}

// testMotor moves the motor forward and back once at start-up.
func testMotor(m actuator.Mover, log *zap.Logger) {
	log.Info("testing motor")
	for _, target := range []actuator.Endpoint{actuator.Forward, actuator.Backward} {
		m.MoveTo(target, time.Now())
		for m.Busy() {
			m.Tick(time.Now())
			time.Sleep(time.Millisecond)
		}
		time.Sleep(time.Second)
	}
	m.Release()
	log.Info("motor test complete")
}

// fatal logs err and blinks the LED forever.
func fatal(log *zap.Logger, msg string, err error) {
	log.Error(msg, zap.Error(err))
	for {
		PIN_LED.High()
		time.Sleep(200 * time.Millisecond)
		PIN_LED.Low()
		time.Sleep(200 * time.Millisecond)
	}
}
