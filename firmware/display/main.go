//go:build tinygo

//go:generate tinygo flash -target=xiao-ble .

package main

import (
	"machine"
	"time"

	"github.com/itohio/gohrm/pkg/actuator"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/display"
	"github.com/itohio/gohrm/pkg/link"
	"github.com/itohio/gohrm/pkg/logging"
	"github.com/itohio/gohrm/pkg/node"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
	"tinygo.org/x/drivers/easystepper"
	"tinygo.org/x/drivers/st7789"
)

func main() {
	// Give the USB serial console time to attach.
	time.Sleep(2 * time.Second)

	cfg := config.Default()
	log := logging.NewWriter(machine.Serial, cfg.Log.Level).With(zap.String("node", "display"))
	log.Info("starting")

	output := machine.PinConfig{Mode: machine.PinOutput}
	for _, pin := range []machine.Pin{PIN_LED, PIN_COIL_A1, PIN_COIL_A2, PIN_COIL_B1, PIN_COIL_B2, PIN_BACKLIGHT} {
		pin.Configure(output)
		pin.Low()
	}

	ctrl := actuator.New(cfg.Actuator, actuator.Outputs{
		LED:     PIN_LED,
		Coils:   [4]actuator.Pin{PIN_COIL_A1, PIN_COIL_A2, PIN_COIL_B1, PIN_COIL_B2},
		Burster: newBurster(cfg, log),
	})
	testOutputs(ctrl, log)

	screen := initScreen(cfg, log)

	central, err := link.NewBLECentral(bluetooth.DefaultAdapter, log)
	if err != nil {
		fatal(log, "bluetooth init failed", err)
	}
	profile, err := link.ProfileFromConfig(cfg.Link)
	if err != nil {
		fatal(log, "invalid link profile", err)
	}
	client := link.NewClient(central, profile, cfg.Link, log)

	n := node.NewDisplay(cfg, client, ctrl, screen, log)
	log.Info("ready, scanning for the sensing node")
	for {
		n.Step(time.Now())
		time.Sleep(LOOP_INTERVAL)
	}
}

// newBurster returns the easystepper driver in blocking mode, nil otherwise.
func newBurster(cfg *config.Config, log *zap.Logger) actuator.Burster {
	if cfg.Actuator.Mode != config.ModeBlocking {
		return nil
	}
	dev, err := easystepper.New(easystepper.DeviceConfig{
		Pin1:      PIN_COIL_A1,
		Pin2:      PIN_COIL_A2,
		Pin3:      PIN_COIL_B1,
		Pin4:      PIN_COIL_B2,
		StepCount: STEPS_PER_REV,
		RPM:       MOTOR_RPM,
		Mode:      easystepper.ModeFour,
	})
	if err != nil {
		log.Warn("easystepper unavailable, using built-in sequence", zap.Error(err))
		return nil
	}
	dev.Configure()
	return dev
}

func initScreen(cfg *config.Config, log *zap.Logger) node.Renderer {
	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: SPI_FREQUENCY,
		SCK:       PIN_SCK,
		SDO:       PIN_SDO,
		SDI:       machine.NoPin,
		Mode:      0,
	})
	if err != nil {
		log.Warn("spi configure failed, running without screen", zap.Error(err))
		return nil
	}

	tft := st7789.New(machine.SPI0, PIN_TFT_RST, PIN_TFT_DC, PIN_TFT_CS, PIN_BACKLIGHT)
	tft.Configure(st7789.Config{
		Width:        TFT_WIDTH,
		Height:       TFT_HEIGHT,
		ColumnOffset: 52,
		RowOffset:    40,
	})
	return display.New(&tft, cfg.Display, PIN_BACKLIGHT)
}

// testOutputs lights the LED and runs the motor forward and back once.
func testOutputs(ctrl *actuator.Controller, log *zap.Logger) {
	log.Info("testing LED and motor")
	PIN_LED.High()
	time.Sleep(500 * time.Millisecond)
	PIN_LED.Low()

	m := ctrl.Mover()
	for _, target := range []actuator.Endpoint{actuator.Forward, actuator.Backward} {
		m.MoveTo(target, time.Now())
		for m.Busy() {
			m.Tick(time.Now())
			time.Sleep(time.Millisecond)
		}
		time.Sleep(time.Second)
	}
	m.Release()
	log.Info("self-test complete")
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
