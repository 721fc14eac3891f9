//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// Loop cadence; one motor step per tick at most
	LOOP_INTERVAL = 5 * time.Millisecond

	// Stepper (28BYJ-48 through ULN2003)
	PIN_COIL_A1 = machine.D0
	PIN_COIL_A2 = machine.D1
	PIN_COIL_B1 = machine.D2
	PIN_COIL_B2 = machine.D3

	// easystepper parameters for the legacy blocking mode
	STEPS_PER_REV = 2048
	MOTOR_RPM     = 10

	PIN_LED = machine.LED

	// ST7789 TFT on SPI0
	PIN_TFT_RST   = machine.D5
	PIN_TFT_DC    = machine.D6
	PIN_TFT_CS    = machine.D7
	PIN_SCK       = machine.D8
	PIN_BACKLIGHT = machine.D9
	PIN_SDO       = machine.D10
	SPI_FREQUENCY = 8 * machine.MHz
	TFT_WIDTH     = 135
	TFT_HEIGHT    = 240
)
