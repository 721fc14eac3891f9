//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// Loop cadence
	LOOP_INTERVAL = 10 * time.Millisecond

	// Drive the LED and motor locally from touch or finger presence.
	LOCAL_ACTUATOR = true

	// Optical sensor on I2C0
	PIN_SDA       = machine.D4
	PIN_SCL       = machine.D5
	I2C_FREQUENCY = 400 * machine.KHz

	// TTP223 touch module output, high when touched
	PIN_TOUCH = machine.D2

	// Outputs
	PIN_LED     = machine.LED
	PIN_COIL_A1 = machine.D6
	PIN_COIL_A2 = machine.D7
	PIN_COIL_B1 = machine.D8
	PIN_COIL_B2 = machine.D9
)
