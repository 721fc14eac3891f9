package sensor

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// MAX30102 registers.
const (
	regFIFOWritePtr = 0x04
	regFIFOOverflow = 0x05
	regFIFOReadPtr  = 0x06
	regFIFOData     = 0x07
	regFIFOConfig   = 0x08
	regModeConfig   = 0x09
	regSpO2Config   = 0x0A
	regLED1PA       = 0x0C // red
	regLED2PA       = 0x0D // IR
	regPartID       = 0xFF

	partID = 0x15

	modeReset = 0x40
	modeSpO2  = 0x03 // red + IR

	fifoAverage4   = 0x40
	fifoRollover   = 0x10
	fifoAlmostFull = 0x0F

	spo2Range4096 = 0x20
	spo2Rate400   = 0x0C
	spo2Width411  = 0x03

	fifoDepth   = 32
	sampleBytes = 6 // 3 bytes red, 3 bytes IR
	sampleMask  = 0x3FFFF

	resetPolls = 100
)

// DefaultAddress is the MAX30102 I2C address.
const DefaultAddress = 0x57

var _ Device = (*MAX30102)(nil)

// MAX30102 is a minimal driver for the MAX30102 pulse oximeter, reading the
// IR channel only.
type MAX30102 struct {
	bus     drivers.I2C
	Address uint16

	// RedAmplitude and IRAmplitude are the LED pulse amplitudes (0x00-0xFF).
	RedAmplitude uint8
	IRAmplitude  uint8

	last uint32
	buf  [fifoDepth * sampleBytes]byte
}

// NewMAX30102 creates a driver on bus. Zero addr selects DefaultAddress.
func NewMAX30102(bus drivers.I2C, addr uint16) *MAX30102 {
	if addr == 0 {
		addr = DefaultAddress
	}
	return &MAX30102{
		bus:          bus,
		Address:      addr,
		RedAmplitude: 0x0A, // low, only shows the sensor is running
		IRAmplitude:  0x1F,
	}
}

// Probe checks the part ID.
func (d *MAX30102) Probe() error {
	id, err := d.read(regPartID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if id != partID {
		return fmt.Errorf("%w: unexpected part id 0x%02x", ErrNotFound, id)
	}
	return nil
}

// Configure resets the device and sets up SpO2 mode: 4-sample averaging,
// 400 Hz, 411 us pulses, 4096 nA range.
func (d *MAX30102) Configure() error {
	if err := d.write(regModeConfig, modeReset); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	for i := 0; ; i++ {
		mode, err := d.read(regModeConfig)
		if err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		if mode&modeReset == 0 {
			break
		}
		if i == resetPolls {
			return errors.New("reset: timeout")
		}
	}

	regs := []struct {
		reg, value uint8
	}{
		{regFIFOConfig, fifoAverage4 | fifoRollover | fifoAlmostFull},
		{regModeConfig, modeSpO2},
		{regSpO2Config, spo2Range4096 | spo2Rate400 | spo2Width411},
		{regLED1PA, d.RedAmplitude},
		{regLED2PA, d.IRAmplitude},
		{regFIFOWritePtr, 0},
		{regFIFOOverflow, 0},
		{regFIFOReadPtr, 0},
	}
	for _, r := range regs {
		if err := d.write(r.reg, r.value); err != nil {
			return fmt.Errorf("configure register 0x%02x: %w", r.reg, err)
		}
	}
	d.last = 0
	return nil
}

// IR drains the FIFO and returns the newest IR sample. When no new sample
// is available the previous one is returned.
func (d *MAX30102) IR() (uint32, error) {
	wr, err := d.read(regFIFOWritePtr)
	if err != nil {
		return d.last, err
	}
	rd, err := d.read(regFIFOReadPtr)
	if err != nil {
		return d.last, err
	}

	n := int(wr-rd) & (fifoDepth - 1)
	if n == 0 {
		return d.last, nil
	}

	buf := d.buf[:n*sampleBytes]
	if err := d.bus.Tx(d.Address, []byte{regFIFOData}, buf); err != nil {
		return d.last, fmt.Errorf("read fifo: %w", err)
	}

	s := buf[len(buf)-sampleBytes:]
	d.last = (uint32(s[3])<<16 | uint32(s[4])<<8 | uint32(s[5])) & sampleMask
	return d.last, nil
}

func (d *MAX30102) read(reg uint8) (uint8, error) {
	var b [1]byte
	if err := d.bus.Tx(d.Address, []byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *MAX30102) write(reg, value uint8) error {
	return d.bus.Tx(d.Address, []byte{reg, value}, nil)
}
