package adc

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// NotConnected marks a bus line that is not wired.
const NotConnected = -1

const (
	// Frequency is the only SCLK rate the sampler drives the converter with.
	Frequency = 1000000
	// Mode is SPI mode 0: clock idles low, data sampled on the rising edge.
	Mode = 0

	frameSize = 2
	// over-read character clocked out while the converter shifts its result
	dummyByte = 0x00
)

// Sample is one raw conversion result.
type Sample uint16

// BusConfig describes the wiring and the electrical parameters of the
// converter's bus. It is handed to NewDriver once and never changed.
type BusConfig struct {
	Clock      int
	DataIn     int
	DataOut    int
	ChipSelect int
	Frequency  uint32
	Mode       uint8
	MSBFirst   bool
}

// DefaultBusConfig returns the wiring of the nRF52 DK reference board.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Clock:      18,
		DataIn:     16,
		DataOut:    NotConnected,
		ChipSelect: 19,
		Frequency:  Frequency,
		Mode:       Mode,
		MSBFirst:   true,
	}
}

// Validate checks that the configuration matches what the converter
// supports and that every wired line is assigned exactly once.
func (c BusConfig) Validate() error {
	if c.Frequency != Frequency {
		return fmt.Errorf("unsupported bus frequency %d Hz, must be %d Hz", c.Frequency, Frequency)
	}
	if c.Mode != Mode {
		return fmt.Errorf("unsupported SPI mode %d, must be %d", c.Mode, Mode)
	}
	if !c.MSBFirst {
		return errors.New("converter shifts MSB first, LSB first is not supported")
	}
	if c.DataOut != NotConnected {
		return fmt.Errorf("data-out line %d must not be connected", c.DataOut)
	}
	lines := map[string]int{"clock": c.Clock, "data-in": c.DataIn, "chip-select": c.ChipSelect}
	seen := make(map[int]string, len(lines))
	for _, name := range []string{"clock", "data-in", "chip-select"} {
		pin := lines[name]
		if pin < 0 {
			return fmt.Errorf("%s line must be assigned, got %d", name, pin)
		}
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("line %d assigned to both %s and %s", pin, other, name)
		}
		seen[pin] = name
	}
	return nil
}

// Driver reads conversions from an ADS8324 over SPI. Chip-select is driven
// by the bus implementation for the lifetime of each Tx call.
type Driver struct {
	bus    drivers.SPI
	config BusConfig
}

// NewDriver binds the bus to an immutable configuration.
func NewDriver(bus drivers.SPI, config BusConfig) (*Driver, error) {
	if bus == nil {
		return nil, &InitError{Op: "bus", Err: errors.New("no SPI bus given")}
	}
	if err := config.Validate(); err != nil {
		return nil, &InitError{Op: "config", Err: err}
	}
	return &Driver{bus: bus, config: config}, nil
}

// Config returns the configuration the driver was created with.
func (d *Driver) Config() BusConfig {
	return d.config
}

// Sample performs exactly one 2-byte exchange and returns the big-endian
// value that was shifted in. It blocks until the bus reports completion.
func (d *Driver) Sample() (Sample, error) {
	tx := [frameSize]byte{dummyByte, dummyByte}
	var rx [frameSize]byte
	if err := d.bus.Tx(tx[:], rx[:]); err != nil {
		return 0, &TransferError{Err: err}
	}
	return Decode(rx), nil
}

// Decode reconstructs a sample with the first received byte as MSB.
func Decode(b [2]byte) Sample {
	return Sample(b[0])<<8 | Sample(b[1])
}
