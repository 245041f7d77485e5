package platform

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"lautenbacher.net/goads/adc"
	"lautenbacher.net/goads/config"
)

// PeriphPlatform drives the converter through a spidev port. The kernel
// driver asserts the port's CE line around every transfer.
type PeriphPlatform struct {
	config    *config.Config
	spiPort   spi.PortCloser
	bus       *connBus
	indicator gpio.PinIO
}

func NewPeriphPlatform(conf *config.Config) *PeriphPlatform {
	return &PeriphPlatform{config: conf}
}

func (s *PeriphPlatform) Start() error {
	slog.Info("Initialise GPIO and Spi...", "platform", "periph", "device", s.config.Bus.Device)
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to init periph: %w", err)
	}

	pin := gpioreg.ByName(gpioName(s.config.Indicator.Pin))
	if pin == nil {
		return fmt.Errorf("failed to find indicator pin %d", s.config.Indicator.Pin)
	}
	// The indicator is active low.
	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to set indicator pin %d to output: %w", s.config.Indicator.Pin, err)
	}
	s.indicator = pin

	var err error
	s.spiPort, err = spireg.Open(s.config.Bus.Device)
	if err != nil {
		s.Stop()
		return fmt.Errorf("failed to open spi: %w", err)
	}

	if err := s.spiPort.LimitSpeed(physic.Frequency(adc.Frequency) * physic.Hertz); err != nil {
		s.Stop()
		return fmt.Errorf("failed to limit spi speed: %w", err)
	}

	// Mode0 without spi.LSBFirst shifts MSB first.
	conn, err := s.spiPort.Connect(physic.Frequency(adc.Frequency)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		s.Stop()
		return fmt.Errorf("failed to connect to spi device: %w", err)
	}

	if pins, ok := conn.(spi.Pins); ok {
		if err := checkPins(pins, s.config.Bus); err != nil {
			s.Stop()
			return err
		}
	}

	s.bus = &connBus{conn: conn}
	return nil
}

func (s *PeriphPlatform) Stop() {
	if s.spiPort != nil {
		if err := s.spiPort.Close(); err != nil {
			slog.Error("Error closing spi port", "error", err)
		}
		s.spiPort = nil
	}
	s.bus = nil

	if s.indicator != nil {
		if err := s.indicator.Out(gpio.High); err != nil {
			slog.Error("Error switching indicator off", "error", err)
		}
		if err := s.indicator.Halt(); err != nil {
			slog.Error("Error halting indicator pin", "error", err)
		}
		s.indicator = nil
	}
}

func (s *PeriphPlatform) Bus() drivers.SPI {
	if s.bus == nil {
		return nil
	}
	return s.bus
}

// checkPins compares the lines the port is really wired to with the
// configured ones. Lines the host cannot report are skipped.
func checkPins(pins spi.Pins, bus config.BusConfig) error {
	check := func(role string, pin interface{ Name() string }, want int) error {
		if pin == nil {
			return nil
		}
		name := pin.Name()
		if name == "" || name == gpio.INVALID.Name() {
			return nil
		}
		if name != gpioName(want) {
			return fmt.Errorf("spi %s line is %s, config says %s", role, name, gpioName(want))
		}
		return nil
	}
	if err := check("clock", pins.CLK(), bus.Clock); err != nil {
		return err
	}
	if err := check("data-in", pins.MISO(), bus.DataIn); err != nil {
		return err
	}
	return check("chip-select", pins.CS(), bus.ChipSelect)
}

// connBus adapts a periph spi.Conn to drivers.SPI.
type connBus struct {
	conn spi.Conn
}

func (b *connBus) Tx(w, r []byte) error {
	return b.conn.Tx(w, r)
}

func (b *connBus) Transfer(w byte) (byte, error) {
	r := make([]byte, 1)
	if err := b.conn.Tx([]byte{w}, r); err != nil {
		return 0, err
	}
	return r[0], nil
}
