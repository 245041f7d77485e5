package platform

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
	"tinygo.org/x/drivers"

	"lautenbacher.net/goads/adc"
	"lautenbacher.net/goads/config"
)

// BCM2835 SPI0 lines.
const (
	spi0CLK  = 11
	spi0MISO = 9
	spi0CE0  = 8
	spi0CE1  = 7
)

// RaspberryPiPlatform drives SPI0 of a Raspberry Pi directly through the
// BCM2835 registers. The controller asserts CE0 or CE1 around every
// exchange.
type RaspberryPiPlatform struct {
	config    *config.Config
	bus       *rpioBus
	indicator rpio.Pin
	opened    bool
	spiBegun  bool
}

func NewRaspberryPiPlatform(conf *config.Config) *RaspberryPiPlatform {
	return &RaspberryPiPlatform{config: conf}
}

func (p *RaspberryPiPlatform) Start() error {
	slog.Info("Initialise GPIO and Spi...", "platform", "rpio")

	chipSelect, err := spi0ChipSelect(p.config.Bus)
	if err != nil {
		return err
	}

	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}
	p.opened = true

	p.indicator = rpio.Pin(p.config.Indicator.Pin)
	p.indicator.Output()
	// The indicator is active low.
	p.indicator.Low()

	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		p.Stop()
		return fmt.Errorf("failed to begin spi: %w", err)
	}
	p.spiBegun = true

	rpio.SpiSpeed(adc.Frequency)
	rpio.SpiMode(0, 0)
	rpio.SpiChipSelect(chipSelect)
	rpio.SpiChipSelectPolarity(chipSelect, 0)

	p.bus = &rpioBus{}
	return nil
}

func (p *RaspberryPiPlatform) Stop() {
	p.bus = nil
	if p.spiBegun {
		rpio.SpiEnd(rpio.Spi0)
		p.spiBegun = false
	}
	if p.opened {
		p.indicator.High()
		p.indicator.Input()
		if err := rpio.Close(); err != nil {
			slog.Error("Error closing rpio", "error", err)
		}
		p.opened = false
	}
}

func (p *RaspberryPiPlatform) Bus() drivers.SPI {
	if p.bus == nil {
		return nil
	}
	return p.bus
}

// spi0ChipSelect checks that the configured lines are the fixed SPI0 lines
// and returns the chip-select number of the CE line.
func spi0ChipSelect(bus config.BusConfig) (uint8, error) {
	if bus.Clock != spi0CLK {
		return 0, fmt.Errorf("rpio spi0 clock is GPIO%d, config says GPIO%d", spi0CLK, bus.Clock)
	}
	if bus.DataIn != spi0MISO {
		return 0, fmt.Errorf("rpio spi0 data-in is GPIO%d, config says GPIO%d", spi0MISO, bus.DataIn)
	}
	switch bus.ChipSelect {
	case spi0CE0:
		return 0, nil
	case spi0CE1:
		return 1, nil
	default:
		return 0, fmt.Errorf("rpio spi0 chip-select must be GPIO%d or GPIO%d, config says GPIO%d", spi0CE0, spi0CE1, bus.ChipSelect)
	}
}

// rpioBus adapts the in-place rpio.SpiExchange to drivers.SPI.
type rpioBus struct {
	mu  sync.Mutex
	buf []byte
}

func (b *rpioBus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := max(len(w), len(r))
	if cap(b.buf) < n {
		b.buf = make([]byte, n)
	}
	data := b.buf[:n]
	clear(data)
	copy(data, w)
	rpio.SpiExchange(data)
	copy(r, data)
	return nil
}

func (b *rpioBus) Transfer(w byte) (byte, error) {
	r := make([]byte, 1)
	err := b.Tx([]byte{w}, r)
	return r[0], err
}
