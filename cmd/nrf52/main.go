//go:build tinygo && nrf52

// Firmware for the nRF52 DK (PCA10040) with an ADS8324E on SPIM0.
//
//	LED1  P0.17  on while running (active low)
//	SCLK  P0.18  1 MHz, mode 0
//	CS    P0.19  toggled around every transfer
//	MISO  P0.16  ADS DOUT
//
// Build: tinygo flash -target=pca10040 ./cmd/nrf52
package main

import (
	"log/slog"
	"machine"
	"time"

	"lautenbacher.net/goads/adc"
	"lautenbacher.net/goads/sampler"
)

// csBus brackets every transfer with chip-select, active low.
type csBus struct {
	spi *machine.SPI
	cs  machine.Pin
}

func (b *csBus) Tx(w, r []byte) error {
	b.cs.Low()
	defer b.cs.High()
	return b.spi.Tx(w, r)
}

func (b *csBus) Transfer(w byte) (byte, error) {
	b.cs.Low()
	defer b.cs.High()
	return b.spi.Transfer(w)
}

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})
	logger := slog.New(slog.NewTextHandler(machine.Serial, nil))

	cfg := adc.DefaultBusConfig()

	led := machine.P0_17
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.Low()

	cs := machine.Pin(cfg.ChipSelect)
	cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
	cs.High()

	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: cfg.Frequency,
		SCK:       machine.Pin(cfg.Clock),
		SDO:       machine.NoPin,
		SDI:       machine.Pin(cfg.DataIn),
		Mode:      cfg.Mode,
		LSBFirst:  !cfg.MSBFirst,
	})
	if err != nil {
		halt(logger, &adc.InitError{Op: "spi", Err: err})
	}

	driver, err := adc.NewDriver(&csBus{spi: machine.SPI0, cs: cs}, cfg)
	if err != nil {
		halt(logger, err)
	}

	logger.Info(adc.Banner(cfg, adc.DefaultVref))

	s := sampler.New(driver, adc.DefaultVref, sampler.DefaultInterval, logger)
	halt(logger, s.Run(nil))
}

// halt reports err and stops doing anything else.
func halt(logger *slog.Logger, err error) {
	logger.Error("Halting", "error", err)
	for {
		time.Sleep(time.Hour)
	}
}
