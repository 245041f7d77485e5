package platform

import (
	"fmt"

	"tinygo.org/x/drivers"

	c "lautenbacher.net/goads/config"
)

// Platform abstracts the hardware the sampler runs on: the SPI bus the
// converter hangs off and the indicator output.
type Platform interface {
	// Start switches the indicator on and opens the bus.
	Start() error

	// Stop releases the bus and the indicator.
	Stop()

	// Bus returns the bus opened by Start. Chip-select is handled by the
	// bus for the duration of each Tx.
	Bus() drivers.SPI
}

// New creates the platform selected in the configuration.
func New(conf *c.Config) (Platform, error) {
	switch conf.Platform {
	case c.PlatformPeriph:
		return NewPeriphPlatform(conf), nil
	case c.PlatformRpio:
		return NewRaspberryPiPlatform(conf), nil
	case c.PlatformSim:
		return NewSimPlatform(conf), nil
	default:
		return nil, fmt.Errorf("unknown platform: %s", conf.Platform)
	}
}

// gpioName is the periph.io/sysfs name of a BCM line number.
func gpioName(line int) string {
	return fmt.Sprintf("GPIO%d", line)
}
