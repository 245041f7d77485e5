package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"lautenbacher.net/goads/adc"
)

const CONFILE = "goads.yml"

const (
	PlatformPeriph = "periph"
	PlatformRpio   = "rpio"
	PlatformSim    = "sim"
)

type Config struct {
	Platform    string           `yaml:"Platform"`
	Bus         BusConfig        `yaml:"Bus"`
	Indicator   IndicatorConfig  `yaml:"Indicator"`
	Adc         AdcConfig        `yaml:"Adc"`
	Simulation  SimulationConfig `yaml:"Simulation"`
	Logging     LoggingConfig    `yaml:"Logging"`
	WatchConfig bool             `yaml:"WatchConfig"`
}

type BusConfig struct {
	Device     string `yaml:"Device"`
	Clock      int    `yaml:"Clock"`
	DataIn     int    `yaml:"DataIn"`
	ChipSelect int    `yaml:"ChipSelect"`
}

type IndicatorConfig struct {
	Pin int `yaml:"Pin"`
}

type AdcConfig struct {
	Vref     float64       `yaml:"Vref"`
	Interval time.Duration `yaml:"Interval"`
}

type SimulationConfig struct {
	Frames    [][]int `yaml:"Frames"`
	FailAfter int     `yaml:"FailAfter"`
}

type LoggingConfig struct {
	Level  string       `yaml:"Level"`
	Format string       `yaml:"Format"`
	File   string       `yaml:"File"`
	Serial SerialConfig `yaml:"Serial"`
}

type SerialConfig struct {
	Port string `yaml:"Port"`
	Baud int    `yaml:"Baud"`
}

// ReadConfig reads, defaults and validates the configuration file.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't find config file %s: %w", cfile, err)
	}
	defer f.Close()

	conf := Config{}
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.applyDefaults()

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return &conf, nil
}

func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = PlatformPeriph
	}
	c.Platform = strings.ToLower(c.Platform)
	if c.Bus.Device == "" {
		c.Bus.Device = "/dev/spidev0.0"
	}
	if c.Adc.Vref == 0 {
		c.Adc.Vref = adc.DefaultVref
	}
	if c.Adc.Interval == 0 {
		c.Adc.Interval = 500 * time.Millisecond
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Serial.Baud == 0 {
		c.Logging.Serial.Baud = 115200
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformPeriph, PlatformRpio, PlatformSim:
	default:
		return fmt.Errorf("unknown platform %q, must be one of %s, %s, %s", c.Platform, PlatformPeriph, PlatformRpio, PlatformSim)
	}

	if err := c.AdcBusConfig().Validate(); err != nil {
		return fmt.Errorf("Bus: %w", err)
	}
	if c.Indicator.Pin < 0 {
		return fmt.Errorf("Indicator.Pin must not be negative, got %d", c.Indicator.Pin)
	}
	for _, line := range []int{c.Bus.Clock, c.Bus.DataIn, c.Bus.ChipSelect} {
		if line == c.Indicator.Pin {
			return fmt.Errorf("Indicator.Pin %d is already used by the bus", c.Indicator.Pin)
		}
	}

	if c.Adc.Vref <= 0 {
		return fmt.Errorf("Adc.Vref must be positive, got %g", c.Adc.Vref)
	}
	if c.Adc.Interval < 0 {
		return fmt.Errorf("Adc.Interval must not be negative, got %s", c.Adc.Interval)
	}

	for i, frame := range c.Simulation.Frames {
		if len(frame) != 2 {
			return fmt.Errorf("Simulation.Frames[%d] must hold exactly 2 bytes, got %d", i, len(frame))
		}
		for _, b := range frame {
			if b < 0 || b > 255 {
				return fmt.Errorf("Simulation.Frames[%d] value %d must be between 0 and 255", i, b)
			}
		}
	}
	if c.Simulation.FailAfter < 0 {
		return errors.New("Simulation.FailAfter must not be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("Logging.Format must be text or json, got %q", c.Logging.Format)
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("Logging.Level must be DEBUG, INFO, WARN or ERROR, got %q", c.Logging.Level)
	}
	if c.Logging.Serial.Baud <= 0 {
		return fmt.Errorf("Logging.Serial.Baud must be positive, got %d", c.Logging.Serial.Baud)
	}
	return nil
}

// AdcBusConfig builds the immutable bus configuration for the driver. Rate,
// mode and bit order are fixed by the converter.
func (c *Config) AdcBusConfig() adc.BusConfig {
	return adc.BusConfig{
		Clock:      c.Bus.Clock,
		DataIn:     c.Bus.DataIn,
		DataOut:    adc.NotConnected,
		ChipSelect: c.Bus.ChipSelect,
		Frequency:  adc.Frequency,
		Mode:       adc.Mode,
		MSBFirst:   true,
	}
}

// SimulationFrames converts the configured frames to byte pairs.
func (c *Config) SimulationFrames() [][2]byte {
	frames := make([][2]byte, 0, len(c.Simulation.Frames))
	for _, f := range c.Simulation.Frames {
		frames = append(frames, [2]byte{byte(f[0]), byte(f[1])})
	}
	return frames
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
