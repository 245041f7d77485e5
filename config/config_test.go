package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lautenbacher.net/goads/adc"
)

const validConfig = `
Platform: sim
Bus:
  Device: /dev/spidev0.0
  Clock: 11
  DataIn: 9
  ChipSelect: 8
Indicator:
  Pin: 17
Adc:
  Vref: 2.943
  Interval: 500ms
Simulation:
  Frames: [[0x12, 0x34], [0xFF, 0xFF]]
  FailAfter: 0
Logging:
  Level: "DEBUG"
  Format: "text"
  File: ""
WatchConfig: true
`

func createConfigFile(t *testing.T, configData string) string {
	configFile := filepath.Join(t.TempDir(), "goads.yml")
	err := os.WriteFile(configFile, []byte(configData), 0o644)
	if err != nil {
		t.Fatalf("Failed to write dummy config file: %v", err)
	}
	return configFile
}

func TestReadConfig_Valid(t *testing.T) {
	configFile := createConfigFile(t, validConfig)

	conf, err := ReadConfig(configFile)
	require.NoError(t, err, "ReadConfig should not return an error for a valid config")

	assert.Equal(t, PlatformSim, conf.Platform)
	assert.Equal(t, 17, conf.Indicator.Pin)
	assert.Equal(t, 500*time.Millisecond, conf.Adc.Interval)
	assert.Equal(t, 2.943, conf.Adc.Vref)
	assert.Equal(t, 115200, conf.Logging.Serial.Baud, "baud rate should be defaulted")
	assert.True(t, conf.WatchConfig)
	assert.Equal(t, [][2]byte{{0x12, 0x34}, {0xFF, 0xFF}}, conf.SimulationFrames())

	bus := conf.AdcBusConfig()
	assert.Equal(t, adc.BusConfig{
		Clock:      11,
		DataIn:     9,
		DataOut:    adc.NotConnected,
		ChipSelect: 8,
		Frequency:  1000000,
		Mode:       0,
		MSBFirst:   true,
	}, bus)
}

func TestReadConfig_Defaults(t *testing.T) {
	configFile := createConfigFile(t, `
Bus:
  Clock: 11
  DataIn: 9
  ChipSelect: 8
Indicator:
  Pin: 17
`)
	conf, err := ReadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, PlatformPeriph, conf.Platform)
	assert.Equal(t, "/dev/spidev0.0", conf.Bus.Device)
	assert.Equal(t, adc.DefaultVref, conf.Adc.Vref)
	assert.Equal(t, 500*time.Millisecond, conf.Adc.Interval)
	assert.Equal(t, "INFO", conf.Logging.Level)
	assert.Equal(t, "text", conf.Logging.Format)
	assert.False(t, conf.WatchConfig)
}

func TestReadConfig_FileNotFound(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "can't find config file")
}

func TestReadConfig_UnknownField(t *testing.T) {
	configFile := createConfigFile(t, validConfig+"Frequency: 2000000\n")
	_, err := ReadConfig(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "can't decode config file")
}

func TestReadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		old     string
		new     string
		wantErr string
	}{
		{"platform", "Platform: sim", "Platform: arduino", "unknown platform"},
		{"duplicate bus line", "ChipSelect: 8", "ChipSelect: 11", "assigned to both"},
		{"indicator on bus", "Pin: 17", "Pin: 9", "already used by the bus"},
		{"vref", "Vref: 2.943", "Vref: -1", "Adc.Vref must be positive"},
		{"frame length", "[0x12, 0x34]", "[0x12]", "exactly 2 bytes"},
		{"frame value", "[0xFF, 0xFF]", "[0xFF, 256]", "must be between 0 and 255"},
		{"fail after", "FailAfter: 0", "FailAfter: -1", "FailAfter must not be negative"},
		{"log format", `Format: "text"`, `Format: "xml"`, "Logging.Format"},
		{"log level", `Level: "DEBUG"`, `Level: "TRACE"`, "Logging.Level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configData := strings.Replace(validConfig, tt.old, tt.new, 1)
			configFile := createConfigFile(t, configData)

			_, err := ReadConfig(configFile)
			assert.Error(t, err, "ReadConfig should return an error")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
