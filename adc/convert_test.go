package adc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolts_Boundaries(t *testing.T) {
	assert.Equal(t, 0.0, Volts(0, DefaultVref))
	assert.InDelta(t, DefaultVref, Volts(65535, DefaultVref), 1e-12)
	assert.Equal(t, "0.000", fmt.Sprintf("%.3f", Volts(0, DefaultVref)))
	assert.Equal(t, "2.943", fmt.Sprintf("%.3f", Volts(65535, DefaultVref)))
}

func TestVolts_Monotonic(t *testing.T) {
	prev := Volts(0, DefaultVref)
	for raw := 1; raw <= 65535; raw++ {
		v := Volts(Sample(raw), DefaultVref)
		if v < prev {
			t.Fatalf("volts(%d)=%f < volts(%d)=%f", raw, v, raw-1, prev)
		}
		prev = v
	}
}

func TestFormatSample(t *testing.T) {
	tests := []struct {
		bytes [2]byte
		want  string
	}{
		{[2]byte{0x12, 0x34}, "ADC raw:  4660  |  0.209 V"},
		{[2]byte{0xFF, 0xFF}, "ADC raw: 65535  |  2.943 V"},
		{[2]byte{0x00, 0x00}, "ADC raw:     0  |  0.000 V"},
	}
	for _, tt := range tests {
		raw := Decode(tt.bytes)
		assert.Equal(t, tt.want, FormatSample(raw, Volts(raw, DefaultVref)))
	}
}

func TestBanner(t *testing.T) {
	assert.Equal(t, "ADS8324E demo (1 MHz, Vref = 2.943 V)", Banner(DefaultBusConfig(), DefaultVref))
}
