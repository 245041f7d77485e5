package adc

import "fmt"

// DefaultVref is the voltage on the VREF pin of the reference board.
const DefaultVref = 2.943

// fullScale is the normalisation denominator for a 16-bit code.
const fullScale = 65535.0

// Volts scales a raw code linearly to the reference voltage.
func Volts(raw Sample, vref float64) float64 {
	return (float64(raw) / fullScale) * vref
}

// FormatSample renders the per-sample log line.
func FormatSample(raw Sample, volts float64) string {
	return fmt.Sprintf("ADC raw: %5d  |  %.3f V", uint16(raw), volts)
}

// Banner renders the startup line announcing clock rate and reference.
func Banner(config BusConfig, vref float64) string {
	return fmt.Sprintf("ADS8324E demo (%d MHz, Vref = %.3f V)", config.Frequency/1000000, vref)
}
