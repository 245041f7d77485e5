package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"

	"lautenbacher.net/goads/adc"
	c "lautenbacher.net/goads/config"
	pl "lautenbacher.net/goads/platform"
)

const testConfig = `
Platform: sim
Bus:
  Clock: 11
  DataIn: 9
  ChipSelect: 8
Indicator:
  Pin: 17
Adc:
  Vref: 2.943
  Interval: 10ms
Simulation:
  Frames: [[0x12, 0x34], [0xFF, 0xFF]]
  FailAfter: %FAIL%
Logging:
  Level: INFO
  Format: text
`

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, failAfter string) string {
	cfile := filepath.Join(t.TempDir(), "goads.yml")
	data := strings.Replace(testConfig, "%FAIL%", failAfter, 1)
	require.NoError(t, os.WriteFile(cfile, []byte(data), 0o644))
	return cfile
}

// newTestApp records every platform it creates.
func newTestApp(out *syncBuffer) (*App, *[]*pl.SimPlatform) {
	ossignal := make(chan os.Signal, 1)
	app := NewApp(ossignal)
	app.logOutput = out
	var platforms []*pl.SimPlatform
	app.newPlatform = func(conf *c.Config) (pl.Platform, error) {
		p := pl.NewSimPlatform(conf)
		platforms = append(platforms, p)
		return p, nil
	}
	return app, &platforms
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRun_HaltsOnTransferFault(t *testing.T) {
	out := &syncBuffer{}
	app, platforms := newTestApp(out)

	code := app.Run(writeConfig(t, "2"), "")

	assert.Equal(t, 1, code)
	log := out.String()
	assert.Contains(t, log, "ADS8324E demo (1 MHz, Vref = 2.943 V)")
	assert.Contains(t, log, "ADC raw:  4660  |  0.209 V")
	assert.Contains(t, log, "ADC raw: 65535  |  2.943 V")
	assert.Equal(t, 2, strings.Count(log, "ADC raw:"), "no sample logged after the fault")
	assert.Contains(t, log, "Sampling failed, halting")
	assert.Contains(t, log, pl.ErrSimulatedFault.Error())

	require.Len(t, *platforms, 1)
	assert.False(t, (*platforms)[0].IndicatorOn(), "indicator released on halt")
}

func TestRun_InterruptExitsCleanly(t *testing.T) {
	out := &syncBuffer{}
	app, platforms := newTestApp(out)

	done := make(chan int, 1)
	go func() { done <- app.Run(writeConfig(t, "0"), "") }()

	waitFor(t, func() bool { return strings.Count(out.String(), "ADC raw:") >= 3 })
	assert.True(t, (*platforms)[0].IndicatorOn())
	app.ossignal <- os.Interrupt

	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after interrupt")
	}
	assert.False(t, (*platforms)[0].IndicatorOn())
}

func TestRun_ReloadOnSIGHUP(t *testing.T) {
	out := &syncBuffer{}
	app, platforms := newTestApp(out)

	done := make(chan int, 1)
	go func() { done <- app.Run(writeConfig(t, "0"), "") }()

	waitFor(t, func() bool { return strings.Contains(out.String(), "ADC raw:") })
	app.ossignal <- syscall.SIGHUP
	waitFor(t, func() bool {
		return strings.Count(out.String(), "ADS8324E demo") == 2 &&
			strings.Count(out.String(), "ADC raw:  4660") == 2
	})
	app.ossignal <- syscall.SIGTERM

	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after SIGTERM")
	}
	assert.Contains(t, out.String(), "Reloading config and restarting...")
	assert.Len(t, *platforms, 2, "a fresh platform per reload")
}

func TestRun_InvalidConfig(t *testing.T) {
	out := &syncBuffer{}
	app, _ := newTestApp(out)

	assert.Equal(t, 1, app.Run(filepath.Join(t.TempDir(), "missing.yml"), ""))
	assert.Equal(t, 1, app.Run(writeConfig(t, "0"), "arduino"))
}

type failingPlatform struct{ stopped bool }

func (f *failingPlatform) Start() error     { return errors.New("resource busy") }
func (f *failingPlatform) Stop()            { f.stopped = true }
func (f *failingPlatform) Bus() drivers.SPI { return nil }

func TestRun_InitFailure(t *testing.T) {
	out := &syncBuffer{}
	app, _ := newTestApp(out)
	app.newPlatform = func(conf *c.Config) (pl.Platform, error) {
		return &failingPlatform{}, nil
	}

	assert.Equal(t, 1, app.Run(writeConfig(t, "0"), ""))
	assert.Contains(t, out.String(), "Initialisation failed, halting")
	assert.Contains(t, out.String(), "resource busy")
	assert.NotContains(t, out.String(), "ADC raw:")
}

func TestInitialise_BusError(t *testing.T) {
	app, _ := newTestApp(&syncBuffer{})
	app.newPlatform = func(conf *c.Config) (pl.Platform, error) {
		return &nilBusPlatform{}, nil
	}
	conf, err := c.ReadConfig(writeConfig(t, "0"))
	require.NoError(t, err)

	err = app.initialise("", conf)
	var ierr *adc.InitError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "bus", ierr.Op)
	app.shutdown()
}

type nilBusPlatform struct{}

func (nilBusPlatform) Start() error     { return nil }
func (nilBusPlatform) Stop()            {}
func (nilBusPlatform) Bus() drivers.SPI { return nil }
