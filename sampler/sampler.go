package sampler

import (
	"log/slog"
	"time"

	"lautenbacher.net/goads/adc"
)

// DefaultInterval is the pause between the end of one log record and the
// start of the next transfer.
const DefaultInterval = 500 * time.Millisecond

// Source delivers one raw conversion per call.
type Source interface {
	Sample() (adc.Sample, error)
}

// Sampler drives the sampling cadence and logs every conversion.
type Sampler struct {
	source   Source
	vref     float64
	interval time.Duration
	logger   *slog.Logger
	sleep    func(d time.Duration, stop <-chan struct{}) bool
}

// New creates a sampler. A nil logger means slog.Default().
func New(source Source, vref float64, interval time.Duration, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		source:   source,
		vref:     vref,
		interval: interval,
		logger:   logger,
		sleep:    sleepOrStop,
	}
}

// Run samples forever. It returns the first transfer error without logging
// a record for that iteration, or nil once stop is closed.
func (s *Sampler) Run(stop <-chan struct{}) error {
	for {
		raw, err := s.source.Sample()
		if err != nil {
			return err
		}
		volts := adc.Volts(raw, s.vref)
		s.logger.Info(adc.FormatSample(raw, volts), "raw", uint16(raw), "volts", volts)

		if !s.sleep(s.interval, stop) {
			s.logger.Info("Ending sampler loop...")
			return nil
		}
	}
}

// sleepOrStop blocks for d and reports false if stop was closed instead.
func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
