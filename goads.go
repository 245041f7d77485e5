package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"lautenbacher.net/goads/adc"
	c "lautenbacher.net/goads/config"
	"lautenbacher.net/goads/logging"
	pl "lautenbacher.net/goads/platform"
	"lautenbacher.net/goads/sampler"
)

type App struct {
	ossignal    chan os.Signal
	platform    pl.Platform
	watcher     *c.Watcher
	stopsignal  chan struct{}
	shutdownWg  sync.WaitGroup
	result      chan error
	newPlatform func(*c.Config) (pl.Platform, error)
	logOutput   io.Writer
}

func NewApp(ossignal chan os.Signal) *App {
	return &App{
		ossignal:    ossignal,
		newPlatform: pl.New,
	}
}

func main() {
	cfile := flag.String("config", c.CONFILE, "Path to the config file")
	platformName := flag.String("platform", "", "Override the platform from the config file: periph, rpio or sim")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	os.Exit(NewApp(ossignal).Run(*cfile, *platformName))
}

// Run starts sampling and blocks until the process should exit. A SIGHUP
// (sent by the config watcher, too) restarts everything with a freshly read
// config. It returns the exit code.
func (a *App) Run(cfile string, platformName string) int {
	defer logging.Close()
	for {
		conf, err := readConfig(cfile, platformName)
		if err != nil {
			slog.Error("Failed to read config", "error", err)
			return 1
		}
		if err := logging.Init(conf.Logging.Level, conf.Logging.Format, conf.Logging.File, conf.Logging.Serial.Port, conf.Logging.Serial.Baud); err != nil {
			slog.Error("Failed to initialise logging", "error", err)
			return 1
		}
		if a.logOutput != nil {
			logging.SetOutput(a.logOutput)
		}

		if err := a.initialise(cfile, conf); err != nil {
			slog.Error("Initialisation failed, halting", "error", err)
			a.shutdown()
			return 1
		}

		select {
		case err := <-a.result:
			slog.Error("Sampling failed, halting", "error", err)
			a.shutdown()
			return 1
		case sig := <-a.ossignal:
			if sig == syscall.SIGHUP {
				slog.Info("Reloading config and restarting...", "file", cfile)
				a.shutdown()
				continue
			}
			slog.Info("Exiting...", "signal", sig.String())
			a.shutdown()
			return 0
		}
	}
}

func readConfig(cfile string, platformName string) (*c.Config, error) {
	conf, err := c.ReadConfig(cfile)
	if err != nil {
		return nil, err
	}
	if platformName != "" {
		conf.Platform = platformName
		if err := conf.Validate(); err != nil {
			return nil, fmt.Errorf("invalid -platform flag: %w", err)
		}
	}
	return conf, nil
}

func (a *App) initialise(cfile string, conf *c.Config) error {
	a.stopsignal = make(chan struct{})
	a.result = make(chan error, 1)

	platform, err := a.newPlatform(conf)
	if err != nil {
		return err
	}
	if err := platform.Start(); err != nil {
		return &adc.InitError{Op: "platform", Err: err}
	}
	a.platform = platform

	driver, err := adc.NewDriver(platform.Bus(), conf.AdcBusConfig())
	if err != nil {
		return err
	}

	if conf.WatchConfig {
		a.watcher, err = c.Watch(cfile, a.ossignal)
		if err != nil {
			return err
		}
	}

	slog.Info(adc.Banner(driver.Config(), conf.Adc.Vref))

	s := sampler.New(driver, conf.Adc.Vref, conf.Adc.Interval, slog.Default())
	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		if err := s.Run(a.stopsignal); err != nil {
			a.result <- err
		}
	}()
	return nil
}

func (a *App) shutdown() {
	if a.stopsignal != nil {
		close(a.stopsignal)
		a.shutdownWg.Wait()
		a.stopsignal = nil
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			slog.Error("Error closing config watcher", "error", err)
		}
		a.watcher = nil
	}
	if a.platform != nil {
		a.platform.Stop()
		a.platform = nil
	}
}
