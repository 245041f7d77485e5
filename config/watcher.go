package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
)

// Watcher sends SIGHUP to the application's signal channel whenever the
// config file is written, so the application reloads it.
type Watcher struct {
	watcher  *fsnotify.Watcher
	cfile    string
	ossignal chan<- os.Signal
	done     chan struct{}
}

// Watch starts watching cfile. The directory is watched instead of the file
// itself so editors that replace the file via rename are picked up.
func Watch(cfile string, ossignal chan<- os.Signal) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	abs, err := filepath.Abs(cfile)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to resolve config path %s: %w", cfile, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		cfile:    abs,
		ossignal: ossignal,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.cfile {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				slog.Info("Config file changed, requesting reload", "file", w.cfile, "op", event.Op.String())
				select {
				case w.ossignal <- syscall.SIGHUP:
				default:
					// a signal is already pending
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

// Close stops watching and waits for the watcher goroutine to end.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
