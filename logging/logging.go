package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/tarm/serial"
)

// teeWriter is a thread-safe writer that writes to a primary target and
// copies every record to an optional log file and serial port.
type teeWriter struct {
	mu     sync.Mutex
	target io.Writer
	file   *os.File
	serial io.WriteCloser
}

func (w *teeWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error

	if w.target != nil {
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}

	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if w.serial != nil {
		if _, err := w.serial.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return len(p), firstErr
}

var (
	defaultLogger *slog.Logger
	writer        *teeWriter
	openSerial    = func(port string, baud int) (io.WriteCloser, error) {
		return serial.OpenPort(&serial.Config{Name: port, Baud: baud})
	}
)

// Init initializes the logging system. Output goes to stderr, and to
// logFilePath and serialPort when they are not empty.
func Init(levelStr, formatStr, logFilePath, serialPort string, serialBaud int) error {
	if writer != nil {
		if err := Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing previous log outputs: %v\n", err)
		}
	}

	w := &teeWriter{target: os.Stderr}

	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
		}
		w.file = file
	}

	if serialPort != "" {
		port, err := openSerial(serialPort, serialBaud)
		if err != nil {
			if w.file != nil {
				w.file.Close()
			}
			return fmt.Errorf("failed to open serial log port %s: %w", serialPort, err)
		}
		w.serial = port
	}

	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(formatStr) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	writer = w
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)

	return nil
}

// SetOutput replaces the primary log target.
func SetOutput(newTarget io.Writer) {
	writer.mu.Lock()
	defer writer.mu.Unlock()
	writer.target = newTarget
}

// Close closes the log file and the serial port. Further records only go
// to the primary target.
func Close() error {
	if writer == nil {
		return nil
	}
	writer.mu.Lock()
	defer writer.mu.Unlock()

	var firstErr error
	if writer.file != nil {
		if err := writer.file.Close(); err != nil {
			firstErr = err
		}
		writer.file = nil
	}
	if writer.serial != nil {
		if err := writer.serial.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		writer.serial = nil
	}
	return firstErr
}
