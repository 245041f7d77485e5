package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gammazero/deque"
	"tinygo.org/x/drivers"

	"lautenbacher.net/goads/config"
)

// ErrSimulatedFault is returned by the simulated converter once its
// configured number of good transfers is used up.
var ErrSimulatedFault = errors.New("simulated transfer fault")

// rampStep is the code increment of the generated signal per transfer.
const rampStep = 1285

// SimPlatform runs the sampler without hardware. The indicator is a plain
// flag and the converter answers from a queue of scripted frames, falling
// back to a generated ramp when the queue is empty.
type SimPlatform struct {
	config    *config.Config
	adc       *SimulatedADS8324
	indicator bool
	mu        sync.Mutex
}

func NewSimPlatform(conf *config.Config) *SimPlatform {
	return &SimPlatform{config: conf}
}

func (s *SimPlatform) Start() error {
	slog.Info("Initialise simulated GPIO and Spi...", "platform", "sim", "frames", len(s.config.Simulation.Frames))
	s.mu.Lock()
	s.indicator = true
	s.mu.Unlock()
	s.adc = NewSimulatedADS8324(s.config.SimulationFrames(), s.config.Simulation.FailAfter)
	return nil
}

func (s *SimPlatform) Stop() {
	s.mu.Lock()
	s.indicator = false
	s.mu.Unlock()
}

func (s *SimPlatform) Bus() drivers.SPI {
	if s.adc == nil {
		return nil
	}
	return s.adc
}

// IndicatorOn reports whether the indicator is driven to its active level.
func (s *SimPlatform) IndicatorOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indicator
}

// Converter gives access to the simulated converter.
func (s *SimPlatform) Converter() *SimulatedADS8324 {
	return s.adc
}

// SimulatedADS8324 emulates the converter on the bus side, including the
// chip-select line the controller drives around each exchange.
type SimulatedADS8324 struct {
	mu          sync.Mutex
	frames      deque.Deque[[2]byte]
	failAfter   int
	transfers   int
	next        uint16
	csAsserted  bool
	csCycles    int
	clocks      []int
	lastWritten []byte
}

// NewSimulatedADS8324 creates a converter that answers with frames first.
// failAfter > 0 makes every transfer after the first failAfter ones fail.
func NewSimulatedADS8324(frames [][2]byte, failAfter int) *SimulatedADS8324 {
	s := &SimulatedADS8324{failAfter: failAfter}
	s.frames.Grow(len(frames))
	for _, f := range frames {
		s.frames.PushBack(f)
	}
	return s
}

// Push queues a frame for a later transfer.
func (s *SimulatedADS8324) Push(frame [2]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames.PushBack(frame)
}

func (s *SimulatedADS8324) Tx(w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transfers++
	if s.failAfter > 0 && s.transfers > s.failAfter {
		return fmt.Errorf("transfer %d: %w", s.transfers, ErrSimulatedFault)
	}

	s.csAsserted = true
	n := max(len(w), len(r))
	s.lastWritten = append(s.lastWritten[:0], w...)

	var frame [2]byte
	if s.frames.Len() > 0 {
		frame = s.frames.PopFront()
	} else {
		frame = [2]byte{byte(s.next >> 8), byte(s.next)}
		s.next += rampStep
	}
	for i := range r {
		if i < len(frame) {
			r[i] = frame[i]
		} else {
			r[i] = 0
		}
	}

	s.clocks = append(s.clocks, 8*n)
	s.csAsserted = false
	s.csCycles++
	return nil
}

func (s *SimulatedADS8324) Transfer(w byte) (byte, error) {
	r := make([]byte, 1)
	err := s.Tx([]byte{w}, r)
	return r[0], err
}

// Stats reports the number of transfers attempted, the number of completed
// chip-select cycles, the clock pulses of every completed cycle and whether
// chip-select is still asserted.
func (s *SimulatedADS8324) Stats() (transfers, csCycles int, clocks []int, csAsserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfers, s.csCycles, append([]int(nil), s.clocks...), s.csAsserted
}

// LastWritten returns a copy of the bytes clocked out by the last transfer.
func (s *SimulatedADS8324) LastWritten() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.lastWritten...)
}
