package smurfemu

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// EmulatorConfig is the complete set of parameters for a StreamDataEmulator.
// Period counts frames per cycle; 0 means the periodic signals stay at phase 0.
// A square wave holds each of its two levels for Period frames.
type EmulatorConfig struct {
	Disable   bool
	Type      SignalType
	Amplitude uint16
	Offset    int16
	Period    uint32
}

// EmulatorStats counts what a StreamDataEmulator has done with the frames it received.
type EmulatorStats struct {
	FramesReceived    uint64
	FramesSynthesized uint64
	FramesPassed      uint64
	FramesDropped     uint64
}

// StreamDataEmulator is a stream stage that, when enabled, overwrites the payload
// of each frame with a synthetic signal and forwards it. Frame headers and sizes
// are never changed. When disabled, frames pass through untouched.
//
// The setters may be called from any goroutine while frames are being processed.
// Each frame is filled from one consistent copy of the configuration.
type StreamDataEmulator struct {
	FrameMaster

	config   EmulatorConfig
	counter  uint64     // position of the next synthesized frame, in [0, 2*Period)
	confLock sync.Mutex // guards config and counter

	received    atomic.Uint64
	synthesized atomic.Uint64
	passed      atomic.Uint64
	dropped     atomic.Uint64
}

// NewStreamDataEmulator creates an enabled emulator producing zeros with period 1.
func NewStreamDataEmulator() *StreamDataEmulator {
	e := new(StreamDataEmulator)
	e.config = EmulatorConfig{Type: Zeros, Period: 1}
	return e
}

// SetDisable turns pass-through mode on or off, starting with the next frame.
func (e *StreamDataEmulator) SetDisable(d bool) {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	e.config.Disable = d
}

// GetDisable tells whether the emulator is in pass-through mode.
func (e *StreamDataEmulator) GetDisable() bool {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	return e.config.Disable
}

// SetType selects the signal generator. An unknown type returns
// ErrInvalidSignalType and leaves the configuration unchanged.
func (e *StreamDataEmulator) SetType(st SignalType) error {
	if !st.Valid() {
		return errors.Wrapf(ErrInvalidSignalType, "type %d must be in [0,%d)", int(st), int(numSignalTypes))
	}
	e.confLock.Lock()
	defer e.confLock.Unlock()
	e.config.Type = st
	return nil
}

// GetType returns the selected signal type.
func (e *StreamDataEmulator) GetType() SignalType {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	return e.config.Type
}

// SetAmplitude sets the signal's peak magnitude.
func (e *StreamDataEmulator) SetAmplitude(a uint16) {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	e.config.Amplitude = a
}

// GetAmplitude returns the signal's peak magnitude.
func (e *StreamDataEmulator) GetAmplitude() uint16 {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	return e.config.Amplitude
}

// SetOffset sets the DC bias added to the signal.
func (e *StreamDataEmulator) SetOffset(o int16) {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	e.config.Offset = o
}

// GetOffset returns the DC bias added to the signal.
func (e *StreamDataEmulator) GetOffset() int16 {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	return e.config.Offset
}

// SetPeriod sets the number of frames per signal cycle. Zero is allowed and
// holds the periodic signals at their phase-0 value.
func (e *StreamDataEmulator) SetPeriod(p uint32) {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	e.config.Period = p
}

// GetPeriod returns the number of frames per signal cycle.
func (e *StreamDataEmulator) GetPeriod() uint32 {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	return e.config.Period
}

// Config returns a consistent copy of the whole configuration.
func (e *StreamDataEmulator) Config() EmulatorConfig {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	return e.config
}

// Configure replaces the whole configuration at once. An invalid signal type
// is rejected and nothing changes.
func (e *StreamDataEmulator) Configure(cfg EmulatorConfig) error {
	if !cfg.Type.Valid() {
		return errors.Wrapf(ErrInvalidSignalType, "type %d must be in [0,%d)", int(cfg.Type), int(numSignalTypes))
	}
	e.confLock.Lock()
	defer e.confLock.Unlock()
	e.config = cfg
	return nil
}

// ResetCounter puts the periodic signals back at phase 0 for the next frame.
func (e *StreamDataEmulator) ResetCounter() {
	e.confLock.Lock()
	defer e.confLock.Unlock()
	e.counter = 0
}

// Stats returns the frame counters.
func (e *StreamDataEmulator) Stats() EmulatorStats {
	return EmulatorStats{
		FramesReceived:    e.received.Load(),
		FramesSynthesized: e.synthesized.Load(),
		FramesPassed:      e.passed.Load(),
		FramesDropped:     e.dropped.Load(),
	}
}

// AcceptFrame processes one frame and forwards it to the attached slaves.
// Frames that are malformed or that cannot be locked are counted, logged and
// dropped; no error leaves this method.
func (e *StreamDataEmulator) AcceptFrame(frame *Frame) {
	e.received.Add(1)
	if frame == nil {
		e.drop(errors.Wrap(ErrMalformedFrame, "nil frame"))
		return
	}
	if err := e.processFrame(frame); err != nil {
		e.drop(err)
		return
	}
	e.SendFrame(frame)
}

// processFrame fills frame in place unless the emulator is disabled. The frame
// lock is released before it returns, so downstream slaves can lock the frame.
func (e *StreamDataEmulator) processFrame(frame *Frame) error {
	flock, err := frame.Lock()
	if err != nil {
		return err
	}
	defer flock.Unlock()

	fa, layoutErr := newFrameAccessor(frame)

	// Decide and take the phase in one critical section, so that concurrent
	// frames each get their own phase and a consistent configuration.
	e.confLock.Lock()
	cfg := e.config
	var cycle uint64
	if !cfg.Disable && layoutErr == nil {
		if cfg.Period > 0 {
			span := 2 * uint64(cfg.Period)
			cycle = e.counter % span
			e.counter = (cycle + 1) % span
		} else {
			e.counter = 0
		}
	}
	e.confLock.Unlock()

	if cfg.Disable {
		e.passed.Add(1)
		return nil
	}
	if layoutErr != nil {
		return layoutErr
	}
	generators[cfg.Type](fa, cfg, cycle)
	e.synthesized.Add(1)
	return nil
}

func (e *StreamDataEmulator) drop(err error) {
	n := e.dropped.Add(1)
	ProblemLogger.Printf("StreamDataEmulator dropped a frame (%d dropped so far): %v", n, err)
}
