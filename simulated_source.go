package smurfemu

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SourceState is used to indicate the active/inactive/transition state of data sources
type SourceState int

// Names for the possible values of SourceState
const (
	Inactive SourceState = iota // Source is not active
	Starting                    // Source is in transition to Active state
	Active                      // Source is actively producing frames
	Stopping                    // Source is in transition to Inactive state
)

func (s SourceState) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case Starting:
		return "Starting"
	case Active:
		return "Active"
	case Stopping:
		return "Stopping"
	}
	return fmt.Sprintf("SourceState(%d)", int(s))
}

// SimFrameSourceConfig holds the arguments needed to call SimFrameSource.Configure by RPC
type SimFrameSourceConfig struct {
	Nchan      int     // channels per frame
	Nsamp      int     // samples per channel per frame
	FrameRate  float64 // frames per second
	Pedestal   int16   // raw value of channel 0; channel c carries Pedestal+c
	CrateID    uint8
	SlotNumber uint8
}

// SimFrameSource is an upstream producer that emits frames at a fixed rate and
// sends them to its slaves. It stands in for the board's stream in tests and
// in a server that has no hardware attached.
type SimFrameSource struct {
	FrameMaster

	config       SimFrameSourceConfig
	framePeriod  time.Duration
	frameCounter uint32
	configError  error // Any error that arose when configuring the source (before Start)

	abortSelf       chan struct{}
	sourceState     SourceState
	sourceStateLock sync.Mutex // guards sourceState, config and framePeriod
	runDone         sync.WaitGroup
}

// NewSimFrameSource creates a new SimFrameSource with a small default configuration.
func NewSimFrameSource() *SimFrameSource {
	fs := new(SimFrameSource)
	fs.Configure(&SimFrameSourceConfig{Nchan: 4, Nsamp: 1, FrameRate: 200, Pedestal: 1000})
	return fs
}

// Configure sets the frame shape and rate. It is an error to configure a source that is running.
func (fs *SimFrameSource) Configure(config *SimFrameSourceConfig) (err error) {
	fs.sourceStateLock.Lock()
	defer fs.sourceStateLock.Unlock()
	if fs.sourceState != Inactive {
		return errors.Errorf("cannot Configure a SimFrameSource that is %v", fs.sourceState)
	}
	defer func() { fs.configError = err }()
	if config.Nchan < 1 || config.Nsamp < 1 {
		return errors.Wrapf(ErrInvalidConfig, "SimFrameSource needs Nchan>0 and Nsamp>0, have %d, %d",
			config.Nchan, config.Nsamp)
	}
	if config.FrameRate <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "SimFrameSource FrameRate=%v, want > 0", config.FrameRate)
	}
	fs.config = *config
	fs.framePeriod = time.Duration(float64(time.Second) / config.FrameRate)
	return nil
}

// ComputeConfig returns a copy of the active configuration.
func (fs *SimFrameSource) ComputeConfig() SimFrameSourceConfig {
	fs.sourceStateLock.Lock()
	defer fs.sourceStateLock.Unlock()
	return fs.config
}

// NextFrame builds the next frame in sequence without sending it.
func (fs *SimFrameSource) NextFrame() *Frame {
	fs.sourceStateLock.Lock()
	cfg := fs.config
	fs.frameCounter++
	counter := fs.frameCounter
	fs.sourceStateLock.Unlock()

	frame := NewFrame(cfg.Nchan, cfg.Nsamp)
	hdr, _ := frame.Header()
	hdr.setUnixTime(time.Now())
	hdr.setFrameCounter(counter)
	hdr.setCrateSlot(cfg.CrateID, cfg.SlotNumber)

	fa, _ := newFrameAccessor(frame)
	for ch := 0; ch < cfg.Nchan; ch++ {
		fa.FillChannel(ch, cfg.Pedestal+int16(ch))
	}
	return frame
}

// Start begins producing frames on a new goroutine.
func (fs *SimFrameSource) Start() error {
	fs.sourceStateLock.Lock()
	if fs.sourceState != Inactive {
		state := fs.sourceState
		fs.sourceStateLock.Unlock()
		return errors.Errorf("cannot Start() a source that's %v, not Inactive", state)
	}
	if fs.configError != nil {
		fs.sourceStateLock.Unlock()
		return errors.Wrap(fs.configError, "cannot Start() a source with a bad configuration")
	}
	fs.abortSelf = make(chan struct{})
	period := fs.framePeriod
	fs.sourceState = Active
	fs.runDone.Add(1)
	fs.sourceStateLock.Unlock()

	go fs.coreLoop(period)
	return nil
}

// coreLoop produces frames until the source is stopped.
func (fs *SimFrameSource) coreLoop(period time.Duration) {
	defer fs.runDoneDeactivate()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-fs.abortSelf:
			return
		case <-ticker.C:
			fs.SendFrame(fs.NextFrame())
		}
	}
}

func (fs *SimFrameSource) runDoneDeactivate() {
	fs.sourceStateLock.Lock()
	fs.sourceState = Inactive
	fs.runDone.Done()
	fs.sourceStateLock.Unlock()
}

// Stop tells the source to stop producing frames and waits until it has.
func (fs *SimFrameSource) Stop() error {
	fs.sourceStateLock.Lock()
	switch fs.sourceState {
	case Inactive:
		fs.sourceStateLock.Unlock()
		return errors.New("SimFrameSource not active, cannot stop")
	case Stopping:
		fs.sourceStateLock.Unlock()
		return nil
	}
	log.Println("SimFrameSource.Stop() was called to stop an active source")
	fs.sourceState = Stopping
	close(fs.abortSelf)
	fs.sourceStateLock.Unlock()

	fs.runDone.Wait()
	return nil
}

// GetState returns the sourceState value in a race-free fashion
func (fs *SimFrameSource) GetState() SourceState {
	fs.sourceStateLock.Lock()
	defer fs.sourceStateLock.Unlock()
	return fs.sourceState
}

// Running tells whether the source is actively running.
func (fs *SimFrameSource) Running() bool {
	return fs.GetState() == Active
}

// FramesSent returns the number of frames produced since the source was created.
func (fs *SimFrameSource) FramesSent() uint32 {
	fs.sourceStateLock.Lock()
	defer fs.sourceStateLock.Unlock()
	return fs.frameCounter
}
