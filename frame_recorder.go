package smurfemu

import (
	"log"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// FrameRecorder is a downstream stage that captures the payload of a fixed
// number of frames and writes them to a numpy .npy file as a 2-d array with one
// row per sample time and one column per channel. It is idle until armed.
type FrameRecorder struct {
	filename  string
	nframes   int // frames still wanted
	nchan     int
	rows      []float64 // row-major, nchan values per row
	armed     bool
	lastError error
	lock      sync.Mutex // guards all of the above
	saves     sync.WaitGroup
}

// NewFrameRecorder creates an idle FrameRecorder.
func NewFrameRecorder() *FrameRecorder {
	return new(FrameRecorder)
}

// Arm starts a capture of the next nframes frames, to be saved as filename.
func (fr *FrameRecorder) Arm(nframes int, filename string) error {
	if nframes < 1 {
		return errors.Wrapf(ErrInvalidConfig, "FrameRecorder.Arm(%d): need at least 1 frame", nframes)
	}
	if filename == "" {
		return errors.Wrap(ErrInvalidConfig, "FrameRecorder.Arm: filename is empty")
	}
	fr.lock.Lock()
	defer fr.lock.Unlock()
	if fr.armed {
		return errors.Errorf("FrameRecorder is already recording to %s", fr.filename)
	}
	fr.filename = filename
	fr.nframes = nframes
	fr.nchan = 0
	fr.rows = nil
	fr.armed = true
	fr.lastError = nil
	return nil
}

// Recording tells whether a capture is in progress.
func (fr *FrameRecorder) Recording() bool {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	return fr.armed
}

// Wait blocks until every completed capture has been written to disk, then
// returns the error from the most recent write, if any.
func (fr *FrameRecorder) Wait() error {
	fr.saves.Wait()
	fr.lock.Lock()
	defer fr.lock.Unlock()
	return fr.lastError
}

// AcceptFrame copies frame's samples into the capture, if one is armed.
// Frames whose channel count differs from the first captured frame are skipped.
func (fr *FrameRecorder) AcceptFrame(frame *Frame) {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	if !fr.armed {
		return
	}

	flock, err := frame.Lock()
	if err != nil {
		return
	}
	fa, err := newFrameAccessor(frame)
	if err != nil {
		flock.Unlock()
		return
	}
	if fr.nchan == 0 {
		fr.nchan = fa.Channels()
	}
	if fa.Channels() != fr.nchan || fr.nchan == 0 {
		flock.Unlock()
		return
	}
	for s := 0; s < fa.SamplesPerChannel(); s++ {
		for ch := 0; ch < fr.nchan; ch++ {
			v, _ := fa.At(ch, s)
			fr.rows = append(fr.rows, float64(v))
		}
	}
	flock.Unlock()

	fr.nframes--
	if fr.nframes > 0 {
		return
	}
	fr.armed = false
	if len(fr.rows) == 0 {
		fr.lastError = errors.Wrapf(ErrInvalidConfig, "captured frames hold no samples; %s not written", fr.filename)
		ProblemLogger.Printf("FrameRecorder: %v", fr.lastError)
		return
	}
	data := mat.NewDense(len(fr.rows)/fr.nchan, fr.nchan, fr.rows)
	filename := fr.filename
	fr.rows = nil
	fr.saves.Add(1)
	go func() {
		defer fr.saves.Done()
		err := writeNpy(filename, data)
		if err != nil {
			ProblemLogger.Printf("FrameRecorder could not write %s: %v", filename, err)
		} else {
			log.Printf("FrameRecorder wrote %d x %d samples to %s\n", data.RawMatrix().Rows, data.RawMatrix().Cols, filename)
		}
		fr.lock.Lock()
		fr.lastError = err
		fr.lock.Unlock()
	}()
}

func writeNpy(filename string, data *mat.Dense) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "cannot create recording file")
	}
	if err := npyio.Write(f, data); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot write npy data to %s", filename)
	}
	return f.Close()
}
