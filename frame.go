package smurfemu

import (
	"sync"

	"github.com/pkg/errors"
)

// SampleWidth is the size in bytes of one sample: a signed 16-bit firmware value.
const SampleWidth = 2

// Frame is one unit of transport: a SMuRF header followed by a payload of
// little-endian int16 samples. The payload is time-major, so sample s of channel c
// is element s*nchan+c. Frames are owned by whoever produced them; stages borrow
// them for the duration of one AcceptFrame call and must hold the frame's lock
// while touching the bytes.
type Frame struct {
	lock sync.Mutex
	data []byte
}

// NewFrame allocates a frame with a header declaring nchan channels and room for
// nsamp samples per channel.
func NewFrame(nchan, nsamp int) *Frame {
	f := &Frame{data: make([]byte, SmurfHeaderSize+nchan*nsamp*SampleWidth)}
	hdr := SmurfHeader(f.data[:SmurfHeaderSize])
	hdr.setVersion(SmurfProtocolVersion)
	hdr.setNumberChannels(uint32(nchan))
	return f
}

// NewFrameFromBytes wraps an existing buffer without copying it.
func NewFrameFromBytes(data []byte) *Frame {
	return &Frame{data: data}
}

// Size returns the total length of the frame in bytes, header included.
func (f *Frame) Size() int {
	return len(f.data)
}

// Bytes returns the whole frame, header included. The slice aliases the frame.
func (f *Frame) Bytes() []byte {
	return f.data
}

// Header returns a view of the frame header.
func (f *Frame) Header() (SmurfHeader, error) {
	if len(f.data) < SmurfHeaderSize {
		return nil, errors.Wrapf(ErrMalformedFrame, "frame has %d bytes, shorter than the %d-byte header",
			len(f.data), SmurfHeaderSize)
	}
	return SmurfHeader(f.data[:SmurfHeaderSize]), nil
}

// Payload returns the bytes after the header, or nil if the frame is too short to have a header.
func (f *Frame) Payload() []byte {
	if len(f.data) < SmurfHeaderSize {
		return nil
	}
	return f.data[SmurfHeaderSize:]
}

// Lock takes the frame's exclusive lock without waiting. A frame that is
// already locked when it is handed over has not really been handed over, so
// that is reported as ErrFrameLocked rather than waited out.
func (f *Frame) Lock() (*FrameLock, error) {
	if !f.lock.TryLock() {
		return nil, ErrFrameLocked
	}
	return &FrameLock{frame: f}, nil
}

// FrameLock is a held frame lock. Unlock is safe to call more than once.
type FrameLock struct {
	frame *Frame
	once  sync.Once
}

// Unlock releases the frame.
func (fl *FrameLock) Unlock() {
	fl.once.Do(fl.frame.lock.Unlock)
}

// layout checks that the frame is self-consistent and returns the number of
// channels and samples per channel it holds.
func (f *Frame) layout() (nchan, nsamp int, err error) {
	hdr, err := f.Header()
	if err != nil {
		return 0, 0, err
	}
	payload := len(f.data) - SmurfHeaderSize
	if payload%SampleWidth != 0 {
		return 0, 0, errors.Wrapf(ErrMalformedFrame, "payload of %d bytes is not a multiple of the %d-byte sample width",
			payload, SampleWidth)
	}
	nvalues := payload / SampleWidth
	nchan = int(hdr.NumberChannels())
	if nchan == 0 {
		if nvalues > 0 {
			return 0, 0, errors.Wrapf(ErrMalformedFrame, "header declares 0 channels but payload has %d samples", nvalues)
		}
		return 0, 0, nil
	}
	if nvalues%nchan != 0 {
		return 0, 0, errors.Wrapf(ErrMalformedFrame, "payload of %d samples does not divide into %d channels",
			nvalues, nchan)
	}
	return nchan, nvalues / nchan, nil
}
