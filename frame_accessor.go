package smurfemu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// FrameAccessor is a typed, strided view of int16 samples stored in a borrowed
// byte buffer. Sample s of channel c is element s*stride+c. The accessor never
// owns the buffer and must not be used after the frame lock is released.
type FrameAccessor struct {
	buf    []byte
	nchan  int
	nsamp  int
	stride int
}

// NewFrameAccessor returns a view of buf holding nsamp samples for each of nchan
// channels. buf must hold at least nchan*nsamp samples.
func NewFrameAccessor(buf []byte, nchan, nsamp int) (*FrameAccessor, error) {
	if nchan < 0 || nsamp < 0 {
		return nil, errors.Wrapf(ErrOutOfRange, "nchan %d, nsamp %d", nchan, nsamp)
	}
	if need := nchan * nsamp * SampleWidth; len(buf) < need {
		return nil, errors.Wrapf(ErrMalformedFrame, "buffer has %d bytes, want at least %d", len(buf), need)
	}
	return &FrameAccessor{buf: buf, nchan: nchan, nsamp: nsamp, stride: nchan}, nil
}

// newFrameAccessor returns a view of a locked frame's payload.
func newFrameAccessor(f *Frame) (*FrameAccessor, error) {
	nchan, nsamp, err := f.layout()
	if err != nil {
		return nil, err
	}
	return NewFrameAccessor(f.Payload(), nchan, nsamp)
}

// Channels returns the number of channels in the view.
func (fa *FrameAccessor) Channels() int { return fa.nchan }

// SamplesPerChannel returns the number of samples each channel holds.
func (fa *FrameAccessor) SamplesPerChannel() int { return fa.nsamp }

// Len returns the total number of samples.
func (fa *FrameAccessor) Len() int { return fa.nchan * fa.nsamp }

func (fa *FrameAccessor) offset(ch, s int) (int, error) {
	if ch < 0 || ch >= fa.nchan || s < 0 || s >= fa.nsamp {
		return 0, errors.Wrapf(ErrOutOfRange, "channel %d sample %d in a %dx%d view", ch, s, fa.nchan, fa.nsamp)
	}
	return (s*fa.stride + ch) * SampleWidth, nil
}

// At returns sample s of channel ch.
func (fa *FrameAccessor) At(ch, s int) (int16, error) {
	off, err := fa.offset(ch, s)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(fa.buf[off:])), nil
}

// Set stores v as sample s of channel ch.
func (fa *FrameAccessor) Set(ch, s int, v int16) error {
	off, err := fa.offset(ch, s)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(fa.buf[off:], uint16(v))
	return nil
}

// FillChannel stores v in every sample of channel ch. Out-of-range channels are ignored.
func (fa *FrameAccessor) FillChannel(ch int, v int16) {
	if ch < 0 || ch >= fa.nchan {
		return
	}
	for s := 0; s < fa.nsamp; s++ {
		off := (s*fa.stride + ch) * SampleWidth
		binary.LittleEndian.PutUint16(fa.buf[off:], uint16(v))
	}
}

// Fill stores v in every sample of every channel.
func (fa *FrameAccessor) Fill(v int16) {
	n := fa.Len() * SampleWidth
	for off := 0; off < n; off += SampleWidth {
		binary.LittleEndian.PutUint16(fa.buf[off:], uint16(v))
	}
}

// Channel copies out every sample of channel ch.
func (fa *FrameAccessor) Channel(ch int) []int16 {
	if ch < 0 || ch >= fa.nchan {
		return nil
	}
	out := make([]int16, fa.nsamp)
	for s := range out {
		off := (s*fa.stride + ch) * SampleWidth
		out[s] = int16(binary.LittleEndian.Uint16(fa.buf[off:]))
	}
	return out
}
