package smurfemu

import (
	"encoding/binary"
	"time"
)

// SmurfHeaderSize is the length in bytes of the header at the start of every frame.
const SmurfHeaderSize = 128

// SmurfProtocolVersion is the header version written by SimFrameSource.
const SmurfProtocolVersion uint8 = 1

// Byte offsets of the header words. All multi-byte words are little-endian.
const (
	hdrProtocolVersion     = 0
	hdrCrateID             = 1
	hdrSlotNumber          = 2
	hdrTimingConfiguration = 3
	hdrNumberChannels      = 4
	hdrUnixTime            = 48
	hdrFluxRampIncrement   = 56
	hdrFluxRampOffset      = 60
	hdrCounter0            = 64
	hdrCounter1            = 68
	hdrCounter2            = 72
	hdrFrameCounter        = 84
	hdrNumberRows          = 112
	hdrNumberRowsReported  = 114
	hdrRowLength           = 120
	hdrDataRate            = 124
)

// SmurfHeader is a typed view of the first SmurfHeaderSize bytes of a frame.
// It aliases the frame's memory; it does not copy.
type SmurfHeader []byte

// Version returns the header protocol version.
func (h SmurfHeader) Version() uint8 { return h[hdrProtocolVersion] }

// CrateID returns the ATCA crate ID of the board that produced the frame.
func (h SmurfHeader) CrateID() uint8 { return h[hdrCrateID] }

// SlotNumber returns the ATCA slot of the board that produced the frame.
func (h SmurfHeader) SlotNumber() uint8 { return h[hdrSlotNumber] }

// TimingConfiguration returns the timing configuration byte.
func (h SmurfHeader) TimingConfiguration() uint8 { return h[hdrTimingConfiguration] }

// NumberChannels returns the number of channels the payload carries.
func (h SmurfHeader) NumberChannels() uint32 {
	return binary.LittleEndian.Uint32(h[hdrNumberChannels:])
}

// UnixTime returns the frame timestamp.
func (h SmurfHeader) UnixTime() time.Time {
	return time.Unix(0, int64(binary.LittleEndian.Uint64(h[hdrUnixTime:])))
}

// FluxRampIncrement returns the flux ramp increment word.
func (h SmurfHeader) FluxRampIncrement() int32 {
	return int32(binary.LittleEndian.Uint32(h[hdrFluxRampIncrement:]))
}

// FluxRampOffset returns the flux ramp offset word.
func (h SmurfHeader) FluxRampOffset() int32 {
	return int32(binary.LittleEndian.Uint32(h[hdrFluxRampOffset:]))
}

// Counter0 returns the first timing counter.
func (h SmurfHeader) Counter0() uint32 { return binary.LittleEndian.Uint32(h[hdrCounter0:]) }

// Counter1 returns the second timing counter.
func (h SmurfHeader) Counter1() uint32 { return binary.LittleEndian.Uint32(h[hdrCounter1:]) }

// Counter2 returns the 64-bit timing counter.
func (h SmurfHeader) Counter2() uint64 { return binary.LittleEndian.Uint64(h[hdrCounter2:]) }

// FrameCounter returns the sequence number of the frame.
func (h SmurfHeader) FrameCounter() uint32 {
	return binary.LittleEndian.Uint32(h[hdrFrameCounter:])
}

// NumberRows returns the number of multiplexer rows.
func (h SmurfHeader) NumberRows() uint16 { return binary.LittleEndian.Uint16(h[hdrNumberRows:]) }

// NumberRowsReported returns the number of rows reported downstream.
func (h SmurfHeader) NumberRowsReported() uint16 {
	return binary.LittleEndian.Uint16(h[hdrNumberRowsReported:])
}

// RowLength returns the row length word.
func (h SmurfHeader) RowLength() uint16 { return binary.LittleEndian.Uint16(h[hdrRowLength:]) }

// DataRate returns the data rate word.
func (h SmurfHeader) DataRate() uint16 { return binary.LittleEndian.Uint16(h[hdrDataRate:]) }

// The setters are for producers of frames. The emulator stage never writes the header.

func (h SmurfHeader) setVersion(v uint8) { h[hdrProtocolVersion] = v }

func (h SmurfHeader) setNumberChannels(n uint32) {
	binary.LittleEndian.PutUint32(h[hdrNumberChannels:], n)
}

func (h SmurfHeader) setUnixTime(t time.Time) {
	binary.LittleEndian.PutUint64(h[hdrUnixTime:], uint64(t.UnixNano()))
}

func (h SmurfHeader) setFrameCounter(n uint32) {
	binary.LittleEndian.PutUint32(h[hdrFrameCounter:], n)
}

func (h SmurfHeader) setCrateSlot(crate, slot uint8) {
	h[hdrCrateID] = crate
	h[hdrSlotNumber] = slot
}
