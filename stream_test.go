package smurfemu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameMaster(t *testing.T) {
	var m FrameMaster
	var order []int
	m.SendFrame(NewFrame(1, 1)) // no slaves is fine
	m.AddSlave(FrameSlaveFunc(func(*Frame) { order = append(order, 1) }))
	m.AddSlave(FrameSlaveFunc(func(*Frame) { order = append(order, 2) }))
	m.SendFrame(NewFrame(1, 1))
	assert.Equal(t, []int{1, 2}, order)

	m.RemoveSlaves()
	m.SendFrame(NewFrame(1, 1))
	assert.Equal(t, []int{1, 2}, order)
}

func TestEmulatorChain(t *testing.T) {
	// Two emulators in a row: the second sees what the first produced.
	first := NewStreamDataEmulator()
	first.Configure(EmulatorConfig{Type: ChannelNumber})
	second := NewStreamDataEmulator()
	second.Configure(EmulatorConfig{Disable: true})
	first.AddSlave(second)
	out := new(captured)
	second.AddSlave(out)

	first.AcceptFrame(testFrame(3, 2))
	if assert.Len(t, out.values, 1) {
		assert.Equal(t, [][]int16{{0, 0}, {1, 1}, {2, 2}}, out.values[0])
	}
	assert.Equal(t, uint64(1), second.Stats().FramesPassed)
}
