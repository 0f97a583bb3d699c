package smurfemu

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimFrameSourceConfigure(t *testing.T) {
	fs := NewSimFrameSource()
	cfg := fs.ComputeConfig()
	assert.Equal(t, 4, cfg.Nchan)
	assert.Equal(t, 1, cfg.Nsamp)

	bad := []SimFrameSourceConfig{
		{Nchan: 0, Nsamp: 1, FrameRate: 10},
		{Nchan: 1, Nsamp: 0, FrameRate: 10},
		{Nchan: 1, Nsamp: 1, FrameRate: 0},
	}
	for _, c := range bad {
		err := fs.Configure(&c)
		assert.Equal(t, ErrInvalidConfig, errors.Cause(err), "Configure(%+v)", c)
	}
	assert.Error(t, fs.Start(), "Start should fail after a bad Configure")

	good := SimFrameSourceConfig{Nchan: 3, Nsamp: 2, FrameRate: 1000, Pedestal: -5, CrateID: 2, SlotNumber: 6}
	require.NoError(t, fs.Configure(&good))
	assert.Equal(t, good, fs.ComputeConfig())
}

func TestSimFrameSourceNextFrame(t *testing.T) {
	fs := NewSimFrameSource()
	require.NoError(t, fs.Configure(&SimFrameSourceConfig{Nchan: 3, Nsamp: 2, FrameRate: 10,
		Pedestal: 100, CrateID: 1, SlotNumber: 2}))
	f1 := fs.NextFrame()
	f2 := fs.NextFrame()
	h1, err := f1.Header()
	require.NoError(t, err)
	h2, _ := f2.Header()
	assert.Equal(t, uint32(1), h1.FrameCounter())
	assert.Equal(t, uint32(2), h2.FrameCounter())
	assert.Equal(t, uint32(3), h1.NumberChannels())
	assert.Equal(t, uint8(1), h1.CrateID())
	assert.Equal(t, uint8(2), h1.SlotNumber())
	assert.WithinDuration(t, time.Now(), h1.UnixTime(), time.Second)

	fa := newFrameAccessorMust(t, f1)
	assert.Equal(t, []int16{100, 100}, fa.Channel(0))
	assert.Equal(t, []int16{102, 102}, fa.Channel(2))

	// Samples are little-endian on every host: sample 1 of channel 1 is element 4.
	payload := f1.Payload()
	assert.Equal(t, []byte{100, 0}, payload[0:2])
	assert.Equal(t, uint16(101), binary.LittleEndian.Uint16(payload[4*SampleWidth:]))
	assert.Equal(t, uint32(2), fs.FramesSent())
}

func TestSimFrameSourceRun(t *testing.T) {
	fs := NewSimFrameSource()
	require.NoError(t, fs.Configure(&SimFrameSourceConfig{Nchan: 2, Nsamp: 4, FrameRate: 500}))
	var lock sync.Mutex
	nframes := 0
	fs.AddSlave(FrameSlaveFunc(func(*Frame) {
		lock.Lock()
		nframes++
		lock.Unlock()
	}))

	assert.Error(t, fs.Stop(), "Stop on an inactive source")
	require.NoError(t, fs.Start())
	assert.True(t, fs.Running())
	assert.Error(t, fs.Start(), "Start on a running source")
	assert.Error(t, fs.Configure(&SimFrameSourceConfig{Nchan: 1, Nsamp: 1, FrameRate: 1}),
		"Configure on a running source")
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, fs.Stop())
	assert.Equal(t, Inactive, fs.GetState())
	assert.False(t, fs.Running())

	lock.Lock()
	n := nframes
	lock.Unlock()
	if n < 5 {
		t.Errorf("source sent %d frames in 100 ms at 500 fps, want at least 5", n)
	}
	assert.Equal(t, uint32(n), fs.FramesSent())

	// A stopped source can be reconfigured and restarted.
	require.NoError(t, fs.Configure(&SimFrameSourceConfig{Nchan: 1, Nsamp: 1, FrameRate: 500}))
	require.NoError(t, fs.Start())
	require.NoError(t, fs.Stop())
}

func TestSourceStateString(t *testing.T) {
	assert.Equal(t, "Active", Active.String())
	assert.Equal(t, "Stopping", Stopping.String())
	assert.Equal(t, "SourceState(9)", SourceState(9).String())
}
