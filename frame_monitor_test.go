package smurfemu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameMonitor(t *testing.T) {
	fm := NewFrameMonitor()
	s := fm.Summary()
	assert.Equal(t, uint64(0), s.FramesSeen)

	// testFrame sample values are 1000+s*nchan+c.
	fm.AcceptFrame(testFrame(2, 3))
	s = fm.Summary()
	assert.Equal(t, uint64(1), s.FramesSeen)
	assert.Equal(t, uint32(77), s.FrameCounter)
	assert.Equal(t, 2, s.Nchan)
	assert.Equal(t, 3, s.Nsamp)
	require.Len(t, s.Mean, 2)
	assert.InDelta(t, 1002.0, s.Mean[0], 1e-9)
	assert.InDelta(t, 1003.0, s.Mean[1], 1e-9)
	assert.InDelta(t, 2.0, s.StdDev[0], 1e-9) // sample std dev of {1000, 1002, 1004}

	// Summary returns a copy.
	s.Mean[0] = math.NaN()
	assert.InDelta(t, 1002.0, fm.Summary().Mean[0], 1e-9)

	fm.AcceptFrame(testFrame(3, 1))
	s = fm.Summary()
	assert.Equal(t, []float64{1000, 1001, 1002}, s.Mean)
	assert.Equal(t, []float64{0, 0, 0}, s.StdDev)
}

func TestFrameMonitorSkips(t *testing.T) {
	fm := NewFrameMonitor()
	f := testFrame(2, 2)
	flock, err := f.Lock()
	require.NoError(t, err)
	fm.AcceptFrame(f)
	flock.Unlock()
	fm.AcceptFrame(NewFrameFromBytes(make([]byte, 3)))
	s := fm.Summary()
	assert.Equal(t, uint64(0), s.FramesSeen)
	assert.Equal(t, uint64(2), s.FramesSkipped)
}
