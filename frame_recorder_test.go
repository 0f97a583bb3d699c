package smurfemu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFrameRecorder(t *testing.T) {
	fr := NewFrameRecorder()
	fr.AcceptFrame(testFrame(2, 2)) // idle: ignored
	assert.False(t, fr.Recording())

	filename := filepath.Join(t.TempDir(), "capture.npy")
	require.NoError(t, fr.Arm(3, filename))
	assert.True(t, fr.Recording())
	assert.Error(t, fr.Arm(1, filename), "Arm while recording")

	fr.AcceptFrame(testFrame(2, 2))
	fr.AcceptFrame(testFrame(3, 2)) // wrong channel count: skipped
	fr.AcceptFrame(testFrame(2, 2))
	assert.True(t, fr.Recording())
	fr.AcceptFrame(testFrame(2, 1))
	assert.False(t, fr.Recording())
	require.NoError(t, fr.Wait())

	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	var m mat.Dense
	require.NoError(t, npyio.Read(f, &m))
	rows, cols := m.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []float64{1000, 1001}, m.RawRowView(0))
	assert.Equal(t, []float64{1002, 1003}, m.RawRowView(1))
	assert.Equal(t, []float64{1000, 1001}, m.RawRowView(4))
}

func TestFrameRecorderArmErrors(t *testing.T) {
	fr := NewFrameRecorder()
	assert.Equal(t, ErrInvalidConfig, errors.Cause(fr.Arm(0, "x.npy")))
	assert.Equal(t, ErrInvalidConfig, errors.Cause(fr.Arm(1, "")))

	// An unwritable destination is reported by Wait.
	require.NoError(t, fr.Arm(1, filepath.Join(t.TempDir(), "no", "such", "dir", "x.npy")))
	fr.AcceptFrame(testFrame(1, 1))
	assert.Error(t, fr.Wait())
}

func TestFrameRecorderNoSamples(t *testing.T) {
	fr := NewFrameRecorder()
	e := NewStreamDataEmulator()
	e.AddSlave(fr)
	filename := filepath.Join(t.TempDir(), "empty.npy")
	require.NoError(t, fr.Arm(2, filename))

	// Frames with channels but no samples are valid; the capture ends unwritten.
	assert.NotPanics(t, func() {
		e.AcceptFrame(NewFrame(5, 0))
		e.AcceptFrame(NewFrame(5, 0))
	})
	assert.False(t, fr.Recording())
	assert.Equal(t, ErrInvalidConfig, errors.Cause(fr.Wait()))
	_, err := os.Stat(filename)
	assert.True(t, os.IsNotExist(err), "file written for an empty capture")

	// The recorder can be armed again afterwards.
	require.NoError(t, fr.Arm(1, filename))
	e.AcceptFrame(testFrame(2, 1))
	require.NoError(t, fr.Wait())
}
