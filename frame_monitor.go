package smurfemu

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// MonitorSummary describes the most recent frame a FrameMonitor saw.
type MonitorSummary struct {
	FramesSeen    uint64
	FramesSkipped uint64 // frames that were locked by someone else when they arrived
	FrameCounter  uint32 // header frame counter of the latest frame
	Nchan         int
	Nsamp         int
	Mean          []float64 // per channel
	StdDev        []float64 // per channel
}

// FrameMonitor is a downstream stage that summarizes each frame it receives:
// per-channel mean and standard deviation of the samples. It never modifies frames.
type FrameMonitor struct {
	summary     MonitorSummary
	summaryLock sync.Mutex
}

// NewFrameMonitor creates a FrameMonitor.
func NewFrameMonitor() *FrameMonitor {
	return new(FrameMonitor)
}

// AcceptFrame computes the summary of frame.
func (fm *FrameMonitor) AcceptFrame(frame *Frame) {
	flock, err := frame.Lock()
	if err != nil {
		fm.summaryLock.Lock()
		fm.summary.FramesSkipped++
		fm.summaryLock.Unlock()
		return
	}
	fa, err := newFrameAccessor(frame)
	if err != nil {
		flock.Unlock()
		fm.summaryLock.Lock()
		fm.summary.FramesSkipped++
		fm.summaryLock.Unlock()
		return
	}
	hdr, _ := frame.Header()
	counter := hdr.FrameCounter()

	nchan := fa.Channels()
	mean := make([]float64, nchan)
	stddev := make([]float64, nchan)
	values := make([]float64, fa.SamplesPerChannel())
	for ch := 0; ch < nchan; ch++ {
		for s, v := range fa.Channel(ch) {
			values[s] = float64(v)
		}
		if len(values) > 1 {
			mean[ch], stddev[ch] = stat.MeanStdDev(values, nil)
		} else if len(values) == 1 {
			mean[ch] = values[0]
		}
	}
	flock.Unlock()

	fm.summaryLock.Lock()
	defer fm.summaryLock.Unlock()
	fm.summary.FramesSeen++
	fm.summary.FrameCounter = counter
	fm.summary.Nchan = nchan
	fm.summary.Nsamp = fa.SamplesPerChannel()
	fm.summary.Mean = mean
	fm.summary.StdDev = stddev
}

// Summary returns a copy of the latest summary.
func (fm *FrameMonitor) Summary() MonitorSummary {
	fm.summaryLock.Lock()
	defer fm.summaryLock.Unlock()
	s := fm.summary
	s.Mean = append([]float64(nil), fm.summary.Mean...)
	s.StdDev = append([]float64(nil), fm.summary.StdDev...)
	return s
}
