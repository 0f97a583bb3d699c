package smurfemu

import "sync"

// FrameSlave is anything that accepts frames from an upstream stage.
// AcceptFrame borrows the frame; it must not retain it after returning.
type FrameSlave interface {
	AcceptFrame(*Frame)
}

// FrameSlaveFunc adapts an ordinary function to the FrameSlave interface.
type FrameSlaveFunc func(*Frame)

// AcceptFrame calls f(frame).
func (f FrameSlaveFunc) AcceptFrame(frame *Frame) {
	f(frame)
}

// FrameMaster sends frames to every attached slave, in the order the slaves
// were added. The zero value is ready to use.
type FrameMaster struct {
	slaves     []FrameSlave
	slavesLock sync.RWMutex
}

// AddSlave attaches s downstream of this master.
func (m *FrameMaster) AddSlave(s FrameSlave) {
	m.slavesLock.Lock()
	defer m.slavesLock.Unlock()
	m.slaves = append(m.slaves, s)
}

// RemoveSlaves detaches all downstream slaves.
func (m *FrameMaster) RemoveSlaves() {
	m.slavesLock.Lock()
	defer m.slavesLock.Unlock()
	m.slaves = nil
}

// SendFrame forwards frame to each slave synchronously.
func (m *FrameMaster) SendFrame(frame *Frame) {
	m.slavesLock.RLock()
	slaves := m.slaves
	m.slavesLock.RUnlock()
	for _, s := range slaves {
		s.AcceptFrame(frame)
	}
}
