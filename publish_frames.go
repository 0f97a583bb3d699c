package smurfemu

import (
	"fmt"
	"sync"

	zmq "github.com/pebbe/zmq4"
	"github.com/pkg/errors"
)

// FramePublisher is a downstream stage that publishes frames on a ZMQ PUB
// socket as two-part messages: the header bytes, then the payload bytes.
// Only every Nth frame is published, so a fast stream does not swamp subscribers.
type FramePublisher struct {
	pubSocket *zmq.Socket
	every     uint64
	seen      uint64
	published uint64
	lock      sync.Mutex // guards everything above; zmq sockets are not goroutine-safe
}

// NewFramePublisher binds a PUB socket on port and publishes one frame in every `every`.
func NewFramePublisher(port int, every int) (*FramePublisher, error) {
	if every < 1 {
		every = 1
	}
	sock, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, errors.Wrap(err, "could not create frame publisher socket")
	}
	hostname := fmt.Sprintf("tcp://*:%d", port)
	if err := sock.Bind(hostname); err != nil {
		sock.Close()
		return nil, errors.Wrapf(err, "could not bind frame publisher to %s", hostname)
	}
	return &FramePublisher{pubSocket: sock, every: uint64(every)}, nil
}

// AcceptFrame publishes frame if it is due. The bytes are copied into the
// message before AcceptFrame returns.
func (fp *FramePublisher) AcceptFrame(frame *Frame) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	if fp.pubSocket == nil {
		return
	}
	fp.seen++
	if (fp.seen-1)%fp.every != 0 {
		return
	}
	flock, err := frame.Lock()
	if err != nil {
		return
	}
	defer flock.Unlock()
	hdr, err := frame.Header()
	if err != nil {
		return
	}
	if _, err := fp.pubSocket.SendMessage([]byte(hdr), frame.Payload()); err != nil {
		ProblemLogger.Printf("FramePublisher could not send frame %d: %v", hdr.FrameCounter(), err)
		return
	}
	fp.published++
}

// Published returns how many frames have been sent.
func (fp *FramePublisher) Published() uint64 {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return fp.published
}

// Close unbinds the socket. Frames arriving afterwards are ignored.
func (fp *FramePublisher) Close() error {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	if fp.pubSocket == nil {
		return nil
	}
	err := fp.pubSocket.Close()
	fp.pubSocket = nil
	return err
}
