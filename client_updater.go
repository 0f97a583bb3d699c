package smurfemu

// Contain the ClientUpdater object, which publishes JSON-encoded messages
// giving the latest emulator server state.

import (
	"encoding/json"
	"fmt"
	"log"

	zmq "github.com/pebbe/zmq4"
	"github.com/pkg/errors"
)

// ClientUpdate carries the messages to be published on the status port.
type ClientUpdate struct {
	tag   string
	state interface{}
}

// clientMessageChan queues updates for RunClientUpdater. It is buffered so a
// slow or absent publisher never stalls an RPC handler.
var clientMessageChan = make(chan ClientUpdate, 100)

// publishUpdate queues a message for clients. If the queue is full the message
// is dropped and the drop is logged.
func publishUpdate(tag string, state interface{}) {
	select {
	case clientMessageChan <- ClientUpdate{tag: tag, state: state}:
	default:
		ProblemLogger.Printf("client update queue is full; dropped a %s message", tag)
	}
}

// RunClientUpdater forwards any message from its input channel to the ZMQ publisher socket
// to publish any information that clients need to know. It returns when abort is closed.
func RunClientUpdater(statusport int, abort <-chan struct{}) error {
	hostname := fmt.Sprintf("tcp://*:%d", statusport)
	pubSocket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return errors.Wrap(err, "could not create client updater socket")
	}
	defer pubSocket.Close()
	if err = pubSocket.Bind(hostname); err != nil {
		return errors.Wrapf(err, "could not bind client updater to %s", hostname)
	}

	for {
		select {
		case <-abort:
			return nil
		case update := <-clientMessageChan:
			message, err := json.Marshal(update.state)
			if err != nil {
				ProblemLogger.Printf("could not JSON-encode %s update: %v", update.tag, err)
				continue
			}
			if _, err := pubSocket.SendMessage(update.tag, message); err != nil {
				log.Printf("client updater could not send %s: %v\n", update.tag, err)
				continue
			}
			if update.tag != "ALIVE" {
				UpdateLogger.Printf("%s %s", update.tag, message)
			}
		}
	}
}
