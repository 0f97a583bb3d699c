// framedump subscribes to a running smurfemu server's frame port and prints
// the header of each frame it receives, plus its first few samples.
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/integrii/flaggy"
	zmq "github.com/pebbe/zmq4"
	"github.com/pkg/errors"
	"github.com/usnistgov/smurfemu"
)

func dump(nframes int, endpoint string, nshow int, verbose bool) error {
	fmt.Printf("Subscribing to %s for the next %d frames...\n", endpoint, nframes)
	sub, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return errors.Wrap(err, "could not create subscriber")
	}
	defer sub.Close()
	if err := sub.Connect(endpoint); err != nil {
		return errors.Wrapf(err, "could not connect to %s", endpoint)
	}
	if err := sub.SetSubscribe(""); err != nil {
		return err
	}

	for i := 0; i < nframes; i++ {
		parts, err := sub.RecvMessageBytes(0)
		if err != nil {
			return errors.Wrap(err, "receive failed")
		}
		if len(parts) != 2 {
			fmt.Printf("skipping a message with %d parts\n", len(parts))
			continue
		}
		frame := smurfemu.NewFrameFromBytes(append(append([]byte{}, parts[0]...), parts[1]...))
		hdr, err := frame.Header()
		if err != nil {
			fmt.Printf("bad frame: %v\n", err)
			continue
		}
		fmt.Printf("frame %8d  v%d crate %d slot %d  %d channels  %d payload bytes  %s\n",
			hdr.FrameCounter(), hdr.Version(), hdr.CrateID(), hdr.SlotNumber(),
			hdr.NumberChannels(), len(parts[1]), hdr.UnixTime().Format(time.RFC3339Nano))
		fa, err := smurfemu.NewFrameAccessor(frame.Payload(), int(hdr.NumberChannels()),
			len(parts[1])/smurfemu.SampleWidth/max(1, int(hdr.NumberChannels())))
		if err != nil {
			fmt.Printf("  cannot read samples: %v\n", err)
			continue
		}
		for ch := 0; ch < min(nshow, fa.Channels()); ch++ {
			fmt.Printf("  ch %3d: %v\n", ch, fa.Channel(ch))
		}
		if verbose {
			spew.Dump(parts[0])
		}
	}
	return nil
}

func main() {
	nframes := 10
	nshow := 4
	host := "localhost"
	port := 5602
	verbose := false

	parser := flaggy.NewParser("framedump")
	parser.Description = "Print the headers of frames published by a smurfemu server"
	parser.Int(&nframes, "n", "nframes", "number of frames to dump")
	parser.Int(&nshow, "c", "channels", "number of channels whose samples are printed")
	parser.String(&host, "H", "host", "server host")
	parser.Int(&port, "p", "port", "frame port (the server's base port + 2)")
	parser.Bool(&verbose, "v", "verbose", "also dump the raw header bytes")
	if err := parser.Parse(); err != nil {
		log.Fatalln("failed to parse arguments: ", err)
	}

	endpoint := fmt.Sprintf("tcp://%s:%d", host, port)
	if err := dump(nframes, endpoint, nshow, verbose); err != nil {
		log.Fatalln(err)
	}
}
