package smurfemu

import (
	"log"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
)

// Portnumbers structs can contain all TCP port numbers used by the emulator server.
type Portnumbers struct {
	RPC    int
	Status int
	Frames int
}

// Ports globally holds all TCP port numbers used by the emulator server.
var Ports Portnumbers

// SetPortnumbers assigns consecutive port numbers starting at base.
func SetPortnumbers(base int) {
	Ports.RPC = base
	Ports.Status = base + 1
	Ports.Frames = base + 2
}

// BuildInfo can contain compile-time information about the build
type BuildInfo struct {
	Version string
	Githash string
	Gitdate string
	Date    string
	Host    string
	Summary string
	RunID   string // unique per process, sortable by start time
}

// Build is a global holding compile-time information about the build
var Build = BuildInfo{
	Version: "0.1.0",
	Githash: "no git hash computed",
	Gitdate: "no git date computed",
	Date:    "no build date computed",
}

// StartTime is a global holding the time init() was run
var StartTime time.Time

// ProblemLogger will log warning messages to a file
var ProblemLogger *log.Logger

// UpdateLogger will log client updates to a file
var UpdateLogger *log.Logger

func init() {
	SetPortnumbers(5600)
	StartTime = time.Now()
	Build.RunID = ulid.MustNew(ulid.Timestamp(StartTime), ulid.DefaultEntropy()).String()

	// The main program will override these, but at least initialize with a sensible value
	ProblemLogger = log.New(os.Stderr, "", log.LstdFlags)
	UpdateLogger = log.New(os.Stderr, "", log.LstdFlags)
}
