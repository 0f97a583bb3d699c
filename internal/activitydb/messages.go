package activitydb

import "time"

// The composite types used for messages to the ClickHouse database.

// ActivityMessage is the information for the emulatoractivity table:
// one row per server process.
type ActivityMessage struct {
	ID        string
	Hostname  string
	Githash   string
	Version   string
	GoVersion string
	CPUs      int
	Start     time.Time
	End       time.Time
}

// ConfigChangeMessage is the information for the configchanges table: one row
// per accepted change to the emulator configuration.
type ConfigChangeMessage struct {
	Time      time.Time
	Disable   bool
	Type      string
	Amplitude uint16
	Offset    int16
	Period    uint32
}
