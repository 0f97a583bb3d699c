package smurfemu

import (
	"fmt"
	"log"
	"math"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/usnistgov/smurfemu/internal/activitydb"
)

// EmulatorControl is the RPC server that handles configuration of the
// emulator stage and operation of the simulated frame source feeding it.
type EmulatorControl struct {
	emulator  *StreamDataEmulator
	source    *SimFrameSource
	monitor   *FrameMonitor
	recorder  *FrameRecorder
	publisher *FramePublisher // nil if the frame port could not be bound
	activity  *activitydb.Connection
}

// ServerStatus the status that EmulatorControl reports to clients.
type ServerStatus struct {
	RunID      string
	Running    bool
	SourceName string
	Nchannels  int
	Nsamples   int
	FrameRate  float64
	FramesSent uint32
	Recording  bool
	Emulator   EmulatorStats
}

// NewEmulatorControl wires a simulated source into an emulator and the emulator
// into a monitor, a recorder and (when publisher is not nil) a frame publisher.
func NewEmulatorControl(publisher *FramePublisher, activity *activitydb.Connection) *EmulatorControl {
	ec := &EmulatorControl{
		emulator:  NewStreamDataEmulator(),
		source:    NewSimFrameSource(),
		monitor:   NewFrameMonitor(),
		recorder:  NewFrameRecorder(),
		publisher: publisher,
		activity:  activity,
	}
	if ec.activity == nil {
		ec.activity = activitydb.Dummy()
	}
	ec.source.AddSlave(ec.emulator)
	ec.emulator.AddSlave(ec.monitor)
	ec.emulator.AddSlave(ec.recorder)
	if publisher != nil {
		ec.emulator.AddSlave(publisher)
	}
	return ec
}

// configChanged tells clients and the activity DB about the new configuration.
func (ec *EmulatorControl) configChanged() {
	cfg := ec.emulator.Config()
	publishUpdate("EMULATOR", cfg)
	ec.activity.RecordConfigChange(&activitydb.ConfigChangeMessage{
		Time: time.Now(), Disable: cfg.Disable, Type: cfg.Type.String(),
		Amplitude: cfg.Amplitude, Offset: cfg.Offset, Period: cfg.Period,
	})
}

// SetDisable turns the emulator's pass-through mode on or off.
func (ec *EmulatorControl) SetDisable(disable *bool, reply *bool) error {
	ec.emulator.SetDisable(*disable)
	ec.configChanged()
	*reply = true
	return nil
}

// GetDisable reports whether the emulator is in pass-through mode.
func (ec *EmulatorControl) GetDisable(dummy *string, reply *bool) error {
	*reply = ec.emulator.GetDisable()
	return nil
}

// SetType selects the signal by name ("sine") or by numeric tag ("6").
func (ec *EmulatorControl) SetType(name *string, reply *bool) error {
	st, err := ParseSignalType(*name)
	if err == nil {
		err = ec.emulator.SetType(st)
	}
	*reply = (err == nil)
	if err != nil {
		return err
	}
	ec.configChanged()
	return nil
}

// GetType returns the name of the selected signal.
func (ec *EmulatorControl) GetType(dummy *string, reply *string) error {
	*reply = ec.emulator.GetType().String()
	return nil
}

// checkRange returns ErrInvalidConfig unless min <= v <= max.
func checkRange(name string, v, min, max int64) error {
	if v < min || v > max {
		return errors.Wrapf(ErrInvalidConfig, "%s=%d, must be in [%d,%d]", name, v, min, max)
	}
	return nil
}

// SetAmplitude sets the signal amplitude, which must fit in 16 unsigned bits.
func (ec *EmulatorControl) SetAmplitude(amplitude *int64, reply *bool) error {
	if err := checkRange("amplitude", *amplitude, 0, math.MaxUint16); err != nil {
		*reply = false
		return err
	}
	ec.emulator.SetAmplitude(uint16(*amplitude))
	ec.configChanged()
	*reply = true
	return nil
}

// GetAmplitude returns the signal amplitude.
func (ec *EmulatorControl) GetAmplitude(dummy *string, reply *int64) error {
	*reply = int64(ec.emulator.GetAmplitude())
	return nil
}

// SetOffset sets the signal offset, which must fit in 16 signed bits.
func (ec *EmulatorControl) SetOffset(offset *int64, reply *bool) error {
	if err := checkRange("offset", *offset, math.MinInt16, math.MaxInt16); err != nil {
		*reply = false
		return err
	}
	ec.emulator.SetOffset(int16(*offset))
	ec.configChanged()
	*reply = true
	return nil
}

// GetOffset returns the signal offset.
func (ec *EmulatorControl) GetOffset(dummy *string, reply *int64) error {
	*reply = int64(ec.emulator.GetOffset())
	return nil
}

// SetPeriod sets the signal period in frames, which must fit in 32 unsigned bits.
func (ec *EmulatorControl) SetPeriod(period *int64, reply *bool) error {
	if err := checkRange("period", *period, 0, math.MaxUint32); err != nil {
		*reply = false
		return err
	}
	ec.emulator.SetPeriod(uint32(*period))
	ec.configChanged()
	*reply = true
	return nil
}

// GetPeriod returns the signal period in frames.
func (ec *EmulatorControl) GetPeriod(dummy *string, reply *int64) error {
	*reply = int64(ec.emulator.GetPeriod())
	return nil
}

// Configure sets all emulator parameters at once.
func (ec *EmulatorControl) Configure(config *EmulatorConfig, reply *bool) error {
	err := ec.emulator.Configure(*config)
	*reply = (err == nil)
	if err != nil {
		return err
	}
	ec.configChanged()
	return nil
}

// GetConfig returns all emulator parameters.
func (ec *EmulatorControl) GetConfig(dummy *string, reply *EmulatorConfig) error {
	*reply = ec.emulator.Config()
	return nil
}

// ResetCounter puts the periodic signals back at phase 0.
func (ec *EmulatorControl) ResetCounter(dummy *string, reply *bool) error {
	ec.emulator.ResetCounter()
	*reply = true
	return nil
}

// ConfigureSource configures the simulated frame source.
func (ec *EmulatorControl) ConfigureSource(config *SimFrameSourceConfig, reply *bool) error {
	log.Printf("ConfigureSource: %d chan x %d samples, rate=%.3f\n", config.Nchan, config.Nsamp, config.FrameRate)
	err := ec.source.Configure(config)
	*reply = (err == nil)
	if err != nil {
		return err
	}
	publishUpdate("SOURCE", config)
	return nil
}

// StartSource starts the simulated frame source.
func (ec *EmulatorControl) StartSource(dummy *string, reply *bool) error {
	err := ec.source.Start()
	*reply = (err == nil)
	if err != nil {
		return err
	}
	log.Printf("Started the simulated frame source\n")
	ec.broadcastStatus()
	return nil
}

// StopSource stops the simulated frame source.
func (ec *EmulatorControl) StopSource(dummy *string, reply *bool) error {
	err := ec.source.Stop()
	*reply = (err == nil)
	if err != nil {
		return err
	}
	ec.broadcastStatus()
	return nil
}

// RecordObject is the RPC-usable structure for RecordFrames.
type RecordObject struct {
	Nframes  int
	Filename string
}

// RecordFrames captures the next Nframes output frames to a .npy file.
func (ec *EmulatorControl) RecordFrames(args *RecordObject, reply *bool) error {
	err := ec.recorder.Arm(args.Nframes, args.Filename)
	*reply = (err == nil)
	return err
}

// GetMonitor returns the summary of the latest output frame.
func (ec *EmulatorControl) GetMonitor(dummy *string, reply *MonitorSummary) error {
	*reply = ec.monitor.Summary()
	return nil
}

// computeStatus assembles the current ServerStatus.
func (ec *EmulatorControl) computeStatus() ServerStatus {
	cfg := ec.source.ComputeConfig()
	status := ServerStatus{
		RunID:      Build.RunID,
		Running:    ec.source.Running(),
		FrameRate:  cfg.FrameRate,
		FramesSent: ec.source.FramesSent(),
		Recording:  ec.recorder.Recording(),
		Emulator:   ec.emulator.Stats(),
	}
	if status.Running {
		status.SourceName = "SimFrames"
		status.Nchannels = cfg.Nchan
		status.Nsamples = cfg.Nsamp
	}
	return status
}

// GetStatus returns the current ServerStatus.
func (ec *EmulatorControl) GetStatus(dummy *string, reply *ServerStatus) error {
	*reply = ec.computeStatus()
	return nil
}

func (ec *EmulatorControl) broadcastStatus() {
	publishUpdate("STATUS", ec.computeStatus())
}

// SendAllStatus causes a broadcast to clients containing all broadcastable status info
func (ec *EmulatorControl) SendAllStatus(dummy *string, reply *bool) error {
	ec.broadcastStatus()
	publishUpdate("EMULATOR", ec.emulator.Config())
	publishUpdate("SOURCE", ec.source.ComputeConfig())
	publishUpdate("MONITOR", ec.monitor.Summary())
	*reply = true
	return nil
}

// loadStoredSettings applies the "emulator" and "source" sections of the config file, if present.
func (ec *EmulatorControl) loadStoredSettings() {
	log.Printf("smurfemu is using config file %s\n", viper.ConfigFileUsed())
	if viper.IsSet("source") {
		var sfc SimFrameSourceConfig
		if err := viper.UnmarshalKey("source", &sfc); err == nil {
			if err := ec.source.Configure(&sfc); err != nil {
				ProblemLogger.Printf("stored source settings rejected: %v", err)
			}
		}
	}
	if viper.IsSet("emulator") {
		// Type is stored by name, so it is decoded separately.
		var stored struct {
			Disable   bool
			Type      string
			Amplitude uint16
			Offset    int16
			Period    uint32
		}
		if err := viper.UnmarshalKey("emulator", &stored); err != nil {
			ProblemLogger.Printf("stored emulator settings unreadable: %v", err)
			return
		}
		cfg := EmulatorConfig{Disable: stored.Disable, Amplitude: stored.Amplitude,
			Offset: stored.Offset, Period: stored.Period, Type: ec.emulator.GetType()}
		if stored.Type != "" {
			st, err := ParseSignalType(stored.Type)
			if err != nil {
				ProblemLogger.Printf("stored emulator settings rejected: %v", err)
				return
			}
			cfg.Type = st
		}
		if err := ec.emulator.Configure(cfg); err != nil {
			ProblemLogger.Printf("stored emulator settings rejected: %v", err)
		}
	}
}

// RunRPCServer sets up and runs a permanent JSON-RPC server. If block, it serves
// connections on the calling goroutine and never returns; otherwise it serves them
// in the background and returns at once (for tests).
func RunRPCServer(portrpc int, activity *activitydb.Connection, block bool) (*EmulatorControl, error) {
	publisher, err := NewFramePublisher(Ports.Frames, viper.GetInt("publish.every"))
	if err != nil {
		ProblemLogger.Printf("frames will not be published: %v", err)
		publisher = nil
	}
	ec := NewEmulatorControl(publisher, activity)
	ec.loadStoredSettings()
	if viper.GetBool("autostart") {
		var okay bool
		if err := ec.StartSource(nil, &okay); err != nil {
			ProblemLogger.Printf("could not autostart the source: %v", err)
		}
	}

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			ec.broadcastStatus()
			publishUpdate("ALIVE", struct{ RunID string }{Build.RunID})
		}
	}()

	// Now launch the connection handler and accept connections.
	server := rpc.NewServer()
	if err := server.Register(ec); err != nil {
		return nil, errors.Wrap(err, "could not register EmulatorControl")
	}
	port := fmt.Sprintf(":%d", portrpc)
	listener, err := net.Listen("tcp", port)
	if err != nil {
		return nil, errors.Wrapf(err, "listen error on %s", port)
	}
	acceptLoop := func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				log.Printf("accept error: %v\n", err)
				continue
			}
			log.Printf("new connection established\n")
			go server.ServeCodec(jsonrpc.NewServerCodec(conn))
		}
	}
	if block {
		acceptLoop()
		return ec, nil
	}
	go acceptLoop()
	return ec, nil
}
