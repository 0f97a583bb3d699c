package smurfemu

import (
	"fmt"
	"log"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleClient() (*rpc.Client, error) {
	serverAddress := fmt.Sprintf("localhost:%d", Ports.RPC)
	retries := 5
	wait := 10 * time.Millisecond
	tries := 1
	for {
		// One command to dial AND set up jsonrpc client:
		client, err := jsonrpc.Dial("tcp", serverAddress)
		tries++
		if err == nil || tries > retries {
			return client, err
		}
		time.Sleep(wait)
		wait = wait * 2
	}
}

func TestServerEmulatorConfig(t *testing.T) {
	client, err := simpleClient()
	require.NoError(t, err, "Could not connect simpleClient() to RPC server")
	defer client.Close()

	var okay bool
	dummy := ""
	name := "sine"
	if err := client.Call("EmulatorControl.SetType", &name, &okay); err != nil || !okay {
		t.Errorf("EmulatorControl.SetType(%q) = %v, %v", name, okay, err)
	}
	var typename string
	require.NoError(t, client.Call("EmulatorControl.GetType", &dummy, &typename))
	assert.Equal(t, "sine", typename)

	name = "6"
	assert.NoError(t, client.Call("EmulatorControl.SetType", &name, &okay))
	name = "cosine"
	if err := client.Call("EmulatorControl.SetType", &name, &okay); err == nil {
		t.Errorf("expected error calling EmulatorControl.SetType(%q)", name)
	}
	require.NoError(t, client.Call("EmulatorControl.GetType", &dummy, &typename))
	assert.Equal(t, "sine", typename, "rejected SetType changed the type")

	// Out-of-range values are rejected.
	for _, call := range []struct {
		method string
		value  int64
	}{
		{"SetAmplitude", 65536},
		{"SetAmplitude", -1},
		{"SetOffset", 32768},
		{"SetOffset", -32769},
		{"SetPeriod", -1},
		{"SetPeriod", 1 << 32},
	} {
		v := call.value
		if err := client.Call("EmulatorControl."+call.method, &v, &okay); err == nil {
			t.Errorf("expected error calling EmulatorControl.%s(%d)", call.method, v)
		}
	}

	for _, call := range []struct {
		set, get string
		value    int64
	}{
		{"SetAmplitude", "GetAmplitude", 65535},
		{"SetOffset", "GetOffset", -32768},
		{"SetPeriod", "GetPeriod", 4294967295},
		{"SetAmplitude", "GetAmplitude", 100},
		{"SetOffset", "GetOffset", 20},
		{"SetPeriod", "GetPeriod", 8},
	} {
		v := call.value
		if err := client.Call("EmulatorControl."+call.set, &v, &okay); err != nil {
			t.Errorf("EmulatorControl.%s(%d) error: %v", call.set, v, err)
		}
		var got int64
		require.NoError(t, client.Call("EmulatorControl."+call.get, &dummy, &got))
		assert.Equal(t, call.value, got, call.get)
	}

	disable := true
	require.NoError(t, client.Call("EmulatorControl.SetDisable", &disable, &okay))
	var gotDisable bool
	require.NoError(t, client.Call("EmulatorControl.GetDisable", &dummy, &gotDisable))
	assert.True(t, gotDisable)
	disable = false
	require.NoError(t, client.Call("EmulatorControl.SetDisable", &disable, &okay))

	var cfg EmulatorConfig
	require.NoError(t, client.Call("EmulatorControl.GetConfig", &dummy, &cfg))
	assert.Equal(t, EmulatorConfig{Type: Sine, Amplitude: 100, Offset: 20, Period: 8}, cfg)

	newcfg := EmulatorConfig{Type: Square, Amplitude: 50, Offset: -10, Period: 2}
	require.NoError(t, client.Call("EmulatorControl.Configure", &newcfg, &okay))
	require.NoError(t, client.Call("EmulatorControl.GetConfig", &dummy, &cfg))
	assert.Equal(t, newcfg, cfg)
	require.NoError(t, client.Call("EmulatorControl.ResetCounter", &dummy, &okay))
	assert.NoError(t, client.Call("EmulatorControl.SendAllStatus", &dummy, &okay))
}

func TestServerRunSource(t *testing.T) {
	client, err := simpleClient()
	require.NoError(t, err, "Could not connect simpleClient() to RPC server")
	defer client.Close()

	var okay bool
	dummy := ""
	cfg := EmulatorConfig{Type: Triangle, Amplitude: 300, Offset: 1000, Period: 10}
	require.NoError(t, client.Call("EmulatorControl.Configure", &cfg, &okay))

	bad := SimFrameSourceConfig{Nchan: 0, Nsamp: 2, FrameRate: 200}
	if err := client.Call("EmulatorControl.ConfigureSource", &bad, &okay); err == nil {
		t.Errorf("expected error calling EmulatorControl.ConfigureSource(%+v)", bad)
	}
	srcConfig := SimFrameSourceConfig{Nchan: 4, Nsamp: 2, FrameRate: 200, Pedestal: 5}
	require.NoError(t, client.Call("EmulatorControl.ConfigureSource", &srcConfig, &okay))
	if err := client.Call("EmulatorControl.StopSource", &dummy, &okay); err == nil {
		t.Errorf("expected error on Stopping when there is no active source")
	}

	require.NoError(t, client.Call("EmulatorControl.StartSource", &dummy, &okay))
	assert.True(t, okay)
	if err := client.Call("EmulatorControl.StartSource", &dummy, &okay); err == nil {
		t.Errorf("expected error when starting a source that is active")
	}

	filename := filepath.Join(t.TempDir(), "rpc.npy")
	rec := RecordObject{Nframes: 3, Filename: filename}
	require.NoError(t, client.Call("EmulatorControl.RecordFrames", &rec, &okay))
	time.Sleep(200 * time.Millisecond)

	var status ServerStatus
	require.NoError(t, client.Call("EmulatorControl.GetStatus", &dummy, &status))
	assert.True(t, status.Running)
	assert.Equal(t, "SimFrames", status.SourceName)
	assert.Equal(t, 4, status.Nchannels)
	assert.Equal(t, Build.RunID, status.RunID)
	assert.Greater(t, status.Emulator.FramesSynthesized, uint64(0))

	var summary MonitorSummary
	require.NoError(t, client.Call("EmulatorControl.GetMonitor", &dummy, &summary))
	assert.Equal(t, 4, summary.Nchan)
	require.Len(t, summary.Mean, 4)
	for ch, m := range summary.Mean {
		if m < 700 || m > 1300 {
			t.Errorf("channel %d mean %v outside the triangle's range [700,1300]", ch, m)
		}
	}

	require.NoError(t, client.Call("EmulatorControl.StopSource", &dummy, &okay))
	require.NoError(t, client.Call("EmulatorControl.GetStatus", &dummy, &status))
	assert.False(t, status.Running)
	assert.False(t, status.Recording)
	_, err = os.Stat(filename)
	assert.NoError(t, err, "recording file was not written")
}

func TestMain(m *testing.M) {
	SetPortnumbers(33100)
	abort := make(chan struct{})
	go RunClientUpdater(Ports.Status, abort)
	if _, err := RunRPCServer(Ports.RPC, nil, false); err != nil {
		log.Fatalf("could not start RPC server: %v", err)
	}

	// set log to write to a file
	f, err := os.Create("smurfemutestlogfile")
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}
	log.SetOutput(f)

	code := m.Run()
	close(abort)
	f.Close()
	os.Exit(code)
}
