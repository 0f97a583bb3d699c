package smurfemu

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// SignalType selects which synthetic waveform the emulator writes into frames.
type SignalType int

// Names for the possible values of SignalType
const (
	Zeros         SignalType = iota // every sample is 0
	ChannelNumber                   // every sample is its channel index
	Random                          // uniform noise around the offset
	Square                          // square wave
	Sawtooth                        // rising ramp, reset each period
	Triangle                        // rising then falling ramp
	Sine                            // sine wave
	numSignalTypes
)

var signalNames = [numSignalTypes]string{
	"zeros", "channelnumber", "random", "square", "sawtooth", "triangle", "sine",
}

// Valid reports whether st is one of the known signal types.
func (st SignalType) Valid() bool {
	return st >= 0 && st < numSignalTypes
}

func (st SignalType) String() string {
	if !st.Valid() {
		return "SignalType(" + strconv.Itoa(int(st)) + ")"
	}
	return signalNames[st]
}

// ParseSignalType converts a name ("sine", "Square", ...) or a decimal tag ("6")
// to a SignalType.
func ParseSignalType(name string) (SignalType, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range signalNames {
		if n == lower {
			return SignalType(i), nil
		}
	}
	if v, err := strconv.Atoi(lower); err == nil && SignalType(v).Valid() {
		return SignalType(v), nil
	}
	return 0, errors.Wrapf(ErrInvalidSignalType, "%q", name)
}

// MarshalJSON writes the signal type by name, for status messages and config files.
func (st SignalType) MarshalJSON() ([]byte, error) {
	return json.Marshal(st.String())
}

// UnmarshalJSON accepts either a name or a numeric tag.
func (st *SignalType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		var tag int
		if err2 := json.Unmarshal(data, &tag); err2 != nil {
			return errors.Wrapf(ErrInvalidSignalType, "%s", data)
		}
		name = strconv.Itoa(tag)
	}
	v, err := ParseSignalType(name)
	if err != nil {
		return err
	}
	*st = v
	return nil
}

// generator fills every sample reachable through fa. It is a pure function of
// its arguments, except for Random which draws from a random source. cycle is
// the frame's position in [0, 2*Period), or 0 when Period is 0.
type generator func(fa *FrameAccessor, cfg EmulatorConfig, cycle uint64)

var generators = [numSignalTypes]generator{
	Zeros:         genZeroWave,
	ChannelNumber: genChannelNumberWave,
	Random:        genRandomWave,
	Square:        fillScalar(squareValue),
	Sawtooth:      fillScalar(sawtoothValue),
	Triangle:      fillScalar(triangleValue),
	Sine:          fillScalar(sineValue),
}

// fillScalar turns a per-frame value function into a generator that writes the
// same value into every sample of every channel.
func fillScalar(value func(cfg EmulatorConfig, cycle uint64) int16) generator {
	return func(fa *FrameAccessor, cfg EmulatorConfig, cycle uint64) {
		fa.Fill(value(cfg, cycle))
	}
}

// phase is the position within one period.
func phase(cfg EmulatorConfig, cycle uint64) int64 {
	if cfg.Period == 0 {
		return 0
	}
	return int64(cycle % uint64(cfg.Period))
}

func genZeroWave(fa *FrameAccessor, _ EmulatorConfig, _ uint64) {
	fa.Fill(0)
}

func genChannelNumberWave(fa *FrameAccessor, _ EmulatorConfig, _ uint64) {
	for ch := 0; ch < fa.Channels(); ch++ {
		fa.FillChannel(ch, int16(ch))
	}
}

func genRandomWave(fa *FrameAccessor, cfg EmulatorConfig, _ uint64) {
	a := int64(cfg.Amplitude)
	if a == 0 {
		fa.Fill(int16(cfg.Offset))
		return
	}
	lo := -a / 2
	dist := distuv.Uniform{Min: float64(lo), Max: float64(lo + a)}
	for s := 0; s < fa.SamplesPerChannel(); s++ {
		for ch := 0; ch < fa.Channels(); ch++ {
			v := int64(math.Floor(dist.Rand()))
			if v >= lo+a { // Rand can round up to Max
				v = lo + a - 1
			}
			fa.Set(ch, s, int16(v+int64(cfg.Offset)))
		}
	}
}

// squareValue is +A+O for the first Period frames and -A+O for the next Period.
func squareValue(cfg EmulatorConfig, cycle uint64) int16 {
	a, o := int64(cfg.Amplitude), int64(cfg.Offset)
	if cfg.Period == 0 || (cycle/uint64(cfg.Period))%2 == 0 {
		return int16(a + o)
	}
	return int16(-a + o)
}

// sawtoothValue rises linearly from -A+O toward +A+O over one period.
func sawtoothValue(cfg EmulatorConfig, cycle uint64) int16 {
	a, o := int64(cfg.Amplitude), int64(cfg.Offset)
	if cfg.Period == 0 {
		return int16(-a + o)
	}
	return int16(-a + 2*a*phase(cfg, cycle)/int64(cfg.Period) + o)
}

// triangleValue rises from -A+O to +A+O over the first half period and falls back over the second.
func triangleValue(cfg EmulatorConfig, cycle uint64) int16 {
	a, o := int64(cfg.Amplitude), int64(cfg.Offset)
	if cfg.Period == 0 {
		return int16(-a + o)
	}
	p, period := phase(cfg, cycle), int64(cfg.Period)
	ramp := 4 * a * p / period
	if 2*p < period {
		return int16(-a + ramp + o)
	}
	return int16(3*a - ramp + o)
}

// sineValue is A*sin(2*pi*phase/P)+O, rounded to the nearest integer.
func sineValue(cfg EmulatorConfig, cycle uint64) int16 {
	if cfg.Period == 0 {
		return cfg.Offset
	}
	x := float64(cfg.Amplitude) * math.Sin(2*math.Pi*float64(phase(cfg, cycle))/float64(cfg.Period))
	return int16(int64(math.Round(x)) + int64(cfg.Offset))
}
