package adc

import (
	"fmt"
	"strings"
)

// ScaleFactor converts millivolts into the stored unit. One stored unit is
// 0.1 mV, so downstream code can work at microvolt-scale thresholds
// (e.g. 200 units = 20 mV).
const ScaleFactor = 10

// RawSample is a reading in device-native units, bounded by the channel
// resolution (0..4095 at 12 bits).
type RawSample uint16

// Millivolts is the output of a calibration scheme, or the raw value itself
// when no scheme is active.
type Millivolts int32

// CalibratedValue is what gets stored in the sample buffer: tenths of a
// millivolt. int32 keeps raw passthrough at full scale (4095 * 10) in range.
type CalibratedValue int32

// Scale converts millivolts to the stored fixed-point unit.
func Scale(mv Millivolts) CalibratedValue {
	return CalibratedValue(mv) * ScaleFactor
}

// Unit selects a physical converter block.
type Unit uint8

const (
	Unit1 Unit = 1
	Unit2 Unit = 2
)

// Channel is a converter input channel.
type Channel uint8

// Bitwidth is the conversion resolution. BitwidthDefault lets the driver
// pick its native width.
type Bitwidth uint8

const (
	BitwidthDefault Bitwidth = 0
	Bitwidth9       Bitwidth = 9
	Bitwidth10      Bitwidth = 10
	Bitwidth11      Bitwidth = 11
	Bitwidth12      Bitwidth = 12
	Bitwidth13      Bitwidth = 13
)

// Resolve returns the effective width, substituting def for BitwidthDefault.
func (b Bitwidth) Resolve(def Bitwidth) Bitwidth {
	if b == BitwidthDefault {
		return def
	}
	return b
}

// Valid reports whether b is BitwidthDefault or one of the supported
// widths 9..13.
func (b Bitwidth) Valid() bool {
	return b == BitwidthDefault || (b >= Bitwidth9 && b <= Bitwidth13)
}

// MaxRaw is the largest raw reading at this width, or 0 for an unsupported
// width.
func (b Bitwidth) MaxRaw() RawSample {
	if b == BitwidthDefault {
		b = Bitwidth12
	}
	if !b.Valid() {
		return 0
	}
	return RawSample(1<<b - 1)
}

// Attenuation selects the input range of a channel.
type Attenuation uint8

const (
	Atten0dB Attenuation = iota
	Atten2_5dB
	Atten6dB
	Atten12dB
)

var attenNames = map[Attenuation]string{
	Atten0dB:   "0db",
	Atten2_5dB: "2.5db",
	Atten6dB:   "6db",
	Atten12dB:  "12db",
}

// nominal full-scale input per attenuation setting
var attenFullScale = map[Attenuation]Millivolts{
	Atten0dB:   950,
	Atten2_5dB: 1250,
	Atten6dB:   1750,
	Atten12dB:  3100,
}

func (a Attenuation) String() string {
	if name, ok := attenNames[a]; ok {
		return name
	}
	return fmt.Sprintf("atten(%d)", uint8(a))
}

// FullScale returns the nominal input range for the attenuation.
func (a Attenuation) FullScale() (Millivolts, bool) {
	mv, ok := attenFullScale[a]
	return mv, ok
}

// ParseAttenuation accepts "0db", "2.5db", "6db", "12db" (case insensitive,
// the "db" suffix is optional).
func ParseAttenuation(s string) (Attenuation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasSuffix(s, "db") {
		s += "db"
	}
	for a, name := range attenNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown attenuation %q", s)
}

// ChannelConfig is what ConfigureChannel receives.
type ChannelConfig struct {
	Bitwidth    Bitwidth
	Attenuation Attenuation
}

// CalibrationConfig describes the scheme a driver should build. It must
// match the unit and channel configuration.
type CalibrationConfig struct {
	Unit        Unit
	Bitwidth    Bitwidth
	Attenuation Attenuation
	Offset      Millivolts // zero-input reading to add after fitting
}

// Config is the full acquisition path setup.
type Config struct {
	Unit        Unit
	Channel     Channel
	Bitwidth    Bitwidth
	Attenuation Attenuation
	Offset      Millivolts // calibration offset, ignored in raw passthrough
}

// DefaultConfig is unit 1, channel 6, native 12-bit width, 12 dB (~3.1 V
// full scale).
func DefaultConfig() Config {
	return Config{
		Unit:        Unit1,
		Channel:     6,
		Bitwidth:    BitwidthDefault,
		Attenuation: Atten12dB,
	}
}
