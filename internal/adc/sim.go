package adc

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var ErrSimReadFault = errors.New("simulated read fault")

// SimDriver generates a sine wave around mid-scale. It stands in for real
// hardware on a development host.
type SimDriver struct {
	// SignalHz and SampleHz set the waveform; Amplitude is a fraction of
	// full scale in [0, 0.5].
	SignalHz  float64
	SampleHz  float64
	Amplitude float64

	// FailEvery makes every Nth read fail. Zero disables faults.
	FailEvery int

	// NoCalibration disables CreateCalibration.
	NoCalibration bool

	mu         sync.Mutex
	unitReady  bool
	configured map[Channel]ChannelConfig
	n          int
}

// NewSimDriver returns a 10 Hz tone sampled at sampleHz.
func NewSimDriver(sampleHz float64) *SimDriver {
	return &SimDriver{
		SignalHz:  10,
		SampleHz:  sampleHz,
		Amplitude: 0.25,
	}
}

func (s *SimDriver) InitUnit(unit Unit) error {
	if unit != Unit1 && unit != Unit2 {
		return fmt.Errorf("[sim] unknown unit %d", unit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unitReady = true
	s.configured = make(map[Channel]ChannelConfig)
	return nil
}

func (s *SimDriver) ConfigureChannel(ch Channel, cfg ChannelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.unitReady {
		return errors.New("[sim] unit not initialized")
	}
	if ch > 9 {
		return fmt.Errorf("[sim] unsupported channel %d", ch)
	}
	if !cfg.Bitwidth.Valid() {
		return fmt.Errorf("[sim] unsupported bitwidth %d", cfg.Bitwidth)
	}
	if _, ok := cfg.Attenuation.FullScale(); !ok {
		return fmt.Errorf("[sim] unsupported attenuation %s", cfg.Attenuation)
	}
	s.configured[ch] = cfg
	return nil
}

func (s *SimDriver) ReadRaw(ch Channel) (RawSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configured[ch]
	if !ok {
		return 0, fmt.Errorf("[sim] channel %d not configured", ch)
	}

	s.n++
	if s.FailEvery > 0 && s.n%s.FailEvery == 0 {
		return 0, ErrSimReadFault
	}

	maxRaw := float64(cfg.Bitwidth.Resolve(Bitwidth12).MaxRaw())
	phase := 2 * math.Pi * s.SignalHz * float64(s.n) / s.SampleHz
	v := maxRaw/2 + s.Amplitude*maxRaw*math.Sin(phase)
	return RawSample(math.Round(math.Max(0, math.Min(maxRaw, v)))), nil
}

func (s *SimDriver) CreateCalibration(cfg CalibrationConfig) (Calibration, error) {
	if s.NoCalibration {
		return nil, fmt.Errorf("%w: disabled", ErrCalibrationUnsupported)
	}
	return NewLineFitting(cfg, Bitwidth12, 0)
}
