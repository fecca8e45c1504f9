package adc

import "fmt"

// LineFitting is a two-point linear calibration: mv = raw*fullScale/maxRaw + offset.
type LineFitting struct {
	FullScale Millivolts
	MaxRaw    RawSample
	Offset    Millivolts
}

// NewLineFitting builds a scheme for cfg. vref overrides the nominal
// full-scale range when non-zero (e.g. an external reference on an SPI part).
// defaultWidth is the driver's native resolution.
func NewLineFitting(cfg CalibrationConfig, defaultWidth Bitwidth, vref Millivolts) (*LineFitting, error) {
	width := cfg.Bitwidth.Resolve(defaultWidth)
	if width < Bitwidth9 || width > Bitwidth13 {
		return nil, fmt.Errorf("%w: bitwidth %d", ErrCalibrationUnsupported, width)
	}

	fullScale := vref
	if fullScale == 0 {
		mv, ok := cfg.Attenuation.FullScale()
		if !ok {
			return nil, fmt.Errorf("%w: attenuation %s", ErrCalibrationUnsupported, cfg.Attenuation)
		}
		fullScale = mv
	}

	return &LineFitting{
		FullScale: fullScale,
		MaxRaw:    width.MaxRaw(),
		Offset:    cfg.Offset,
	}, nil
}

func (l *LineFitting) RawToMillivolts(raw RawSample) (Millivolts, error) {
	if raw > l.MaxRaw {
		return 0, fmt.Errorf("%w: %d > %d", ErrRawOutOfRange, raw, l.MaxRaw)
	}
	// round to nearest millivolt
	mv := (int64(raw)*int64(l.FullScale) + int64(l.MaxRaw)/2) / int64(l.MaxRaw)
	return Millivolts(mv) + l.Offset, nil
}
