package adc

// Driver is the narrow hardware capability the acquisition path needs.
// Implementations do not need to be safe for concurrent use; the sampling
// task is the only caller after initialization.
type Driver interface {
	// InitUnit powers up and selects the converter block.
	InitUnit(unit Unit) error

	// ConfigureChannel sets resolution and input range for ch.
	ConfigureChannel(ch Channel, cfg ChannelConfig) error

	// ReadRaw performs a one-shot conversion on ch.
	ReadRaw(ch Channel) (RawSample, error)
}

// CalibrationProvider is implemented by drivers that can build a
// calibration scheme. Drivers without one run in passthrough mode.
type CalibrationProvider interface {
	CreateCalibration(cfg CalibrationConfig) (Calibration, error)
}

// Calibration converts raw readings to millivolts.
type Calibration interface {
	RawToMillivolts(raw RawSample) (Millivolts, error)
}

// CalibrationFunc adapts a plain function to Calibration.
type CalibrationFunc func(raw RawSample) (Millivolts, error)

func (f CalibrationFunc) RawToMillivolts(raw RawSample) (Millivolts, error) {
	return f(raw)
}
