package adc

import (
	"go.uber.org/zap"
)

// Device is a configured acquisition path. It is immutable after
// Initialize returns and is only read by the sampling task.
type Device struct {
	driver      Driver
	cfg         Config
	calibration Calibration
}

// Initialize brings up the unit and channel, then tries to establish a
// calibration scheme. A unit or channel failure is fatal and returns an
// *InitError with no device. A calibration failure is not: the device falls
// back to returning raw values.
func Initialize(drv Driver, cfg Config, logger *zap.Logger) (*Device, error) {
	if err := drv.InitUnit(cfg.Unit); err != nil {
		logger.Error("[adc] failed to initialize unit", zap.Uint8("unit", uint8(cfg.Unit)), zap.Error(err))
		return nil, &InitError{Stage: StageUnit, Unit: cfg.Unit, Err: err}
	}
	logger.Info("[adc] unit initialized", zap.Uint8("unit", uint8(cfg.Unit)))

	chCfg := ChannelConfig{Bitwidth: cfg.Bitwidth, Attenuation: cfg.Attenuation}
	if err := drv.ConfigureChannel(cfg.Channel, chCfg); err != nil {
		logger.Error("[adc] failed to configure channel", zap.Uint8("channel", uint8(cfg.Channel)), zap.Error(err))
		return nil, &InitError{Stage: StageChannel, Unit: cfg.Unit, Channel: cfg.Channel, Err: err}
	}
	logger.Info("[adc] channel configured",
		zap.Uint8("channel", uint8(cfg.Channel)),
		zap.Uint8("bitwidth", uint8(cfg.Bitwidth)),
		zap.Stringer("attenuation", cfg.Attenuation),
	)

	dev := &Device{driver: drv, cfg: cfg}

	if provider, ok := drv.(CalibrationProvider); ok {
		cal, err := provider.CreateCalibration(CalibrationConfig{
			Unit:        cfg.Unit,
			Bitwidth:    cfg.Bitwidth,
			Attenuation: cfg.Attenuation,
			Offset:      cfg.Offset,
		})
		if err != nil {
			logger.Warn("[adc] calibration not available, using raw values", zap.Error(err))
		} else {
			dev.calibration = cal
			logger.Info("[adc] calibration ready")
		}
	} else {
		logger.Warn("[adc] driver has no calibration support, using raw values")
	}

	logger.Info("[adc] initialized and ready for sampling", zap.Bool("calibrated", dev.Calibrated()))
	return dev, nil
}

// Config returns the configuration the device was initialized with.
func (d *Device) Config() Config {
	return d.cfg
}

func (d *Device) Calibrated() bool {
	return d.calibration != nil
}

// ReadRaw reads one sample from the configured channel.
func (d *Device) ReadRaw() (RawSample, error) {
	return d.driver.ReadRaw(d.cfg.Channel)
}

// Convert applies the calibration scheme, or passes raw through unchanged
// when none is active.
func (d *Device) Convert(raw RawSample) (Millivolts, error) {
	if d.calibration == nil {
		return Millivolts(raw), nil
	}
	return d.calibration.RawToMillivolts(raw)
}
