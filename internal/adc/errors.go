package adc

import (
	"errors"
	"fmt"
)

var (
	ErrUnitInitFailed         = errors.New("adc unit init failed")
	ErrChannelConfigFailed    = errors.New("adc channel config failed")
	ErrCalibrationUnsupported = errors.New("calibration scheme not supported")
	ErrRawOutOfRange          = errors.New("raw sample out of range")
)

// InitStage identifies the initialization step that failed.
type InitStage string

const (
	StageUnit    InitStage = "unit"
	StageChannel InitStage = "channel"
)

// InitError is returned by Initialize when the acquisition path cannot be
// brought up. It is always fatal: no device handle is returned.
type InitError struct {
	Stage   InitStage
	Unit    Unit
	Channel Channel
	Err     error
}

func (e *InitError) Error() string {
	if e.Stage == StageChannel {
		return fmt.Sprintf("[adc] %s init failed (unit %d, channel %d): %v", e.Stage, e.Unit, e.Channel, e.Err)
	}
	return fmt.Sprintf("[adc] %s init failed (unit %d): %v", e.Stage, e.Unit, e.Err)
}

// Unwrap exposes both the stage sentinel and the driver error, so
// errors.Is works with ErrChannelConfigFailed as well as the cause.
func (e *InitError) Unwrap() []error {
	sentinel := ErrUnitInitFailed
	if e.Stage == StageChannel {
		sentinel = ErrChannelConfigFailed
	}
	return []error{sentinel, e.Err}
}
