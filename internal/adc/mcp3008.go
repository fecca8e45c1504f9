package adc

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// MCP3008 max clock at 3.3 V per datasheet.
const mcp3008MaxSpeed = 1 * physic.MegaHertz

// Transferer is the part of spi.Conn the MCP3008 driver needs.
type Transferer interface {
	Tx(w, r []byte) error
}

// MCP3008Driver reads a 10-bit MCP3008 over SPI. It has a single unit and
// eight single-ended channels; attenuation is fixed by the reference voltage.
type MCP3008Driver struct {
	conn      Transferer
	vref      Millivolts
	unitReady bool
	channels  map[Channel]bool
}

// NewMCP3008Driver wraps an already connected SPI device.
func NewMCP3008Driver(conn Transferer, vref Millivolts) *MCP3008Driver {
	return &MCP3008Driver{
		conn:     conn,
		vref:     vref,
		channels: make(map[Channel]bool),
	}
}

// OpenMCP3008 initialises the host drivers, opens spiPort ("" picks the
// first one) and connects at 1 MHz, mode 0.
func OpenMCP3008(spiPort string, vref Millivolts) (*MCP3008Driver, spi.PortCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}

	p, err := spireg.Open(spiPort)
	if err != nil {
		return nil, nil, fmt.Errorf("open spi port %q: %w", spiPort, err)
	}
	if err := p.LimitSpeed(mcp3008MaxSpeed); err != nil {
		p.Close()
		return nil, nil, err
	}

	c, err := p.Connect(mcp3008MaxSpeed, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return NewMCP3008Driver(c, vref), p, nil
}

func (m *MCP3008Driver) InitUnit(unit Unit) error {
	if unit != Unit1 {
		return fmt.Errorf("[mcp3008] only unit 1 exists, got %d", unit)
	}
	m.unitReady = true
	return nil
}

func (m *MCP3008Driver) ConfigureChannel(ch Channel, cfg ChannelConfig) error {
	if !m.unitReady {
		return errors.New("[mcp3008] unit not initialized")
	}
	if ch > 7 {
		return fmt.Errorf("[mcp3008] channel %d out of range 0..7", ch)
	}
	if w := cfg.Bitwidth.Resolve(Bitwidth10); w != Bitwidth10 {
		return fmt.Errorf("[mcp3008] bitwidth %d not supported, part is 10-bit", w)
	}
	m.channels[ch] = true
	return nil
}

func (m *MCP3008Driver) ReadRaw(ch Channel) (RawSample, error) {
	if !m.channels[ch] {
		return 0, fmt.Errorf("[mcp3008] channel %d not configured", ch)
	}

	// start bit, single-ended + channel select, don't care
	tx := []byte{1, byte((8 + ch) << 4), 0}
	rx := make([]byte, 3)
	if err := m.conn.Tx(tx, rx); err != nil {
		return 0, err
	}
	return RawSample((int(rx[1])<<8 | int(rx[2])) & 0x3FF), nil
}

func (m *MCP3008Driver) CreateCalibration(cfg CalibrationConfig) (Calibration, error) {
	if m.vref <= 0 {
		return nil, fmt.Errorf("%w: no reference voltage", ErrCalibrationUnsupported)
	}
	return NewLineFitting(cfg, Bitwidth10, m.vref)
}
