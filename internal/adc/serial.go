package adc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	rserial "sleepywoodpecker/adc-sampler/internal/rSerial"

	"go.uber.org/zap"
)

// Packet kinds sent by the front end.
const (
	PacketAck         byte = 'A'
	PacketSample      byte = 'S'
	PacketCalibration byte = 'K'
	PacketError       byte = 'E'
)

// DataPacket is the fixed-size frame the front end answers every command
// with, followed by StopSequence.
type DataPacket struct {
	Kind    byte
	Channel uint8
	Value   uint16
}

var StopSequence = []byte{'\r', '\n'}

var PacketSize = int(unsafe.Sizeof(DataPacket{})) + len(StopSequence)

// FrontEndError is an error code reported by the front end.
type FrontEndError struct {
	Command string
	Code    uint16
}

func (e *FrontEndError) Error() string {
	return fmt.Sprintf("[serial] front end rejected %q: code %d", e.Command, e.Code)
}

// PacketLink is the transport the serial driver speaks over.
type PacketLink interface {
	WriteCommand(cmd []byte) error
	ReadPacket() ([]byte, error)
}

// SerialDriver drives a microcontroller ADC front end over a serial line.
// Commands are ASCII lines; replies are DataPackets.
type SerialDriver struct {
	link   PacketLink
	logger *zap.Logger
}

func NewSerialDriver(link PacketLink, logger *zap.Logger) *SerialDriver {
	return &SerialDriver{link: link, logger: logger}
}

// OpenSerialDriver opens portName and returns a driver plus the link so the
// caller can close it.
func OpenSerialDriver(portName string, baudrate int, logger *zap.Logger) (*SerialDriver, *rserial.RSerial, error) {
	link, err := rserial.NewRSerial(portName, baudrate, logger, PacketSize, StopSequence)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("[serial] front end link open", zap.String("port", link.PortName()), zap.Int("baudrate", baudrate))
	return NewSerialDriver(link, logger), link, nil
}

// DecodePacket parses a raw frame, stop sequence included.
func DecodePacket(packet []byte) (DataPacket, error) {
	var decoded DataPacket
	if len(packet) < PacketSize {
		return decoded, fmt.Errorf("[serial] short packet: %d bytes", len(packet))
	}
	err := binary.Read(bytes.NewReader(packet[:PacketSize-len(StopSequence)]), binary.LittleEndian, &decoded)
	return decoded, err
}

// EncodePacket is the inverse of DecodePacket.
func EncodePacket(p DataPacket) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, p)
	buf.Write(StopSequence)
	return buf.Bytes()
}

func (s *SerialDriver) transact(cmd string, want byte) (DataPacket, error) {
	if err := s.link.WriteCommand([]byte(cmd + "\n")); err != nil {
		return DataPacket{}, err
	}

	raw, err := s.link.ReadPacket()
	if err != nil {
		var oosError *rserial.OutOfSyncError
		if errors.As(err, &oosError) {
			s.logger.Warn("[serial] out of sync reply", zap.String("command", cmd), zap.ByteString("payload", oosError.ByteSequence))
		}
		return DataPacket{}, err
	}

	p, err := DecodePacket(raw)
	if err != nil {
		return DataPacket{}, err
	}
	switch p.Kind {
	case want:
		return p, nil
	case PacketError:
		return p, &FrontEndError{Command: cmd, Code: p.Value}
	default:
		return p, fmt.Errorf("[serial] unexpected reply %q to %q", p.Kind, cmd)
	}
}

func (s *SerialDriver) InitUnit(unit Unit) error {
	_, err := s.transact(fmt.Sprintf("U%d", unit), PacketAck)
	return err
}

func (s *SerialDriver) ConfigureChannel(ch Channel, cfg ChannelConfig) error {
	_, err := s.transact(fmt.Sprintf("C%d,%d,%d", ch, cfg.Bitwidth, cfg.Attenuation), PacketAck)
	return err
}

func (s *SerialDriver) ReadRaw(ch Channel) (RawSample, error) {
	p, err := s.transact(fmt.Sprintf("R%d", ch), PacketSample)
	if err != nil {
		return 0, err
	}
	if p.Channel != uint8(ch) {
		return 0, fmt.Errorf("[serial] sample for channel %d, asked for %d", p.Channel, ch)
	}
	return RawSample(p.Value), nil
}

// CreateCalibration asks the front end for its measured reference voltage
// and builds a line-fitting scheme from it.
func (s *SerialDriver) CreateCalibration(cfg CalibrationConfig) (Calibration, error) {
	p, err := s.transact(fmt.Sprintf("K%d,%d,%d", cfg.Unit, cfg.Bitwidth, cfg.Attenuation), PacketCalibration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalibrationUnsupported, err)
	}
	return NewLineFitting(cfg, Bitwidth12, Millivolts(p.Value))
}
