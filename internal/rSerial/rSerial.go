// r in rserial stands for "robust"
package rserial

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	DefaultReadTimeout = 5 * time.Millisecond

	// consecutive empty reads before a packet read or resync gives up
	maxIdleReads = 200
)

var (
	ErrTimeout     = errors.New("[rserial] timed out waiting for data")
	ErrSyncTimeout = errors.New("[rserial] timed out waiting for stop sequence")
)

// RSerial is a packet-oriented view of a serial port. Every packet has a
// fixed size and ends with the stop sequence.
type RSerial struct {
	serial.Port
	tempBuff      []byte
	logger        *zap.Logger
	portName      string
	stopSequence  []byte
	rawPacketSize int
}

type OutOfSyncError struct {
	ByteSequence []byte
}

func (e *OutOfSyncError) Error() string {
	return fmt.Sprintf("[rserial] incorrect stop sequence detected: %v", e.ByteSequence)
}

// NewRSerial opens portName and synchronises on the stop sequence.
func NewRSerial(portName string, baudrate int, logger *zap.Logger, rawPacketSize int, stopSequence []byte) (*RSerial, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		logger.Error("Error opening serial port", zap.Error(err), zap.String("portName", portName))
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}

	r := NewWithPort(port, portName, logger, rawPacketSize, stopSequence)
	if err := r.initialize(); err != nil {
		port.Close()
		return nil, err
	}
	return r, nil
}

// NewWithPort wraps an already opened port without touching it.
func NewWithPort(port serial.Port, portName string, logger *zap.Logger, rawPacketSize int, stopSequence []byte) *RSerial {
	return &RSerial{
		Port:          port,
		tempBuff:      make([]byte, rawPacketSize),
		logger:        logger,
		portName:      portName,
		stopSequence:  stopSequence,
		rawPacketSize: rawPacketSize,
	}
}

func (r *RSerial) initialize() error {
	if err := r.SetReadTimeout(DefaultReadTimeout); err != nil {
		return err
	}
	if err := r.ResetInputBuffer(); err != nil {
		return err
	}
	return nil
}

func (r *RSerial) PortName() string {
	return r.portName
}

// WriteCommand writes cmd in full.
func (r *RSerial) WriteCommand(cmd []byte) error {
	totalWritten := 0
	for totalWritten < len(cmd) {
		n, err := r.Write(cmd[totalWritten:])
		if err != nil {
			return err
		}
		totalWritten += n
	}
	return nil
}

// ReadPacket returns a copy of the next packet. On a bad stop sequence it
// returns *OutOfSyncError and resyncs so the following read starts on a
// packet boundary.
func (r *RSerial) ReadPacket() ([]byte, error) {
	count := 0
	idle := 0
	for count < r.rawPacketSize {
		n, err := r.Read(r.tempBuff[count:])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			idle++
			if idle >= maxIdleReads {
				return nil, ErrTimeout
			}
			continue
		}
		idle = 0
		count += n
	}

	packet := make([]byte, r.rawPacketSize)
	copy(packet, r.tempBuff)

	// validate that the packet is valid by checking the last bytes of the packet
	if !bytes.Equal(packet[r.rawPacketSize-len(r.stopSequence):], r.stopSequence) {
		if err := r.Sync(); err != nil {
			r.logger.Warn("Error while resyncing serial port", zap.Error(err), zap.String("portName", r.portName))
		}
		return nil, &OutOfSyncError{
			ByteSequence: packet,
		}
	}

	return packet, nil
}

// Sync discards input up to and including the last byte of the stop sequence.
func (r *RSerial) Sync() error {
	r.logger.Warn("Resyncing serial port", zap.String("portName", r.portName))
	onebyte := make([]byte, 1)
	last := r.stopSequence[len(r.stopSequence)-1]

	for idle := 0; idle < maxIdleReads; {
		n, err := r.Read(onebyte)
		if err != nil {
			return err
		}
		if n == 0 {
			idle++
			continue
		}
		if onebyte[0] == last {
			return nil
		}
	}
	return ErrSyncTimeout
}
