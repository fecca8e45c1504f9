package adc

import (
	"testing"

	rserial "sleepywoodpecker/adc-sampler/internal/rSerial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// scriptedLink replies to each command with the next queued packet.
type scriptedLink struct {
	commands []string
	replies  [][]byte
	readErr  error
}

func (s *scriptedLink) WriteCommand(cmd []byte) error {
	s.commands = append(s.commands, string(cmd))
	return nil
}

func (s *scriptedLink) ReadPacket() ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	p := s.replies[0]
	s.replies = s.replies[1:]
	return p, nil
}

func TestPacketSize(t *testing.T) {
	assert.Equal(t, 6, PacketSize)
}

func TestDecodePacket(t *testing.T) {
	raw := EncodePacket(DataPacket{Kind: PacketSample, Channel: 6, Value: 1234})
	require.Len(t, raw, PacketSize)
	assert.Equal(t, []byte{'S', 6, 0xD2, 0x04, '\r', '\n'}, raw)

	p, err := DecodePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, RawSample(1234), RawSample(p.Value))

	_, err = DecodePacket(raw[:3])
	assert.Error(t, err)
}

func TestSerialDriverInitializeAndRead(t *testing.T) {
	link := &scriptedLink{replies: [][]byte{
		EncodePacket(DataPacket{Kind: PacketAck}),
		EncodePacket(DataPacket{Kind: PacketAck}),
		EncodePacket(DataPacket{Kind: PacketCalibration, Value: 3300}),
		EncodePacket(DataPacket{Kind: PacketSample, Channel: 6, Value: 4095}),
	}}
	logger := zaptest.NewLogger(t)

	dev, err := Initialize(NewSerialDriver(link, logger), DefaultConfig(), logger)
	require.NoError(t, err)
	assert.True(t, dev.Calibrated())

	raw, err := dev.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, RawSample(4095), raw)

	mv, err := dev.Convert(raw)
	require.NoError(t, err)
	assert.Equal(t, Millivolts(3300), mv)

	assert.Equal(t, []string{"U1\n", "C6,0,3\n", "K1,0,3\n", "R6\n"}, link.commands)
}

func TestSerialDriverFrontEndError(t *testing.T) {
	link := &scriptedLink{replies: [][]byte{
		EncodePacket(DataPacket{Kind: PacketAck}),
		EncodePacket(DataPacket{Kind: PacketError, Value: 7}),
	}}
	logger := zaptest.NewLogger(t)

	dev, err := Initialize(NewSerialDriver(link, logger), DefaultConfig(), logger)
	assert.Nil(t, dev)
	assert.ErrorIs(t, err, ErrChannelConfigFailed)

	var feErr *FrontEndError
	require.ErrorAs(t, err, &feErr)
	assert.Equal(t, uint16(7), feErr.Code)
}

func TestSerialDriverOutOfSync(t *testing.T) {
	link := &scriptedLink{readErr: &rserial.OutOfSyncError{ByteSequence: []byte("junk!!")}}
	drv := NewSerialDriver(link, zaptest.NewLogger(t))

	_, err := drv.ReadRaw(6)
	var oosError *rserial.OutOfSyncError
	assert.ErrorAs(t, err, &oosError)
}

func TestSerialDriverWrongChannel(t *testing.T) {
	link := &scriptedLink{replies: [][]byte{
		EncodePacket(DataPacket{Kind: PacketSample, Channel: 2, Value: 1}),
	}}
	drv := NewSerialDriver(link, zaptest.NewLogger(t))

	_, err := drv.ReadRaw(6)
	assert.Error(t, err)
}
