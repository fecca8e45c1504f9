package rserial

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap/zaptest"
)

// fakePort serves reads from a byte slice in chunks of at most chunk bytes
// and behaves like a port with a read timeout once the data runs out.
type fakePort struct {
	serial.Port
	in      *bytes.Reader
	chunk   int
	written bytes.Buffer
}

func newFakePort(data []byte, chunk int) *fakePort {
	return &fakePort{in: bytes.NewReader(data), chunk: chunk}
}

func (f *fakePort) Read(p []byte) (int, error) {
	if f.in.Len() == 0 {
		return 0, nil
	}
	if len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.in.Read(p)
}

func (f *fakePort) Write(p []byte) (int, error) {
	// short writes exercise the WriteCommand loop
	if len(p) > 2 {
		p = p[:2]
	}
	return f.written.Write(p)
}

var crlf = []byte{'\r', '\n'}

func TestReadPacketAcrossShortReads(t *testing.T) {
	port := newFakePort([]byte("abcd\r\nwxyz\r\n"), 1)
	r := NewWithPort(port, "fake", zaptest.NewLogger(t), 6, crlf)

	p, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd\r\n"), p)

	p2, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("wxyz\r\n"), p2)

	// returned packets are copies
	assert.Equal(t, []byte("abcd\r\n"), p)
}

func TestReadPacketOutOfSyncResyncs(t *testing.T) {
	port := newFakePort([]byte("cd\r\nabcd\r\nwxyz\r\n"), 4)
	r := NewWithPort(port, "fake", zaptest.NewLogger(t), 6, crlf)

	_, err := r.ReadPacket()
	var oosError *OutOfSyncError
	require.ErrorAs(t, err, &oosError)
	assert.Equal(t, []byte("cd\r\nab"), oosError.ByteSequence)

	p, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("wxyz\r\n"), p)
}

func TestReadPacketTimesOut(t *testing.T) {
	r := NewWithPort(newFakePort(nil, 1), "fake", zaptest.NewLogger(t), 6, crlf)

	_, err := r.ReadPacket()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, r.Sync(), ErrSyncTimeout)
}

func TestSyncSkipsToStopSequence(t *testing.T) {
	port := newFakePort([]byte("garbage\r\nabcd\r\n"), 3)
	r := NewWithPort(port, "fake", zaptest.NewLogger(t), 6, crlf)

	require.NoError(t, r.Sync())
	p, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd\r\n"), p)
}

func TestWriteCommandWritesEverything(t *testing.T) {
	port := newFakePort(nil, 1)
	r := NewWithPort(port, "fake", zaptest.NewLogger(t), 6, crlf)

	require.NoError(t, r.WriteCommand([]byte("C6,0,3\n")))
	assert.Equal(t, "C6,0,3\n", port.written.String())
}

type errPort struct {
	serial.Port
}

func (errPort) Read([]byte) (int, error) { return 0, errors.New("unplugged") }

func TestReadPacketPropagatesPortError(t *testing.T) {
	r := NewWithPort(errPort{}, "fake", zaptest.NewLogger(t), 6, crlf)

	_, err := r.ReadPacket()
	assert.EqualError(t, err, "unplugged")
}
