package comm

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingWriter struct {
	memTransport
}

func (w *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("port gone")
}

func TestSenderSendPacket(t *testing.T) {
	tr := &memTransport{}
	obs := &recordingObserver{}
	s := NewSender(tr)
	s.Observer = obs
	pkt := Packet{ID: 1, ClientID: 1, OpCode: OpReadAnalogPin, Pin: 5, Data: 512}
	require.NoError(t, s.SendPacket(&pkt))
	require.Equal(t, pkt.Bytes(), tr.out.Bytes())
	require.Equal(t, 1, tr.flushes)
	require.Equal(t, 1, obs.sent)
	require.Equal(t, uint16(0), pkt.CRC)
}

func TestSenderShortWrite(t *testing.T) {
	tr := &memTransport{short: true}
	s := NewSender(tr)
	err := s.SendPacket(&Packet{ID: 1, OpCode: OpGetTemperature})
	require.Equal(t, io.ErrShortWrite, err)
	require.Equal(t, 0, tr.flushes)
}

func TestSenderWriteError(t *testing.T) {
	tr := &failingWriter{}
	s := NewSender(tr)
	require.EqualError(t, s.SendPacket(&Packet{ID: 1, OpCode: OpGetTemperature}), "port gone")
	require.Equal(t, 0, tr.flushes)
}

func TestSenderReaderLoopback(t *testing.T) {
	tr := &memTransport{}
	s := NewSender(tr)
	src := Packet{ID: 3, ClientID: 56432, OpCode: OpInputAnalogPin, Pin: 52, PinMode: 0}
	require.NoError(t, s.SendPacket(&src))

	tr.in.Write(tr.out.Bytes())
	r := NewReader(tr)
	var pkt Packet
	status, err := r.ReadPacket(&pkt)
	require.NoError(t, err)
	require.Equal(t, ReadOK, status)
	pkt.CRC = 0
	require.Equal(t, src, pkt)
}
