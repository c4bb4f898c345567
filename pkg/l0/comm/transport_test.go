package comm

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newPipeTransport(t *testing.T) (*StreamTransport, net.Conn) {
	local, remote := net.Pipe()
	tr := NewStreamTransport(local)
	t.Cleanup(func() {
		tr.Close()
		remote.Close()
	})
	return tr, remote
}

func TestStreamTransportReadFull(t *testing.T) {
	tr, remote := newPipeTransport(t)
	go func() {
		remote.Write([]byte{1, 2, 3})
		remote.Write([]byte{4, 5})
	}()
	buf := make([]byte, 4)
	n, err := tr.ReadFull(buf, time.Second)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{1, 2, 3, 4}, buf)

	n, err = tr.ReadFull(buf[:1], time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte(5), buf[0])
}

func TestStreamTransportTimeout(t *testing.T) {
	tr, remote := newPipeTransport(t)
	go remote.Write([]byte{9})
	buf := make([]byte, 3)
	n, err := tr.ReadFull(buf, 50*time.Millisecond)
	require.Equal(t, ErrTimeout, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte(9), buf[0])
}

func TestStreamTransportEOF(t *testing.T) {
	tr, remote := newPipeTransport(t)
	remote.Close()
	_, err := tr.ReadFull(make([]byte, 1), time.Second)
	require.Equal(t, io.EOF, err)
}

func TestStreamTransportClose(t *testing.T) {
	tr, _ := newPipeTransport(t)
	require.NoError(t, tr.Close())
	_, err := tr.ReadFull(make([]byte, 1), time.Second)
	require.Error(t, err)
	_, err = tr.Write([]byte{1})
	require.Equal(t, ErrClosed, err)
	require.NoError(t, tr.Close())
}

func TestStreamTransportWrite(t *testing.T) {
	tr, remote := newPipeTransport(t)
	pkt := Packet{ID: 2, OpCode: OpGetTemperature}
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewSender(tr).SendPacket(&pkt)
	}()
	buf := make([]byte, PacketSize)
	_, err := io.ReadFull(remote, buf)
	require.NoError(t, err)
	require.Equal(t, pkt.Bytes(), buf)
	require.NoError(t, <-errCh)
}
