package comm

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memTransport serves reads from a fixed buffer and never blocks.
type memTransport struct {
	in      bytes.Buffer
	out     bytes.Buffer
	readErr error
	flushes int
	short   bool
}

func (t *memTransport) ReadFull(p []byte, wait time.Duration) (int, error) {
	if t.in.Len() == 0 && t.readErr != nil {
		return 0, t.readErr
	}
	n, _ := t.in.Read(p)
	if n < len(p) {
		return n, ErrTimeout
	}
	return n, nil
}

func (t *memTransport) Write(p []byte) (int, error) {
	if t.short {
		p = p[:len(p)/2]
	}
	return t.out.Write(p)
}

func (t *memTransport) Flush() error {
	t.flushes++
	return nil
}

type recordingObserver struct {
	received  int
	sent      int
	misses    []byte
	truncated [][]byte
	mismatch  int
}

func (o *recordingObserver) FrameReceived([]byte, *Packet) { o.received++ }
func (o *recordingObserver) FrameSent([]byte, *Packet)     { o.sent++ }
func (o *recordingObserver) FramingMiss(b byte)            { o.misses = append(o.misses, b) }
func (o *recordingObserver) FrameTruncated(partial []byte) {
	o.truncated = append(o.truncated, append([]byte(nil), partial...))
}
func (o *recordingObserver) CRCMismatch([]byte, uint16, uint16) { o.mismatch++ }

func newTestReader(in ...[]byte) (*Reader, *memTransport, *recordingObserver) {
	t := &memTransport{}
	for _, b := range in {
		t.in.Write(b)
	}
	obs := &recordingObserver{}
	r := NewReader(t)
	r.Observer = obs
	return r, t, obs
}

func readAll(t *testing.T, r *Reader, limit int) ([]ReadStatus, []Packet) {
	var statuses []ReadStatus
	var packets []Packet
	for i := 0; i < limit; i++ {
		var pkt Packet
		status, err := r.ReadPacket(&pkt)
		require.NoError(t, err)
		if status == ReadIdle {
			break
		}
		statuses = append(statuses, status)
		if status == ReadOK {
			packets = append(packets, pkt)
		} else {
			require.True(t, pkt.IsCleared(), "status %s must leave packet cleared", status)
		}
	}
	return statuses, packets
}

func TestReaderValidFrame(t *testing.T) {
	src := Packet{ID: 1, ClientID: 1, OpCode: OpReadAnalogPin, Pin: 5, Data: 512}
	r, _, obs := newTestReader(src.Bytes())
	var pkt Packet
	status, err := r.ReadPacket(&pkt)
	require.NoError(t, err)
	require.Equal(t, ReadOK, status)
	require.True(t, pkt.ValidateCRC())
	pkt.CRC = 0
	require.Equal(t, src, pkt)
	require.Equal(t, 1, obs.received)

	status, err = r.ReadPacket(&pkt)
	require.NoError(t, err)
	require.Equal(t, ReadIdle, status)
	require.True(t, pkt.IsCleared())
}

func TestReaderResync(t *testing.T) {
	src := Packet{ID: 9, ClientID: 3, OpCode: OpReadDigitPin, Pin: 13, Data: 1}
	noise := []byte{0x00, 0xff, 0x7e, ETX, 0x18}
	r, _, obs := newTestReader(noise, src.Bytes())
	statuses, packets := readAll(t, r, 100)
	require.Equal(t, []ReadStatus{
		ReadFramingMiss, ReadFramingMiss, ReadFramingMiss, ReadFramingMiss, ReadFramingMiss,
		ReadOK,
	}, statuses)
	require.Len(t, packets, 1)
	require.Equal(t, src.Data, packets[0].Data)
	require.Equal(t, src.ID, packets[0].ID)
	require.Equal(t, noise, obs.misses)
}

func TestReaderCorrupted(t *testing.T) {
	testCases := []struct {
		name   string
		offset int
	}{
		{"magic", offMagic},
		{"id", offID},
		{"client id", offClientID + 1},
		{"op code", offOpCode},
		{"pin", offPin},
		{"pin mode", offPinMode},
		{"data", offData},
		{"etx", offETX},
		{"crc", offCRC + 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bad := (&Packet{ID: 7, ClientID: 3, OpCode: OpGetTemperature}).Bytes()
			bad[tc.offset] ^= 0x10
			good := Packet{ID: 8, ClientID: 3, OpCode: OpGetTemperature}
			r, _, obs := newTestReader(bad, good.Bytes())
			statuses, packets := readAll(t, r, 10)
			require.Equal(t, []ReadStatus{ReadCorrupted, ReadOK}, statuses)
			require.Len(t, packets, 1)
			require.Equal(t, uint32(8), packets[0].ID)
			require.Equal(t, 1, obs.mismatch)
		})
	}
}

func TestReaderTruncated(t *testing.T) {
	full := (&Packet{ID: 5, ClientID: 1, OpCode: OpInputPin, Pin: 2}).Bytes()
	r, tr, obs := newTestReader(full[:8])
	var pkt Packet
	status, err := r.ReadPacket(&pkt)
	require.NoError(t, err)
	require.Equal(t, ReadTruncated, status)
	require.True(t, pkt.IsCleared())
	require.Equal(t, [][]byte{full[:8]}, obs.truncated)

	tr.in.Write(full)
	status, err = r.ReadPacket(&pkt)
	require.NoError(t, err)
	require.Equal(t, ReadOK, status)
	require.Equal(t, uint32(5), pkt.ID)
}

func TestReaderTransportError(t *testing.T) {
	r, tr, _ := newTestReader()
	tr.readErr = io.EOF
	pkt := Packet{ID: 1, OpCode: OpInputPin}
	_, err := r.ReadPacket(&pkt)
	require.True(t, errors.Is(err, io.EOF))
	require.True(t, pkt.IsCleared())
}

func TestReadStatus(t *testing.T) {
	require.Equal(t, "ok", ReadOK.String())
	require.Equal(t, "framing-miss", ReadFramingMiss.String())
	require.Equal(t, "unknown", ReadStatus(99).String())
}
