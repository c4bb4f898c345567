package comm

import (
	"errors"
	"time"

	"github.com/golang/glog"
)

// ReadStatus is the outcome of one ReadPacket call.
type ReadStatus int

const (
	// ReadIdle means nothing arrived within the poll wait.
	ReadIdle ReadStatus = iota
	// ReadFramingMiss means the first byte was not STX and was discarded.
	ReadFramingMiss
	// ReadTruncated means STX was seen but the frame didn't complete in time.
	ReadTruncated
	// ReadCorrupted means a full frame arrived with a CRC mismatch.
	ReadCorrupted
	// ReadOK means a valid packet was read.
	ReadOK
)

var readStatusNames = [...]string{"idle", "framing-miss", "truncated", "corrupted", "ok"}

func (s ReadStatus) String() string {
	if int(s) < len(readStatusNames) {
		return readStatusNames[s]
	}
	return "unknown"
}

// Default read waits.
const (
	DefaultPollWait     = 100 * time.Millisecond
	DefaultFrameTimeout = 5000 * time.Millisecond
)

// Reader reads frames from a Transport.
type Reader struct {
	Transport Transport
	Observer  Observer
	// PollWait bounds the wait for the first byte.
	PollWait time.Duration
	// FrameTimeout bounds the wait for the rest of a frame after STX.
	FrameTimeout time.Duration

	buf [PacketSize]byte
}

// NewReader creates a Reader with default waits.
func NewReader(t Transport) *Reader {
	return &Reader{
		Transport:    t,
		PollWait:     DefaultPollWait,
		FrameTimeout: DefaultFrameTimeout,
	}
}

// ReadPacket clears pkt and tries to read one frame into it.
// A byte other than STX is discarded without scanning further in the same
// call. Only a valid frame populates pkt, in every other case pkt remains
// cleared. The error is only for transport failures.
func (r *Reader) ReadPacket(pkt *Packet) (ReadStatus, error) {
	pkt.Clear()
	obs := r.observer()
	b := r.buf[:]
	if _, err := r.Transport.ReadFull(b[:1], r.PollWait); err != nil {
		if errors.Is(err, ErrTimeout) {
			return ReadIdle, nil
		}
		return ReadIdle, err
	}
	if b[0] != STX {
		obs.FramingMiss(b[0])
		return ReadFramingMiss, nil
	}
	n, err := r.Transport.ReadFull(b[1:], r.FrameTimeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			obs.FrameTruncated(b[:n+1])
			return ReadTruncated, nil
		}
		return ReadTruncated, err
	}
	if err := pkt.Deserialize(b); err != nil {
		glog.Errorf("deserialize frame: %v", err)
		pkt.Clear()
		return ReadCorrupted, nil
	}
	// magic and ETX are not kept in pkt, so the wire bytes are checked too.
	if computed := ComputeCRC(b[:offCRC]); computed != pkt.CRC || !pkt.ValidateCRC() {
		obs.CRCMismatch(b, pkt.CRC, computed)
		pkt.Clear()
		return ReadCorrupted, nil
	}
	obs.FrameReceived(b, pkt)
	return ReadOK, nil
}

func (r *Reader) observer() Observer {
	if o := r.Observer; o != nil {
		return o
	}
	return NopObserver{}
}
