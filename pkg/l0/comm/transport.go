package comm

import (
	"io"
	"sync"
	"time"
)

// Transport is the byte stream carrying frames.
type Transport interface {
	io.Writer
	// ReadFull blocks until len(p) bytes are read or wait expires.
	// It returns ErrTimeout with the count of bytes read so far if
	// wait expires. wait <= 0 means no limit.
	ReadFull(p []byte, wait time.Duration) (int, error)
	// Flush makes sure written bytes are not held in buffers.
	Flush() error
}

// StreamTransport implements Transport over an io.ReadWriter.
// A background read loop feeds the bounded reads, so the wait is enforced
// even if the stream doesn't support deadlines.
// ReadFull must not be called concurrently.
type StreamTransport struct {
	ReadWriter io.ReadWriter

	dataCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	pending   []byte
	readErr   error
}

const streamChunkSize = 64

// NewStreamTransport wraps an io.ReadWriter and starts reading from it.
func NewStreamTransport(rw io.ReadWriter) *StreamTransport {
	t := &StreamTransport{
		ReadWriter: rw,
		dataCh:     make(chan []byte, 4),
		closeCh:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Write implements io.Writer.
func (t *StreamTransport) Write(p []byte) (int, error) {
	select {
	case <-t.closeCh:
		return 0, ErrClosed
	default:
	}
	return t.ReadWriter.Write(p)
}

// Flush implements Transport.
func (t *StreamTransport) Flush() error {
	if f, ok := t.ReadWriter.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// ReadFull implements Transport.
func (t *StreamTransport) ReadFull(p []byte, wait time.Duration) (n int, err error) {
	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}
	for n < len(p) {
		if len(t.pending) > 0 {
			c := copy(p[n:], t.pending)
			t.pending = t.pending[c:]
			n += c
			continue
		}
		select {
		case chunk, ok := <-t.dataCh:
			if !ok {
				return n, t.readErr
			}
			t.pending = chunk
		case <-timeout:
			return n, ErrTimeout
		case <-t.closeCh:
			return n, ErrClosed
		}
	}
	return
}

// Close stops reading and closes the underlying stream if it's an io.Closer.
func (t *StreamTransport) Close() (err error) {
	t.closeOnce.Do(func() {
		close(t.closeCh)
		if closer, ok := t.ReadWriter.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return
}

func (t *StreamTransport) readLoop() {
	defer close(t.dataCh)
	for {
		buf := make([]byte, streamChunkSize)
		n, err := t.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case t.dataCh <- buf[:n]:
			case <-t.closeCh:
				t.readErr = ErrClosed
				return
			}
		}
		if err != nil {
			t.readErr = err
			return
		}
	}
}
