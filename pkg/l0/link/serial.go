package link

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"

	"github.com/robotalks/tank.go/pkg/l0/comm"
)

// SerialPort adapts serial.Port for comm.StreamTransport.
// Reads are polled with a short timeout so Close can stop a pending read.
// serial.Port.Flush discards buffered input, so it is not exposed.
type SerialPort struct {
	port   *serial.Port
	closed int32
}

// OpenSerial opens a serial device with 8N1.
func OpenSerial(name string, baud int, readTimeout time.Duration) (*SerialPort, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &SerialPort{port: port}, nil
}

// Read implements io.Reader. An expired read timeout is retried.
func (p *SerialPort) Read(b []byte) (int, error) {
	for {
		n, err := p.port.Read(b)
		if n > 0 || (err != nil && err != io.EOF) {
			return n, err
		}
		if atomic.LoadInt32(&p.closed) != 0 {
			return 0, comm.ErrClosed
		}
	}
}

// Write implements io.Writer.
func (p *SerialPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close implements io.Closer.
func (p *SerialPort) Close() error {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return nil
	}
	return p.port.Close()
}
