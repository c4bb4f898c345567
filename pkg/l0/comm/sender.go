package comm

import (
	"io"
	"sync"
)

// Sender writes frames to a Transport.
type Sender struct {
	Transport Transport
	Observer  Observer

	lock sync.Mutex
	buf  [PacketSize]byte
}

// NewSender creates a Sender.
func NewSender(t Transport) *Sender {
	return &Sender{Transport: t}
}

// SendPacket serializes the packet and writes the frame in one write,
// then flushes the transport.
func (s *Sender) SendPacket(pkt *Packet) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	n := pkt.Serialize(s.buf[:])
	written, err := s.Transport.Write(s.buf[:n])
	if err != nil {
		return err
	}
	if written < n {
		return io.ErrShortWrite
	}
	if err = s.Transport.Flush(); err != nil {
		return err
	}
	if o := s.Observer; o != nil {
		o.FrameSent(s.buf[:n], pkt)
	}
	return nil
}
