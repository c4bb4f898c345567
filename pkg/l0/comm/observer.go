package comm

import (
	"bytes"
	"fmt"

	"github.com/golang/glog"
)

// Observer receives protocol events for diagnostics.
// It never affects protocol behavior.
type Observer interface {
	FrameReceived(frame []byte, pkt *Packet)
	FrameSent(frame []byte, pkt *Packet)
	FramingMiss(b byte)
	FrameTruncated(partial []byte)
	CRCMismatch(frame []byte, embedded, computed uint16)
}

// NopObserver ignores everything.
type NopObserver struct{}

// FrameReceived implements Observer.
func (NopObserver) FrameReceived([]byte, *Packet) {}

// FrameSent implements Observer.
func (NopObserver) FrameSent([]byte, *Packet) {}

// FramingMiss implements Observer.
func (NopObserver) FramingMiss(byte) {}

// FrameTruncated implements Observer.
func (NopObserver) FrameTruncated([]byte) {}

// CRCMismatch implements Observer.
func (NopObserver) CRCMismatch([]byte, uint16, uint16) {}

// LogObserver writes events to glog.
// Frames are logged at V(2), discarded bytes at V(3).
type LogObserver struct {
	Prefix string
}

// FrameReceived implements Observer.
func (o *LogObserver) FrameReceived(frame []byte, pkt *Packet) {
	if glog.V(2) {
		glog.Infof("%sRECV [%s] %s", o.Prefix, FormatHex(frame), FormatPacket(pkt))
	}
}

// FrameSent implements Observer.
func (o *LogObserver) FrameSent(frame []byte, pkt *Packet) {
	if glog.V(2) {
		glog.Infof("%sSEND [%s] %s", o.Prefix, FormatHex(frame), FormatPacket(pkt))
	}
}

// FramingMiss implements Observer.
func (o *LogObserver) FramingMiss(b byte) {
	glog.V(3).Infof("%sdiscard %02X", o.Prefix, b)
}

// FrameTruncated implements Observer.
func (o *LogObserver) FrameTruncated(partial []byte) {
	glog.Warningf("%sframe truncated after %d bytes [%s]", o.Prefix, len(partial), FormatHex(partial))
}

// CRCMismatch implements Observer.
func (o *LogObserver) CRCMismatch(frame []byte, embedded, computed uint16) {
	glog.Warningf("%sCRC mismatch: embedded %04X computed %04X [%s]", o.Prefix, embedded, computed, FormatHex(frame))
}

// FormatPacket prints packet fields for display.
func FormatPacket(p *Packet) string {
	return fmt.Sprintf("id=%d, clientId=%d, opCode=%s, pin=%d, pinMode=%d, data=%d",
		p.ID, p.ClientID, p.OpCode, p.Pin, p.PinMode, p.Data)
}

// FormatHex prints bytes as space separated hex.
func FormatHex(b []byte) string {
	var w bytes.Buffer
	for i, v := range b {
		if i > 0 {
			w.WriteByte(' ')
		}
		fmt.Fprintf(&w, "%02X", v)
	}
	return w.String()
}
