package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates a bounded read expired before enough bytes arrived.
	ErrTimeout = errors.New("timeout")
	// ErrShortFrame indicates a buffer is smaller than PacketSize.
	ErrShortFrame = errors.New("short frame")
	// ErrClosed indicates the transport or client is closed.
	ErrClosed = errors.New("closed")
	// ErrNoReply indicates no reply received from peer.
	// This happens when a reply is received for a latter command, and all
	// previous commands fail with this error.
	ErrNoReply = errors.New("no reply")
)

// UnexpectedReplyError is returned when a reply doesn't echo the command.
type UnexpectedReplyError struct {
	Expect OpCode
	Actual OpCode
}

// Error implements error.
func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("unexpected reply %s for %s", e.Actual, e.Expect)
}
