package comm

import (
	"context"
	"sync"
)

// Result is the result of a command using Do.
type Result struct {
	Err    error
	Packet *Packet
}

// Client provides host side operations over a Transport.
// Replies are matched to commands by packet id.
type Client struct {
	ClientID uint32

	reader   *Reader
	sender   *Sender
	id       PacketID
	cmdsHead *Command
	cmdsTail *Command
	cmdsLock sync.Mutex
}

// Command represents a pending command waiting for reply.
type Command struct {
	requestID PacketID
	opCode    OpCode
	resultCh  chan Result
	next      *Command
}

// RequestID returns the request packet id.
func (c *Command) RequestID() PacketID {
	return c.requestID
}

// ResultChan returns the chan to retrieve result.
func (c *Command) ResultChan() <-chan Result {
	return c.resultCh
}

// NewClient creates a client on the transport.
func NewClient(t Transport, clientID uint32) *Client {
	return &Client{
		ClientID: clientID,
		reader:   NewReader(t),
		sender:   NewSender(t),
		id:       NewPacketID(),
	}
}

// Reader gets the frame reader for tuning waits.
func (c *Client) Reader() *Reader {
	return c.reader
}

// SetObserver installs the observer for both directions.
func (c *Client) SetObserver(o Observer) {
	c.reader.Observer = o
	c.sender.Observer = o
}

// DoWith sends a command and expects a result in the provided chan.
// ID and ClientID of pkt are assigned by the client.
func (c *Client) DoWith(pkt *Packet, ch chan Result) *Command {
	cmd := &Command{opCode: pkt.OpCode, resultCh: ch}

	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	pkt.ID, pkt.ClientID = uint32(c.id), c.ClientID
	cmd.requestID = c.id
	c.id = c.id.Next()
	if err := c.sender.SendPacket(pkt); err != nil {
		cmd.resultCh <- Result{Err: err}
		return cmd
	}
	if c.cmdsHead == nil {
		c.cmdsHead = cmd
	} else {
		c.cmdsTail.next = cmd
	}
	c.cmdsTail = cmd
	return cmd
}

// Do sends a command and returns a Command for result.
func (c *Client) Do(pkt *Packet) *Command {
	return c.DoWith(pkt, make(chan Result, 1))
}

// Exec sends a command and waits for the reply.
func (c *Client) Exec(ctx context.Context, pkt *Packet) (*Packet, error) {
	cmd := c.Do(pkt)
	select {
	case res := <-cmd.resultCh:
		return res.Packet, res.Err
	case <-ctx.Done():
		c.remove(cmd)
		return nil, ctx.Err()
	}
}

// HandlePacket dispatches a received reply.
func (c *Client) HandlePacket(pkt *Packet) {
	if pkt.ClientID != c.ClientID {
		// reply for another client sharing the link.
		return
	}
	id := PacketID(pkt.ID)
	c.cmdsLock.Lock()
	head := c.cmdsHead
	curr := c.cmdsHead
	for ; curr != nil; curr = curr.next {
		if curr.requestID == id {
			if c.cmdsHead = curr.next; c.cmdsHead == nil {
				c.cmdsTail = nil
			}
			curr.next = nil
			break
		}
	}
	c.cmdsLock.Unlock()
	if curr == nil {
		return
	}
	for ; head != curr; head = head.next {
		head.resultCh <- Result{Err: ErrNoReply}
	}
	if pkt.OpCode != curr.opCode {
		curr.resultCh <- Result{Err: &UnexpectedReplyError{Expect: curr.opCode, Actual: pkt.OpCode}}
		return
	}
	reply := *pkt
	curr.resultCh <- Result{Packet: &reply}
}

// Run reads replies until ctx is done or the transport fails.
// Pending commands are failed when it returns.
func (c *Client) Run(ctx context.Context) error {
	var pkt Packet
	for {
		select {
		case <-ctx.Done():
			c.failAll(ErrClosed)
			return ctx.Err()
		default:
		}
		status, err := c.reader.ReadPacket(&pkt)
		if err != nil {
			c.failAll(err)
			return err
		}
		if status == ReadOK {
			c.HandlePacket(&pkt)
		}
	}
}

func (c *Client) remove(cmd *Command) {
	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	var prev *Command
	for curr := c.cmdsHead; curr != nil; prev, curr = curr, curr.next {
		if curr != cmd {
			continue
		}
		if prev == nil {
			c.cmdsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if c.cmdsTail == curr {
			c.cmdsTail = prev
		}
		curr.next = nil
		return
	}
}

func (c *Client) failAll(err error) {
	c.cmdsLock.Lock()
	head := c.cmdsHead
	c.cmdsHead, c.cmdsTail = nil, nil
	c.cmdsLock.Unlock()
	for ; head != nil; head = head.next {
		head.resultCh <- Result{Err: err}
	}
}
