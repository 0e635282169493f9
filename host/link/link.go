// Package link is the host side of the diagnostic link: it sends command
// frames to a board and matches replies to them by sequence number.
package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"tickcore/core"
	"tickcore/diag"
	"tickcore/protocol"
)

var (
	ErrTimeout = errors.New("link: timed out waiting for reply")
	ErrClosed  = errors.New("link: closed")
)

// RemoteError is a MsgError reply from the board
type RemoteError struct {
	Cmd  string
	Code core.Code
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: board replied %s", e.Cmd, e.Code)
}

// Reply is one decoded message from the board
type Reply struct {
	Seq  uint8
	ID   uint32
	Args []byte
}

// Client talks to one board. Calls are serialized; a background reader
// reassembles frames from the port.
type Client struct {
	port    io.ReadWriteCloser
	timeout time.Duration

	callMu sync.Mutex
	seq    uint8

	replies  chan Reply
	stopChan chan struct{}
	doneChan chan struct{}
	closeMu  sync.Once

	badFrames atomic.Uint32
}

// New starts a client on port. Replies slower than timeout fail the call.
func New(port io.ReadWriteCloser, timeout time.Duration) *Client {
	c := &Client{
		port:     port,
		timeout:  timeout,
		seq:      protocol.MessageDest,
		replies:  make(chan Reply, 16),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close stops the reader and closes the port
func (c *Client) Close() error {
	var err error
	c.closeMu.Do(func() {
		close(c.stopChan)
		err = c.port.Close()
		<-c.doneChan
	})
	return err
}

// Call sends cmd with args and waits for its reply. An error reply from
// the board becomes a *RemoteError.
func (c *Client) Call(cmd diag.Command, args ...uint32) (Reply, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	seq := c.seq
	c.seq = protocol.NextSeq(c.seq)

	out := protocol.NewScratchOutput()
	diag.EncodeRequest(out, seq, cmd, args...)
	if _, err := c.port.Write(out.Result()); err != nil {
		return Reply{}, fmt.Errorf("%s: write: %w", cmd.Name, err)
	}

	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	for {
		select {
		case r := <-c.replies:
			if r.Seq != seq {
				// Late reply to an earlier call that timed out
				continue
			}
			if r.ID == diag.MsgError {
				code, _ := diag.DecodeError(&r.Args)
				return r, &RemoteError{Cmd: cmd.Name, Code: code}
			}
			if r.ID != cmd.ID {
				return r, fmt.Errorf("%s: unexpected reply id %d", cmd.Name, r.ID)
			}
			return r, nil
		case <-deadline.C:
			return Reply{}, fmt.Errorf("%s: %w", cmd.Name, ErrTimeout)
		case <-c.stopChan:
			return Reply{}, ErrClosed
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.doneChan)
	rx := protocol.NewFifoBuffer(1024)
	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			rx.Write(buf[:n])
			c.scan(rx)
		}
		if err != nil {
			select {
			case <-c.stopChan:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// scan delivers every complete frame buffered in rx
func (c *Client) scan(rx *protocol.FifoBuffer) {
	for rx.Available() > 0 {
		f, n, err := protocol.ScanFrame(rx.Data())
		if err == protocol.ErrNeedMore {
			rx.Pop(n)
			return
		}
		if err == protocol.ErrBadFrame {
			c.badFrames.Add(1)
			rx.Pop(n)
			continue
		}
		// Replies carry one message per frame; the arguments run to
		// the end of it.
		payload := f.Payload
		if id, err := protocol.DecodeVLQUint(&payload); err == nil {
			c.deliver(Reply{Seq: f.Seq, ID: id, Args: append([]byte(nil), payload...)})
		}
		rx.Pop(n)
	}
}

// BadFrames returns how many times the reader skipped garbage
func (c *Client) BadFrames() uint32 { return c.badFrames.Load() }

func (c *Client) deliver(r Reply) {
	select {
	case c.replies <- r:
	default:
		// Nobody is waiting; drop the oldest
		select {
		case <-c.replies:
		default:
		}
		c.replies <- r
	}
}
