// Package transport carries frames between the two peers of a match over a
// single TCP stream: a growable receive buffer on the way in, a batching
// outbox on the way out, and the listen/dial/accept plumbing around them.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/1ureka/netpong/internal/protocol"
	"github.com/1ureka/netpong/internal/util"
)

// Options tunes the per-tick I/O bounds of a Conn.
type Options struct {
	PollTimeout      time.Duration // read deadline for one Receive
	WriteTimeout     time.Duration // write deadline for one flush attempt
	MaxWriteAttempts int           // write attempts per Flush
}

// Conn wraps the peer socket together with its receive buffer and outbox.
// All methods except Close are meant for the single tick goroutine.
type Conn struct {
	raw  net.Conn
	tag  uint32
	opts Options

	recv *RecvBuffer
	out  *Outbox

	closeOnce sync.Once
	closeErr  error
}

// NewConn takes ownership of raw.
func NewConn(raw net.Conn, opts Options) *Conn {
	if opts.MaxWriteAttempts <= 0 {
		opts.MaxWriteAttempts = 1
	}
	return &Conn{
		raw:  raw,
		tag:  util.PeerTag(raw),
		opts: opts,
		recv: NewRecvBuffer(MinBufferCap),
		out:  NewOutbox(1024),
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Tag identifies this connection in log lines.
func (c *Conn) Tag() uint32 { return c.tag }

// RemoteAddr returns the peer's address.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// Close discards unsent frames and closes the socket. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.out.Clear()
		c.closeErr = c.raw.Close()
		util.LogDebug("[%08x] connection closed", c.tag)
	})
	return c.closeErr
}

// ---------------------------------------------------------------------------
// Inbound
// ---------------------------------------------------------------------------

// Receive reads whatever the peer has sent, waiting at most PollTimeout, and
// calls handle for every complete frame in stream order. Frame payloads alias
// the receive buffer and must not be kept past handle. The parsed bytes are
// consumed afterwards; a trailing partial frame stays for the next call.
//
// Nothing to read and a full buffer are not errors. ErrPeerClosed, hard read
// errors and protocol.ErrFrameTooLarge are returned after the frames that did
// arrive have been handled; the connection should then be closed.
func (c *Conn) Receive(handle func(protocol.Frame)) error {
	if err := c.raw.SetReadDeadline(time.Now().Add(c.opts.PollTimeout)); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}

	n, readErr := c.recv.Recv(c.raw)
	if n > 0 {
		util.Stats.AddRecv(n)
	}

	frames, consumed, parseErr := protocol.DecodeAll(c.recv.Bytes())
	for _, f := range frames {
		handle(f)
	}
	c.recv.Consume(consumed)
	util.Stats.AddFramesRecv(len(frames))

	switch {
	case parseErr != nil:
		return parseErr
	case readErr == nil, IsWouldBlock(readErr):
		return nil
	case errors.Is(readErr, ErrBufferLimit):
		util.LogWarning("[%08x] receive buffer full (%d bytes pending)", c.tag, c.recv.Len())
		return nil
	case errors.Is(readErr, ErrPeerClosed):
		return readErr
	default:
		return fmt.Errorf("receive error: %w", readErr)
	}
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

// Push queues msg for the next Flush.
func (c *Conn) Push(msg protocol.Message) error {
	if err := c.out.Push(msg); err != nil {
		return fmt.Errorf("failed to queue %s: %w", msg.Type(), err)
	}
	util.Stats.AddFramesSent(1)
	return nil
}

// Flush sends the queued bytes. Each write attempt is bounded by
// WriteTimeout; bytes still unsent after MaxWriteAttempts stay queued ahead
// of the next tick's frames. A hard write error is returned.
func (c *Conn) Flush() error {
	if c.out.Len() == 0 {
		return nil
	}

	sent, err := c.out.Flush(deadlineWriter{conn: c.raw, timeout: c.opts.WriteTimeout}, c.opts.MaxWriteAttempts)
	util.Stats.AddSent(sent)
	if err != nil {
		return fmt.Errorf("send error: %w", err)
	}
	if c.out.Len() > 0 {
		util.LogDebug("[%08x] %d bytes carried to next tick", c.tag, c.out.Len())
	}
	return nil
}

// Pending returns the number of queued, unsent bytes.
func (c *Conn) Pending() int { return c.out.Len() }

// deadlineWriter arms a fresh write deadline before every Write so a slow
// peer can stall one flush attempt for at most timeout.
type deadlineWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w deadlineWriter) Write(p []byte) (int, error) {
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return 0, err
		}
	}
	return w.conn.Write(p)
}
