package transport

import (
	"io"

	"github.com/1ureka/netpong/internal/protocol"
)

// Outbox accumulates the frames produced during one tick so they leave in a
// single batched write. Frames are appended whole; the only partial frame it
// can ever hold is the unsent tail of an earlier flush, which stays in front
// so stream order is kept.
type Outbox struct {
	buf []byte
}

// NewOutbox creates an empty outbox with the given initial capacity.
func NewOutbox(capacity int) *Outbox {
	return &Outbox{buf: make([]byte, 0, capacity)}
}

// Push encodes msg and appends it as one frame. Storage grows to double its
// capacity or to the required size, whichever is larger. If that would pass
// MaxBufferCap the frame is dropped, the queue is left as it was, and
// ErrBufferLimit is returned.
func (o *Outbox) Push(msg protocol.Message) error {
	if !o.reserve(protocol.FrameSize(msg)) {
		return ErrBufferLimit
	}
	o.buf = protocol.AppendMessage(o.buf, msg)
	return nil
}

// pushRaw appends one frame with an opaque payload.
func (o *Outbox) pushRaw(t protocol.MsgType, payload []byte) error {
	if !o.reserve(protocol.HeaderSize + len(payload)) {
		return ErrBufferLimit
	}
	o.buf = protocol.AppendRaw(o.buf, t, payload)
	return nil
}

func (o *Outbox) reserve(n int) bool {
	required := len(o.buf) + n
	if required <= cap(o.buf) {
		return true
	}

	newCap := max(cap(o.buf)*2, required)
	if newCap > MaxBufferCap {
		if required > MaxBufferCap {
			return false
		}
		newCap = MaxBufferCap
	}

	grown := make([]byte, len(o.buf), newCap)
	copy(grown, o.buf)
	o.buf = grown
	return true
}

// Flush writes the queued bytes to w with at most attempts Write calls.
// Bytes that were sent are removed. A transient error (see IsWouldBlock) or a
// short write uses up one attempt; whatever is still unsent after the last
// attempt stays queued for the next flush. A hard error is returned at once,
// with the unsent bytes still queued. It returns the number of bytes sent.
func (o *Outbox) Flush(w io.Writer, attempts int) (int, error) {
	sent := 0
	defer func() { o.drop(sent) }()

	for i := 0; i < attempts && sent < len(o.buf); i++ {
		n, err := w.Write(o.buf[sent:])
		sent += n

		if err != nil && !IsWouldBlock(err) {
			return sent, err
		}
	}

	return sent, nil
}

// drop removes the first n bytes.
func (o *Outbox) drop(n int) {
	if n >= len(o.buf) {
		o.buf = o.buf[:0]
		return
	}
	rest := copy(o.buf, o.buf[n:])
	o.buf = o.buf[:rest]
}

// Clear discards everything without sending.
func (o *Outbox) Clear() { o.buf = o.buf[:0] }

// Len returns the number of queued bytes.
func (o *Outbox) Len() int { return len(o.buf) }

// Bytes returns the queued bytes. The slice aliases the queue.
func (o *Outbox) Bytes() []byte { return o.buf }
