package transport

import (
	"errors"
	"io"
)

// Buffer sizing.
const (
	MinBufferCap = 2048    // floor for any reservation, and the free space kept before each read
	MaxBufferCap = 1 << 20 // growth past this is refused
)

var (
	// ErrPeerClosed is returned when the peer has closed its end of the stream.
	ErrPeerClosed = errors.New("peer closed the connection")

	// ErrBufferLimit is returned when a buffer would have to grow past MaxBufferCap.
	ErrBufferLimit = errors.New("buffer capacity limit reached")
)

// RecvBuffer is the growable byte store that inbound socket bytes land in
// until they form complete frames. len(data) is the capacity; data[:size]
// holds valid bytes.
//
// It is owned by the tick goroutine and needs no locking.
type RecvBuffer struct {
	data []byte
	size int
}

// NewRecvBuffer creates an empty buffer with at least capacity bytes.
func NewRecvBuffer(capacity int) *RecvBuffer {
	b := &RecvBuffer{}
	b.Reserve(capacity)
	return b
}

// Reserve grows the backing storage to at least minCap bytes (floored at
// MinBufferCap), keeping existing bytes. It never shrinks. A request past
// MaxBufferCap leaves the buffer unchanged and returns false.
func (b *RecvBuffer) Reserve(minCap int) bool {
	if minCap < MinBufferCap {
		minCap = MinBufferCap
	}
	if minCap <= len(b.data) {
		return true
	}
	if minCap > MaxBufferCap {
		return false
	}

	grown := make([]byte, minCap)
	copy(grown, b.data[:b.size])
	b.data = grown
	return true
}

// Recv performs one read from r into the free region, first making sure at
// least MinBufferCap bytes are free by doubling the storage. It returns the
// number of bytes read. A closed peer yields ErrPeerClosed; any other read
// error is returned as is (see IsWouldBlock for the transient kind). When
// growth is refused and no space is left it returns ErrBufferLimit without
// reading; the valid bytes are untouched.
func (b *RecvBuffer) Recv(r io.Reader) (int, error) {
	if len(b.data)-b.size < MinBufferCap {
		b.Reserve(max(len(b.data)*2, b.size+MinBufferCap))
	}
	if b.size == len(b.data) {
		return 0, ErrBufferLimit
	}

	n, err := r.Read(b.data[b.size:])
	if n > 0 {
		b.size += n
	}

	if errors.Is(err, io.EOF) {
		return n, ErrPeerClosed
	}
	return n, err
}

// Consume drops the first n bytes, shifting the rest to the front. n >= Len()
// empties the buffer without copying.
func (b *RecvBuffer) Consume(n int) {
	if n <= 0 {
		return
	}
	if n >= b.size {
		b.size = 0
		return
	}
	copy(b.data, b.data[n:b.size])
	b.size -= n
}

// Bytes returns the valid bytes. The slice aliases the buffer and is only
// valid until the next Recv, Reserve or Consume.
func (b *RecvBuffer) Bytes() []byte { return b.data[:b.size] }

// Len returns the number of valid bytes.
func (b *RecvBuffer) Len() int { return b.size }

// Cap returns the allocated capacity.
func (b *RecvBuffer) Cap() int { return len(b.data) }
