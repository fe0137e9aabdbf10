package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ByteOrder is the order of every multi-byte field on the wire. Both peers
// write host order with no conversion, so cross-architecture play is not
// supported.
var ByteOrder binary.ByteOrder = binary.NativeEndian

var (
	ErrUnknownType   = errors.New("unknown frame type")
	ErrPayloadSize   = errors.New("payload size does not match frame type")
	ErrFrameTooLarge = errors.New("frame exceeds maximum payload size")
	ErrBadPlayer     = errors.New("player id out of range")
	ErrBadState      = errors.New("unknown session state")
)

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encode prepends the 8-byte header to payload and returns the frame bytes.
func Encode(t MsgType, payload []byte) []byte {
	return AppendRaw(make([]byte, 0, HeaderSize+len(payload)), t, payload)
}

// AppendRaw appends one frame with an opaque payload to dst.
func AppendRaw(dst []byte, t MsgType, payload []byte) []byte {
	var hdr [HeaderSize]byte
	ByteOrder.PutUint32(hdr[0:4], uint32(t))
	ByteOrder.PutUint32(hdr[4:8], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// AppendMessage appends msg as one complete frame to dst.
func AppendMessage(dst []byte, msg Message) []byte {
	n := msg.size()
	start := len(dst)
	dst = append(dst, make([]byte, HeaderSize+n)...)
	frame := dst[start:]
	ByteOrder.PutUint32(frame[0:4], uint32(msg.Type()))
	ByteOrder.PutUint32(frame[4:8], uint32(n))
	msg.put(frame[HeaderSize:])
	return dst
}

// EncodeMessage returns msg as a standalone frame.
func EncodeMessage(msg Message) []byte {
	return AppendMessage(make([]byte, 0, HeaderSize+msg.size()), msg)
}

// FrameSize returns the encoded size of msg including its header.
func FrameSize(msg Message) int {
	return HeaderSize + msg.size()
}

func (m PlayerPos) put(b []byte) {
	putFloat(b[0:4], m.Pos)
	putFloat(b[4:8], m.VertVelocity)
	ByteOrder.PutUint32(b[8:12], uint32(m.Player))
}

func (m ScoreUpdate) put(b []byte) {
	ByteOrder.PutUint32(b[0:4], uint32(m.Score))
	ByteOrder.PutUint32(b[4:8], uint32(m.Player))
}

func (m BallUpdate) put(b []byte) {
	putFloat(b[0:4], m.Pos.X)
	putFloat(b[4:8], m.Pos.Y)
	putFloat(b[8:12], m.Vel.X)
	putFloat(b[12:16], m.Vel.Y)
}

func (m StateUpdate) put(b []byte) {
	ByteOrder.PutUint32(b[0:4], uint32(m.State))
	ByteOrder.PutUint32(b[4:8], uint32(m.Player))
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// TryParse reads one frame from the front of data. It returns the frame and
// the number of bytes it occupies. When data holds less than a complete frame
// it returns n == 0 and a nil error; the caller waits for more bytes. The
// only error is ErrFrameTooLarge, for a header that can never complete.
func TryParse(data []byte) (f Frame, n int, err error) {
	if len(data) < HeaderSize {
		return Frame{}, 0, nil
	}

	t := MsgType(ByteOrder.Uint32(data[0:4]))
	length := ByteOrder.Uint32(data[4:8])
	if length > MaxPayloadSize {
		return Frame{}, 0, fmt.Errorf("%w: type %s announces %d bytes", ErrFrameTooLarge, t, length)
	}

	total := HeaderSize + int(length)
	if len(data) < total {
		return Frame{}, 0, nil
	}

	return Frame{Type: t, Payload: data[HeaderSize:total:total]}, total, nil
}

// DecodeAll parses every complete frame at the front of data, in order, and
// returns them with the total byte count they occupy. Trailing bytes of a
// partial frame are left for the caller to keep.
func DecodeAll(data []byte) ([]Frame, int, error) {
	var frames []Frame
	off := 0
	for {
		f, n, err := TryParse(data[off:])
		if err != nil {
			return frames, off, err
		}
		if n == 0 {
			return frames, off, nil
		}
		frames = append(frames, f)
		off += n
	}
}

// Decode converts a frame into its typed message, copying every field out
// of the payload view.
func Decode(f Frame) (Message, error) {
	want, ok := PayloadSize(f.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint32(f.Type))
	}
	if len(f.Payload) != want {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrPayloadSize, f.Type, len(f.Payload), want)
	}

	b := f.Payload
	switch f.Type {
	case TypePlayerPos:
		m := PlayerPos{
			Pos:          getFloat(b[0:4]),
			VertVelocity: getFloat(b[4:8]),
			Player:       int32(ByteOrder.Uint32(b[8:12])),
		}
		return withPlayer(m, m.Player)

	case TypeScoreUpdate:
		m := ScoreUpdate{
			Score:  int32(ByteOrder.Uint32(b[0:4])),
			Player: int32(ByteOrder.Uint32(b[4:8])),
		}
		return withPlayer(m, m.Player)

	case TypeBallUpdate:
		return BallUpdate{
			Pos: Vec2{X: getFloat(b[0:4]), Y: getFloat(b[4:8])},
			Vel: Vec2{X: getFloat(b[8:12]), Y: getFloat(b[12:16])},
		}, nil

	default: // TypeStateUpdate
		m := StateUpdate{
			State:  State(int32(ByteOrder.Uint32(b[0:4]))),
			Player: int32(ByteOrder.Uint32(b[4:8])),
		}
		if !m.State.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrBadState, int32(m.State))
		}
		return withPlayer(m, m.Player)
	}
}

func withPlayer(m Message, p int32) (Message, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: %d", ErrBadPlayer, p)
	}
	return m, nil
}

func putFloat(b []byte, v float32) { ByteOrder.PutUint32(b, math.Float32bits(v)) }

func getFloat(b []byte) float32 { return math.Float32frombits(ByteOrder.Uint32(b)) }
