package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

var sampleMessages = []struct {
	name string
	msg  Message
}{
	{"player pos", PlayerPos{Pos: 123.5, VertVelocity: -300, Player: 1}},
	{"player pos zero", PlayerPos{}},
	{"score update", ScoreUpdate{Score: 7, Player: 0}},
	{"score update large", ScoreUpdate{Score: math.MaxInt32, Player: 1}},
	{"ball update", BallUpdate{Pos: Vec2{X: 200, Y: 17.25}, Vel: Vec2{X: -220, Y: 35.5}}},
	{"state update paused", StateUpdate{State: StatePaused, Player: 1}},
	{"state update playing", StateUpdate{State: StatePlaying, Player: 0}},
}

// TestMessageRoundTrip verifies decode(encode(msg)) == msg for every payload type.
func TestMessageRoundTrip(t *testing.T) {
	for _, tc := range sampleMessages {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeMessage(tc.msg)
			if len(encoded) != FrameSize(tc.msg) {
				t.Fatalf("encoded size = %d, want %d", len(encoded), FrameSize(tc.msg))
			}

			f, n, err := TryParse(encoded)
			if err != nil {
				t.Fatalf("TryParse failed: %v", err)
			}
			if n != len(encoded) {
				t.Fatalf("consumed %d bytes, want %d", n, len(encoded))
			}
			if f.Type != tc.msg.Type() {
				t.Fatalf("type = %s, want %s", f.Type, tc.msg.Type())
			}

			got, err := Decode(f)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got != tc.msg {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, tc.msg)
			}
		})
	}
}

// TestHeaderLayout verifies the header is type then length, host order, no padding.
func TestHeaderLayout(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	frame := Encode(TypeBallUpdate, payload)

	if len(frame) != HeaderSize+len(payload) {
		t.Fatalf("frame length = %d, want %d", len(frame), HeaderSize+len(payload))
	}
	if got := ByteOrder.Uint32(frame[0:4]); got != uint32(TypeBallUpdate) {
		t.Errorf("type field = %d, want %d", got, TypeBallUpdate)
	}
	if got := ByteOrder.Uint32(frame[4:8]); got != uint32(len(payload)) {
		t.Errorf("length field = %d, want %d", got, len(payload))
	}
	if !bytes.Equal(frame[HeaderSize:], payload) {
		t.Errorf("payload = %v, want %v", frame[HeaderSize:], payload)
	}
}

// TestTryParsePartialFrame feeds every strict prefix of a frame and checks that
// nothing is consumed, then appends the rest and checks the full decode.
func TestTryParsePartialFrame(t *testing.T) {
	msg := BallUpdate{Pos: Vec2{X: 1, Y: 2}, Vel: Vec2{X: 3, Y: 4}}
	full := EncodeMessage(msg)

	for prefix := 0; prefix < len(full); prefix++ {
		buf := append([]byte(nil), full[:prefix]...)

		_, n, err := TryParse(buf)
		if err != nil {
			t.Fatalf("prefix %d: unexpected error %v", prefix, err)
		}
		if n != 0 {
			t.Fatalf("prefix %d: consumed %d bytes, want 0", prefix, n)
		}

		buf = append(buf, full[prefix:]...)
		f, n, err := TryParse(buf)
		if err != nil || n != len(full) {
			t.Fatalf("prefix %d: completed parse returned n=%d err=%v", prefix, n, err)
		}
		got, err := Decode(f)
		if err != nil {
			t.Fatalf("prefix %d: Decode failed: %v", prefix, err)
		}
		if got != msg {
			t.Fatalf("prefix %d: got %+v, want %+v", prefix, got, msg)
		}
	}
}

// TestDecodeAllMultipleFrames verifies three concatenated frames decode in order
// with no leftover bytes.
func TestDecodeAllMultipleFrames(t *testing.T) {
	msgs := []Message{
		PlayerPos{Pos: 10, VertVelocity: 300, Player: 0},
		ScoreUpdate{Score: 2, Player: 1},
		StateUpdate{State: StatePaused, Player: 0},
	}

	var buf []byte
	for _, m := range msgs {
		buf = AppendMessage(buf, m)
	}

	frames, consumed, err := DecodeAll(buf)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if consumed != len(buf) {
		t.Errorf("consumed %d bytes, want %d", consumed, len(buf))
	}
	if len(frames) != len(msgs) {
		t.Fatalf("decoded %d frames, want %d", len(frames), len(msgs))
	}
	for i, f := range frames {
		got, err := Decode(f)
		if err != nil {
			t.Fatalf("frame %d: Decode failed: %v", i, err)
		}
		if got != msgs[i] {
			t.Errorf("frame %d: got %+v, want %+v", i, got, msgs[i])
		}
	}
}

// TestDecodeAllLeavesTail verifies a trailing partial frame is not consumed.
func TestDecodeAllLeavesTail(t *testing.T) {
	first := EncodeMessage(ScoreUpdate{Score: 1, Player: 0})
	second := EncodeMessage(ScoreUpdate{Score: 2, Player: 1})
	buf := append(append([]byte(nil), first...), second[:5]...)

	frames, consumed, err := DecodeAll(buf)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(frames))
	}
	if consumed != len(first) {
		t.Errorf("consumed %d bytes, want %d", consumed, len(first))
	}
}

// TestTryParseTooLarge verifies a header announcing an impossible length is rejected.
func TestTryParseTooLarge(t *testing.T) {
	hdr := make([]byte, HeaderSize)
	ByteOrder.PutUint32(hdr[0:4], uint32(TypeBallUpdate))
	ByteOrder.PutUint32(hdr[4:8], MaxPayloadSize+1)

	_, n, err := TryParse(hdr)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
	if n != 0 {
		t.Errorf("consumed %d bytes, want 0", n)
	}
}

// TestDecodeRejects covers every protocol violation Decode reports.
func TestDecodeRejects(t *testing.T) {
	badPlayer := make([]byte, 8)
	ByteOrder.PutUint32(badPlayer[0:4], 3)
	ByteOrder.PutUint32(badPlayer[4:8], 2)

	badState := make([]byte, 8)
	ByteOrder.PutUint32(badState[0:4], 42)
	ByteOrder.PutUint32(badState[4:8], 0)

	testCases := []struct {
		name  string
		frame Frame
		want  error
	}{
		{"unknown type", Frame{Type: 99, Payload: nil}, ErrUnknownType},
		{"short payload", Frame{Type: TypePlayerPos, Payload: make([]byte, 8)}, ErrPayloadSize},
		{"long payload", Frame{Type: TypeScoreUpdate, Payload: make([]byte, 12)}, ErrPayloadSize},
		{"player out of range", Frame{Type: TypeScoreUpdate, Payload: badPlayer}, ErrBadPlayer},
		{"unknown state", Frame{Type: TypeStateUpdate, Payload: badState}, ErrBadState},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode(tc.frame)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if msg != nil {
				t.Errorf("msg = %+v, want nil", msg)
			}
		})
	}
}

// TestUnknownTypeStillFramed verifies an unknown tag is framed (and skippable)
// even though it cannot be decoded.
func TestUnknownTypeStillFramed(t *testing.T) {
	buf := Encode(MsgType(77), []byte{9, 9, 9})
	buf = AppendMessage(buf, ScoreUpdate{Score: 4, Player: 1})

	frames, consumed, err := DecodeAll(buf)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(frames) != 2 || consumed != len(buf) {
		t.Fatalf("got %d frames / %d bytes, want 2 / %d", len(frames), consumed, len(buf))
	}
	if _, err := Decode(frames[0]); !errors.Is(err, ErrUnknownType) {
		t.Errorf("first frame err = %v, want ErrUnknownType", err)
	}
	if _, err := Decode(frames[1]); err != nil {
		t.Errorf("second frame err = %v, want nil", err)
	}
}
