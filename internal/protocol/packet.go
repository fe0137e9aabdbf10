// Package protocol defines the frame format and the payload types exchanged
// between the two peers of a match.
package protocol

import "fmt"

// MsgType is the frame type tag carried in the header.
type MsgType uint32

// Frame type constants. The numbering is part of the wire format.
const (
	TypePlayerPos   MsgType = iota // paddle position + vertical velocity of one player
	TypeScoreUpdate                // absolute score of one player (host only)
	TypeBallUpdate                 // ball position + velocity (host only)
	TypeStateUpdate                // session state announcement + originating player
)

func (t MsgType) String() string {
	switch t {
	case TypePlayerPos:
		return "player_pos"
	case TypeScoreUpdate:
		return "score_update"
	case TypeBallUpdate:
		return "ball_update"
	case TypeStateUpdate:
		return "state_update"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// HeaderSize is the fixed header size: Type(4) + Length(4).
const HeaderSize = 8

// MaxPayloadSize bounds the length field. No payload type comes close; a
// larger value means the stream is corrupt or hostile.
const MaxPayloadSize = 64 * 1024

// Fixed payload sizes per type.
const (
	playerPosSize   = 12 // pos:f32 | vert_velocity:f32 | player:i32
	scoreUpdateSize = 8  // score:i32 | player:i32
	ballUpdateSize  = 16 // pos:{f32,f32} | velocity:{f32,f32}
	stateUpdateSize = 8  // state:i32 | player:i32
)

// Frame is one complete framed message. Payload is a view into the buffer
// it was parsed from and is only valid until that buffer is consumed.
type Frame struct {
	Type    MsgType
	Payload []byte
}

// State is the coarse session mode, shared on the wire by StateUpdate.
type State int32

const (
	StateMenu State = iota
	StatePlaying
	StatePaused
	StateWaitingForPeer
)

func (s State) String() string {
	switch s {
	case StateMenu:
		return "menu"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateWaitingForPeer:
		return "waiting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	return s >= StateMenu && s <= StateWaitingForPeer
}

// Vec2 is a 2D vector in court units.
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Message is a typed payload. The set is closed: only the types in this
// package implement it.
type Message interface {
	Type() MsgType
	size() int
	put(b []byte)
}

// PlayerPos announces one player's paddle. Each peer sends it only for the
// player it controls.
type PlayerPos struct {
	Pos          float32
	VertVelocity float32
	Player       int32
}

// ScoreUpdate carries the absolute score of one player.
type ScoreUpdate struct {
	Score  int32
	Player int32
}

// BallUpdate carries the authoritative ball state.
type BallUpdate struct {
	Pos Vec2
	Vel Vec2
}

// StateUpdate announces a session state change made by Player.
type StateUpdate struct {
	State  State
	Player int32
}

func (PlayerPos) Type() MsgType   { return TypePlayerPos }
func (ScoreUpdate) Type() MsgType { return TypeScoreUpdate }
func (BallUpdate) Type() MsgType  { return TypeBallUpdate }
func (StateUpdate) Type() MsgType { return TypeStateUpdate }

func (PlayerPos) size() int   { return playerPosSize }
func (ScoreUpdate) size() int { return scoreUpdateSize }
func (BallUpdate) size() int  { return ballUpdateSize }
func (StateUpdate) size() int { return stateUpdateSize }

// PayloadSize returns the fixed payload size for t, or false if t is not a
// known type.
func PayloadSize(t MsgType) (int, bool) {
	switch t {
	case TypePlayerPos:
		return playerPosSize, true
	case TypeScoreUpdate:
		return scoreUpdateSize, true
	case TypeBallUpdate:
		return ballUpdateSize, true
	case TypeStateUpdate:
		return stateUpdateSize, true
	default:
		return 0, false
	}
}
