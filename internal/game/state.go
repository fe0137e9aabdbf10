// Package game holds the match state and the host-authoritative rules that
// keep two peers' copies of it consistent.
package game

import (
	"github.com/1ureka/netpong/internal/config"
	"github.com/1ureka/netpong/internal/protocol"
)

// NoPlayer marks "nobody" where a player index is expected (no pause owner).
const NoPlayer int32 = -1

// Player is one paddle and its score. Index 0 plays on the left and is the
// host in an online match; index 1 plays on the right.
type Player struct {
	Pos          float32 `json:"pos"` // paddle centre, vertical
	VertVelocity float32 `json:"vy"`
	Score        int32   `json:"score"`
}

// Ball is the ball's centre and velocity.
type Ball struct {
	Pos protocol.Vec2 `json:"pos"`
	Vel protocol.Vec2 `json:"vel"`
}

// PlayerInput is what one player pressed during a tick.
type PlayerInput struct {
	Up    bool
	Down  bool
	Pause bool // pauses while playing, resumes a pause this player started
}

// Input holds both players' input, indexed by player. An online peer only
// reads the entry for the player it controls.
type Input [2]PlayerInput

// RenderState is a copy of everything a front-end or spectator needs to draw
// the match after a tick.
type RenderState struct {
	State      protocol.State `json:"state"`
	Role       config.Role    `json:"role"`
	Ball       Ball           `json:"ball"`
	Players    [2]Player      `json:"players"`
	Collisions int            `json:"collisions"`
	Pauser     int32          `json:"pauser"`
	MatchID    string         `json:"match_id,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// rect is an axis-aligned rectangle; x, y is the top-left corner.
type rect struct {
	x, y, w, h float32
}

// overlaps reports strict overlap; touching edges do not count.
func (r rect) overlaps(o rect) bool {
	return r.x < o.x+o.w && r.x+r.w > o.x &&
		r.y < o.y+o.h && r.y+r.h > o.y
}
