package game

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/1ureka/netpong/internal/config"
	"github.com/1ureka/netpong/internal/protocol"
)

var (
	// ErrUnexpectedState is returned for a state announcement that arrives
	// while the session is neither playing nor paused.
	ErrUnexpectedState = errors.New("state update not valid in current state")

	// ErrNotAuthority is returned when a peer sends something only the other
	// side may originate.
	ErrNotAuthority = errors.New("peer is not the authority for this message")
)

// Engine is the match state plus the rules that mutate it. It does no I/O:
// everything the peer must learn about is published as a message, and the
// caller ships the batch returned by Commit.
//
// Engine is owned by the tick goroutine and needs no locking.
type Engine struct {
	phys config.Physics
	role config.Role
	rng  *rand.Rand

	state      protocol.State
	pauser     int32
	ball       Ball
	collisions int
	players    [2]Player
	matchID    string

	pending []protocol.Message
}

// NewEngine creates an engine in the menu state. rng drives ball launch
// direction; nil means a randomly seeded source.
func NewEngine(phys config.Physics, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{
		phys:   phys,
		role:   config.RoleLocal,
		rng:    rng,
		state:  protocol.StateMenu,
		pauser: NoPlayer,
	}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (e *Engine) State() protocol.State { return e.state }
func (e *Engine) Role() config.Role     { return e.role }
func (e *Engine) Pauser() int32         { return e.pauser }
func (e *Engine) Ball() Ball            { return e.ball }
func (e *Engine) Players() [2]Player    { return e.players }
func (e *Engine) Collisions() int       { return e.collisions }
func (e *Engine) MatchID() string       { return e.matchID }

// Snapshot copies the drawable state.
func (e *Engine) Snapshot() RenderState {
	return RenderState{
		State:      e.state,
		Role:       e.role,
		Ball:       e.ball,
		Players:    e.players,
		Collisions: e.collisions,
		Pauser:     e.pauser,
		MatchID:    e.matchID,
	}
}

// authoritative reports whether this side simulates the ball and scores.
func (e *Engine) authoritative() bool {
	return e.role != config.RoleClient
}

// controls reports whether player p is driven by local input.
func (e *Engine) controls(p int32) bool {
	switch e.role {
	case config.RoleHost:
		return p == 0
	case config.RoleClient:
		return p == 1
	default:
		return p == 0 || p == 1
	}
}

// ---------------------------------------------------------------------------
// Transitions driven by the session
// ---------------------------------------------------------------------------

// Enter puts the engine in state s as role, clearing any pause owner.
// Menu → Playing for a local game or a client that just connected, and
// Menu → WaitingForPeer for a host, go through here.
// The court is laid out fresh; a host fills it in properly at StartMatch.
func (e *Engine) Enter(role config.Role, s protocol.State) {
	e.role = role
	e.state = s
	e.pauser = NoPlayer
	e.matchID = ""
	e.collisions = 0
	e.pending = e.pending[:0]
	for i := range e.players {
		e.players[i] = Player{Pos: e.phys.WorldHeight / 2}
	}
	e.ball = Ball{Pos: protocol.Vec2{X: e.phys.WorldWidth / 2, Y: e.phys.WorldHeight / 2}}
}

// Reset drops back to the menu and discards unpublished messages.
func (e *Engine) Reset() {
	e.state = protocol.StateMenu
	e.pauser = NoPlayer
	e.pending = e.pending[:0]
}

// StartMatch resets scores, paddles and ball, enters Playing, and publishes
// the fresh state so the peer starts from the same picture. Only paddles
// this side controls are announced; the peer owns its own.
func (e *Engine) StartMatch() {
	e.state = protocol.StatePlaying
	e.pauser = NoPlayer
	e.matchID = uuid.NewString()

	for i := range e.players {
		p := int32(i)
		e.players[i] = Player{Pos: e.phys.WorldHeight / 2}
		e.publish(protocol.ScoreUpdate{Score: 0, Player: p})
		if e.controls(p) {
			e.publish(protocol.PlayerPos{Pos: e.players[i].Pos, Player: p})
		}
	}

	e.resetBall()
	e.publishBall()
}

// ---------------------------------------------------------------------------
// Per-state handlers
// ---------------------------------------------------------------------------

// UpdatePlaying runs the Playing handler: local paddles move, a pause key
// announces a pause, and the authoritative side steps the ball.
func (e *Engine) UpdatePlaying(in Input, dt float32) {
	for p := int32(0); p < 2; p++ {
		if e.controls(p) {
			e.movePaddle(p, in[p], dt)
		}
	}

	for p := int32(0); p < 2; p++ {
		if e.controls(p) && in[p].Pause {
			e.publish(protocol.StateUpdate{State: protocol.StatePaused, Player: p})
			break
		}
	}

	if e.authoritative() {
		e.stepBall(dt)
	}
}

// UpdatePaused runs the Paused handler: only the player who paused can
// announce the resume.
func (e *Engine) UpdatePaused(in Input) {
	p := e.pauser
	if p == NoPlayer || !e.controls(p) || !in[p].Pause {
		return
	}
	e.publish(protocol.StateUpdate{State: protocol.StatePlaying, Player: p})
}

func (e *Engine) movePaddle(p int32, in PlayerInput, dt float32) {
	pl := &e.players[p]
	prevVel := pl.VertVelocity

	var vy float32
	if in.Down {
		vy += e.phys.PaddleSpeed
	}
	if in.Up {
		vy -= e.phys.PaddleSpeed
	}

	half := e.phys.PaddleHeight / 2
	pl.VertVelocity = vy
	pl.Pos = clamp(pl.Pos+vy*dt, half, e.phys.WorldHeight-half)

	// A stop is published once so the peer does not keep a stale velocity.
	if vy != 0 || prevVel != 0 {
		e.publish(protocol.PlayerPos{Pos: pl.Pos, VertVelocity: vy, Player: p})
	}
}

// ---------------------------------------------------------------------------
// Inbound messages
// ---------------------------------------------------------------------------

// ApplyRemote applies a message received from the peer. Messages the peer
// has no authority to send are rejected with ErrNotAuthority and change
// nothing; so is a state announcement outside Playing/Paused.
func (e *Engine) ApplyRemote(msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.PlayerPos:
		if e.controls(m.Player) {
			return fmt.Errorf("%w: position of local player %d", ErrNotAuthority, m.Player)
		}
	case protocol.ScoreUpdate, protocol.BallUpdate:
		if e.authoritative() {
			return fmt.Errorf("%w: %s", ErrNotAuthority, msg.Type())
		}
	}
	return e.apply(msg)
}

// apply mutates local state from msg. It serves both peer messages and the
// local echo of published ones.
func (e *Engine) apply(msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.PlayerPos:
		e.players[m.Player].Pos = m.Pos
		e.players[m.Player].VertVelocity = m.VertVelocity

	case protocol.ScoreUpdate:
		e.players[m.Player].Score = m.Score

	case protocol.BallUpdate:
		e.ball = Ball{Pos: m.Pos, Vel: m.Vel}

	case protocol.StateUpdate:
		return e.applyState(m)
	}
	return nil
}

// applyState is the pause/resume handshake. While paused, only the player
// who paused can change the state; anyone's announcement is adopted while
// playing.
func (e *Engine) applyState(m protocol.StateUpdate) error {
	// Only pause and resume travel between peers. Menu and waiting are
	// local states that the peer has no say over.
	if m.State != protocol.StatePlaying && m.State != protocol.StatePaused {
		return fmt.Errorf("%w: peer announced %s", ErrUnexpectedState, m.State)
	}

	switch e.state {
	case protocol.StatePaused:
		if m.Player != e.pauser {
			return nil
		}
		e.state = m.State
		if m.State != protocol.StatePaused {
			e.pauser = NoPlayer
		}

	case protocol.StatePlaying:
		e.state = m.State
		if m.State == protocol.StatePaused {
			e.pauser = m.Player
		}

	default:
		return fmt.Errorf("%w: %s announced by player %d while %s", ErrUnexpectedState, m.State, m.Player, e.state)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Outbound messages
// ---------------------------------------------------------------------------

func (e *Engine) publish(msg protocol.Message) {
	e.pending = append(e.pending, msg)
}

func (e *Engine) publishBall() {
	e.publish(protocol.BallUpdate{Pos: e.ball.Pos, Vel: e.ball.Vel})
}

// Commit applies this tick's published messages to local state, in order,
// and returns them for the peer. The returned slice is only valid until the
// next tick.
func (e *Engine) Commit() []protocol.Message {
	out := e.pending
	for _, msg := range out {
		// Only a state update can fail, and only outside Playing/Paused,
		// where no handler publishes one.
		_ = e.apply(msg)
	}
	e.pending = e.pending[:0]
	return out
}
