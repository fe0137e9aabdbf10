package app

import (
	"sync"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"

	"github.com/1ureka/netpong/internal/config"
	"github.com/1ureka/netpong/internal/game"
	"github.com/1ureka/netpong/internal/util"
)

// Source produces the input for one tick. rs is the state after the
// previous tick.
type Source interface {
	Sample(rs game.RenderState) game.Input
}

// ---------------------------------------------------------------------------
// Keyboard
// ---------------------------------------------------------------------------

// holdWindow is how long a key counts as held after its last press event.
// Terminals only report presses, so a held key is seen as auto-repeat.
const holdWindow = 180 * time.Millisecond

type action int

const (
	actNone action = iota
	actUp
	actDown
	actPause
	actQuit
)

// binding is what one key does and for which hand. The left hand (W/S, K/J,
// P) drives player 0 in a local game; the right hand (arrows, space) drives
// player 1. Online, both hands drive the local player.
type binding struct {
	act   action
	right bool
}

func bind(key keys.Key) binding {
	switch key.Code {
	case keys.Up:
		return binding{actUp, true}
	case keys.Down:
		return binding{actDown, true}
	case keys.Space:
		return binding{actPause, true}
	case keys.Esc, keys.CtrlC:
		return binding{act: actQuit}
	case keys.RuneKey:
		if len(key.Runes) != 1 {
			return binding{}
		}
		switch key.Runes[0] {
		case 'w', 'W', 'k', 'K':
			return binding{act: actUp}
		case 's', 'S', 'j', 'J':
			return binding{act: actDown}
		case 'p', 'P':
			return binding{act: actPause}
		case 'q', 'Q':
			return binding{act: actQuit}
		}
	}
	return binding{}
}

// KeyboardInput turns terminal key presses into per-tick input. The terminal
// is in raw mode while it listens, so Ctrl+C arrives as a key and is reported
// through Quit instead of as a signal.
type KeyboardInput struct {
	role config.Role
	now  func() time.Time

	mu        sync.Mutex
	pressed   [2][2]time.Time // [player][up, down] time of the last press
	pause     [2]bool         // pending until the next Sample
	listening bool

	quit     chan struct{}
	quitOnce sync.Once
	stopping bool
}

// NewKeyboardInput creates an input source for the given role.
func NewKeyboardInput(role config.Role) *KeyboardInput {
	return &KeyboardInput{
		role: role,
		now:  time.Now,
		quit: make(chan struct{}),
	}
}

// Start listens for keys in the background until Stop or a quit key.
func (k *KeyboardInput) Start() {
	k.mu.Lock()
	k.listening = true
	k.mu.Unlock()

	go func() {
		err := keyboard.Listen(k.handle)

		k.mu.Lock()
		k.listening = false
		k.mu.Unlock()

		if err != nil {
			util.LogError("keyboard listener stopped: %v", err)
		}
		k.signalQuit()
	}()
}

// Stop ends the listener and gives the terminal back.
func (k *KeyboardInput) Stop() {
	k.mu.Lock()
	k.stopping = true
	listening := k.listening
	k.mu.Unlock()

	if listening {
		// The listener only returns from inside its callback.
		go keyboard.SimulateKeyPress(keys.Esc)
	}
}

// Quit is closed when the user asks to leave.
func (k *KeyboardInput) Quit() <-chan struct{} { return k.quit }

func (k *KeyboardInput) signalQuit() {
	k.quitOnce.Do(func() { close(k.quit) })
}

func (k *KeyboardInput) handle(key keys.Key) (stop bool, err error) {
	b := bind(key)

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.stopping {
		return true, nil
	}

	p := k.player(b.right)
	switch b.act {
	case actUp:
		k.pressed[p][0] = k.now()
	case actDown:
		k.pressed[p][1] = k.now()
	case actPause:
		k.pause[p] = true
	case actQuit:
		k.signalQuit()
		return true, nil
	}
	return false, nil
}

// player maps a hand to the paddle it drives.
func (k *KeyboardInput) player(right bool) int {
	switch k.role {
	case config.RoleHost:
		return 0
	case config.RoleClient:
		return 1
	default:
		if right {
			return 1
		}
		return 0
	}
}

// Sample reports keys pressed within holdWindow as held and consumes pending
// pause presses.
func (k *KeyboardInput) Sample(game.RenderState) game.Input {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	var in game.Input
	for p := range in {
		up := now.Sub(k.pressed[p][0]) < holdWindow
		down := now.Sub(k.pressed[p][1]) < holdWindow
		// Latest direction wins when the user switched quickly.
		if up && down {
			up = k.pressed[p][0].After(k.pressed[p][1])
			down = !up
		}
		in[p] = game.PlayerInput{Up: up, Down: down, Pause: k.pause[p]}
		k.pause[p] = false
	}
	return in
}

// ---------------------------------------------------------------------------
// Bot
// ---------------------------------------------------------------------------

// Bot steers one paddle toward the ball. It is used for unattended play and
// soak tests.
type Bot struct {
	Player   int32
	Physics  config.Physics
	DeadZone float32 // no correction while the paddle is this close to target
}

// Steer overwrites the bot player's movement in in. Pause input is kept.
func (b Bot) Steer(in *game.Input, rs game.RenderState) {
	target := b.Physics.WorldHeight / 2

	// Track the ball only while it is coming this way.
	vx := rs.Ball.Vel.X
	if (b.Player == 0 && vx < 0) || (b.Player == 1 && vx > 0) {
		target = rs.Ball.Pos.Y
	}

	pos := rs.Players[b.Player].Pos
	in[b.Player].Up = pos > target+b.DeadZone
	in[b.Player].Down = pos < target-b.DeadZone
}

// botSource wraps another source and lets bots steer on top of it.
type botSource struct {
	base Source
	bots []Bot
}

func (s botSource) Sample(rs game.RenderState) game.Input {
	var in game.Input
	if s.base != nil {
		in = s.base.Sample(rs)
	}
	for _, b := range s.bots {
		b.Steer(&in, rs)
	}
	return in
}
