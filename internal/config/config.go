// Package config holds the runtime configuration types.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Role represents the part this process plays in a match.
type Role string

const (
	RoleLocal  Role = "local"  // both paddles on this machine, no socket
	RoleHost   Role = "host"   // listens, owns ball physics and scoring
	RoleClient Role = "client" // connects to a host, mirrors its ball
)

// Physics holds the court geometry and speeds, in court units and units/s.
type Physics struct {
	WorldWidth    float32
	WorldHeight   float32
	PaddleWidth   float32
	PaddleHeight  float32
	BallRadius    float32
	BallBaseSpeed float32 // horizontal speed after a reset; each paddle hit adds a tenth of it
	PaddleSpeed   float32
	MaxDeflect    float32 // vertical speed for a hit on the very edge of a paddle
	SpinScale     float32 // share of the paddle's vertical velocity handed to the ball
}

// Config stores all parameters gathered from flags or the interactive prompts.
type Config struct {
	Role     Role
	Port     int    // Host: port to listen on. Client: host port to connect to.
	HostAddr string // Client: host name or IP address.

	TickRate         int           // ticks per second
	PollTimeout      time.Duration // bounded wait before a receive or accept
	DialTimeout      time.Duration
	WriteTimeout     time.Duration // per write attempt while flushing
	MaxWriteAttempts int           // write attempts per flush before carrying the rest over

	SpectateAddr string // optional HTTP address for /ws, /metrics and /healthz
	Bot          bool   // drive the local paddle automatically
	Headless     bool   // no terminal renderer
	Debug        bool

	Physics Physics
}

// DefaultPhysics returns the classic court: 400x400 units, 10x80 paddles.
func DefaultPhysics() Physics {
	return Physics{
		WorldWidth:    400,
		WorldHeight:   400,
		PaddleWidth:   10,
		PaddleHeight:  80,
		BallRadius:    8,
		BallBaseSpeed: 200,
		PaddleSpeed:   300,
		MaxDeflect:    350,
		SpinScale:     0.5,
	}
}

// Default returns a local-game configuration with every tunable filled in.
func Default() Config {
	return Config{
		Role:             RoleLocal,
		TickRate:         60,
		PollTimeout:      4 * time.Millisecond,
		DialTimeout:      5 * time.Second,
		WriteTimeout:     2 * time.Millisecond,
		MaxWriteAttempts: 4,
		Physics:          DefaultPhysics(),
	}
}

// Validate reports the first problem that would stop the chosen role from starting.
func (c Config) Validate() error {
	switch c.Role {
	case RoleLocal:
	case RoleHost, RoleClient:
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("invalid port %d: must be 1~65535", c.Port)
		}
		if c.Role == RoleClient && c.HostAddr == "" {
			return errors.New("missing host address for client role")
		}
	default:
		return fmt.Errorf("invalid role %q: must be local, host or client", c.Role)
	}

	if c.TickRate <= 0 {
		return fmt.Errorf("invalid tick rate %d", c.TickRate)
	}
	if c.MaxWriteAttempts <= 0 {
		return fmt.Errorf("invalid write attempts %d", c.MaxWriteAttempts)
	}
	return nil
}

// TickInterval is the wall-clock length of one tick.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}
