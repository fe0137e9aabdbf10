package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/1ureka/netpong/internal/config"
	"github.com/1ureka/netpong/internal/protocol"
	"github.com/1ureka/netpong/internal/transport"
	"github.com/1ureka/netpong/internal/util"
)

// Observer is notified of what happens during ticks. Implementations must be
// cheap; they run on the tick goroutine.
type Observer interface {
	TickObserved(state protocol.State, took time.Duration)
	FrameReceived(t protocol.MsgType)
	FrameSent(t protocol.MsgType)
	ProtocolViolation(t protocol.MsgType)
}

type nopObserver struct{}

func (nopObserver) TickObserved(protocol.State, time.Duration) {}
func (nopObserver) FrameReceived(protocol.MsgType)             {}
func (nopObserver) FrameSent(protocol.MsgType)                 {}
func (nopObserver) ProtocolViolation(protocol.MsgType)         {}

// Option configures a Session.
type Option func(*Session)

// WithObserver reports tick and frame events to o.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.obs = o }
}

// WithRand seeds ball launches from r instead of a random source.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// Session runs one peer of a match: it owns the engine and, online, the
// socket. A UI drives it by calling Tick once per frame.
//
// Session is not safe for concurrent use.
type Session struct {
	cfg config.Config
	eng *Engine
	rng *rand.Rand
	obs Observer

	ln   *transport.Listener // host, until the peer arrives
	conn *transport.Conn

	errMsg string
}

// NewSession creates a session sitting in the menu.
func NewSession(cfg config.Config, opts ...Option) *Session {
	s := &Session{cfg: cfg, obs: nopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	s.eng = NewEngine(cfg.Physics, s.rng)
	return s
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// StartLocal starts a two-player game on this machine. Both paddles follow
// local input and no socket is opened.
func (s *Session) StartLocal() {
	s.Close()
	s.errMsg = ""
	s.eng.Enter(config.RoleLocal, protocol.StatePlaying)
	s.eng.StartMatch()
	util.LogInfo("local match %s started", s.eng.MatchID())
}

// Host listens on port and waits for one peer. Tick accepts it and starts the
// match. Port 0 picks a free port; see ListenAddr.
func (s *Session) Host(ctx context.Context, port int) error {
	s.Close()
	s.errMsg = ""

	addr, err := transport.Resolve(port, "")
	if err != nil {
		return s.fail(err)
	}
	ln, err := transport.Listen(ctx, addr)
	if err != nil {
		return s.fail(err)
	}

	s.ln = ln
	s.eng.Enter(config.RoleHost, protocol.StateWaitingForPeer)
	util.LogInfo("waiting for a peer on %s", ln.Addr())
	return nil
}

// Join connects to a host and enters Playing straight away; the court fills
// in as the host's updates arrive.
func (s *Session) Join(ctx context.Context, host string, port int) error {
	s.Close()
	s.errMsg = ""

	addr, err := transport.Resolve(port, host)
	if err != nil {
		return s.fail(err)
	}
	raw, err := transport.Dial(ctx, addr, s.cfg.DialTimeout)
	if err != nil {
		return s.fail(err)
	}

	s.conn = transport.NewConn(raw, s.connOptions())
	s.eng.Enter(config.RoleClient, protocol.StatePlaying)
	util.LogSuccess("[%08x] connected to host %s", s.conn.Tag(), addr)
	return nil
}

// Close drops any connection or listener and returns to the menu.
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.ln != nil {
		s.ln.Close()
		s.ln = nil
	}
	s.eng.Reset()
}

func (s *Session) connOptions() transport.Options {
	return transport.Options{
		PollTimeout:      s.cfg.PollTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		MaxWriteAttempts: s.cfg.MaxWriteAttempts,
	}
}

// ---------------------------------------------------------------------------
// Tick
// ---------------------------------------------------------------------------

// Tick runs one receive → update → flush cycle and returns what to draw.
// dt is the time since the previous tick in seconds.
func (s *Session) Tick(in Input, dt float32) RenderState {
	start := time.Now()
	state := s.eng.State()

	if s.conn != nil {
		if err := s.conn.Receive(s.handleFrame); err != nil {
			s.fail(err)
		}
	}

	switch s.eng.State() {
	case protocol.StateMenu:
	case protocol.StateWaitingForPeer:
		s.updateWaiting()
	case protocol.StatePlaying:
		s.eng.UpdatePlaying(in, dt)
	case protocol.StatePaused:
		s.eng.UpdatePaused(in)
	}

	before := s.eng.State()
	msgs := s.eng.Commit()
	if after := s.eng.State(); after != before {
		util.LogInfo("%s → %s (pauser %d)", before, after, s.eng.Pauser())
	}

	if s.conn != nil {
		s.send(msgs)
	}

	s.obs.TickObserved(state, time.Since(start))
	return s.Snapshot()
}

func (s *Session) updateWaiting() {
	if s.ln == nil {
		return
	}
	raw, err := s.ln.Poll(s.cfg.PollTimeout)
	if err != nil {
		s.fail(err)
		return
	}
	if raw == nil {
		return
	}

	s.ln.Close()
	s.ln = nil
	s.conn = transport.NewConn(raw, s.connOptions())
	util.LogSuccess("[%08x] peer connected from %s", s.conn.Tag(), s.conn.RemoteAddr())

	s.eng.StartMatch()
	util.LogInfo("match %s started", s.eng.MatchID())
}

func (s *Session) handleFrame(f protocol.Frame) {
	msg, err := protocol.Decode(f)
	if err == nil {
		s.obs.FrameReceived(f.Type)
		err = s.eng.ApplyRemote(msg)
	}
	if err != nil {
		util.Stats.AddViolation()
		s.obs.ProtocolViolation(f.Type)
		util.LogWarning("[%08x] dropped %s frame: %v", s.conn.Tag(), f.Type, err)
	}
}

func (s *Session) send(msgs []protocol.Message) {
	for _, msg := range msgs {
		if err := s.conn.Push(msg); err != nil {
			util.LogWarning("[%08x] %v", s.conn.Tag(), err)
			continue
		}
		s.obs.FrameSent(msg.Type())
	}
	if err := s.conn.Flush(); err != nil {
		s.fail(err)
	}
}

// fail records err for the UI and falls back to the menu.
func (s *Session) fail(err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, transport.ErrPeerClosed):
		msg = "peer disconnected"
	case errors.Is(err, protocol.ErrFrameTooLarge):
		msg = fmt.Sprintf("peer sent a malformed stream: %v", err)
	}

	if s.conn != nil {
		util.LogError("[%08x] %s", s.conn.Tag(), msg)
	} else {
		util.LogError("%s", msg)
	}

	s.Close()
	s.errMsg = msg
	return err
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// State returns the current session state.
func (s *Session) State() protocol.State { return s.eng.State() }

// Role returns the role of the current or last match.
func (s *Session) Role() config.Role { return s.eng.Role() }

// ErrorMessage describes why the last match ended, or is empty.
func (s *Session) ErrorMessage() string { return s.errMsg }

// ListenAddr returns the host's listening address while waiting for a peer.
func (s *Session) ListenAddr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Snapshot returns the drawable state without ticking.
func (s *Session) Snapshot() RenderState {
	rs := s.eng.Snapshot()
	rs.Error = s.errMsg
	return rs
}
