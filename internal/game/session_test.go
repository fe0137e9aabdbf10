package game

import (
	"context"
	"math/rand/v2"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/1ureka/netpong/internal/config"
	"github.com/1ureka/netpong/internal/protocol"
)

const testDt = float32(1.0 / 60)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.PollTimeout = 2 * time.Millisecond
	cfg.WriteTimeout = 50 * time.Millisecond
	cfg.DialTimeout = time.Second
	return cfg
}

type recorder struct {
	ticks, received, sent, violations int
}

func (r *recorder) TickObserved(protocol.State, time.Duration) { r.ticks++ }
func (r *recorder) FrameReceived(protocol.MsgType)             { r.received++ }
func (r *recorder) FrameSent(protocol.MsgType)                 { r.sent++ }
func (r *recorder) ProtocolViolation(protocol.MsgType)         { r.violations++ }

// tickUntil ticks every session with empty input until cond holds.
func tickUntil(t *testing.T, what string, cond func() bool, sessions ...*Session) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		for _, s := range sessions {
			s.Tick(Input{}, testDt)
		}
	}
}

func hostPort(t *testing.T, s *Session) int {
	t.Helper()
	addr, ok := s.ListenAddr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("ListenAddr() = %v", s.ListenAddr())
	}
	return addr.Port
}

// connectedPair returns a host and a client that are both playing.
func connectedPair(t *testing.T, hostObs, clientObs Observer) (*Session, *Session) {
	t.Helper()
	ctx := context.Background()

	host := NewSession(testConfig(), WithObserver(hostObs), WithRand(rand.New(rand.NewPCG(7, 7))))
	if err := host.Host(ctx, 0); err != nil {
		t.Fatalf("Host failed: %v", err)
	}
	t.Cleanup(host.Close)
	if host.State() != protocol.StateWaitingForPeer {
		t.Fatalf("host state = %s, want WaitingForPeer", host.State())
	}

	client := NewSession(testConfig(), WithObserver(clientObs))
	if err := client.Join(ctx, "127.0.0.1", hostPort(t, host)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	t.Cleanup(client.Close)
	if client.State() != protocol.StatePlaying {
		t.Fatalf("client state = %s, want Playing", client.State())
	}

	tickUntil(t, "host to accept", func() bool { return host.State() == protocol.StatePlaying }, host)
	if host.ListenAddr() != nil {
		t.Error("host still listening after accepting a peer")
	}
	return host, client
}

func TestSessionMirrorsHost(t *testing.T) {
	hostObs, clientObs := &recorder{}, &recorder{}
	host, client := connectedPair(t, hostObs, clientObs)

	tickUntil(t, "client to receive the ball", func() bool {
		return client.Snapshot().Ball.Vel.X != 0
	}, host, client)

	if v := client.Snapshot().Ball.Vel.X; v != 200 && v != -200 {
		t.Errorf("client ball vel.x = %v, want ±200", v)
	}
	if hostObs.sent == 0 || clientObs.received == 0 {
		t.Errorf("host sent %d, client received %d", hostObs.sent, clientObs.received)
	}
	if hostObs.violations != 0 || clientObs.violations != 0 {
		t.Errorf("violations: host %d, client %d", hostObs.violations, clientObs.violations)
	}

	// The client's paddle reaches the host.
	rs := client.Tick(Input{1: {Down: true}}, 0.25)
	want := rs.Players[1].Pos
	if want != 275 {
		t.Fatalf("client paddle at %v, want 275", want)
	}
	tickUntil(t, "host to see the client paddle", func() bool {
		return host.Snapshot().Players[1].Pos == want
	}, host)
}

func TestSessionPauseAcrossPeers(t *testing.T) {
	host, client := connectedPair(t, &recorder{}, &recorder{})

	rs := client.Tick(Input{1: {Pause: true}}, testDt)
	if rs.State != protocol.StatePaused || rs.Pauser != 1 {
		t.Fatalf("client after pause: %s/%d", rs.State, rs.Pauser)
	}
	tickUntil(t, "host to pause", func() bool { return host.State() == protocol.StatePaused }, host)
	if host.Snapshot().Pauser != 1 {
		t.Errorf("host pauser = %d, want 1", host.Snapshot().Pauser)
	}

	// The host did not pause, so its resume key does nothing.
	for i := 0; i < 5; i++ {
		host.Tick(Input{0: {Pause: true}}, testDt)
		client.Tick(Input{}, testDt)
	}
	if host.State() != protocol.StatePaused || client.State() != protocol.StatePaused {
		t.Fatalf("non-pauser resumed: host %s, client %s", host.State(), client.State())
	}

	if rs := client.Tick(Input{1: {Pause: true}}, testDt); rs.State != protocol.StatePlaying {
		t.Fatalf("client after resume: %s", rs.State)
	}
	tickUntil(t, "host to resume", func() bool { return host.State() == protocol.StatePlaying }, host)
}

func TestSessionPeerDisconnect(t *testing.T) {
	host, client := connectedPair(t, &recorder{}, &recorder{})

	client.Close()
	if client.State() != protocol.StateMenu || client.ErrorMessage() != "" {
		t.Errorf("closing side: %s %q", client.State(), client.ErrorMessage())
	}

	tickUntil(t, "host to notice", func() bool { return host.State() == protocol.StateMenu }, host)
	if host.ErrorMessage() == "" {
		t.Error("no error message after peer disconnect")
	}
	if rs := host.Tick(Input{}, testDt); rs.Error != host.ErrorMessage() || rs.State != protocol.StateMenu {
		t.Errorf("render state = %s %q", rs.State, rs.Error)
	}
}

func TestSessionProtocolViolations(t *testing.T) {
	obs := &recorder{}
	host := NewSession(testConfig(), WithObserver(obs))
	if err := host.Host(context.Background(), 0); err != nil {
		t.Fatalf("Host failed: %v", err)
	}
	t.Cleanup(host.Close)

	raw, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(hostPort(t, host))))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer raw.Close()
	tickUntil(t, "host to accept", func() bool { return host.State() == protocol.StatePlaying }, host)

	var stream []byte
	stream = protocol.AppendRaw(stream, protocol.MsgType(9), []byte{1, 2, 3, 4})
	stream = protocol.AppendMessage(stream, protocol.PlayerPos{Pos: 10, Player: 0})
	stream = protocol.AppendMessage(stream, protocol.BallUpdate{})
	stream = protocol.AppendMessage(stream, protocol.PlayerPos{Pos: 77, Player: 1})
	if _, err := raw.Write(stream); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	tickUntil(t, "the valid frame", func() bool { return host.Snapshot().Players[1].Pos == 77 }, host)
	if obs.violations != 3 {
		t.Errorf("violations = %d, want 3", obs.violations)
	}
	if host.State() != protocol.StatePlaying {
		t.Errorf("violations ended the match: %s", host.State())
	}
	if host.Snapshot().Players[0].Pos != 200 {
		t.Errorf("peer moved the host paddle to %v", host.Snapshot().Players[0].Pos)
	}
}

func TestSessionIgnoresLocalStateAnnouncements(t *testing.T) {
	hostObs := &recorder{}
	host, client := connectedPair(t, hostObs, &recorder{})

	for _, st := range []protocol.State{protocol.StateWaitingForPeer, protocol.StateMenu} {
		if err := client.conn.Push(protocol.StateUpdate{State: st, Player: 1}); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}
	if err := client.conn.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	tickUntil(t, "both announcements", func() bool { return hostObs.violations == 2 }, host)
	host.Tick(Input{}, testDt)

	if host.State() != protocol.StatePlaying {
		t.Errorf("host state = %s, want Playing", host.State())
	}
	if host.conn == nil || host.ErrorMessage() != "" {
		t.Errorf("host lost its peer: %q", host.ErrorMessage())
	}
}

func TestSessionWaitingWithoutListener(t *testing.T) {
	s := NewSession(testConfig())
	s.eng.Enter(config.RoleClient, protocol.StateWaitingForPeer)

	if rs := s.Tick(Input{}, testDt); rs.State != protocol.StateWaitingForPeer {
		t.Errorf("state = %s, want WaitingForPeer", rs.State)
	}
}

func TestSessionJoinRefused(t *testing.T) {
	probe := NewSession(testConfig())
	if err := probe.Host(context.Background(), 0); err != nil {
		t.Fatalf("Host failed: %v", err)
	}
	port := hostPort(t, probe)
	probe.Close()

	s := NewSession(testConfig())
	if err := s.Join(context.Background(), "127.0.0.1", port); err == nil {
		t.Fatal("Join to a closed port succeeded")
	}
	if s.State() != protocol.StateMenu || s.ErrorMessage() == "" {
		t.Errorf("after failed join: %s %q", s.State(), s.ErrorMessage())
	}
}

func TestSessionWaitingWithoutPeer(t *testing.T) {
	s := NewSession(testConfig())
	if err := s.Host(context.Background(), 0); err != nil {
		t.Fatalf("Host failed: %v", err)
	}
	defer s.Close()

	for i := 0; i < 3; i++ {
		if rs := s.Tick(Input{0: {Down: true, Pause: true}}, testDt); rs.State != protocol.StateWaitingForPeer {
			t.Fatalf("tick %d: state %s", i, rs.State)
		}
	}
}

func TestSessionLocal(t *testing.T) {
	obs := &recorder{}
	s := NewSession(testConfig(), WithObserver(obs))
	s.StartLocal()

	rs := s.Tick(Input{0: {Down: true}, 1: {Up: true}}, 0.25)
	if rs.Role != config.RoleLocal || rs.State != protocol.StatePlaying {
		t.Fatalf("role/state = %s/%s", rs.Role, rs.State)
	}
	if rs.Players[0].Pos != 275 || rs.Players[1].Pos != 125 {
		t.Errorf("paddles at %v/%v, want 275/125", rs.Players[0].Pos, rs.Players[1].Pos)
	}
	if rs.MatchID == "" {
		t.Error("no match id")
	}
	if obs.sent != 0 || obs.ticks != 1 {
		t.Errorf("sent=%d ticks=%d, want 0/1", obs.sent, obs.ticks)
	}

	// Either local player can pause; only the same one resumes.
	s.Tick(Input{1: {Pause: true}}, testDt)
	if s.State() != protocol.StatePaused {
		t.Fatalf("state = %s, want Paused", s.State())
	}
	s.Tick(Input{0: {Pause: true}}, testDt)
	if s.State() != protocol.StatePaused {
		t.Fatal("player 0 resumed player 1's pause")
	}
	s.Tick(Input{1: {Pause: true}}, testDt)
	if s.State() != protocol.StatePlaying {
		t.Fatalf("state = %s, want Playing", s.State())
	}

	s.Close()
	if s.State() != protocol.StateMenu {
		t.Errorf("state after Close = %s", s.State())
	}
}
