package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/1ureka/netpong/internal/protocol"
)

var testOpts = Options{
	PollTimeout:      5 * time.Millisecond,
	WriteTimeout:     50 * time.Millisecond,
	MaxWriteAttempts: 4,
}

// loopbackPair listens on an ephemeral loopback port, dials it and accepts.
func loopbackPair(t *testing.T) (host net.Conn, client net.Conn) {
	t.Helper()

	addr, err := Resolve(0, "127.0.0.1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	ln, err := Listen(context.Background(), addr)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	// Nobody has dialed yet: Poll must come back empty, not fail.
	if conn, err := ln.Poll(time.Millisecond); conn != nil || err != nil {
		t.Fatalf("empty Poll = (%v, %v), want (nil, nil)", conn, err)
	}

	client, err = Dial(context.Background(), ln.Addr(), time.Second)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for host == nil {
		if time.Now().After(deadline) {
			t.Fatal("Poll never returned the dialed connection")
		}
		host, err = ln.Poll(10 * time.Millisecond)
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
	}

	t.Cleanup(func() {
		host.Close()
		client.Close()
	})
	return host, client
}

// receiveUntil keeps calling Receive until want frames arrived or time runs out.
func receiveUntil(t *testing.T, c *Conn, want int) []protocol.Message {
	t.Helper()

	var got []protocol.Message
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < want && time.Now().Before(deadline) {
		err := c.Receive(func(f protocol.Frame) {
			msg, err := protocol.Decode(f)
			if err != nil {
				t.Errorf("Decode failed: %v", err)
				return
			}
			got = append(got, msg)
		})
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
	}
	return got
}

func TestResolve(t *testing.T) {
	addr, err := Resolve(8080, "")
	if err != nil {
		t.Fatalf("Resolve wildcard failed: %v", err)
	}
	if addr.Port != 8080 || (addr.IP != nil && !addr.IP.IsUnspecified()) {
		t.Errorf("wildcard address = %v", addr)
	}

	addr, err = Resolve(9000, "127.0.0.1")
	if err != nil {
		t.Fatalf("Resolve loopback failed: %v", err)
	}
	if !addr.IP.IsLoopback() || addr.Port != 9000 {
		t.Errorf("loopback address = %v", addr)
	}
}

func TestDialRefused(t *testing.T) {
	addr, err := Resolve(0, "127.0.0.1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	ln, err := Listen(context.Background(), addr)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	closed := ln.Addr()
	ln.Close()

	if _, err := Dial(context.Background(), closed, time.Second); err == nil {
		t.Fatal("Dial to a closed port succeeded")
	}
}

func TestConnRoundTrip(t *testing.T) {
	hostRaw, clientRaw := loopbackPair(t)
	host := NewConn(hostRaw, testOpts)
	client := NewConn(clientRaw, testOpts)

	sent := []protocol.Message{
		protocol.PlayerPos{Pos: 42, VertVelocity: -300, Player: 1},
		protocol.StateUpdate{State: protocol.StatePaused, Player: 1},
	}
	for _, m := range sent {
		if err := client.Push(m); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}
	if err := client.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if client.Pending() != 0 {
		t.Errorf("Pending() = %d after flush", client.Pending())
	}

	got := receiveUntil(t, host, len(sent))
	if len(got) != len(sent) {
		t.Fatalf("received %d messages, want %d", len(got), len(sent))
	}
	for i := range sent {
		if got[i] != sent[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], sent[i])
		}
	}
}

func TestConnReceiveNothing(t *testing.T) {
	hostRaw, _ := loopbackPair(t)
	host := NewConn(hostRaw, testOpts)

	calls := 0
	if err := host.Receive(func(protocol.Frame) { calls++ }); err != nil {
		t.Fatalf("idle Receive returned %v", err)
	}
	if calls != 0 {
		t.Errorf("handler called %d times on an idle connection", calls)
	}
}

func TestConnFrameSpanningTicks(t *testing.T) {
	hostRaw, clientRaw := loopbackPair(t)
	host := NewConn(hostRaw, testOpts)

	msg := protocol.BallUpdate{Pos: protocol.Vec2{X: 1, Y: 2}, Vel: protocol.Vec2{X: 3, Y: 4}}
	frame := protocol.EncodeMessage(msg)

	if _, err := clientRaw.Write(frame[:11]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	// Give the bytes time to land, then make sure nothing is delivered early.
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if err := host.Receive(func(f protocol.Frame) { t.Fatalf("partial frame delivered: %+v", f) }); err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
	}

	if _, err := clientRaw.Write(frame[11:]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got := receiveUntil(t, host, 1)
	if len(got) != 1 || got[0] != msg {
		t.Fatalf("got %+v, want [%+v]", got, msg)
	}
}

func TestConnPeerClosed(t *testing.T) {
	hostRaw, clientRaw := loopbackPair(t)
	host := NewConn(hostRaw, testOpts)
	client := NewConn(clientRaw, testOpts)

	if err := client.Push(protocol.ScoreUpdate{Score: 1, Player: 0}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if err := client.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	client.Close()
	client.Close() // second close is a no-op

	var got []protocol.Frame
	closed := false
	deadline := time.Now().Add(2 * time.Second)
	for !closed && time.Now().Before(deadline) {
		err := host.Receive(func(f protocol.Frame) { got = append(got, f) })
		if errors.Is(err, ErrPeerClosed) {
			closed = true
			continue
		}
		if err != nil {
			t.Fatalf("Receive failed with %v, want ErrPeerClosed", err)
		}
	}

	if !closed {
		t.Fatal("peer close was never reported")
	}
	if len(got) != 1 {
		t.Errorf("frames before close = %d, want 1", len(got))
	}
}
