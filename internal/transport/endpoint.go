package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Resolve turns port and an optional host into a TCP address. With an empty
// host the result is the wildcard address to listen on; otherwise it is the
// peer to connect to.
func Resolve(port int, host string) (*net.TCPAddr, error) {
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q port %d: %w", host, port, err)
	}
	return addr, nil
}

// Listener is the host's listening socket. It hands out at most one peer per
// Poll and never blocks longer than the poll timeout.
type Listener struct {
	ln *net.TCPListener
}

// Listen creates a socket with SO_REUSEPORT, binds it to addr and listens.
func Listen(ctx context.Context, addr *net.TCPAddr) (*Listener, error) {
	lc := net.ListenConfig{Control: reusePort}
	ln, err := lc.Listen(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Listener{ln: ln.(*net.TCPListener)}, nil
}

// Poll waits up to timeout for an incoming connection. It returns (nil, nil)
// when nobody connected in time.
func (l *Listener) Poll(timeout time.Duration) (net.Conn, error) {
	if err := l.ln.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("failed to set accept deadline: %w", err)
	}

	conn, err := l.ln.AcceptTCP()
	if err != nil {
		if IsWouldBlock(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("accept error: %w", err)
	}

	conn.SetNoDelay(true)
	return conn, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() *net.TCPAddr {
	return l.ln.Addr().(*net.TCPAddr)
}

// Close stops listening.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Dial connects to addr, giving up after timeout or when ctx is done.
func Dial(ctx context.Context, addr *net.TCPAddr, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return conn, nil
}

// IsWouldBlock reports whether err only means "nothing ready yet": a read,
// write or accept deadline ran out. Such errors are retried next tick.
func IsWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
