package echo

import (
	"context"
	"fmt"
	"net"

	"echofixture/internal/sys/sockopt"
	"golang.org/x/net/netutil"
)

// Listener is a TCP listening socket that hands out exactly one connection.
// It is not safe for concurrent use.
type Listener struct {
	ln       net.Listener
	accepted bool
}

// Listen binds all local interfaces on port with address reuse enabled.
// Port 0 picks an ephemeral port.
func Listen(port int) (*Listener, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	listenAddr := fmt.Sprintf(":%d", port)
	lc := net.ListenConfig{Control: sockopt.ReuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}
	// Accept blocks while a connection is open, independent of the AcceptOne flag.
	return &Listener{ln: netutil.LimitListener(ln, 1)}, nil
}

// AcceptOne blocks until a peer connects. There is no timeout.
func (l *Listener) AcceptOne() (net.Conn, error) {
	if l.accepted {
		return nil, ErrAlreadyAccepted
	}
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("failed to accept connection: %w", err)
	}
	l.accepted = true
	return conn, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Port returns the bound TCP port.
func (l *Listener) Port() int {
	if tcpAddr, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}

// Close releases the listening socket. An accepted connection stays open.
func (l *Listener) Close() error {
	return l.ln.Close()
}
