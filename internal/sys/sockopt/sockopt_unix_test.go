//go:build unix

package sockopt

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReuseAddrControl(t *testing.T) {
	lc := net.ListenConfig{Control: ReuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	raw, err := ln.(*net.TCPListener).SyscallConn()
	require.NoError(t, err)

	var enabled bool
	var optErr error
	require.NoError(t, raw.Control(func(fd uintptr) {
		var v int
		v, optErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR)
		enabled = v != 0
	}))
	require.NoError(t, optErr)
	assert.True(t, enabled)
}

func TestReuseAddrControl_DoesNotShareListeningPort(t *testing.T) {
	lc := net.ListenConfig{Control: ReuseAddrControl}
	first, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer first.Close()

	_, err = lc.Listen(context.Background(), "tcp", first.Addr().String())
	assert.Error(t, err)
}
