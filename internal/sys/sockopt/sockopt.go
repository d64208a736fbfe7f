// Package sockopt applies socket options to listeners before bind.
package sockopt

import (
	"syscall"
)

// ReuseAddrControl is a net.ListenConfig Control hook enabling address reuse,
// so a restarted fixture can rebind a port still in TIME_WAIT.
func ReuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = setReuseAddr(fd)
	})
	if err != nil {
		return err
	}
	return sockErr
}
