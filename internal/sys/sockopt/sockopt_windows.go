//go:build windows

package sockopt

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// SO_EXCLUSIVEADDRUSE is defined as ~SO_REUSEADDR in winsock2.h.
const soExclusiveAddrUse = ^windows.SO_REUSEADDR

// On Windows SO_REUSEADDR lets another socket steal a bound port, so the
// listener asks for exclusive use instead. Rebinding after an abnormal exit
// is already allowed there.
func setReuseAddr(fd uintptr) error {
	if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, soExclusiveAddrUse, 1); err != nil {
		return fmt.Errorf("failed to set SO_EXCLUSIVEADDRUSE: %w", err)
	}
	return nil
}
