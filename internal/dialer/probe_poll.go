//go:build darwin || linux

package dialer

import (
	"net"

	"golang.org/x/sys/unix"
)

// pollReadable polls the descriptor without blocking.
func pollReadable(c net.Conn) bool {
	rc := sysConn(c)
	if rc == nil {
		return false
	}
	readable := false
	err := rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 0)
		readable = err == nil && n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
	})
	return err == nil && readable
}
