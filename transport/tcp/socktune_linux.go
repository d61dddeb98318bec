//go:build linux

package tcp

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocket applies spec §4.2's socket tuning contract: TCP_NODELAY,
// SO_KEEPALIVE, ~32KiB send/receive buffers, plus the Linux-specific
// keepalive timers and TCP_QUICKACK. Grounded on the connFd+SyscallConn
// pattern used throughout facebook-time's protocol/timestamp.go for
// reaching the raw descriptor behind a net.Conn.
func tuneSocket(conn *net.TCPConn) error {
	if err := conn.SetNoDelay(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := conn.SetReadBuffer(sendRecvBufBytes); err != nil {
		return err
	}
	if err := conn.SetWriteBuffer(sendRecvBufBytes); err != nil {
		return err
	}

	sc, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	err = sc.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, keepIdleSeconds)
		if opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, keepIntervalSeconds)
		if opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, keepCount)
		if opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
