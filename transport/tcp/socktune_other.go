//go:build !linux

package tcp

import (
	"net"
	"time"
)

// tuneSocket applies the portable half of spec §4.2's socket tuning
// contract (TCP_NODELAY, SO_KEEPALIVE, small buffers). Non-Linux targets
// don't expose TCP_KEEPIDLE/INTVL/CNT/QUICKACK through net.TCPConn; the
// mac-family equivalent is the single idle-timer knob Go's runtime
// already drives via SetKeepAlivePeriod, used here in place of the three
// discrete Linux knobs.
func tuneSocket(conn *net.TCPConn) error {
	if err := conn.SetNoDelay(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlivePeriod(time.Duration(keepIdleSeconds) * time.Second); err != nil {
		return err
	}
	if err := conn.SetReadBuffer(sendRecvBufBytes); err != nil {
		return err
	}
	return conn.SetWriteBuffer(sendRecvBufBytes)
}
