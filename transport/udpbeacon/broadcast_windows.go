//go:build windows

package udpbeacon

import "net"

// enableBroadcast is a no-op on windows; net.ListenUDP sockets there
// already permit broadcast sends without SO_BROADCAST.
func enableBroadcast(conn *net.UDPConn) error {
	return nil
}
