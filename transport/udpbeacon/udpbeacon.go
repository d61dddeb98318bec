// Package udpbeacon implements the zero-configuration UDP discovery
// beacon (spec §4 "Beacon broadcaster"): a periodic BEACON packet
// carrying the TCP port and host name, sent to the limited broadcast
// address and to every IPv4 interface's directed broadcast so trackers
// on WiFi, USB tethering, or an internet-sharing bridge all see it
// without mDNS. Construction/Run follows the same split as
// transport/tcp.Server.
package udpbeacon

import (
	"context"
	"log/slog"
	"net"
	"time"

	"televoodoo/protocol"
)

const interval = 500 * time.Millisecond

// Config configures a Broadcaster.
type Config struct {
	// Port is the UDP port beacons are sent to on every broadcast address.
	Port int
	// TCPPort is advertised inside the BEACON payload.
	TCPPort uint16
	// Name is the host name advertised inside the BEACON payload.
	Name string
}

// Broadcaster periodically sends BEACON packets until stopped.
type Broadcaster struct {
	cfg  Config
	conn *net.UDPConn
	stop chan struct{}
	done chan struct{}
}

// New builds a Broadcaster. Call Start to begin sending.
func New(cfg Config) *Broadcaster {
	return &Broadcaster{cfg: cfg}
}

// Start opens a UDP socket capable of broadcast and spawns the send
// loop. It returns once the socket is ready; the loop itself runs in
// the background until ctx is canceled or Stop is called.
func (b *Broadcaster) Start(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return err
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return err
	}
	b.conn = conn
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.run(ctx)
	return nil
}

// Stop closes the socket, unblocking the send loop.
func (b *Broadcaster) Stop() error {
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	close(b.stop)
	<-b.done
	return err
}

func (b *Broadcaster) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	payload := protocol.Beacon{TCPPort: b.cfg.TCPPort, Name: b.cfg.Name}.Pack()

	for {
		b.sendOnce(payload)
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case <-ticker.C:
		}
	}
}

func (b *Broadcaster) sendOnce(payload []byte) {
	for _, addr := range b.broadcastAddrs() {
		if _, err := b.conn.WriteToUDP(payload, addr); err != nil {
			slog.Debug("beacon send failed", "addr", addr, "error", err)
		}
	}
}

// broadcastAddrs returns the limited broadcast address plus the
// directed broadcast address of every up, non-loopback IPv4 interface,
// enumerated fresh on every call since interfaces can come and go
// (spec §4 "every IPv4 interface enumerated at send time").
func (b *Broadcaster) broadcastAddrs() []*net.UDPAddr {
	addrs := []*net.UDPAddr{{IP: net.IPv4bcast, Port: b.cfg.Port}}

	ifaces, err := net.Interfaces()
	if err != nil {
		slog.Debug("beacon interface enumeration failed", "error", err)
		return addrs
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		ifAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range ifAddrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			bcast := directedBroadcast(ip4, ipNet.Mask)
			addrs = append(addrs, &net.UDPAddr{IP: bcast, Port: b.cfg.Port})
		}
	}
	return addrs
}

// directedBroadcast computes an interface's broadcast address as
// ip | ^mask.
func directedBroadcast(ip net.IP, mask net.IPMask) net.IP {
	out := make(net.IP, len(ip))
	for i := range ip {
		out[i] = ip[i] | ^mask[i]
	}
	return out
}
