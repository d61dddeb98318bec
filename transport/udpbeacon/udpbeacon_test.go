package udpbeacon

import (
	"context"
	"net"
	"testing"
	"time"

	"televoodoo/protocol"
)

func TestBroadcasterSendsBeaconToListener(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	port := listener.LocalAddr().(*net.UDPAddr).Port

	b := New(Config{Port: port, TCPPort: 50000, Name: "voodoo42"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := protocol.Parse(buf[:n])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	beacon, ok := msg.(protocol.Beacon)
	if !ok {
		t.Fatalf("expected Beacon, got %T", msg)
	}
	if beacon.TCPPort != 50000 || beacon.Name != "voodoo42" {
		t.Fatalf("unexpected beacon payload: %+v", beacon)
	}
}

func TestBroadcastAddrsIncludesLimitedBroadcast(t *testing.T) {
	b := New(Config{Port: 50001})
	addrs := b.broadcastAddrs()
	found := false
	for _, a := range addrs {
		if a.IP.Equal(net.IPv4bcast) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected limited broadcast address 255.255.255.255 in %v", addrs)
	}
}

func TestDirectedBroadcastComputation(t *testing.T) {
	ip := net.IPv4(192, 168, 1, 42).To4()
	mask := net.CIDRMask(24, 32)
	got := directedBroadcast(ip, mask)
	want := net.IPv4(192, 168, 1, 255).To4()
	if !got.Equal(want) {
		t.Fatalf("directedBroadcast(%v, %v) = %v, want %v", ip, mask, got, want)
	}
}

func TestStopUnblocksRunLoop(t *testing.T) {
	b := New(Config{Port: 59999, TCPPort: 1, Name: "x"})
	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return promptly")
	}
}
