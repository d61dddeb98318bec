// Package ble implements the BLE-GATT tracker transport (spec §4.3): a
// single primary service with eight characteristics carrying the same
// unframed TELE messages as UDP. No platform BLE stack (CoreBluetooth,
// BlueZ) appears in the retrieval pack or is in scope here, so
// Peripheral holds all the protocol/session logic and drives it
// against a small GATTAdapter interface that a real platform binding
// would implement — the same shape as transport/tcp.Server driving a
// net.Conn, but over notify/write instead of a byte stream.
package ble

import (
	"sync"
	"time"

	"televoodoo/config"
	"televoodoo/event"
	"televoodoo/poseprovider"
	"televoodoo/protocol"
)

// ServiceUUID is the primary GATT service advertised by the peripheral.
const ServiceUUID = "1C8FD138-FC18-4846-954D-E509366AEF61"

// Characteristic identifies one of the eight GATT characteristics by
// its UUID suffix (spec §4.3).
type Characteristic string

const (
	CharControl   Characteristic = "62"
	CharAuth      Characteristic = "63"
	CharPose      Characteristic = "64"
	CharHeartbeat Characteristic = "65"
	CharCommand   Characteristic = "66"
	CharHaptic    Characteristic = "67"
	CharConfig    Characteristic = "68"
)

const (
	heartbeatInterval = 500 * time.Millisecond
	silenceTimeout    = 3 * time.Second
)

// GATTAdapter is implemented by a real platform BLE binding (BlueZ,
// CoreBluetooth, ...). Peripheral calls it to push notifications;
// the adapter calls Peripheral.HandleWrite when a central writes to
// one of the advertised characteristics.
type GATTAdapter interface {
	NotifyHeartbeat(payload []byte) error
	NotifyHaptic(payload []byte) error
	NotifyConfig(payload []byte) error
}

// Peripheral is the BLE tracker transport. Authentication is a single
// 6-byte AUTH write compared against Code; no session handshake beyond
// that exists on this transport (spec §4.3 has no HELLO/ACK pair).
type Peripheral struct {
	adapter GATTAdapter
	code    string
	config  config.Configuration

	mu            sync.Mutex
	authenticated bool
	lastSeen      time.Time
	heartbeatSeq  uint32
	startedAt     time.Time

	rawPoses chan poseprovider.Sample
	events   chan event.Event

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds a Peripheral bound to adapter. code is the bearer code an
// AUTH write must match; cfg is pushed via NotifyConfig once, when Start
// runs. GATTAdapter has no subscription callback, so a central that
// subscribes later is not sent the config again until SendConfig.
func New(adapter GATTAdapter, code string, cfg config.Configuration) *Peripheral {
	return &Peripheral{
		adapter:  adapter,
		code:     code,
		config:   cfg,
		rawPoses: make(chan poseprovider.Sample, 1),
		events:   make(chan event.Event, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RawPoses is the latest-value, size-1 channel of decoded POSE samples.
func (p *Peripheral) RawPoses() <-chan poseprovider.Sample { return p.rawPoses }

// Events delivers session lifecycle, command, and diagnostic events.
func (p *Peripheral) Events() <-chan event.Event { return p.events }

// Start advertises the service, publishes the initial config, and
// begins the heartbeat loop. It does not block.
func (p *Peripheral) Start() error {
	p.mu.Lock()
	p.startedAt = time.Now()
	p.mu.Unlock()

	p.emit(event.NewTag(event.TagBLEAdvertising))

	if payload, err := marshalConfig(p.config); err == nil {
		p.adapter.NotifyConfig(payload)
	}

	go p.heartbeatLoop()
	return nil
}

// Stop ends the heartbeat loop and the active session, if any.
func (p *Peripheral) Stop() error {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
	p.mu.Lock()
	wasAuthenticated := p.authenticated
	p.authenticated = false
	p.mu.Unlock()
	if wasAuthenticated {
		p.emit(event.NewDisconnected("connection_closed"))
	}
	close(p.events)
	return nil
}

func (p *Peripheral) heartbeatLoop() {
	defer close(p.done)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	silenceCheck := time.NewTicker(silenceTimeout / 3)
	defer silenceCheck.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sendHeartbeat()
		case <-silenceCheck.C:
			p.checkSilence()
		}
	}
}

func (p *Peripheral) sendHeartbeat() {
	p.mu.Lock()
	p.heartbeatSeq++
	seq := p.heartbeatSeq
	uptimeMs := uint32(time.Since(p.startedAt) / time.Millisecond)
	p.mu.Unlock()

	hb := protocol.Heartbeat{Counter: seq, UptimeMs: uptimeMs}
	p.adapter.NotifyHeartbeat(hb.Pack())
}

// checkSilence ends an authenticated session that has gone quiet for
// longer than silenceTimeout (spec §4 "On UDP/BLE paths a session
// times out after 3 s of silence").
func (p *Peripheral) checkSilence() {
	p.mu.Lock()
	authenticated := p.authenticated
	stale := authenticated && time.Since(p.lastSeen) > silenceTimeout
	if stale {
		p.authenticated = false
	}
	p.mu.Unlock()
	if stale {
		p.emit(event.NewDisconnected("timeout"))
	}
}

// HandleWrite decodes a write to one of the advertised characteristics
// and applies it. The adapter calls this from whatever goroutine the
// platform BLE stack delivers writes on.
func (p *Peripheral) HandleWrite(ch Characteristic, data []byte) {
	switch ch {
	case CharAuth:
		p.handleAuth(data)
	case CharPose:
		p.handlePose(data)
	case CharCommand:
		p.handleCommand(data)
	case CharControl:
		// Legacy text control commands: accepted and ignored.
	}
}

func (p *Peripheral) handleAuth(data []byte) {
	code := string(data)
	for len(code) > 0 && code[len(code)-1] == 0 {
		code = code[:len(code)-1]
	}
	ok := code == p.code

	p.mu.Lock()
	p.authenticated = ok
	if ok {
		p.lastSeen = time.Now()
	}
	p.mu.Unlock()

	if ok {
		p.emit(event.NewTag(event.TagBLEAuthOK))
		p.emit(event.NewSession(p.config.AuthName, p.config.AuthCode, "ble", 0))
	} else {
		p.emit(event.NewTag(event.TagBLEAuthFailed))
	}
}

func (p *Peripheral) handlePose(data []byte) {
	if !p.touchIfAuthenticated() {
		return
	}
	msg, err := protocol.Parse(data)
	if err != nil {
		return
	}
	pose, ok := msg.(protocol.Pose)
	if !ok {
		return
	}
	sample := poseprovider.Sample{
		Timestamp:     time.UnixMicro(int64(pose.TimestampUs)),
		MovementStart: pose.MovementStart,
		Position:      vec3(pose.X, pose.Y, pose.Z),
		Orientation:   quatFromWire(pose.Qx, pose.Qy, pose.Qz, pose.Qw),
	}
	trySendPoseLatest(p.rawPoses, sample)
}

func (p *Peripheral) handleCommand(data []byte) {
	if !p.touchIfAuthenticated() {
		return
	}
	msg, err := protocol.Parse(data)
	if err != nil {
		return
	}
	cmd, ok := msg.(protocol.Cmd)
	if !ok {
		return
	}
	name := "unknown"
	switch cmd.CmdType {
	case protocol.CmdRecording:
		name = "recording"
	case protocol.CmdKeepRecording:
		name = "keep_recording"
	}
	p.emit(event.NewCommand(name, cmd.Value != 0))
}

func (p *Peripheral) touchIfAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authenticated {
		return false
	}
	p.lastSeen = time.Now()
	return true
}

// SendHaptic clamps intensity to [0,1] and notifies HAPTIC, mirroring
// the TCP server's send_haptic semantics (spec §4.3 "Haptic and config
// publication mirror the TCP server's semantics").
func (p *Peripheral) SendHaptic(intensity float32, channel uint8) {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}
	p.mu.Lock()
	authenticated := p.authenticated
	p.mu.Unlock()
	if !authenticated {
		return
	}
	haptic := protocol.Haptic{Intensity: intensity, Channel: channel}
	p.adapter.NotifyHaptic(haptic.Pack())
}

// SendConfig updates the stored config and notifies CONFIG.
func (p *Peripheral) SendConfig(cfg config.Configuration) {
	p.mu.Lock()
	p.config = cfg
	p.mu.Unlock()
	payload, err := marshalConfig(cfg)
	if err != nil {
		return
	}
	p.adapter.NotifyConfig(payload)
}

func (p *Peripheral) emit(e event.Event) {
	trySendEvent(p.events, e)
}
