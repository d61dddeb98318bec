// Package televoodoo wires the protocol codec, transports, motion
// limiter, resampler, and pose transformer into the host API surface
// described in spec §6.2: StartSession builds and starts the pipeline,
// returning a SessionHandle immediately rather than blocking, the way
// server/server.go separates NewServer from its blocking Run and then
// hands callers something to hold instead of a process-global
// "current server" lookup.
package televoodoo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"televoodoo/config"
	"televoodoo/diag"
	"televoodoo/event"
	"televoodoo/limiter"
	"televoodoo/metrics"
	"televoodoo/poseprovider"
	"televoodoo/resampler"
	"televoodoo/transport/ble"
	"televoodoo/transport/tcp"
	"televoodoo/transport/udpbeacon"
)

// Connection selects which transport a session uses.
type Connection string

const (
	// ConnAuto starts the TCP server plus its UDP discovery beacon. It
	// covers WiFi and USB-tethered trackers alike; BLE requires an
	// explicit adapter (spec §1 places platform BLE stacks out of scope),
	// so auto never starts a BLE peripheral on its own.
	ConnAuto Connection = "auto"
	ConnTCP  Connection = "tcp"
	ConnBLE  Connection = "ble"
)

const (
	defaultTCPAddr    = ":50000"
	defaultBeaconPort = 50001
)

// StartConfig configures a session (spec §6.2's start_session).
type StartConfig struct {
	// Callback receives every event the pipeline produces. Required.
	Callback func(event.Event)

	Connection Connection
	// TCPAddr is the TCP listen address, used by ConnAuto and ConnTCP.
	// Defaults to ":50000".
	TCPAddr string
	// BeaconPort is the UDP port the discovery beacon broadcasts to.
	// Zero selects the default, 50001. A negative value disables the beacon.
	BeaconPort int
	// BLEAdapter is required when Connection is ConnBLE; it is the
	// platform GATT binding Peripheral drives.
	BLEAdapter ble.GATTAdapter

	// Config is the session's Configuration record (spec §3.1). Zero
	// value is filled with config.Default() and a random auth_name/code.
	Config config.Configuration

	// DiagAddr, if non-empty, starts the /health, /api/session, /metrics
	// HTTP surface on this address.
	DiagAddr string
}

// SessionHandle is the live, owned reference to a running session
// (spec §9's registry-with-owner-reference redesign in place of a
// global "active server" lookup). SendHaptic/SendConfig/Stop are
// methods on it rather than free functions against process state.
type SessionHandle struct {
	cfg StartConfig

	cancel context.CancelFunc
	done   chan struct{}

	tcpServer *tcp.Server
	beacon    *udpbeacon.Broadcaster
	blePeriph *ble.Peripheral
	diagSrv   *diag.Server
	metrics   *metrics.Metrics
	provider  *poseprovider.PoseProvider

	mu     sync.Mutex
	status diag.SessionStatus
}

// StartSession builds the pipeline described in spec §2/§5 —
// transport → motion limiter → resampler → pose transform → user
// callback — and starts it. It returns once every component has begun
// listening/advertising; callers that want to block the way spec
// §6.2's start_session describes call Wait on the returned handle.
func StartSession(cfg StartConfig) (*SessionHandle, error) {
	if cfg.Callback == nil {
		return nil, fmt.Errorf("televoodoo: Callback is required")
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = defaultTCPAddr
	}
	if cfg.BeaconPort == 0 {
		cfg.BeaconPort = defaultBeaconPort
	}
	if cfg.Connection == "" {
		cfg.Connection = ConnAuto
	}
	if cfg.Connection == ConnBLE && cfg.BLEAdapter == nil {
		return nil, fmt.Errorf("televoodoo: ConnBLE requires a BLEAdapter")
	}
	sessionConfig := cfg.Config
	if sessionConfig.Scale == 0 {
		sessionConfig.Scale = 1.0
	}
	if sessionConfig.OutputAxes == (config.AxisScale{}) {
		sessionConfig.OutputAxes = config.AxisScale{X: 1, Y: 1, Z: 1}
	}
	sessionConfig.EnsureAuth()

	ctx, cancel := context.WithCancel(context.Background())
	h := &SessionHandle{
		cfg:     cfg,
		cancel:  cancel,
		done:    make(chan struct{}),
		metrics: metrics.New(),
	}

	// pipelineEvents is the single channel every event reaches the user
	// callback through, buffered per spec §5/§9 so a slow callback never
	// stalls the transport accept loop. It's built before any transport
	// starts so even startup events (beacon-started) flow through the
	// same dispatchLoop as everything else.
	pipelineEvents := make(chan event.Event, 64)

	var rawPoses <-chan poseprovider.Sample
	var transportEvents <-chan event.Event

	switch cfg.Connection {
	case ConnBLE:
		h.blePeriph = ble.New(cfg.BLEAdapter, sessionConfig.AuthCode, sessionConfig)
		if err := h.blePeriph.Start(); err != nil {
			cancel()
			return nil, fmt.Errorf("televoodoo: ble start: %w", err)
		}
		rawPoses = h.blePeriph.RawPoses()
		transportEvents = h.blePeriph.Events()

	case ConnTCP, ConnAuto:
		h.tcpServer = tcp.New(tcp.Config{Addr: cfg.TCPAddr, Code: sessionConfig.AuthCode, InitialConfig: sessionConfig})
		if err := h.tcpServer.Start(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("televoodoo: tcp start: %w", err)
		}
		rawPoses = h.tcpServer.RawPoses()
		transportEvents = h.tcpServer.Events()

		if cfg.BeaconPort > 0 {
			h.beacon = udpbeacon.New(udpbeacon.Config{Port: cfg.BeaconPort, TCPPort: uint16(tcpPort(cfg.TCPAddr)), Name: sessionConfig.AuthName})
			if err := h.beacon.Start(ctx); err != nil {
				slog.Warn("beacon start failed", "error", err)
			} else {
				trySendEvent(pipelineEvents, event.NewTag(event.TagBeaconStarted))
			}
		}

	default:
		cancel()
		return nil, fmt.Errorf("televoodoo: unknown connection %q", cfg.Connection)
	}

	if cfg.DiagAddr != "" {
		h.diagSrv = diag.New(h.metrics, h)
		go h.diagSrv.Run(ctx, cfg.DiagAddr)
	}

	lim := limiter.New(limiter.Limits{VelLimit: sessionConfig.VelLimit, AccLimit: sessionConfig.AccLimit})
	resamp := resampler.New(resamplerConfig(sessionConfig))
	h.provider = poseprovider.New(sessionConfig)

	go h.runLimiterAndResampler(ctx, rawPoses, lim, resamp, pipelineEvents)
	if upsampleHz(sessionConfig) > 0 {
		go resamp.RunUpsampler(ctx, func(s resampler.Sample) {
			h.metrics.ResamplerEmissions.WithLabelValues("extrapolated").Inc()
			h.emitTransformed(s, pipelineEvents)
		})
	}
	go h.relayTransportEvents(ctx, transportEvents, pipelineEvents)
	go h.dispatchLoop(ctx, pipelineEvents)
	go h.reportTelemetry(ctx, resamp)

	return h, nil
}

func resamplerConfig(cfg config.Configuration) resampler.Config {
	rc := resampler.Config{Regulated: cfg.Regulated}
	if cfg.UpsampleToFrequencyHz != nil {
		rc.UpsampleHz = *cfg.UpsampleToFrequencyHz
	}
	if cfg.RateLimitFrequencyHz != nil {
		rc.RateLimitHz = *cfg.RateLimitFrequencyHz
	}
	return rc
}

func upsampleHz(cfg config.Configuration) float64 {
	if cfg.UpsampleToFrequencyHz == nil {
		return 0
	}
	return *cfg.UpsampleToFrequencyHz
}

// runLimiterAndResampler is the limiter → resampler half of the
// pipeline: every raw pose is clamped, fed into the resampler's real-
// pose buffer, and — in non-regulated mode — forwarded synchronously.
func (h *SessionHandle) runLimiterAndResampler(ctx context.Context, rawPoses <-chan poseprovider.Sample, lim *limiter.Limiter, resamp *resampler.Resampler, out chan<- event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-rawPoses:
			if !ok {
				return
			}
			h.metrics.PosesDecoded.WithLabelValues(h.transportLabel()).Inc()
			h.touchLastSeen()

			if raw.MovementStart {
				// A new gesture resets the limiter's velocity/position
				// reference and the resampler's real-pose buffer before
				// either sees this pose.
				lim.Reset()
				resamp.Reset()
			}

			limited, wasLimited := lim.Apply(limiter.Pose{Position: raw.Position, Orientation: raw.Orientation}, raw.Timestamp)
			if wasLimited {
				h.metrics.LimiterClamps.Inc()
				trySendEvent(out, event.NewWarning(event.TagMotionLimitWarning, "motion limiter clamped this pose"))
			}
			clamped := resampler.Sample{
				Timestamp:     raw.Timestamp,
				MovementStart: raw.MovementStart,
				Position:      limited.Position,
				Orientation:   limited.Orientation,
				Limited:       wasLimited,
			}

			if raw.MovementStart {
				// Re-anchor the pose provider's origin/velocity reference
				// to this exact pose directly: in regulated mode PushReal
				// below always returns emit=false, so this pose would
				// otherwise never reach GetAbsolute/GetDelta/GetVelocity's
				// implicit re-anchor, leaving the new gesture's delta
				// computed against the previous gesture's last position.
				h.provider.Reset(poseprovider.Sample{
					Timestamp:   clamped.Timestamp,
					Position:    clamped.Position,
					Orientation: clamped.Orientation,
				})
			}

			forwarded, emit := resamp.PushReal(clamped)
			if emit {
				h.metrics.ResamplerEmissions.WithLabelValues("real").Inc()
				h.emitTransformed(forwarded, out)
			}
		}
	}
}

// emitTransformed runs the pose-transform stage (spec §4.5, the "(+
// PoseProv)" annotation on the callback in spec §2's diagram) and
// queues the resulting event.
func (h *SessionHandle) emitTransformed(s resampler.Sample, out chan<- event.Event) {
	sample := poseprovider.Sample{Timestamp: s.Timestamp, MovementStart: s.MovementStart, Position: s.Position, Orientation: s.Orientation}

	data := event.PoseData{AbsoluteInput: h.provider.GetAbsolute(sample), Limited: s.Limited}
	if delta, ok := h.provider.GetDelta(sample); ok {
		data.Delta = &delta
	}
	if vel, ok := h.provider.GetVelocity(sample, poseprovider.MinVelocityDT); ok {
		data.Velocity = &vel
	}
	trySendEvent(out, event.NewPose(data))
}

func (h *SessionHandle) relayTransportEvents(ctx context.Context, in <-chan event.Event, out chan<- event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-in:
			if !ok {
				return
			}
			if e.Tag == event.TagConnected {
				h.metrics.SessionsTotal.Inc()
				h.setConnected(true, h.transportLabel())
			}
			if e.Tag == event.TagDisconnected {
				h.setConnected(false, "")
			}
			if e.Tag == event.TagSessionRejected && e.Rejected != nil {
				h.metrics.SessionsRejected.WithLabelValues(e.Rejected.Reason).Inc()
			}
			trySendEvent(out, e)
		}
	}
}

func (h *SessionHandle) dispatchLoop(ctx context.Context, in <-chan event.Event) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-in:
			if !ok {
				return
			}
			h.invokeCallback(e)
		}
	}
}

// invokeCallback recovers from a panicking user callback, matching
// channel_state.go's trySend recover pattern (spec §7: "Callback
// exception ... swallow; do not break the pipeline").
func (h *SessionHandle) invokeCallback(e event.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("callback panicked", "recovered", r)
		}
	}()
	h.cfg.Callback(e)
}

// reportTelemetry samples the resampler's streaming statistics into the
// input_jitter_ms and achieved_output_hz gauges and the dropped-tick
// counter once a second until ctx is cancelled.
func (h *SessionHandle) reportTelemetry(ctx context.Context, resamp *resampler.Resampler) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastDropped int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.metrics.InputJitterMs.Set(resamp.InputJitterMs())
			if meanSeconds, count := resamp.AchievedRate(); count > 0 && meanSeconds > 0 {
				h.metrics.AchievedOutputHz.Set(1 / meanSeconds)
			}
			if dropped := resamp.Dropped(); dropped > lastDropped {
				h.metrics.ResamplerDropped.Add(float64(dropped - lastDropped))
				lastDropped = dropped
			}
		}
	}
}

func (h *SessionHandle) touchLastSeen() {
	h.mu.Lock()
	h.status.LastSeen = time.Now()
	h.mu.Unlock()
}

func (h *SessionHandle) setConnected(connected bool, transport string) {
	h.mu.Lock()
	h.status.Connected = connected
	h.status.Transport = transport
	h.mu.Unlock()
}

func (h *SessionHandle) transportLabel() string {
	if h.cfg.Connection == ConnBLE {
		return "ble"
	}
	return "tcp"
}

// SessionStatus implements diag.StatusProvider.
func (h *SessionHandle) SessionStatus() diag.SessionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// SendHaptic pushes a haptic pulse to the active transport (spec §6.2
// send_haptic). The transport clamps intensity to [0,1]; no rescaling from
// another input range is applied.
func (h *SessionHandle) SendHaptic(intensity float32, channel uint8) {
	if h.tcpServer != nil {
		h.tcpServer.SendHaptic(intensity, channel)
	}
	if h.blePeriph != nil {
		h.blePeriph.SendHaptic(intensity, channel)
	}
}

// SendConfig pushes an updated Configuration (spec §6.2 send_config).
func (h *SessionHandle) SendConfig(cfg config.Configuration) {
	if h.tcpServer != nil {
		h.tcpServer.SendConfig(cfg)
	}
	if h.blePeriph != nil {
		h.blePeriph.SendConfig(cfg)
	}
}

// Wait blocks until the session stops, for callers that want
// start_session's original blocking behavior.
func (h *SessionHandle) Wait() { <-h.done }

// Stop tears down every owned resource: transport, beacon, diag server,
// and pipeline goroutines (spec §6.2 stop_session / spec §9 "Scoped
// resources").
func (h *SessionHandle) Stop() error {
	h.cancel()
	if h.tcpServer != nil {
		h.tcpServer.Stop()
	}
	if h.beacon != nil {
		h.beacon.Stop()
	}
	if h.blePeriph != nil {
		h.blePeriph.Stop()
	}
	<-h.done
	return nil
}

func trySendEvent(ch chan<- event.Event, e event.Event) {
	select {
	case ch <- e:
	case <-time.After(50 * time.Millisecond):
		slog.Debug("event dropped: consumer not keeping up", "type", e.Tag)
	}
}

func tcpPort(addr string) int {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			n := 0
			for _, c := range addr[i+1:] {
				if c < '0' || c > '9' {
					return 0
				}
				n = n*10 + int(c-'0')
			}
			return n
		}
	}
	return 0
}
