// Package tcp implements the TCP tracker-to-host transport (spec §4.2):
// a single-session accept loop, HELLO/ACK/BYE handshake, and framed
// message dispatch. Construction (New) is split from Start, which spawns
// the accept loop and returns, the way the teacher's server/server.go
// separates NewServer from running the server, and the
// single in-flight session plus its BUSY-ACK-and-close admission policy
// mirrors the teacher's one-room invariant in server/room.go.
package tcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"televoodoo/config"
	"televoodoo/event"
	"televoodoo/poseprovider"
	"televoodoo/protocol"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. ":50000".
	Addr string
	// Code is the pairing code a HELLO must present.
	Code string
	// InitialConfig is pushed as CONFIG immediately after a successful ACK.
	InitialConfig config.Configuration
}

// Server is the TCP tracker transport. It admits at most one session at
// a time; a HELLO arriving while a session is active is answered BUSY.
type Server struct {
	cfg Config

	mu      sync.Mutex
	ln      net.Listener
	session *session
	stopped bool
	wg      sync.WaitGroup

	rawPoses chan poseprovider.Sample
	events   chan event.Event
}

// session holds per-connection state (spec §3.3).
type session struct {
	traceID       string
	conn          *net.TCPConn
	id            uint32
	lastSeen      time.Time
	config        config.Configuration
	writeMu       sync.Mutex
	seqLastLogged uint16
}

// New builds a Server. Call Start to begin listening.
func New(cfg Config) *Server {
	return &Server{
		cfg:      cfg,
		rawPoses: make(chan poseprovider.Sample, 1),
		events:   make(chan event.Event, 64),
	}
}

// RawPoses is the latest-value, size-1 channel of decoded POSE samples
// (spec §5's "transport → chan RawPose (size 1, latest-wins)").
func (s *Server) RawPoses() <-chan poseprovider.Sample { return s.rawPoses }

// Events delivers session lifecycle, command, and diagnostic events.
func (s *Server) Events() <-chan event.Event { return s.events }

// Start opens the listening socket and spawns the accept loop. It is
// idempotent: calling Start twice on an already-started Server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ln != nil {
		s.mu.Unlock()
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.ln = ln
	s.mu.Unlock()

	s.emit(event.NewTag(event.TagServerListening))
	slog.Info("tcp server listening", "addr", s.cfg.Addr)

	go s.acceptLoop(ctx)
	return nil
}

// Stop closes the active session (sending BYE with its stored session
// id, per spec §4.2), tears down the listener, and is safe to call more
// than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	ln := s.ln
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess != nil {
		s.sendLocked(sess, protocol.Bye{SessionID: sess.id})
		sess.conn.Close()
	}
	if ln != nil {
		ln.Close()
	}
	// Wait for every in-flight handleConn/sessionLoop goroutine to notice
	// its connection is gone and return before closing events: those
	// goroutines still emit on a normal exit, and emitting into a closed
	// channel panics.
	s.wg.Wait()
	s.emit(event.NewTag(event.TagServerStopped))
	close(s.events)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("tcp accept error", "error", err)
			continue
		}
		tcpConn, ok := conn.(*net.TCPConn)
		if !ok {
			conn.Close()
			continue
		}
		if err := tuneSocket(tcpConn); err != nil {
			slog.Warn("tcp socket tuning failed", "error", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, tcpConn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn *net.TCPConn) {
	traceID := uuid.New().String()
	log := slog.With("trace_id", traceID, "remote", conn.RemoteAddr().String())

	conn.SetReadDeadline(time.Now().Add(helloDeadline))
	raw, err := protocol.ReadFrameBytes(conn)
	if err != nil {
		log.Warn("hello read failed", "error", err)
		s.emit(event.NewDisconnected("hello_timeout"))
		conn.Close()
		return
	}

	msg, err := protocol.Parse(raw)
	if err != nil {
		log.Warn("hello parse failed", "error", err)
		s.emit(event.NewDisconnected("invalid_hello"))
		conn.Close()
		return
	}
	hello, ok := msg.(protocol.Hello)
	if !ok {
		log.Warn("expected hello, got different message type")
		s.emit(event.NewDisconnected("invalid_hello"))
		conn.Close()
		return
	}

	s.mu.Lock()
	if s.session != nil {
		s.mu.Unlock()
		writeFrame(conn, protocol.Ack{Status: protocol.StatusBusy, MinVer: protocol.MinSupportedVer, MaxVer: protocol.MaxSupportedVer})
		conn.Close()
		s.emit(event.NewRejected("busy"))
		return
	}
	s.mu.Unlock()

	ver, _ := protocol.HeaderVersion(raw)
	if ver < protocol.MinSupportedVer || ver > protocol.MaxSupportedVer {
		writeFrame(conn, protocol.Ack{Status: protocol.StatusVersionMismatch, MinVer: protocol.MinSupportedVer, MaxVer: protocol.MaxSupportedVer})
		conn.Close()
		s.emit(event.NewRejected("version_mismatch"))
		return
	}
	if hello.CodeString() != s.cfg.Code {
		writeFrame(conn, protocol.Ack{Status: protocol.StatusBadCode, MinVer: protocol.MinSupportedVer, MaxVer: protocol.MaxSupportedVer})
		conn.Close()
		s.emit(event.NewRejected("bad_code"))
		return
	}

	sess := &session{
		traceID:  traceID,
		conn:     conn,
		id:       hello.SessionID,
		lastSeen: time.Now(),
		config:   s.cfg.InitialConfig,
	}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.sendLocked(sess, protocol.Ack{Status: protocol.StatusOK, MinVer: protocol.MinSupportedVer, MaxVer: protocol.MaxSupportedVer})
	cfgJSON, _ := marshalConfig(sess.config)
	s.sendLocked(sess, protocol.Config{JSON: cfgJSON})

	s.emit(event.NewSession(s.cfg.InitialConfig.AuthName, s.cfg.InitialConfig.AuthCode, "tcp", tcpPort(s.cfg.Addr)))
	s.emit(event.NewTag(event.TagConnected))
	log.Info("session established", "session_id", sess.id)

	s.sessionLoop(ctx, sess, log)
}

func (s *Server) sessionLoop(ctx context.Context, sess *session, log *slog.Logger) {
	defer func() {
		s.mu.Lock()
		if s.session == sess {
			s.session = nil
		}
		s.mu.Unlock()
		sess.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sess.conn.SetReadDeadline(time.Now().Add(readDeadline))
		msg, err := protocol.ReadFrame(sess.conn)
		if err != nil {
			log.Info("session ended", "reason", "connection_closed", "error", err)
			s.emit(event.NewDisconnected("connection_closed"))
			return
		}
		sess.lastSeen = time.Now()

		switch m := msg.(type) {
		case protocol.Pose:
			s.forwardPose(sess, m, log)
		case protocol.Cmd:
			s.forwardCommand(m)
		case protocol.Bye:
			if m.SessionID == sess.id {
				log.Info("session ended", "reason", "bye")
				s.emit(event.NewDisconnected("bye"))
				return
			}
			// Mismatched BYE is ignored (spec §4.2 step 6).
		default:
			log.Warn("unexpected message type on session", "type", msg.Type())
		}
	}
}

func (s *Server) forwardPose(sess *session, p protocol.Pose, log *slog.Logger) {
	// A gap in Seq means the tracker dropped or reordered a frame upstream
	// of us; log it once per gap rather than once per pose so a long run
	// of loss doesn't spam the log at tracker rate.
	if sess.seqLastLogged != 0 && p.Seq != sess.seqLastLogged+1 {
		log.Warn("pose sequence gap", "expected", sess.seqLastLogged+1, "got", p.Seq)
	}
	sess.seqLastLogged = p.Seq

	sample := poseprovider.Sample{
		Timestamp:     time.UnixMicro(int64(p.TimestampUs)),
		MovementStart: p.MovementStart,
		Position:      vec3(p.X, p.Y, p.Z),
		Orientation:   quatFromWire(p.Qx, p.Qy, p.Qz, p.Qw),
	}
	trySendPoseLatest(s.rawPoses, sample)
}

func (s *Server) forwardCommand(c protocol.Cmd) {
	name := "unknown"
	switch c.CmdType {
	case protocol.CmdRecording:
		name = "recording"
	case protocol.CmdKeepRecording:
		name = "keep_recording"
	}
	s.emit(event.NewCommand(name, c.Value != 0))
}

// SendHaptic pushes a HAPTIC message to the active session. intensity is
// clamped to [0,1]; a no-op when there is no authenticated session
// (spec §4.2 send_haptic).
func (s *Server) SendHaptic(intensity float32, channel uint8) {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return
	}
	s.sendLocked(sess, protocol.Haptic{Intensity: intensity, Channel: channel})
}

// SendConfig replaces the active session's config snapshot with patch and
// pushes it as a CONFIG message (spec §4.2 send_config). Fields are not
// merged with the previous snapshot. A no-op with no active session.
func (s *Server) SendConfig(patch config.Configuration) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return
	}
	sess.config = patch
	cfgJSON, err := marshalConfig(patch)
	if err != nil {
		return
	}
	s.sendLocked(sess, protocol.Config{JSON: cfgJSON})
}

func (s *Server) sendLocked(sess *session, msg protocol.Message) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := writeFrame(sess.conn, msg); err != nil {
		slog.Warn("tcp write failed", "trace_id", sess.traceID, "error", err)
	}
}

func writeFrame(conn net.Conn, msg protocol.Message) error {
	return protocol.WriteFrame(conn, msg)
}

func (s *Server) emit(e event.Event) {
	trySendEvent(s.events, e)
}

// trySendPoseLatest implements the drop-oldest, non-blocking send for a
// size-1 latest-value channel, grounded on server/internal/core's
// trySend helper: here a stale pose is a value to discard immediately
// rather than a delivery to retry.
func trySendPoseLatest(ch chan poseprovider.Sample, v poseprovider.Sample) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// trySendEvent blocks for up to 50ms waiting for room in the events
// channel, then drops the event with a debug log, so a wedged consumer
// never stalls the transport.
func trySendEvent(ch chan event.Event, e event.Event) {
	select {
	case ch <- e:
	case <-time.After(50 * time.Millisecond):
		slog.Debug("event dropped: consumer not keeping up", "type", e.Tag)
	}
}
