// Package poseprovider turns raw tracker samples into the absolute,
// delta, and velocity views delivered to the user callback (spec §4.5).
// It follows the stateless-function-over-a-small-struct shape used
// throughout the retrieval pack's coordinate-conversion code: a single
// struct carries the little mutable state (origin, velocity reference)
// and every transform is a plain, pure computation over value types.
package poseprovider

import (
	"math"
	"time"

	"televoodoo/config"
	"televoodoo/event"
	"televoodoo/quat"
)

// Sample is one raw tracker reading: position/orientation in the
// tracker's native frame, plus the host's monotonic arrival time.
type Sample struct {
	Timestamp     time.Time
	MovementStart bool
	Position      quat.Vec3
	Orientation   quat.Quat
}

// MinVelocityDT is the default minimum dt below which get_velocity
// refuses to compute a derivative (spec §4.5).
const MinVelocityDT = time.Millisecond

// frameTransform is the cached rotation/translation built from
// Configuration.TargetFrame. Cheap enough to rebuild per call, but a
// PoseProvider builds it once at construction since TargetFrame is
// immutable for the lifetime of a session.
type frameTransform struct {
	translation quat.Vec3
	invRotation quat.Quat
}

func buildFrameTransform(tf *config.TargetFrame) frameTransform {
	if tf == nil {
		return frameTransform{invRotation: quat.Identity}
	}
	qT := quat.FromEulerXYZIntrinsic(quat.Euler{Roll: tf.XRot, Pitch: tf.YRot, Yaw: tf.ZRot})
	return frameTransform{
		translation: quat.Vec3{X: tf.X, Y: tf.Y, Z: tf.Z},
		invRotation: quat.Conjugate(qT),
	}
}

// PoseProvider holds the transform derived from Configuration plus the
// two pieces of state that reset on movement_start: the delta origin
// and the previous sample used for velocity.
type PoseProvider struct {
	cfg       config.Configuration
	transform frameTransform

	origin          *Sample
	prevForVelocity *Sample
}

// New builds a PoseProvider from a session Configuration. No origin is
// established until the first sample arrives.
func New(cfg config.Configuration) *PoseProvider {
	return &PoseProvider{cfg: cfg, transform: buildFrameTransform(cfg.TargetFrame)}
}

func (p *PoseProvider) observe(s Sample) {
	if s.MovementStart || p.origin == nil {
		o := s
		p.origin = &o
		p.prevForVelocity = nil
	}
}

// Reset re-anchors the origin and velocity reference to s directly,
// applying the same movement_start rule observe applies implicitly. The
// pipeline calls this on a movement_start pose rather than relying
// solely on observe, since the resampler's regulated mode never forwards
// that exact pose to GetAbsolute/GetDelta/GetVelocity: PushReal always
// returns emit=false there, so only later, unrelated ticks would
// otherwise decide what the new gesture's origin is.
func (p *PoseProvider) Reset(s Sample) {
	o := s
	o.MovementStart = true
	p.origin = &o
	p.prevForVelocity = nil
}

// transformPosition applies invRotation·(pos-translation), axis scale,
// and global scale, in that order (spec §4.5).
func (p *PoseProvider) transformPosition(pos quat.Vec3) quat.Vec3 {
	shifted := pos.Sub(p.transform.translation)
	rotated := quat.RotateVector(shifted, p.transform.invRotation)
	scaled := quat.Vec3{
		X: rotated.X * p.cfg.OutputAxes.X,
		Y: rotated.Y * p.cfg.OutputAxes.Y,
		Z: rotated.Z * p.cfg.OutputAxes.Z,
	}
	return scaled.Scale(p.cfg.Scale)
}

func (p *PoseProvider) transformOrientation(q quat.Quat) quat.Quat {
	return quat.Normalize(quat.Multiply(p.transform.invRotation, q))
}

// fillRotationFields populates the rotation-vector and Euler-degree
// sub-fields shared by absolute and delta views.
func fillRotationFields(f *event.PoseFields, q quat.Quat) {
	rv := quat.ToRotVec(q)
	f.RX, f.RY, f.RZ = rv.X, rv.Y, rv.Z
	e := quat.ToEulerXYZ(q)
	const rad2deg = 180 / math.Pi
	f.XRotDeg = e.Roll * rad2deg
	f.YRotDeg = e.Pitch * rad2deg
	f.ZRotDeg = e.Yaw * rad2deg
}

// GetAbsolute returns the fully transformed absolute pose for s,
// re-anchoring the origin/velocity reference first if s starts a new
// gesture (spec §4.5 get_absolute).
func (p *PoseProvider) GetAbsolute(s Sample) event.PoseFields {
	p.observe(s)

	pos := p.transformPosition(s.Position)
	q := p.transformOrientation(s.Orientation)

	out := event.PoseFields{MovementStart: s.MovementStart, X: pos.X, Y: pos.Y, Z: pos.Z,
		Qx: q.X, Qy: q.Y, Qz: q.Z, Qw: q.W}
	fillRotationFields(&out, q)
	return out
}

// GetDelta returns the pose displacement from the current origin. When no
// origin has been established yet, s itself becomes the origin (so its
// delta is zero) before the delta is computed; ok is therefore true.
func (p *PoseProvider) GetDelta(s Sample) (out event.PoseFields, ok bool) {
	p.observe(s)
	if p.origin == nil {
		return event.PoseFields{}, false
	}

	originPos := p.transformPosition(p.origin.Position)
	curPos := p.transformPosition(s.Position)
	dPos := curPos.Sub(originPos)

	originQ := p.transformOrientation(p.origin.Orientation)
	curQ := p.transformOrientation(s.Orientation)
	dQ := quat.Delta(originQ, curQ, "base")

	out = event.PoseFields{MovementStart: s.MovementStart, X: dPos.X, Y: dPos.Y, Z: dPos.Z,
		Qx: dQ.X, Qy: dQ.Y, Qz: dQ.Z, Qw: dQ.W}
	fillRotationFields(&out, dQ)
	return out, true
}

// GetVelocity returns the linear/angular derivative between s and the
// previous sample, in scaled units/s. Reports ok=false when dt is below
// minDT (default MinVelocityDT), and zero velocities (ok=true) on
// movement_start, per spec §4.5.
func (p *PoseProvider) GetVelocity(s Sample, minDT time.Duration) (out event.Velocity, ok bool) {
	if minDT <= 0 {
		minDT = MinVelocityDT
	}
	p.observe(s)

	if s.MovementStart {
		p.prevForVelocity = &Sample{Timestamp: s.Timestamp, Position: s.Position, Orientation: s.Orientation}
		return event.Velocity{MovementStart: true}, true
	}

	prev := p.prevForVelocity
	p.prevForVelocity = &Sample{Timestamp: s.Timestamp, Position: s.Position, Orientation: s.Orientation}
	if prev == nil {
		return event.Velocity{}, false
	}

	dt := s.Timestamp.Sub(prev.Timestamp)
	if dt < minDT {
		return event.Velocity{}, false
	}
	dtSeconds := dt.Seconds()

	curPos := p.transformPosition(s.Position)
	prevPos := p.transformPosition(prev.Position)
	dPos := curPos.Sub(prevPos)

	curQ := p.transformOrientation(s.Orientation)
	prevQ := p.transformOrientation(prev.Orientation)
	angDelta := quat.ToRotVec(quat.Delta(prevQ, curQ, "base"))

	out = event.Velocity{
		Vx: dPos.X / dtSeconds, Vy: dPos.Y / dtSeconds, Vz: dPos.Z / dtSeconds,
		Wx: angDelta.X / dtSeconds, Wy: angDelta.Y / dtSeconds, Wz: angDelta.Z / dtSeconds,
		DtSeconds: dtSeconds,
	}
	return out, true
}
