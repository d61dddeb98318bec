// Package limiter caps the velocity and acceleration of a position stream
// (spec §4.6), passing orientation through unmodified. It follows the
// pure-clamp-with-documented-rule shape of the teacher's
// client/internal/adapt package, but needs enough state between calls
// (reference position, previous velocity, previous timestamp) that the
// rules live as methods on a small struct rather than free functions.
package limiter

import (
	"math"
	"time"

	"televoodoo/quat"
)

// Limits configures the clamp. A nil pointer disables that limit.
type Limits struct {
	VelLimit *float64 // m/s, positive
	AccLimit *float64 // m/s^2, positive, applied symmetrically
}

// Pose is the position/orientation pair the limiter operates on. Only
// Position is modified; Orientation passes through untouched.
type Pose struct {
	Position    quat.Vec3
	Orientation quat.Quat
}

// Limiter holds the reference state needed to enforce continuity across
// calls: the last emitted position, the velocity that produced it, and the
// timestamp of the last incoming pose.
type Limiter struct {
	limits Limits

	primed       bool
	prevTS       time.Time
	prevVelocity float64
	prevEmitted  quat.Vec3
}

// New returns a Limiter with no reference pose. The first call to Apply
// establishes the reference and is never clamped.
func New(limits Limits) *Limiter {
	return &Limiter{limits: limits}
}

// Reset clears all reference state, matching spec §4.6's instruction that
// a movement_start pose resets the motion-limiter reference.
func (l *Limiter) Reset() {
	l.primed = false
	l.prevVelocity = 0
	l.prevEmitted = quat.Vec3{}
}

// Apply clamps pose's position against the reference established by the
// previous call. limited reports whether clamping actually changed the
// emitted position. The first call after New or Reset always returns the
// input unchanged and primes the reference.
func (l *Limiter) Apply(pose Pose, now time.Time) (out Pose, limited bool) {
	if !l.primed {
		l.primed = true
		l.prevTS = now
		l.prevVelocity = 0
		l.prevEmitted = pose.Position
		return pose, false
	}

	dt := now.Sub(l.prevTS).Seconds()
	if dt <= 0 {
		// Non-monotonic or duplicate timestamp: pass through untouched,
		// do not disturb reference state.
		return pose, false
	}

	d := pose.Position.Sub(l.prevEmitted)
	dist := d.Norm()
	v := dist / dt

	if l.limits.AccLimit != nil {
		accel := (v - l.prevVelocity) / dt
		if math.Abs(accel) > *l.limits.AccLimit {
			sign := 1.0
			if accel < 0 {
				sign = -1.0
			}
			v = l.prevVelocity + sign*(*l.limits.AccLimit)*dt
			if v < 0 {
				v = 0
			}
			limited = true
		}
	}

	if l.limits.VelLimit != nil && v > *l.limits.VelLimit {
		v = *l.limits.VelLimit
		limited = true
	}

	emittedPos := pose.Position
	if limited {
		if dist > 0 {
			scale := (v * dt) / dist
			emittedPos = l.prevEmitted.AddScaled(d, scale)
		} else {
			emittedPos = l.prevEmitted
		}
	}

	l.prevVelocity = v
	l.prevTS = now
	l.prevEmitted = emittedPos

	out = Pose{Position: emittedPos, Orientation: pose.Orientation}
	return out, limited
}
