package limiter

import (
	"math"
	"testing"
	"time"

	"televoodoo/quat"
)

func f64(v float64) *float64 { return &v }

func TestFirstPoseAlwaysPassesThrough(t *testing.T) {
	l := New(Limits{VelLimit: f64(1.0)})
	p := Pose{Position: quat.Vec3{X: 5, Y: 5, Z: 5}, Orientation: quat.Identity}
	out, limited := l.Apply(p, time.Unix(0, 0))
	if limited || out.Position != p.Position {
		t.Fatalf("expected unclamped pass-through, got %+v limited=%v", out, limited)
	}
}

// Scenario 5 from the specification's worked examples: vel_limit=1.0 m/s,
// movement_start pose at origin, then 50ms later a pose at (1,0,0) which
// implies 20 m/s. Expect the emitted position (0.05,0,0) and limited=true.
func TestVelocityClampMatchesWorkedExample(t *testing.T) {
	l := New(Limits{VelLimit: f64(1.0)})
	t0 := time.Unix(0, 0)
	t1 := t0.Add(50 * time.Millisecond)

	l.Apply(Pose{Position: quat.Vec3{}, Orientation: quat.Identity}, t0)
	out, limited := l.Apply(Pose{Position: quat.Vec3{X: 1}, Orientation: quat.Identity}, t1)

	if !limited {
		t.Fatalf("expected limited=true")
	}
	if math.Abs(out.Position.X-0.05) > 1e-9 || out.Position.Y != 0 || out.Position.Z != 0 {
		t.Fatalf("expected emitted position (0.05,0,0), got %+v", out.Position)
	}
}

func TestOrientationPassesThroughUnchanged(t *testing.T) {
	l := New(Limits{VelLimit: f64(1.0)})
	q := quat.Normalize(quat.Quat{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9})
	t0 := time.Unix(0, 0)
	l.Apply(Pose{Position: quat.Vec3{}, Orientation: quat.Identity}, t0)
	out, _ := l.Apply(Pose{Position: quat.Vec3{X: 10}, Orientation: q}, t0.Add(10*time.Millisecond))
	if out.Orientation != q {
		t.Fatalf("expected orientation pass-through, got %+v", out.Orientation)
	}
}

func TestAccelerationClampBoundsSpeedChangePerStep(t *testing.T) {
	acc := f64(1.0)
	l := New(Limits{AccLimit: acc})
	t0 := time.Unix(0, 0)

	l.Apply(Pose{Position: quat.Vec3{}}, t0)
	out1, limited1 := l.Apply(Pose{Position: quat.Vec3{X: 5}}, t0.Add(50*time.Millisecond))
	if !limited1 {
		t.Fatalf("expected the first big jump to be acceleration-limited")
	}
	v1 := out1.Position.Norm() / 0.05
	if v1 < 0 || v1 > *acc*0.05+1e-9 {
		t.Fatalf("expected speed after one 50ms step bounded by acc_limit*dt, got %v", v1)
	}

	out2, limited2 := l.Apply(Pose{Position: quat.Vec3{X: 5}}, t0.Add(100*time.Millisecond))
	if !limited2 {
		t.Fatalf("expected the second step, still far from target, to remain limited")
	}
	v2 := out2.Position.Sub(out1.Position).Norm() / 0.05
	if v2 < 0 {
		t.Fatalf("speed must never go negative, got %v", v2)
	}
	if math.Abs(v2-v1) > *acc*0.05+1e-9 {
		t.Fatalf("speed change between steps exceeded acc_limit*dt: v1=%v v2=%v", v1, v2)
	}
}

func TestNonMonotonicTimestampPassesThroughWithoutDisturbingState(t *testing.T) {
	l := New(Limits{VelLimit: f64(1.0)})
	t0 := time.Unix(0, 0)
	l.Apply(Pose{Position: quat.Vec3{}}, t0)
	out, limited := l.Apply(Pose{Position: quat.Vec3{X: 99}}, t0)
	if limited {
		t.Fatalf("expected no clamp on non-advancing timestamp")
	}
	if out.Position.X != 99 {
		t.Fatalf("expected pass-through, got %+v", out.Position)
	}
}

func TestResetClearsReference(t *testing.T) {
	l := New(Limits{VelLimit: f64(1.0)})
	t0 := time.Unix(0, 0)
	l.Apply(Pose{Position: quat.Vec3{}}, t0)
	l.Apply(Pose{Position: quat.Vec3{X: 1}}, t0.Add(50*time.Millisecond))

	l.Reset()
	out, limited := l.Apply(Pose{Position: quat.Vec3{X: 50, Y: 50}}, t0.Add(100*time.Millisecond))
	if limited || out.Position != (quat.Vec3{X: 50, Y: 50}) {
		t.Fatalf("expected unclamped pass-through after reset, got %+v limited=%v", out, limited)
	}
}

// Motion limit soundness: every emitted pair of consecutive positions
// satisfies the velocity bound within a small epsilon.
func TestMotionLimitSoundnessAcrossStream(t *testing.T) {
	velLimit := f64(2.0)
	l := New(Limits{VelLimit: velLimit})
	t0 := time.Unix(0, 0)
	positions := []quat.Vec3{{}, {X: 5}, {X: 5, Y: 5}, {X: -3, Y: 5, Z: 2}, {X: -3, Y: 5, Z: 2}}

	prev := positions[0]
	ts := t0
	l.Apply(Pose{Position: prev}, ts)

	for i := 1; i < len(positions); i++ {
		ts = ts.Add(10 * time.Millisecond)
		out, _ := l.Apply(Pose{Position: positions[i]}, ts)
		dt := 0.01
		dist := out.Position.Sub(prev).Norm()
		if dist/dt > *velLimit+1e-6 {
			t.Fatalf("velocity bound violated: dist=%v dt=%v limit=%v", dist, dt, *velLimit)
		}
		prev = out.Position
	}
}
