package resampler

import (
	"math"
	"testing"
	"time"

	"televoodoo/quat"
)

func approx(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestBufferRequiresTwoSamplesForPair(t *testing.T) {
	b := NewBuffer()
	if _, _, ok := b.Pair(); ok {
		t.Fatalf("expected no pair before any push")
	}
	b.Push(Sample{Timestamp: time.Unix(0, 0)})
	if _, _, ok := b.Pair(); ok {
		t.Fatalf("expected no pair after a single push")
	}
	b.Push(Sample{Timestamp: time.Unix(0, 0).Add(10 * time.Millisecond)})
	if _, _, ok := b.Pair(); !ok {
		t.Fatalf("expected a pair after two pushes")
	}
}

func TestExpectedIntervalDefaultsWhenEmpty(t *testing.T) {
	b := NewBuffer()
	if got := b.ExpectedInterval(); got != defaultExpectedInterval {
		t.Fatalf("expected default interval, got %v", got)
	}
}

func TestResetClearsBuffer(t *testing.T) {
	b := NewBuffer()
	b.Push(Sample{Timestamp: time.Unix(0, 0)})
	b.Push(Sample{Timestamp: time.Unix(0, 0).Add(10 * time.Millisecond)})
	b.Reset()
	if _, _, ok := b.Pair(); ok {
		t.Fatalf("expected no pair after reset")
	}
}

func TestNonRegulatedForwardsRealPoseSynchronously(t *testing.T) {
	r := New(Config{})
	t0 := time.Unix(0, 0)
	out, emit := r.PushReal(Sample{Timestamp: t0, Position: quat.Vec3{X: 1}, Orientation: quat.Identity})
	if !emit || out.Position.X != 1 {
		t.Fatalf("expected immediate forward, got emit=%v out=%+v", emit, out)
	}
}

func TestRegulatedDoesNotEmitOnPushReal(t *testing.T) {
	r := New(Config{Regulated: true, UpsampleHz: 100})
	_, emit := r.PushReal(Sample{Timestamp: time.Unix(0, 0)})
	if emit {
		t.Fatalf("expected regulated mode to never emit directly on PushReal")
	}
}

// Scenario 6 from the specification's worked examples: upsample_to_hz=200,
// regulated=true, real poses fed at 50 Hz moving +0.01 in x each sample.
// At the mid-point between two real samples (2.5ms after the latest),
// the extrapolated x should be within 1e-4 of x_last + 0.0025*v.
func TestUpsamplerInterpolatesAtMidpoint(t *testing.T) {
	r := New(Config{Regulated: true, UpsampleHz: 200})
	t0 := time.Unix(0, 0)
	samplePeriod := 20 * time.Millisecond // 50 Hz

	r.PushReal(Sample{Timestamp: t0, Position: quat.Vec3{X: 0}, Orientation: quat.Identity})
	t1 := t0.Add(samplePeriod)
	r.PushReal(Sample{Timestamp: t1, Position: quat.Vec3{X: 0.01}, Orientation: quat.Identity})

	mid := t1.Add(2500 * time.Microsecond)
	out, emit := r.Tick(mid)
	if !emit {
		t.Fatalf("expected a tick to emit")
	}

	v := 0.01 / samplePeriod.Seconds()
	want := 0.01 + 0.0025*v
	if !approx(out.Position.X, want, 1e-4) {
		t.Fatalf("expected x ~= %v, got %v", want, out.Position.X)
	}
	if out.MovementStart {
		t.Fatalf("extrapolated poses must carry movement_start=false")
	}
}

// Continuation of scenario 6: after real poses stop arriving for 200ms,
// the safety cutoff engages and subsequent regulated emissions hold the
// last real pose unchanged.
func TestUpsamplerCutoffHoldsLastPoseInRegulatedMode(t *testing.T) {
	r := New(Config{Regulated: true, UpsampleHz: 200})
	t0 := time.Unix(0, 0)
	samplePeriod := 20 * time.Millisecond

	r.PushReal(Sample{Timestamp: t0, Position: quat.Vec3{X: 0}, Orientation: quat.Identity})
	t1 := t0.Add(samplePeriod)
	last := Sample{Timestamp: t1, Position: quat.Vec3{X: 0.01}, Orientation: quat.Identity}
	r.PushReal(last)

	farFuture := t1.Add(200 * time.Millisecond)
	out, emit := r.Tick(farFuture)
	if !emit {
		t.Fatalf("expected regulated mode to keep emitting through the cutoff")
	}
	if out.Position != last.Position {
		t.Fatalf("expected held position %+v, got %+v", last.Position, out.Position)
	}
}

func TestNonRegulatedCutoffEmitsNothing(t *testing.T) {
	r := New(Config{UpsampleHz: 200})
	t0 := time.Unix(0, 0)
	samplePeriod := 20 * time.Millisecond

	r.PushReal(Sample{Timestamp: t0, Position: quat.Vec3{X: 0}, Orientation: quat.Identity})
	t1 := t0.Add(samplePeriod)
	r.PushReal(Sample{Timestamp: t1, Position: quat.Vec3{X: 0.01}, Orientation: quat.Identity})

	farFuture := t1.Add(200 * time.Millisecond)
	_, emit := r.Tick(farFuture)
	if emit {
		t.Fatalf("expected non-regulated cutoff to suppress output entirely")
	}
}

func TestInputJitterMsZeroBeforeTwoArrivals(t *testing.T) {
	r := New(Config{})
	if got := r.InputJitterMs(); got != 0 {
		t.Fatalf("expected zero jitter before two arrivals, got %v", got)
	}
	r.PushReal(Sample{Timestamp: time.Unix(0, 0)})
	if got := r.InputJitterMs(); got != 0 {
		t.Fatalf("expected zero jitter after a single arrival, got %v", got)
	}
}

func TestInputJitterMsReflectsArrivalSpread(t *testing.T) {
	r := New(Config{})
	t0 := time.Unix(0, 0)
	r.PushReal(Sample{Timestamp: t0})
	r.PushReal(Sample{Timestamp: t0.Add(20 * time.Millisecond)})
	r.PushReal(Sample{Timestamp: t0.Add(30 * time.Millisecond)})
	if got := r.InputJitterMs(); got <= 0 {
		t.Fatalf("expected positive jitter for uneven gaps, got %v", got)
	}
}

func TestDroppedCountsNonRegulatedCutoffs(t *testing.T) {
	r := New(Config{UpsampleHz: 200})
	t0 := time.Unix(0, 0)
	r.PushReal(Sample{Timestamp: t0, Position: quat.Vec3{X: 0}, Orientation: quat.Identity})
	t1 := t0.Add(20 * time.Millisecond)
	r.PushReal(Sample{Timestamp: t1, Position: quat.Vec3{X: 0.01}, Orientation: quat.Identity})

	r.Tick(t1.Add(200 * time.Millisecond))
	if got := r.Dropped(); got != 1 {
		t.Fatalf("expected one dropped tick, got %v", got)
	}
}

func TestExtrapolatedPoseCarriesForwardLastRealLimitedFlag(t *testing.T) {
	r := New(Config{Regulated: true, UpsampleHz: 200})
	t0 := time.Unix(0, 0)
	samplePeriod := 20 * time.Millisecond

	r.PushReal(Sample{Timestamp: t0, Position: quat.Vec3{X: 0}, Orientation: quat.Identity})
	t1 := t0.Add(samplePeriod)
	r.PushReal(Sample{Timestamp: t1, Position: quat.Vec3{X: 0.01}, Orientation: quat.Identity, Limited: true})

	mid := t1.Add(2500 * time.Microsecond)
	out, emit := r.Tick(mid)
	if !emit {
		t.Fatalf("expected a tick to emit")
	}
	if !out.Limited {
		t.Fatalf("expected extrapolated pose to carry forward the last real pose's Limited flag")
	}
}

func TestHeldCutoffPoseCarriesForwardLastRealLimitedFlag(t *testing.T) {
	r := New(Config{Regulated: true, UpsampleHz: 200})
	t0 := time.Unix(0, 0)
	samplePeriod := 20 * time.Millisecond

	r.PushReal(Sample{Timestamp: t0, Position: quat.Vec3{X: 0}, Orientation: quat.Identity})
	t1 := t0.Add(samplePeriod)
	r.PushReal(Sample{Timestamp: t1, Position: quat.Vec3{X: 0.01}, Orientation: quat.Identity, Limited: true})

	farFuture := t1.Add(200 * time.Millisecond)
	out, emit := r.Tick(farFuture)
	if !emit {
		t.Fatalf("expected regulated mode to keep emitting through the cutoff")
	}
	if !out.Limited {
		t.Fatalf("expected held pose to carry forward the last real pose's Limited flag")
	}
}

func TestResetClearsResamplerBuffer(t *testing.T) {
	r := New(Config{})
	t0 := time.Unix(0, 0)
	r.PushReal(Sample{Timestamp: t0, Position: quat.Vec3{X: 1}})
	r.PushReal(Sample{Timestamp: t0.Add(10 * time.Millisecond), Position: quat.Vec3{X: 2}})
	r.Reset()
	if _, _, ok := r.buf.Pair(); ok {
		t.Fatalf("expected Reset to clear the real-pose buffer")
	}
}

func TestRateGateThrottlesEmission(t *testing.T) {
	r := New(Config{RateLimitHz: 10}) // max one emission per 100ms
	t0 := time.Unix(0, 0)
	_, emit1 := r.PushReal(Sample{Timestamp: t0, Position: quat.Vec3{X: 1}})
	_, emit2 := r.PushReal(Sample{Timestamp: t0.Add(10 * time.Millisecond), Position: quat.Vec3{X: 2}})
	_, emit3 := r.PushReal(Sample{Timestamp: t0.Add(150 * time.Millisecond), Position: quat.Vec3{X: 3}})

	if !emit1 {
		t.Fatalf("expected first pose to pass the rate gate")
	}
	if emit2 {
		t.Fatalf("expected second pose within 100ms to be throttled")
	}
	if !emit3 {
		t.Fatalf("expected third pose after 150ms to pass the rate gate")
	}
}
