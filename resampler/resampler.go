// Package resampler upsamples and rate-limits the pose stream between the
// motion limiter and the user callback (spec §4.7). The two-slot real-pose
// buffer and its priming/staleness handling port the ring-buffer-plus-
// rolling-window shape of the teacher's client/internal/jitter package to
// a buffer of depth two; the upsampling goroutine's drift-free scheduling
// and the achieved-rate telemetry reuse the teacher's adapt-style "compute
// a number from a short rolling window" idiom.
package resampler

import (
	"context"
	"time"

	"github.com/eclesh/welford"

	"televoodoo/quat"
)

// Sample is one pose, real or extrapolated, with its timestamp.
type Sample struct {
	Timestamp     time.Time
	MovementStart bool
	Position      quat.Vec3
	Orientation   quat.Quat

	// Limited reports whether this sample reflects a motion-limiter clamp.
	// For a real pose it is the clamp decision made on that pose directly.
	// An extrapolated or held tick has no clamp decision of its own, so it
	// carries forward the most recent real pose's flag instead (spec §3.6
	// only specifies the flag per pose sub-record, not how synthetic
	// samples should report it).
	Limited bool
}

const maxIntervalWindow = 10
const defaultExpectedInterval = time.Second / 30

// Buffer is the bounded 2-element ring of spec §3.4: the two most recent
// real poses plus a rolling window of inter-arrival intervals. Not safe
// for concurrent use; callers serialize access externally (the resampler
// task owns it).
type Buffer struct {
	p0, p1    Sample
	count     int
	intervals []time.Duration
}

// NewBuffer returns an empty resampler buffer.
func NewBuffer() *Buffer {
	return &Buffer{intervals: make([]time.Duration, 0, maxIntervalWindow)}
}

// Push records a newly arrived real pose, sliding the ring and updating
// the inter-arrival window.
func (b *Buffer) Push(s Sample) {
	if b.count > 0 {
		gap := s.Timestamp.Sub(b.p1.Timestamp)
		if gap > 0 {
			if len(b.intervals) >= maxIntervalWindow {
				b.intervals = b.intervals[1:]
			}
			b.intervals = append(b.intervals, gap)
		}
	}
	b.p0, b.p1 = b.p1, s
	if b.count < 2 {
		b.count++
	}
}

// Reset clears the buffer, matching spec §3.4's "cleared on movement_start".
func (b *Buffer) Reset() {
	b.p0, b.p1 = Sample{}, Sample{}
	b.count = 0
	b.intervals = b.intervals[:0]
}

// Pair returns the two most recent real poses. ok is false until at least
// two poses have been pushed.
func (b *Buffer) Pair() (p0, p1 Sample, ok bool) {
	return b.p0, b.p1, b.count >= 2
}

// Latest returns the single most recently pushed real pose.
func (b *Buffer) Latest() (Sample, bool) {
	return b.p1, b.count >= 1
}

// ExpectedInterval is the mean of the rolling inter-arrival window, or
// defaultExpectedInterval (1/30s) when no intervals have been observed yet.
func (b *Buffer) ExpectedInterval() time.Duration {
	if len(b.intervals) == 0 {
		return defaultExpectedInterval
	}
	var sum time.Duration
	for _, d := range b.intervals {
		sum += d
	}
	return sum / time.Duration(len(b.intervals))
}

// Config controls resampler behavior (spec §3.1 / §4.7).
type Config struct {
	UpsampleHz  float64 // 0 disables the upsampling loop
	RateLimitHz float64 // 0 disables rate limiting
	Regulated   bool
}

// rateGate enforces "only forward if now - last_emit >= 1/rate_limit_hz"
// (spec §4.7), applied after extrapolation regardless of mode.
type rateGate struct {
	hz       float64
	lastSent time.Time
}

func (g *rateGate) allow(now time.Time) bool {
	if g.hz <= 0 {
		return true
	}
	if g.lastSent.IsZero() || now.Sub(g.lastSent) >= time.Duration(float64(time.Second)/g.hz) {
		g.lastSent = now
		return true
	}
	return false
}

// Resampler implements spec §4.7's two modes over a Buffer: non-regulated
// synchronous forwarding with optional gap-filling upsampling, and fully
// regulated output produced entirely by the upsampling loop.
type Resampler struct {
	cfg  Config
	buf  *Buffer
	gate rateGate

	lastRealForward time.Time // non-regulated: when a real pose last emitted directly
	lastEmitted     time.Time // any mode: when anything last emitted, for achieved-rate telemetry
	lastRealArrival time.Time // any mode: when the last real pose arrived, for jitter telemetry
	achievedRate    *welford.Stats
	inputJitter     *welford.Stats
	dropped         int64
}

// New builds a Resampler. cfg.RateLimitHz and cfg.UpsampleHz of zero
// disable the corresponding behavior.
func New(cfg Config) *Resampler {
	return &Resampler{
		cfg:          cfg,
		buf:          NewBuffer(),
		gate:         rateGate{hz: cfg.RateLimitHz},
		achievedRate: welford.New(),
		inputJitter:  welford.New(),
	}
}

// Reset clears buffered state, matching spec §3.4's movement_start rule.
func (r *Resampler) Reset() {
	r.buf.Reset()
	r.lastRealForward = time.Time{}
}

// AchievedRate reports the mean interval (seconds) between consecutive
// emissions observed so far, a measured-output-rate statistic the
// original tracker software exposes in regulated mode (not part of the
// pose event shape; surfaced through metrics instead).
func (r *Resampler) AchievedRate() (meanSeconds float64, count float64) {
	return r.achievedRate.Mean(), r.achievedRate.Count()
}

func (r *Resampler) recordEmission(now time.Time) {
	if !r.lastEmitted.IsZero() {
		r.achievedRate.Add(now.Sub(r.lastEmitted).Seconds())
	}
	r.lastEmitted = now
}

// InputJitterMs reports the streaming standard deviation of real-pose
// inter-arrival gaps, in milliseconds, for the input_jitter_ms gauge.
func (r *Resampler) InputJitterMs() float64 {
	if r.inputJitter.Count() < 2 {
		return 0
	}
	return r.inputJitter.Stddev() * 1000
}

// Dropped reports how many upsampler ticks produced nothing because the
// input stream was stale in non-regulated mode (spec §4.7's safety cutoff).
func (r *Resampler) Dropped() int64 {
	return r.dropped
}

// PushReal feeds a real (non-extrapolated) pose into the resampler. In
// non-regulated mode it is a candidate for synchronous, zero-latency
// forwarding (subject to the rate gate); in regulated mode it only
// updates the buffer that the upsampling loop reads from spec §4.7).
func (r *Resampler) PushReal(s Sample) (out Sample, emit bool) {
	if !r.lastRealArrival.IsZero() {
		if gap := s.Timestamp.Sub(r.lastRealArrival); gap > 0 {
			r.inputJitter.Add(gap.Seconds())
		}
	}
	r.lastRealArrival = s.Timestamp

	r.buf.Push(s)

	if r.cfg.Regulated {
		return Sample{}, false
	}

	r.lastRealForward = s.Timestamp
	if !r.gate.allow(s.Timestamp) {
		return Sample{}, false
	}
	r.recordEmission(s.Timestamp)
	return s, true
}

// Tick runs one step of the upsampling loop at time now. It implements
// the linear/rotation-vector extrapolation and safety cutoff of spec
// §4.7. Returns emit=false when there is not yet a real-pose pair to
// extrapolate from, when the safety cutoff suppresses output in
// non-regulated mode, or when the rate gate currently blocks forwarding.
func (r *Resampler) Tick(now time.Time) (out Sample, emit bool) {
	if r.cfg.UpsampleHz <= 0 {
		return Sample{}, false
	}

	p0, p1, ok := r.buf.Pair()
	if !ok {
		return Sample{}, false
	}

	// In non-regulated mode, a real pose emitted within the last output
	// interval already satisfied this tick; only fill the gap otherwise.
	if !r.cfg.Regulated {
		period := time.Duration(float64(time.Second) / r.cfg.UpsampleHz)
		if !r.lastRealForward.IsZero() && now.Sub(r.lastRealForward) < period {
			return Sample{}, false
		}
	}

	expected := r.buf.ExpectedInterval()
	cutoffMultiplier := 1.0
	if r.cfg.Regulated {
		cutoffMultiplier = 2.0
	}
	stale := now.Sub(p1.Timestamp) > time.Duration(float64(expected)*cutoffMultiplier)

	if stale {
		if !r.cfg.Regulated {
			r.dropped++
			return Sample{}, false
		}
		// Regulated mode holds position: emit the last known real pose
		// unchanged rather than extrapolating further.
		if !r.gate.allow(now) {
			return Sample{}, false
		}
		r.recordEmission(now)
		return Sample{Timestamp: now, MovementStart: false, Position: p1.Position, Orientation: p1.Orientation, Limited: p1.Limited}, true
	}

	dtSample := p1.Timestamp.Sub(p0.Timestamp).Seconds()
	if dtSample <= 0 {
		if !r.gate.allow(now) {
			return Sample{}, false
		}
		r.recordEmission(now)
		return Sample{Timestamp: now, Position: p1.Position, Orientation: p1.Orientation, Limited: p1.Limited}, true
	}

	elapsed := now.Sub(p1.Timestamp).Seconds()

	linVel := p1.Position.Sub(p0.Position).Scale(1 / dtSample)
	predictedPos := p1.Position.AddScaled(linVel, elapsed)

	angDelta := quat.ToRotVec(quat.Delta(p0.Orientation, p1.Orientation, "base"))
	angVel := angDelta.Scale(1 / dtSample)
	predictedRot := quat.FromRotVec(angVel.Scale(elapsed))
	predictedQ := quat.Normalize(quat.Multiply(predictedRot, p1.Orientation))

	if !r.gate.allow(now) {
		return Sample{}, false
	}
	r.recordEmission(now)
	return Sample{Timestamp: now, MovementStart: false, Position: predictedPos, Orientation: predictedQ, Limited: p1.Limited}, true
}

// RunUpsampler drives Tick on a drift-free schedule at cfg.UpsampleHz
// until ctx is cancelled, invoking emit for every tick that produces
// output. It returns immediately if upsampling is disabled. The schedule
// is anchored to an absolute deadline rather than a naive sleep loop: a
// tick that runs more than one period late resynchronizes to now instead
// of firing a burst of catch-up ticks.
func (r *Resampler) RunUpsampler(ctx context.Context, emit func(Sample)) {
	if r.cfg.UpsampleHz <= 0 {
		return
	}
	period := time.Duration(float64(time.Second) / r.cfg.UpsampleHz)
	next := time.Now().Add(period)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-timer.C:
			if out, ok := r.Tick(now); ok {
				emit(out)
			}
			next = next.Add(period)
			if now.Sub(next) > period {
				next = now.Add(period)
			}
			timer.Reset(time.Until(next))
		}
	}
}
