// Package metrics defines the Prometheus counters and gauges exported
// by the diag HTTP surface. Registration follows the teacher pack's
// facebook-time/ptp/sptp/stats.PrometheusExporter shape: a private
// registry owned by the caller rather than the global default
// registerer, so a process embedding multiple Televoodoo servers never
// collides on metric names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/gauge Televoodoo exports, registered
// against a single private prometheus.Registry.
type Metrics struct {
	Registry *prometheus.Registry

	SessionsTotal      prometheus.Counter
	SessionsRejected   *prometheus.CounterVec
	PosesDecoded       *prometheus.CounterVec
	LimiterClamps      prometheus.Counter
	ResamplerEmissions *prometheus.CounterVec
	ResamplerDropped   prometheus.Counter
	InputJitterMs      prometheus.Gauge
	AchievedOutputHz   prometheus.Gauge
}

// New builds and registers every metric against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "televoodoo_sessions_total",
			Help: "Total number of tracker sessions successfully established.",
		}),
		SessionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "televoodoo_sessions_rejected_total",
			Help: "Total number of HELLO attempts rejected, by reason.",
		}, []string{"reason"}),
		PosesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "televoodoo_poses_decoded_total",
			Help: "Total number of POSE messages decoded, by transport.",
		}, []string{"transport"}),
		LimiterClamps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "televoodoo_limiter_clamps_total",
			Help: "Total number of poses the motion limiter rewrote.",
		}),
		ResamplerEmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "televoodoo_resampler_emissions_total",
			Help: "Total number of poses emitted by the resampler, by kind.",
		}, []string{"kind"}), // kind: real, extrapolated
		ResamplerDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "televoodoo_resampler_dropped_total",
			Help: "Total number of upsampler ticks that produced nothing because the input stream was stale.",
		}),
		InputJitterMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "televoodoo_input_jitter_ms",
			Help: "Streaming standard deviation of real-pose inter-arrival gaps, in milliseconds.",
		}),
		AchievedOutputHz: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "televoodoo_achieved_output_hz",
			Help: "Reciprocal of the mean interval between resampler emissions.",
		}),
	}

	reg.MustRegister(
		m.SessionsTotal,
		m.SessionsRejected,
		m.PosesDecoded,
		m.LimiterClamps,
		m.ResamplerEmissions,
		m.ResamplerDropped,
		m.InputJitterMs,
		m.AchievedOutputHz,
	)
	return m
}
