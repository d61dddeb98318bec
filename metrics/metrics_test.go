package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSessionsTotalIncrements(t *testing.T) {
	m := New()
	m.SessionsTotal.Inc()
	m.SessionsTotal.Inc()
	if got := testutil.ToFloat64(m.SessionsTotal); got != 2 {
		t.Fatalf("expected 2 sessions, got %v", got)
	}
}

func TestSessionsRejectedLabelsByReason(t *testing.T) {
	m := New()
	m.SessionsRejected.WithLabelValues("busy").Inc()
	m.SessionsRejected.WithLabelValues("bad_code").Inc()
	m.SessionsRejected.WithLabelValues("busy").Inc()
	if got := testutil.ToFloat64(m.SessionsRejected.WithLabelValues("busy")); got != 2 {
		t.Fatalf("expected 2 busy rejections, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsRejected.WithLabelValues("bad_code")); got != 1 {
		t.Fatalf("expected 1 bad_code rejection, got %v", got)
	}
}

func TestNewRegistersDistinctRegistryPerInstance(t *testing.T) {
	a := New()
	b := New()
	a.SessionsTotal.Inc()
	if got := testutil.ToFloat64(b.SessionsTotal); got != 0 {
		t.Fatalf("expected independent registries, got cross-contamination: %v", got)
	}
}
