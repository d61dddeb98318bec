package config

import (
	"reflect"
	"testing"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Scale != 1.0 {
		t.Fatalf("expected default scale 1.0, got %v", cfg.Scale)
	}
	if cfg.OutputAxes != (AxisScale{1, 1, 1}) {
		t.Fatalf("expected identity axes, got %+v", cfg.OutputAxes)
	}
}

func TestLoadEmptyReturnsDefault(t *testing.T) {
	cfg := Load(nil)
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("expected default config for empty input, got %+v", cfg)
	}
}

func TestLoadMalformedReturnsDefault(t *testing.T) {
	cfg := Load([]byte("not json"))
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("expected default config for malformed input, got %+v", cfg)
	}
}

func TestLoadLegacyAuthNameAlias(t *testing.T) {
	cfg := Load([]byte(`{"ble_name":"legacy-tracker"}`))
	if cfg.AuthName != "legacy-tracker" {
		t.Fatalf("expected legacy ble_name to map to auth_name, got %q", cfg.AuthName)
	}
}

func TestLoadLegacyAliasDoesNotOverrideCurrentName(t *testing.T) {
	cfg := Load([]byte(`{"ble_name":"legacy","auth_name":"current"}`))
	if cfg.AuthName != "current" {
		t.Fatalf("expected current auth_name to win, got %q", cfg.AuthName)
	}
}

func TestLoadScaleAndVelLimit(t *testing.T) {
	cfg := Load([]byte(`{"scale":1000,"vel_limit":2.5}`))
	if cfg.Scale != 1000 {
		t.Fatalf("expected scale 1000, got %v", cfg.Scale)
	}
	if cfg.VelLimit == nil || *cfg.VelLimit != 2.5 {
		t.Fatalf("expected vel_limit 2.5, got %+v", cfg.VelLimit)
	}
}

func TestEnsureAuthFillsRandomValues(t *testing.T) {
	cfg := Default()
	cfg.EnsureAuth()
	if cfg.AuthName == "" || cfg.AuthCode == "" {
		t.Fatalf("expected random auth filled in, got %+v", cfg)
	}
	if len(cfg.AuthCode) != 6 {
		t.Fatalf("expected 6-char code, got %q", cfg.AuthCode)
	}
}

func TestEnsureAuthPreservesExplicitValues(t *testing.T) {
	cfg := Default()
	cfg.AuthName = "fixed"
	cfg.AuthCode = "ABC123"
	cfg.EnsureAuth()
	if cfg.AuthName != "fixed" || cfg.AuthCode != "ABC123" {
		t.Fatalf("expected explicit auth preserved, got %+v", cfg)
	}
}
