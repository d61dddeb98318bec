// Package config defines the Configuration record (spec §3.1) and its
// JSON (de)serialization, following the "never an error, defaults on any
// problem" loading style of the teacher's client preferences package.
package config

import (
	crand "crypto/rand"
	"encoding/json"
	"math/rand/v2"
)

// EventTag names a category of derived field in the logData set (spec
// §3.1). The set is carried in the record and its JSON; no package in
// this module reads it.
type EventTag string

// FieldTag names a field-format option in the logDataFormat set (spec
// §3.1). Like LogData, it is carried but not read by any package here.
type FieldTag string

const (
	LogAbsolute EventTag = "absolute"
	LogDelta    EventTag = "delta"
	LogVelocity EventTag = "velocity"
	LogRaw      EventTag = "raw"

	FieldQuaternion FieldTag = "quaternion"
	FieldEuler      FieldTag = "euler"
	FieldEulerDeg   FieldTag = "euler_deg"
	FieldRotVec     FieldTag = "rotvec"
)

// AxisScale is a per-axis sign/scale multiplier.
type AxisScale struct {
	X, Y, Z float64
}

// TargetFrame expresses a destination coordinate frame as a translation
// plus XYZ-intrinsic Euler angles (radians), relative to the source/world
// frame.
type TargetFrame struct {
	X, Y, Z                float64
	XRot, YRot, ZRot       float64
}

// Configuration is the immutable record passed to a session at start-up
// (spec §3.1). All fields are optional except where noted.
type Configuration struct {
	Scale       float64      `json:"scale"`
	OutputAxes  AxisScale    `json:"outputAxes"`
	TargetFrame *TargetFrame `json:"targetFrame,omitempty"`

	AuthName string `json:"auth_name,omitempty"`
	AuthCode string `json:"auth_code,omitempty"`

	UpsampleToFrequencyHz *float64 `json:"upsample_to_frequency_hz,omitempty"`
	RateLimitFrequencyHz  *float64 `json:"rate_limit_frequency_hz,omitempty"`
	Regulated             bool     `json:"regulated,omitempty"`

	VelLimit *float64 `json:"vel_limit,omitempty"`
	AccLimit *float64 `json:"acc_limit,omitempty"`

	LogData       []EventTag `json:"logData,omitempty"`
	LogDataFormat []FieldTag `json:"logDataFormat,omitempty"`
}

// Default returns a Configuration with spec-mandated defaults: scale 1,
// identity output axes, no target frame, no rate shaping, no limits.
func Default() Configuration {
	return Configuration{
		Scale:      1.0,
		OutputAxes: AxisScale{1, 1, 1},
	}
}

// legacyAliases maps deprecated JSON field names (spec §9 Open Question)
// to their current equivalents. Applied before unmarshaling.
var legacyAliases = map[string]string{
	"ble_name":      "auth_name",
	"includeFormats": "logData",
}

// ApplyLegacyAliases rewrites deprecated keys in a raw JSON object to their
// current names, without disturbing keys already using the current schema.
func ApplyLegacyAliases(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if cur, ok := legacyAliases[k]; ok {
			if _, exists := raw[cur]; !exists {
				out[cur] = v
				continue
			}
			continue // current key already present and wins.
		}
		out[k] = v
	}
	return out
}

// Load parses data (raw JSON, possibly using deprecated field names) into a
// Configuration seeded with Default(). Malformed input is never an error:
// it simply leaves fields at their defaults, matching the teacher's
// "missing or unreadable config" philosophy.
func Load(data []byte) Configuration {
	cfg := Default()
	if len(data) == 0 {
		return cfg
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg
	}
	raw = ApplyLegacyAliases(raw)
	rewritten, err := json.Marshal(raw)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(rewritten, &cfg); err != nil {
		return Default()
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1.0
	}
	if cfg.OutputAxes == (AxisScale{}) {
		cfg.OutputAxes = AxisScale{1, 1, 1}
	}
	return cfg
}

// EnsureAuth fills in AuthName/AuthCode with random values if either is
// absent, matching spec §3.1 ("else random voodooXX" / "else random").
func (c *Configuration) EnsureAuth() {
	if c.AuthName == "" {
		c.AuthName = randomName()
	}
	if c.AuthCode == "" {
		c.AuthCode = randomCode()
	}
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCode() string {
	buf := make([]byte, 6)
	if _, err := crand.Read(buf); err != nil {
		// crypto/rand failure is essentially unheard-of on supported
		// platforms; fall back to a weaker generator rather than fail
		// session start-up over a cosmetic pairing code.
		for i := range buf {
			buf[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
		}
		return string(buf)
	}
	out := make([]byte, 6)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out)
}

func randomName() string {
	n := rand.IntN(90) + 10 // 2-digit suffix, 10-99
	return "voodoo" + itoa2(n)
}

func itoa2(n int) string {
	digits := "0123456789"
	return string([]byte{digits[n/10], digits[n%10]})
}
