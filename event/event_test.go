package event

import (
	"encoding/json"
	"testing"
)

func TestPoseEventJSONShape(t *testing.T) {
	e := NewPose(PoseData{
		AbsoluteInput: PoseFields{MovementStart: true, X: 1, Y: 2, Z: 3, Qw: 1},
	})
	b, err := e.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != "pose" {
		t.Fatalf("expected type=pose, got %v", m["type"])
	}
	data, ok := m["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", m["data"])
	}
	abs, ok := data["absolute_input"].(map[string]any)
	if !ok {
		t.Fatalf("expected absolute_input object, got %T", data["absolute_input"])
	}
	if abs["x"] != 1.0 || abs["movement_start"] != true {
		t.Fatalf("unexpected absolute_input: %+v", abs)
	}
}

func TestSessionEventJSONShape(t *testing.T) {
	e := NewSession("voodoo42", "ABC123", "tcp", 50000)
	b, err := e.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var m map[string]any
	json.Unmarshal(b, &m)
	if m["type"] != "session" || m["code"] != "ABC123" || m["port"] != 50000.0 {
		t.Fatalf("unexpected session JSON: %+v", m)
	}
}

func TestBareTagEventHasOnlyType(t *testing.T) {
	e := NewTag(TagConnected)
	b, _ := e.JSON()
	var m map[string]any
	json.Unmarshal(b, &m)
	if len(m) != 1 || m["type"] != "connected" {
		t.Fatalf("expected only type field, got %+v", m)
	}
}
