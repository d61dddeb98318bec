// Package event defines the tagged-union Event record delivered to the
// user callback (spec §3.6) and its compact one-line JSON encoding
// (spec §6.3). Each arm is a dedicated Go struct rather than an ad-hoc
// dictionary (spec §9, "Dynamic field envelopes → tagged records");
// the JSON shape stays map-like only at the encode boundary.
package event

import "encoding/json"

// Tag identifies which arm of Event is populated.
type Tag string

const (
	TagPose                   Tag = "pose"
	TagCommand                Tag = "command"
	TagSession                Tag = "session"
	TagConnected              Tag = "connected"
	TagDisconnected           Tag = "disconnected"
	TagError                  Tag = "error"
	TagWarn                   Tag = "warn"
	TagMotionLimitWarning     Tag = "motion_limit_warning"
	TagResamplingEnabled      Tag = "resampling_enabled"
	TagMotionLimitingEnabled  Tag = "motion_limiting_enabled"
	TagBeaconStarted          Tag = "beacon_started"
	TagServerListening        Tag = "server_listening"
	TagServerStopped          Tag = "server_stopped"
	TagBLEAdvertising         Tag = "ble_advertising"
	TagBLEAuthOK              Tag = "ble_auth_ok"
	TagBLEAuthFailed          Tag = "ble_auth_failed"
	TagUSBSetupInfo           Tag = "usb_setup_info"
	TagSessionRejected        Tag = "session_rejected"
)

// PoseData is the payload of a TagPose event. Limited reports whether the
// motion limiter clamped the pose this event was built from; Delta and
// Velocity are populated only when a PoseProvider origin/velocity
// reference exists.
type PoseData struct {
	AbsoluteInput PoseFields  `json:"absolute_input"`
	Delta         *PoseFields `json:"delta_transformed,omitempty"`
	Velocity      *Velocity   `json:"velocity,omitempty"`
	Limited       bool        `json:"limited,omitempty"`
}

// PoseFields is one transformed-pose view: absolute or delta (spec §4.5).
// Field names follow get_absolute/get_delta's output shape exactly;
// X/Y/Z hold position (absolute) or dx/dy/dz (delta, reusing the struct).
type PoseFields struct {
	MovementStart bool    `json:"movement_start"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Z             float64 `json:"z"`
	Qx            float64 `json:"qx"`
	Qy            float64 `json:"qy"`
	Qz            float64 `json:"qz"`
	Qw            float64 `json:"qw"`
	RX            float64 `json:"rx"`
	RY            float64 `json:"ry"`
	RZ            float64 `json:"rz"`
	XRotDeg       float64 `json:"x_rot_deg"`
	YRotDeg       float64 `json:"y_rot_deg"`
	ZRotDeg       float64 `json:"z_rot_deg"`
}

// Velocity is the linear/angular derivative between consecutive poses
// (spec §4.5 get_velocity).
type Velocity struct {
	Vx            float64 `json:"vx"`
	Vy            float64 `json:"vy"`
	Vz            float64 `json:"vz"`
	Wx            float64 `json:"wx"`
	Wy            float64 `json:"wy"`
	Wz            float64 `json:"wz"`
	DtSeconds     float64 `json:"dt"`
	MovementStart bool    `json:"movement_start"`
}

// Command is the payload of a TagCommand event (spec §4.1 CMD message).
type Command struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// Session is the payload of a TagSession event, also used for the
// pairing display (spec §6.4).
type Session struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	Transport string `json:"transport"`
	Port      int    `json:"port,omitempty"`
}

// Disconnected is the payload of a TagDisconnected event.
type Disconnected struct {
	Reason string `json:"reason"`
}

// Rejected is the payload of a TagSessionRejected event.
type Rejected struct {
	Reason string `json:"reason"`
}

// Warning is a generic free-text payload (errors, warnings, info tags).
type Warning struct {
	Message string `json:"message,omitempty"`
}

// Event is the tagged union delivered to the user callback.
type Event struct {
	Tag Tag

	Pose         *PoseData
	Command      *Command
	Session      *Session
	Disconnected *Disconnected
	Rejected     *Rejected
	Warning      *Warning
}

// JSON renders the event as the one-line compact object described in
// spec §6.3: {"type": "...", ...fields}.
func (e Event) JSON() ([]byte, error) {
	m := map[string]any{"type": string(e.Tag)}
	switch {
	case e.Pose != nil:
		m["data"] = e.Pose
	case e.Command != nil:
		m["name"] = e.Command.Name
		m["value"] = e.Command.Value
	case e.Session != nil:
		m["name"] = e.Session.Name
		m["code"] = e.Session.Code
		m["transport"] = e.Session.Transport
		if e.Session.Port != 0 {
			m["port"] = e.Session.Port
		}
	case e.Disconnected != nil:
		m["reason"] = e.Disconnected.Reason
	case e.Rejected != nil:
		m["reason"] = e.Rejected.Reason
	case e.Warning != nil && e.Warning.Message != "":
		m["message"] = e.Warning.Message
	}
	return json.Marshal(m)
}

// NewPose builds a TagPose event.
func NewPose(data PoseData) Event { return Event{Tag: TagPose, Pose: &data} }

// NewCommand builds a TagCommand event.
func NewCommand(name string, value bool) Event {
	return Event{Tag: TagCommand, Command: &Command{Name: name, Value: value}}
}

// NewSession builds a TagSession event.
func NewSession(name, code, transport string, port int) Event {
	return Event{Tag: TagSession, Session: &Session{Name: name, Code: code, Transport: transport, Port: port}}
}

// NewDisconnected builds a TagDisconnected event.
func NewDisconnected(reason string) Event {
	return Event{Tag: TagDisconnected, Disconnected: &Disconnected{Reason: reason}}
}

// NewRejected builds a TagSessionRejected event.
func NewRejected(reason string) Event {
	return Event{Tag: TagSessionRejected, Rejected: &Rejected{Reason: reason}}
}

// NewTag builds a bare informational event carrying only its tag
// (connected, beacon_started, server_listening, ...).
func NewTag(tag Tag) Event { return Event{Tag: tag} }

// NewWarning builds a TagWarn/TagError/TagMotionLimitWarning-style event
// carrying a free-text message.
func NewWarning(tag Tag, message string) Event {
	return Event{Tag: tag, Warning: &Warning{Message: message}}
}
