// Package protocol implements the TELE wire protocol: a versioned,
// framed binary protocol shared by the TCP, UDP, and BLE transports.
//
// Every message begins with a 6-byte header (magic "TELE", type, version).
// Encode/decode in this file is pure — no I/O. framing.go adds the TCP
// length-prefix framing over an io.Reader/io.Writer; UDP and BLE carry
// unframed messages.
package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	Magic          = "TELE"
	Version        = uint8(1)
	MinSupportedVer = uint8(1)
	MaxSupportedVer = uint8(1)

	headerSize = 6
)

// Message type tags (spec §4.1).
const (
	TypeHello     uint8 = 1
	TypeAck       uint8 = 2
	TypePose      uint8 = 3
	TypeBye       uint8 = 4
	TypeCmd       uint8 = 5
	TypeHeartbeat uint8 = 6
	TypeHaptic    uint8 = 7
	TypeBeacon    uint8 = 8
	TypeConfig    uint8 = 9
)

// ACK status codes.
const (
	StatusOK              uint8 = 0
	StatusBadCode         uint8 = 1
	StatusBusy            uint8 = 2
	StatusVersionMismatch uint8 = 3
)

// CMD command types.
const (
	CmdRecording     uint8 = 1
	CmdKeepRecording uint8 = 2
)

// POSE flags.
const (
	FlagMovementStart uint8 = 0x01
)

var (
	ErrShortBuffer  = errors.New("protocol: buffer too short")
	ErrBadMagic     = errors.New("protocol: bad magic")
	ErrUnknownType  = errors.New("protocol: unknown message type")
	ErrPayloadShort = errors.New("protocol: payload shorter than message layout")
)

// Message is implemented by every decoded wire message.
type Message interface {
	Type() uint8
	Pack() []byte
}

// --- HELLO ---

type Hello struct {
	SessionID uint32
	Code      [6]byte
}

func (Hello) Type() uint8 { return TypeHello }

func (h Hello) Pack() []byte {
	buf := make([]byte, headerSize+12)
	putHeader(buf, TypeHello)
	binary.LittleEndian.PutUint32(buf[6:10], h.SessionID)
	copy(buf[10:16], h.Code[:])
	// 2 bytes reserved, already zero.
	return buf
}

// CodeString returns the null-padded code as a trimmed string.
func (h Hello) CodeString() string {
	n := len(h.Code)
	for n > 0 && h.Code[n-1] == 0 {
		n--
	}
	return string(h.Code[:n])
}

// --- ACK ---

type Ack struct {
	Status uint8
	MinVer uint8
	MaxVer uint8
}

func (Ack) Type() uint8 { return TypeAck }

func (a Ack) Pack() []byte {
	buf := make([]byte, headerSize+6)
	putHeader(buf, TypeAck)
	buf[6] = a.Status
	buf[7] = 0 // reserved
	buf[8] = a.MinVer
	buf[9] = a.MaxVer
	// 2 bytes reserved, already zero.
	return buf
}

// --- POSE ---

type Pose struct {
	Seq           uint16
	TimestampUs   uint64
	MovementStart bool
	X, Y, Z       float32
	Qx, Qy, Qz, Qw float32
}

func (Pose) Type() uint8 { return TypePose }

func (p Pose) Pack() []byte {
	buf := make([]byte, headerSize+40)
	putHeader(buf, TypePose)
	binary.LittleEndian.PutUint16(buf[6:8], p.Seq)
	binary.LittleEndian.PutUint64(buf[8:16], p.TimestampUs)
	var flags uint8
	if p.MovementStart {
		flags |= FlagMovementStart
	}
	buf[16] = flags
	buf[17] = 0 // reserved
	putF32(buf[18:22], p.X)
	putF32(buf[22:26], p.Y)
	putF32(buf[26:30], p.Z)
	putF32(buf[30:34], p.Qx)
	putF32(buf[34:38], p.Qy)
	putF32(buf[38:42], p.Qz)
	putF32(buf[42:46], p.Qw)
	return buf
}

// --- BYE ---

type Bye struct {
	SessionID uint32
}

func (Bye) Type() uint8 { return TypeBye }

func (b Bye) Pack() []byte {
	buf := make([]byte, headerSize+4)
	putHeader(buf, TypeBye)
	binary.LittleEndian.PutUint32(buf[6:10], b.SessionID)
	return buf
}

// --- CMD ---

type Cmd struct {
	CmdType uint8
	Value   uint8
}

func (Cmd) Type() uint8 { return TypeCmd }

func (c Cmd) Pack() []byte {
	buf := make([]byte, headerSize+2)
	putHeader(buf, TypeCmd)
	buf[6] = c.CmdType
	buf[7] = c.Value
	return buf
}

// --- HEARTBEAT ---

type Heartbeat struct {
	Counter   uint32
	UptimeMs  uint32
}

func (Heartbeat) Type() uint8 { return TypeHeartbeat }

func (h Heartbeat) Pack() []byte {
	buf := make([]byte, headerSize+8)
	putHeader(buf, TypeHeartbeat)
	binary.LittleEndian.PutUint32(buf[6:10], h.Counter)
	binary.LittleEndian.PutUint32(buf[10:14], h.UptimeMs)
	return buf
}

// --- HAPTIC ---

type Haptic struct {
	Intensity float32
	Channel   uint8
}

func (Haptic) Type() uint8 { return TypeHaptic }

func (h Haptic) Pack() []byte {
	buf := make([]byte, headerSize+6)
	putHeader(buf, TypeHaptic)
	putF32(buf[6:10], h.Intensity)
	buf[10] = h.Channel
	buf[11] = 0 // reserved
	return buf
}

// --- BEACON ---

type Beacon struct {
	TCPPort uint16
	Name    string
}

func (Beacon) Type() uint8 { return TypeBeacon }

func (b Beacon) Pack() []byte {
	name := []byte(b.Name)
	if len(name) > 255 {
		name = name[:255]
	}
	buf := make([]byte, headerSize+4+len(name))
	putHeader(buf, TypeBeacon)
	binary.LittleEndian.PutUint16(buf[6:8], b.TCPPort)
	buf[8] = uint8(len(name))
	buf[9] = 0 // reserved
	copy(buf[10:], name)
	return buf
}

// --- CONFIG ---

type Config struct {
	JSON []byte
}

func (Config) Type() uint8 { return TypeConfig }

func (c Config) Pack() []byte {
	buf := make([]byte, headerSize+2+len(c.JSON))
	putHeader(buf, TypeConfig)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(c.JSON)))
	copy(buf[8:], c.JSON)
	return buf
}

// putHeader writes the 6-byte "TELE"+type+version header into buf[0:6].
func putHeader(buf []byte, msgType uint8) {
	copy(buf[0:4], Magic)
	buf[4] = msgType
	buf[5] = Version
}

func putF32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

// HeaderVersion returns the protocol version byte of a message buffer
// without decoding the body. Callers use this to distinguish a version
// mismatch (clean ACK rejection) from a parse error (spec §4.1).
func HeaderVersion(buf []byte) (uint8, error) {
	if len(buf) < headerSize {
		return 0, ErrShortBuffer
	}
	if string(buf[0:4]) != Magic {
		return 0, ErrBadMagic
	}
	return buf[5], nil
}

// Parse decodes a single unframed message from buf. It never allocates more
// than the decoded message needs and never reads past buf.
func Parse(buf []byte) (Message, error) {
	if len(buf) < headerSize {
		return nil, ErrShortBuffer
	}
	if string(buf[0:4]) != Magic {
		return nil, ErrBadMagic
	}
	msgType := buf[4]
	body := buf[headerSize:]

	switch msgType {
	case TypeHello:
		if len(body) < 12 {
			return nil, ErrPayloadShort
		}
		var h Hello
		h.SessionID = binary.LittleEndian.Uint32(body[0:4])
		copy(h.Code[:], body[4:10])
		return h, nil
	case TypeAck:
		if len(body) < 6 {
			return nil, ErrPayloadShort
		}
		return Ack{Status: body[0], MinVer: body[2], MaxVer: body[3]}, nil
	case TypePose:
		if len(body) < 40 {
			return nil, ErrPayloadShort
		}
		p := Pose{
			Seq:         binary.LittleEndian.Uint16(body[0:2]),
			TimestampUs: binary.LittleEndian.Uint64(body[2:10]),
		}
		flags := body[10]
		p.MovementStart = flags&FlagMovementStart != 0
		p.X = getF32(body[12:16])
		p.Y = getF32(body[16:20])
		p.Z = getF32(body[20:24])
		p.Qx = getF32(body[24:28])
		p.Qy = getF32(body[28:32])
		p.Qz = getF32(body[32:36])
		p.Qw = getF32(body[36:40])
		return p, nil
	case TypeBye:
		if len(body) < 4 {
			return nil, ErrPayloadShort
		}
		return Bye{SessionID: binary.LittleEndian.Uint32(body[0:4])}, nil
	case TypeCmd:
		if len(body) < 2 {
			return nil, ErrPayloadShort
		}
		return Cmd{CmdType: body[0], Value: body[1]}, nil
	case TypeHeartbeat:
		if len(body) < 8 {
			return nil, ErrPayloadShort
		}
		return Heartbeat{
			Counter:  binary.LittleEndian.Uint32(body[0:4]),
			UptimeMs: binary.LittleEndian.Uint32(body[4:8]),
		}, nil
	case TypeHaptic:
		if len(body) < 6 {
			return nil, ErrPayloadShort
		}
		return Haptic{Intensity: getF32(body[0:4]), Channel: body[4]}, nil
	case TypeBeacon:
		if len(body) < 4 {
			return nil, ErrPayloadShort
		}
		nameLen := int(body[2])
		if len(body) < 4+nameLen {
			return nil, ErrPayloadShort
		}
		return Beacon{
			TCPPort: binary.LittleEndian.Uint16(body[0:2]),
			Name:    string(body[4 : 4+nameLen]),
		}, nil
	case TypeConfig:
		if len(body) < 2 {
			return nil, ErrPayloadShort
		}
		jsonLen := int(binary.LittleEndian.Uint16(body[0:2]))
		if len(body) < 2+jsonLen {
			return nil, ErrPayloadShort
		}
		jsonBuf := make([]byte, jsonLen)
		copy(jsonBuf, body[2:2+jsonLen])
		return Config{JSON: jsonBuf}, nil
	default:
		return nil, ErrUnknownType
	}
}

func getF32(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}
