package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLen bounds a single TCP frame's payload (header + body); the
// largest defined message (CONFIG) can in principle carry up to 64KiB-1
// of embedded JSON, which is also the field width of the length prefix.
const MaxFrameLen = 1<<16 - 1

// WriteFrame writes msg to w as a TCP frame: a 2-byte little-endian length
// of the packed message, followed by the packed message itself.
func WriteFrame(w io.Writer, msg Message) error {
	payload := msg.Pack()
	if len(payload) > MaxFrameLen {
		return fmt.Errorf("protocol: frame too large (%d bytes)", len(payload))
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame from r and parses it.
// It blocks until a full frame (or an error) is available, so callers
// typically wrap r in a conn with a read deadline for liveness.
func ReadFrame(r io.Reader) (Message, error) {
	body, err := ReadFrameBytes(r)
	if err != nil {
		return nil, err
	}
	return Parse(body)
}

// ReadFrameBytes reads one length-prefixed frame from r and returns the
// raw, still-undecoded message bytes (header plus body). Callers that
// need to inspect the header before or instead of a full Parse — e.g.
// checking HeaderVersion on an incoming HELLO — use this directly.
func ReadFrameBytes(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
