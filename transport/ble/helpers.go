package ble

import (
	"encoding/json"
	"log/slog"
	"time"

	"televoodoo/config"
	"televoodoo/event"
	"televoodoo/poseprovider"
	"televoodoo/quat"
)

func vec3(x, y, z float32) quat.Vec3 {
	return quat.Vec3{X: float64(x), Y: float64(y), Z: float64(z)}
}

func quatFromWire(x, y, z, w float32) quat.Quat {
	return quat.Normalize(quat.Quat{X: float64(x), Y: float64(y), Z: float64(z), W: float64(w)})
}

func marshalConfig(cfg config.Configuration) ([]byte, error) {
	return json.Marshal(cfg)
}

// trySendPoseLatest implements the drop-oldest, non-blocking send for a
// size-1 latest-value channel (same policy as transport/tcp's pose
// forwarding: a stale pose is discarded, never queued).
func trySendPoseLatest(ch chan poseprovider.Sample, v poseprovider.Sample) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// trySendEvent blocks for up to 50ms, then drops the event with a debug
// log, the same policy transport/tcp applies to its events channel.
func trySendEvent(ch chan event.Event, e event.Event) {
	select {
	case ch <- e:
	case <-time.After(50 * time.Millisecond):
		slog.Debug("event dropped: consumer not keeping up", "type", e.Tag)
	}
}
