package tcp

import (
	"encoding/json"
	"strconv"
	"strings"

	"televoodoo/config"
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

// tcpPort extracts the numeric port from a listen address of the form
// ":50000" or "0.0.0.0:50000", returning 0 if it cannot be parsed.
func tcpPort(addr string) int {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
