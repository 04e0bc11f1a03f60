// Package config provides configuration helpers for go-picar commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default car configuration. The ports are fixed by the PiCar image:
// mjpg-streamer on 8080 and the Socket.IO motor server on 3000.
const (
	DefaultCarIP      = "192.168.0.10"
	DefaultModelPath  = "model.onnx"
	DefaultStreamPort = "8080"
	DefaultEventPort  = "3000"
	DefaultPanelPort  = "8090"
	MaxDefaultSpeed   = 100
)

// RunConfig is the immutable configuration handed to the control loop.
// It is resolved once at startup.
type RunConfig struct {
	ModelPath    string
	IPAddress    string
	DefaultSpeed int
}

// NewRunConfig builds a RunConfig, falling back to the environment and then
// to the package defaults for empty values. DefaultSpeed is clamped to [0, 100].
func NewRunConfig(modelPath, ip string, speed int) RunConfig {
	if modelPath == "" {
		modelPath = ModelPath(DefaultModelPath)
	}
	if ip == "" {
		ip = CarIP(DefaultCarIP)
	}
	if speed < 0 {
		speed = 0
	}
	if speed > MaxDefaultSpeed {
		speed = MaxDefaultSpeed
	}
	return RunConfig{
		ModelPath:    modelPath,
		IPAddress:    ip,
		DefaultSpeed: speed,
	}
}

// StreamURL returns the MJPEG stream URL for the car.
func (c RunConfig) StreamURL() string {
	return StreamURL(c.IPAddress)
}

// EventURL returns the Socket.IO server URL for the car.
func (c RunConfig) EventURL() string {
	return EventURL(c.IPAddress)
}

// CarIP returns the car IP from PICAR_IP env var.
// Falls back to the provided default if not set.
func CarIP(defaultIP string) string {
	if ip := os.Getenv("PICAR_IP"); ip != "" {
		return ip
	}
	return defaultIP
}

// ModelPath returns the steering network path from PICAR_MODEL env var.
func ModelPath(defaultPath string) string {
	if p := os.Getenv("PICAR_MODEL"); p != "" {
		return p
	}
	return defaultPath
}

// LogLevel returns LOG_LEVEL or the provided default.
func LogLevel(defaultLevel string) string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return defaultLevel
}

// IntEnv reads an integer from the environment, returning def when unset or malformed.
func IntEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// StreamURL returns the mjpg-streamer URL for the given car IP.
func StreamURL(ip string) string {
	return fmt.Sprintf("http://%s:%s/?action=stream", ip, DefaultStreamPort)
}

// EventURL returns the event channel URL for the given car IP.
func EventURL(ip string) string {
	return fmt.Sprintf("http://%s:%s", ip, DefaultEventPort)
}
