package config

import (
	"fmt"
	"strconv"
)

// Stream backends.
const (
	BackendCapture = "capture" // gocv VideoCapture (FFmpeg)
	BackendHTTP    = "http"    // multipart reader + IMDecode
)

// Dispatch failure policies.
const (
	DispatchDrop  = "drop"
	DispatchFatal = "fatal"
)

// Options holds the run-time switches that sit next to RunConfig.
type Options struct {
	StreamBackend   string
	PanelPort       string
	Predict         bool
	OnDispatchError string
	SafeStop        bool
	RecordPath      string
	Console         bool
	LogLevel        string
}

// DefaultOptions returns the options used when no flags are given.
func DefaultOptions() Options {
	return Options{
		StreamBackend:   BackendCapture,
		PanelPort:       DefaultPanelPort,
		OnDispatchError: DispatchDrop,
		SafeStop:        true,
		LogLevel:        "info",
	}
}

// Validate reports the first invalid option.
func (o Options) Validate() error {
	switch o.StreamBackend {
	case BackendCapture, BackendHTTP:
	default:
		return fmt.Errorf("config: unknown stream backend %q (want %q or %q)", o.StreamBackend, BackendCapture, BackendHTTP)
	}
	switch o.OnDispatchError {
	case DispatchDrop, DispatchFatal:
	default:
		return fmt.Errorf("config: unknown dispatch policy %q (want %q or %q)", o.OnDispatchError, DispatchDrop, DispatchFatal)
	}
	if o.PanelPort != "" {
		p, err := strconv.Atoi(o.PanelPort)
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("config: invalid panel port %q", o.PanelPort)
		}
	}
	return nil
}
