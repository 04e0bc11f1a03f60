// Package video provides frame sources for the PiCar camera stream.
//
// A Source yields one decoded BGR frame per call and never retries on its
// own: when the stream ends, drops, or sends something undecodable, the
// caller is told and decides what to do.
package video

import (
	"errors"

	"gocv.io/x/gocv"
)

// Sentinel errors for common conditions.
var (
	// ErrNoFrame is returned when the stream produced nothing to decode.
	ErrNoFrame = errors.New("video: no frame")

	// ErrDecode is returned when a stream part is not a valid image.
	ErrDecode = errors.New("video: decode failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("video: source closed")
)

// Result is the outcome of one NextFrame call. When OK is false, Frame is
// empty and Err names the cause.
type Result struct {
	Frame gocv.Mat
	OK    bool
	Err   error
}

// Failed builds a failed Result.
func Failed(err error) Result {
	if err == nil {
		err = ErrNoFrame
	}
	return Result{Frame: gocv.NewMat(), Err: err}
}

// Source produces camera frames on demand.
type Source interface {
	// NextFrame blocks until the next frame is decoded or the stream fails.
	// The caller owns the returned frame and must Close it.
	NextFrame() Result

	// Close releases the stream.
	Close() error
}

// Info describes the stream as reported by the backend.
type Info struct {
	FPS    float64
	Width  int
	Height int
}

// Describer is implemented by sources that can report stream properties.
type Describer interface {
	Info() Info
}
