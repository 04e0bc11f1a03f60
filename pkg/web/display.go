package web

import (
	"sync/atomic"

	"github.com/teslashibe/go-picar/pkg/loop"
	"github.com/teslashibe/go-picar/pkg/vision"
	"gocv.io/x/gocv"
)

// Display pushes each cycle's mask and annotated frame to the panel feeds.
type Display struct {
	server *Server
	closed atomic.Bool
}

// Ensure Display implements loop.Display
var _ loop.Display = (*Display)(nil)

// Display returns the loop display backed by this server's feeds.
func (s *Server) Display() *Display {
	return &Display{server: s}
}

// Show encodes mask and frame as JPEG and broadcasts them. Feeds nobody is
// watching are skipped, but an undecodable frame is still reported.
func (d *Display) Show(mask, frame gocv.Mat) error {
	if d.closed.Load() {
		return nil
	}
	if mask.Empty() || frame.Empty() {
		return vision.ErrEmptyFrame
	}

	q := d.server.quality
	if d.server.maskHub.ClientCount() > 0 {
		data, err := vision.EncodeJPEG(mask, q)
		if err != nil {
			return err
		}
		d.server.maskHub.BroadcastBinary(data)
	}
	if d.server.videoHub.ClientCount() > 0 {
		data, err := vision.EncodeJPEG(frame, q)
		if err != nil {
			return err
		}
		d.server.videoHub.BroadcastBinary(data)
	}
	return nil
}

// Close stops further broadcasts. The server itself keeps running until
// Shutdown.
func (d *Display) Close() error {
	d.closed.Store(true)
	return nil
}
