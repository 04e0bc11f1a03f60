package video

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// CaptureSource reads the stream through OpenCV's VideoCapture (FFmpeg
// backend), which understands mjpg-streamer URLs directly.
type CaptureSource struct {
	url string
	cap *gocv.VideoCapture

	mu     sync.Mutex
	closed bool
}

// Ensure CaptureSource implements Source and Describer
var (
	_ Source    = (*CaptureSource)(nil)
	_ Describer = (*CaptureSource)(nil)
)

// OpenCapture opens the stream at url.
func OpenCapture(url string) (*CaptureSource, error) {
	cap, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return nil, fmt.Errorf("video: open %s: %w", url, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("video: open %s: stream not available", url)
	}
	return &CaptureSource{url: url, cap: cap}, nil
}

// NextFrame reads and decodes the next frame.
func (s *CaptureSource) NextFrame() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Failed(ErrClosed)
	}

	frame := gocv.NewMat()
	if ok := s.cap.Read(&frame); !ok {
		frame.Close()
		return Failed(fmt.Errorf("%w: read from %s failed", ErrNoFrame, s.url))
	}
	if frame.Empty() {
		frame.Close()
		return Failed(fmt.Errorf("%w: empty frame from %s", ErrDecode, s.url))
	}
	return Result{Frame: frame, OK: true}
}

// Info reports the stream properties advertised by the backend.
func (s *CaptureSource) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Info{}
	}
	return Info{
		FPS:    s.cap.Get(gocv.VideoCaptureFPS),
		Width:  int(s.cap.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(s.cap.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// Close releases the capture. Safe to call more than once.
func (s *CaptureSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cap.Close()
}
