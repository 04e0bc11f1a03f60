package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/mattn/go-mjpeg"
	"github.com/teslashibe/go-picar/internal/httpc"
	"gocv.io/x/gocv"
)

// MJPEGSource reads a multipart/x-mixed-replace stream over HTTP and decodes
// each part with OpenCV.
type MJPEGSource struct {
	url    string
	body   io.ReadCloser
	dec    *mjpeg.Decoder
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Ensure MJPEGSource implements Source
var _ Source = (*MJPEGSource)(nil)

// OpenMJPEG connects to url and validates the stream headers. The stream
// stays open until Close or until ctx is cancelled.
func OpenMJPEG(ctx context.Context, url string) (*MJPEGSource, error) {
	return openMJPEG(ctx, httpc.NewStreamClient(), url)
}

func openMJPEG(ctx context.Context, client *http.Client, url string) (*MJPEGSource, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("video: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("video: connect %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("video: connect %s: status %d", url, resp.StatusCode)
	}

	boundary, err := boundaryOf(resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("video: %s: %w", url, err)
	}

	return &MJPEGSource{
		url:    url,
		body:   resp.Body,
		dec:    mjpeg.NewDecoder(resp.Body, boundary),
		cancel: cancel,
	}, nil
}

// boundaryOf extracts the multipart boundary from a Content-Type header and
// rejects responses that are not multipart streams.
func boundaryOf(contentType string) (string, error) {
	mediaType, p, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("bad content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("not a multipart stream: %s", mediaType)
	}
	boundary := strings.TrimPrefix(p["boundary"], "--")
	if boundary == "" {
		return "", errors.New("missing multipart boundary")
	}
	return boundary, nil
}

// NextFrame reads the next part and decodes it to a BGR frame.
func (s *MJPEGSource) NextFrame() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Failed(ErrClosed)
	}

	data, err := s.dec.DecodeRaw()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Failed(fmt.Errorf("%w: stream ended", ErrNoFrame))
		}
		return Failed(fmt.Errorf("%w: %v", ErrNoFrame, err))
	}
	if len(data) == 0 {
		return Failed(fmt.Errorf("%w: empty part", ErrDecode))
	}

	frame, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		frame.Close()
		return Failed(fmt.Errorf("%w: %v", ErrDecode, err))
	}
	if frame.Empty() {
		frame.Close()
		return Failed(fmt.Errorf("%w: not an image (%d bytes)", ErrDecode, len(data)))
	}
	return Result{Frame: frame, OK: true}
}

// Close tears down the HTTP stream. Safe to call more than once.
func (s *MJPEGSource) Close() error {
	// Cancel before locking so a NextFrame blocked on the socket returns.
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
