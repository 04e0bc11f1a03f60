// Package vision turns camera frames into the binary guidance mask and
// renders the small diagnostics the operator watches while driving.
package vision

import (
	"errors"
	"fmt"
	"image"

	"github.com/teslashibe/go-picar/pkg/params"
	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when a frame has no pixels.
var ErrEmptyFrame = errors.New("vision: empty frame")

// Config holds the fixed filter sizes of the pipeline.
type Config struct {
	BlurSize   int // Gaussian kernel, odd
	KernelSize int // Structuring element for erode/dilate
	Iterations int // Erode and dilate passes
}

// DefaultConfig returns the 5×5, single-pass pipeline.
func DefaultConfig() Config {
	return Config{
		BlurSize:   5,
		KernelSize: 5,
		Iterations: 1,
	}
}

// Segmenter converts a BGR frame into a single-channel mask. It holds no
// per-frame state and is safe to reuse every cycle.
type Segmenter struct {
	config Config
}

// NewSegmenter creates a segmenter with the given filter sizes.
func NewSegmenter(cfg Config) *Segmenter {
	if cfg.BlurSize <= 0 || cfg.BlurSize%2 == 0 {
		cfg.BlurSize = 5
	}
	if cfg.KernelSize <= 0 {
		cfg.KernelSize = 5
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1
	}
	return &Segmenter{config: cfg}
}

// Segment runs the fixed pipeline:
//
//	BGR→HSV, blur, in-range box test, erode, dilate, blur.
//
// The caller owns the returned mask and must Close it. Bounds with any
// lower > upper produce an all-zero mask.
func (s *Segmenter) Segment(frame gocv.Mat, b params.ColorBounds) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	if frame.Channels() != 3 {
		return gocv.NewMat(), fmt.Errorf("vision: expected 3-channel frame, got %d", frame.Channels())
	}

	blur := image.Pt(s.config.BlurSize, s.config.BlurSize)

	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV); err != nil {
		return gocv.NewMat(), fmt.Errorf("vision: convert to hsv: %w", err)
	}

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	if err := gocv.GaussianBlur(hsv, &smoothed, blur, 0, 0, gocv.BorderDefault); err != nil {
		return gocv.NewMat(), fmt.Errorf("vision: blur: %w", err)
	}

	inRange := gocv.NewMat()
	defer inRange.Close()
	if err := gocv.InRangeWithScalar(smoothed, lowerScalar(b), upperScalar(b), &inRange); err != nil {
		return gocv.NewMat(), fmt.Errorf("vision: threshold: %w", err)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(s.config.KernelSize, s.config.KernelSize))
	defer kernel.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()
	if err := morph(gocv.Erode, inRange, &eroded, kernel, s.config.Iterations); err != nil {
		return gocv.NewMat(), fmt.Errorf("vision: erode: %w", err)
	}

	dilated := gocv.NewMat()
	defer dilated.Close()
	if err := morph(gocv.Dilate, eroded, &dilated, kernel, s.config.Iterations); err != nil {
		return gocv.NewMat(), fmt.Errorf("vision: dilate: %w", err)
	}

	mask := gocv.NewMat()
	if err := gocv.GaussianBlur(dilated, &mask, blur, 0, 0, gocv.BorderDefault); err != nil {
		mask.Close()
		return gocv.NewMat(), fmt.Errorf("vision: smooth mask: %w", err)
	}
	return mask, nil
}

// Threshold runs only the colour conversion and box test. Useful when
// inspecting bounds without the morphology.
func Threshold(frame gocv.Mat, b params.ColorBounds) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV); err != nil {
		return gocv.NewMat(), err
	}
	out := gocv.NewMat()
	if err := gocv.InRangeWithScalar(hsv, lowerScalar(b), upperScalar(b), &out); err != nil {
		out.Close()
		return gocv.NewMat(), err
	}
	return out, nil
}

// morph applies op the given number of times.
func morph(op func(gocv.Mat, *gocv.Mat, gocv.Mat) error, src gocv.Mat, dst *gocv.Mat, kernel gocv.Mat, iterations int) error {
	if err := op(src, dst, kernel); err != nil {
		return err
	}
	for i := 1; i < iterations; i++ {
		tmp := gocv.NewMat()
		if err := op(*dst, &tmp, kernel); err != nil {
			tmp.Close()
			return err
		}
		tmp.CopyTo(dst)
		tmp.Close()
	}
	return nil
}

func lowerScalar(b params.ColorBounds) gocv.Scalar {
	return gocv.NewScalar(float64(b.Lower[0]), float64(b.Lower[1]), float64(b.Lower[2]), 0)
}

func upperScalar(b params.ColorBounds) gocv.Scalar {
	return gocv.NewScalar(float64(b.Upper[0]), float64(b.Upper[1]), float64(b.Upper[2]), 0)
}
