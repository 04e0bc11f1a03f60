package vision

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-picar/pkg/params"
	"gocv.io/x/gocv"
)

const (
	testRows = 48
	testCols = 64
)

// solidFrame returns a BGR frame filled with one colour.
func solidFrame(b, g, r float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), testRows, testCols, gocv.MatTypeCV8UC3)
}

var (
	fullRange = params.ColorBounds{Lower: [3]int{0, 0, 0}, Upper: [3]int{255, 255, 255}}
	trackTape = params.ColorBounds{Lower: [3]int{40, 25, 73}, Upper: [3]int{93, 194, 245}}
)

func TestSegment_AllWhiteIsForeground(t *testing.T) {
	frame := solidFrame(255, 255, 255)
	defer frame.Close()

	mask, err := NewSegmenter(DefaultConfig()).Segment(frame, fullRange)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	defer mask.Close()

	if mask.Rows() != testRows || mask.Cols() != testCols {
		t.Errorf("mask size: got %dx%d, want %dx%d", mask.Cols(), mask.Rows(), testCols, testRows)
	}
	if mask.Channels() != 1 {
		t.Errorf("mask channels: got %d, want 1", mask.Channels())
	}
	if n := gocv.CountNonZero(mask); n != testRows*testCols {
		t.Errorf("foreground pixels: got %d, want %d", n, testRows*testCols)
	}
}

func TestSegment_AllBlackIsBackground(t *testing.T) {
	frame := solidFrame(0, 0, 0)
	defer frame.Close()

	// Value lower bound of 73 excludes black
	mask, err := NewSegmenter(DefaultConfig()).Segment(frame, trackTape)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	defer mask.Close()

	if n := gocv.CountNonZero(mask); n != 0 {
		t.Errorf("foreground pixels: got %d, want 0", n)
	}
}

func TestSegment_GreenTapeSelected(t *testing.T) {
	// Muted green: hue 60 in OpenCV's 0..180 scale, saturation ~128, value 200
	frame := solidFrame(100, 200, 100)
	defer frame.Close()

	mask, err := NewSegmenter(DefaultConfig()).Segment(frame, trackTape)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	defer mask.Close()

	if n := gocv.CountNonZero(mask); n != testRows*testCols {
		t.Errorf("foreground pixels: got %d, want %d", n, testRows*testCols)
	}
}

func TestSegment_InvertedBoundsYieldEmptyMask(t *testing.T) {
	frame := solidFrame(255, 255, 255)
	defer frame.Close()

	tests := []struct {
		name   string
		bounds params.ColorBounds
	}{
		{"hue inverted", params.ColorBounds{Lower: [3]int{200, 0, 0}, Upper: [3]int{10, 255, 255}}},
		{"sat inverted", params.ColorBounds{Lower: [3]int{0, 200, 0}, Upper: [3]int{255, 10, 255}}},
		{"val inverted", params.ColorBounds{Lower: [3]int{0, 0, 255}, Upper: [3]int{255, 255, 0}}},
	}

	seg := NewSegmenter(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := seg.Segment(frame, tt.bounds)
			if err != nil {
				t.Fatalf("inverted bounds must not error: %v", err)
			}
			defer mask.Close()
			if n := gocv.CountNonZero(mask); n != 0 {
				t.Errorf("foreground pixels: got %d, want 0", n)
			}

			raw, err := Threshold(frame, tt.bounds)
			if err != nil {
				t.Fatal(err)
			}
			defer raw.Close()
			if n := gocv.CountNonZero(raw); n != 0 {
				t.Errorf("threshold stage: got %d foreground pixels, want 0", n)
			}
		})
	}
}

func TestSegment_IsolatedPixelRemoved(t *testing.T) {
	frame := solidFrame(0, 0, 0)
	defer frame.Close()

	// A single white pixel passes the raw threshold but not the full pipeline
	frame.SetUCharAt(10, 10*3, 255)
	frame.SetUCharAt(10, 10*3+1, 255)
	frame.SetUCharAt(10, 10*3+2, 255)

	raw, err := Threshold(frame, params.ColorBounds{Lower: [3]int{0, 0, 200}, Upper: [3]int{255, 255, 255}})
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	if gocv.CountNonZero(raw) == 0 {
		t.Fatal("threshold should keep the speck")
	}

	mask, err := NewSegmenter(DefaultConfig()).Segment(frame, params.ColorBounds{Lower: [3]int{0, 0, 200}, Upper: [3]int{255, 255, 255}})
	if err != nil {
		t.Fatal(err)
	}
	defer mask.Close()
	if n := gocv.CountNonZero(mask); n != 0 {
		t.Errorf("speck survived morphology: %d pixels", n)
	}
}

func TestSegment_EmptyFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	mask, err := NewSegmenter(DefaultConfig()).Segment(empty, fullRange)
	defer mask.Close()
	if !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestSegment_RejectsGrayFrame(t *testing.T) {
	gray := gocv.NewMatWithSize(testRows, testCols, gocv.MatTypeCV8U)
	defer gray.Close()

	mask, err := NewSegmenter(DefaultConfig()).Segment(gray, fullRange)
	defer mask.Close()
	if err == nil {
		t.Error("expected error for single-channel frame")
	}
}

func TestNewSegmenter_FixesBadConfig(t *testing.T) {
	s := NewSegmenter(Config{BlurSize: 4, KernelSize: 0, Iterations: -1})
	if s.config.BlurSize != 5 || s.config.KernelSize != 5 || s.config.Iterations != 1 {
		t.Errorf("config not normalised: %+v", s.config)
	}
}
