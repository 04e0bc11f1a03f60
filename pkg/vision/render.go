package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Overlay placement for the FPS counter.
var (
	fpsOrigin = image.Pt(50, 50)
	fpsColor  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// DefaultJPEGQuality is used for panel previews.
const DefaultJPEGQuality = 80

// FormatFPS renders the overlay text, two decimal places.
func FormatFPS(fps float64) string {
	return fmt.Sprintf("FPS:%.2f", fps)
}

// DrawFPS writes the smoothed frame rate onto frame in place.
func DrawFPS(frame *gocv.Mat, fps float64) error {
	if frame.Empty() {
		return ErrEmptyFrame
	}
	return gocv.PutText(frame, FormatFPS(fps), fpsOrigin, gocv.FontHersheySimplex, 1.5, fpsColor, 1)
}

// EncodeJPEG compresses m for display. Quality outside 1..100 uses the default.
func EncodeJPEG(m gocv.Mat, quality int) ([]byte, error) {
	if m.Empty() {
		return nil, ErrEmptyFrame
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, m, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("vision: encode jpeg: %w", err)
	}
	defer buf.Close()

	src := buf.GetBytes()
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

// PrepareInput resizes m to width×height, expands a single-channel mask to
// three channels, and converts to 32-bit float. Pixel values are not
// rescaled. The caller owns the result.
func PrepareInput(m gocv.Mat, width, height int) (gocv.Mat, error) {
	if m.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(m, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear); err != nil {
		return gocv.NewMat(), fmt.Errorf("vision: resize: %w", err)
	}

	color3 := resized
	if resized.Channels() == 1 {
		expanded := gocv.NewMat()
		defer expanded.Close()
		if err := gocv.CvtColor(resized, &expanded, gocv.ColorGrayToBGR); err != nil {
			return gocv.NewMat(), fmt.Errorf("vision: expand channels: %w", err)
		}
		color3 = expanded
	}

	out := gocv.NewMat()
	if err := color3.ConvertTo(&out, gocv.MatTypeCV32FC3); err != nil {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("vision: convert to float: %w", err)
	}
	return out, nil
}
