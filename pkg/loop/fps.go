package loop

import "time"

// DefaultAlpha is the smoothing factor for the on-screen frame rate.
const DefaultAlpha = 0.08

// Smooth returns prev moved a fraction alpha of the way toward instant.
func Smooth(prev, instant, alpha float64) float64 {
	return prev + alpha*(instant-prev)
}

// FPS is an exponentially weighted frame-rate estimate. It only feeds the
// overlay and status; nothing is timed from it.
type FPS struct {
	alpha float64
	value float64
}

// NewFPS creates an estimator starting at zero. alpha outside (0, 1] uses
// DefaultAlpha.
func NewFPS(alpha float64) *FPS {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &FPS{alpha: alpha}
}

// Update folds one instantaneous measurement in and returns the new value.
func (f *FPS) Update(instant float64) float64 {
	f.value = Smooth(f.value, instant, f.alpha)
	return f.value
}

// Observe converts a cycle duration to a rate and folds it in. Zero or
// negative durations are ignored.
func (f *FPS) Observe(d time.Duration) float64 {
	if d <= 0 {
		return f.value
	}
	return f.Update(1 / d.Seconds())
}

// Value returns the current estimate.
func (f *FPS) Value() float64 {
	return f.value
}
