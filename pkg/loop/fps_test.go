package loop

import (
	"math"
	"testing"
	"time"
)

func TestSmooth_ExactFormula(t *testing.T) {
	tests := []struct {
		prev, instant float64
	}{
		{0, 30},
		{30, 30},
		{100, 10},
		{12.5, 17.25},
	}
	for _, tt := range tests {
		want := tt.prev + 0.08*(tt.instant-tt.prev)
		if got := Smooth(tt.prev, tt.instant, DefaultAlpha); got != want {
			t.Errorf("Smooth(%v, %v) = %v, want %v", tt.prev, tt.instant, got, want)
		}
	}
}

func TestFPS_ConvergesMonotonically(t *testing.T) {
	const target = 24.0

	for _, start := range []float64{0, 5, 60, 1000} {
		f := NewFPS(DefaultAlpha)
		f.value = start

		prevGap := math.Abs(start - target)
		for i := 0; i < 200; i++ {
			v := f.Update(target)
			gap := math.Abs(v - target)
			if gap > prevGap {
				t.Fatalf("start %v step %d: moved away from target (%v > %v)", start, i, gap, prevGap)
			}
			if (start < target && v > target) || (start > target && v < target) {
				t.Fatalf("start %v step %d: overshot to %v", start, i, v)
			}
			prevGap = gap
		}
		if prevGap > 0.01 {
			t.Errorf("start %v: still %v away after 200 steps", start, prevGap)
		}
	}
}

func TestFPS_Observe(t *testing.T) {
	f := NewFPS(0)
	if f.alpha != DefaultAlpha {
		t.Errorf("alpha = %v, want default", f.alpha)
	}

	got := f.Observe(50 * time.Millisecond)
	if want := 0.08 * 20; math.Abs(got-want) > 1e-9 {
		t.Errorf("Observe(50ms) = %v, want %v", got, want)
	}
	if f.Observe(0) != got || f.Observe(-time.Second) != got {
		t.Error("non-positive durations must be ignored")
	}
}
