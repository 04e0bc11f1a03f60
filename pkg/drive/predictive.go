package drive

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-picar/internal/log"
	"github.com/teslashibe/go-picar/pkg/vision"
	"gocv.io/x/gocv"
)

// Steering network input size (width × height).
const (
	InputWidth  = 100
	InputHeight = 66
)

// warnInterval limits how often prediction failures are logged.
const warnInterval = 5 * time.Second

// ErrBadPrediction is returned for NaN or infinite network output.
var ErrBadPrediction = errors.New("drive: prediction is not a finite number")

// Predictor maps a prepared 100×66 3-channel float32 image to a steering
// angle in degrees.
type Predictor interface {
	Predict(input gocv.Mat) (float64, error)
}

// InputSource selects which image the network sees.
type InputSource int

const (
	// FromMask feeds the segmentation mask (the network was trained on masks).
	FromMask InputSource = iota
	// FromFrame feeds the raw camera frame.
	FromFrame
)

// Predictive steers from a network's output while taking speed from the
// panel. Any failure fails closed: speed 0, last good steering angle.
type Predictive struct {
	predictor Predictor
	source    InputSource
	logger    *slog.Logger

	mu        sync.Mutex
	lastSteer int
	failures  uint64
	lastWarn  time.Time
}

// Ensure Predictive implements Deriver
var _ Deriver = (*Predictive)(nil)

// PredictiveOption configures a Predictive deriver.
type PredictiveOption func(*Predictive)

// WithInput selects the network input image.
func WithInput(src InputSource) PredictiveOption {
	return func(p *Predictive) { p.source = src }
}

// NewPredictive wraps predictor.
func NewPredictive(predictor Predictor, opts ...PredictiveOption) *Predictive {
	p := &Predictive{
		predictor: predictor,
		source:    FromMask,
		lastSteer: SteerStraight,
		logger:    log.For("drive"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the strategy in logs and status.
func (p *Predictive) Name() string { return "predictive" }

// Derive runs the network on this cycle's input.
func (p *Predictive) Derive(in Input) Command {
	img := in.Mask
	if p.source == FromFrame {
		img = in.Frame
	}

	steer, err := p.predict(img)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.failures++
		if p.lastWarn.IsZero() || time.Since(p.lastWarn) > warnInterval {
			p.logger.Warn("steering prediction failed, holding car",
				"error", err, "failures", p.failures, "steer", p.lastSteer)
			p.lastWarn = time.Now()
		}
		return Command{Speed: 0, Steer: p.lastSteer}
	}

	p.lastSteer = steer
	return Command{Speed: in.Params.Speed, Steer: steer}
}

// Failures returns how many cycles failed closed.
func (p *Predictive) Failures() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// predict prepares img and converts the network output to a steering angle.
// A panicking predictor is reported as an error.
func (p *Predictive) predict(img gocv.Mat) (steer int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("drive: predictor panic: %v", r)
		}
	}()

	input, err := vision.PrepareInput(img, InputWidth, InputHeight)
	if err != nil {
		return 0, err
	}
	defer input.Close()

	v, err := p.predictor.Predict(input)
	if err != nil {
		return 0, fmt.Errorf("drive: predict: %w", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrBadPrediction
	}
	// Clamp before converting: int() of an out-of-range float is undefined.
	v = math.Max(MinSteer, math.Min(MaxSteer, math.Round(v)))
	return int(v), nil
}
