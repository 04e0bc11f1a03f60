package drive

import (
	"github.com/teslashibe/go-picar/pkg/params"
	"gocv.io/x/gocv"
)

// Input is everything a strategy may look at in one cycle. Params is the
// snapshot the mask was segmented with, so both see the same panel state.
type Input struct {
	Frame  gocv.Mat
	Mask   gocv.Mat
	Params params.Snapshot
}

// Deriver produces the cycle's command. Implementations never fail: a
// strategy that cannot produce a command returns a safe one.
type Deriver interface {
	Derive(in Input) Command
	Name() string
}

// Manual passes the operator's speed and steering offset straight through.
type Manual struct{}

// Ensure Manual implements Deriver
var _ Deriver = Manual{}

// Derive returns the panel values unchanged.
func (Manual) Derive(in Input) Command {
	return Command{Speed: in.Params.Speed, Steer: in.Params.SteerOffset}
}

// Name identifies the strategy in logs and status.
func (Manual) Name() string { return "manual" }
