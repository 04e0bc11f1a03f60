// Package drive turns operator controls or a steering network's output into
// the (speed, steer) pair sent to the car each cycle.
package drive

import "fmt"

// Command limits as understood by the car's event server.
const (
	MinSpeed      = -100
	MaxSpeed      = 100
	MinSteer      = 0
	MaxSteer      = 180
	SteerStraight = 90
)

// Command is one drive/steer pair.
type Command struct {
	Speed int `json:"speed"`
	Steer int `json:"steer"`
}

// Stop returns the halt command: wheels stopped, steering centred.
func Stop() Command {
	return Command{Speed: 0, Steer: SteerStraight}
}

// Clamp returns c with both fields forced into the car's ranges.
func (c Command) Clamp() Command {
	return Command{
		Speed: clamp(c.Speed, MinSpeed, MaxSpeed),
		Steer: clamp(c.Steer, MinSteer, MaxSteer),
	}
}

// String renders the per-cycle status line.
func (c Command) String() string {
	return fmt.Sprintf("speed: %d steering angle: %d", c.Speed, c.Steer)
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
