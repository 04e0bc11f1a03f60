// Package params holds the live-tunable parameters of the control loop:
// the HSV colour bounds used for segmentation and the manual speed and
// steering controls.
//
// Values are read by the control loop once per cycle and written at any
// time by the operator panel. Nothing checks that a lower bound is below
// its upper bound; an inverted range simply yields an empty mask.
package params

import (
	"errors"
	"fmt"
)

// Parameter names, as exposed on the panel.
const (
	HueLower    = "hue_lower"
	SatLower    = "sat_lower"
	ValLower    = "val_lower"
	HueUpper    = "hue_upper"
	SatUpper    = "sat_upper"
	ValUpper    = "val_upper"
	Speed       = "speed"
	SteerOffset = "steer_offset"
)

// ErrUnknownParam is returned for names outside the fixed parameter set.
var ErrUnknownParam = errors.New("params: unknown parameter")

// Spec describes one slider: its label, range and start value.
type Spec struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Default int    `json:"default"`
}

// Clamp restricts v to the slider range.
func (s Spec) Clamp(v int) int {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// specs lists the panel sliders in display order. Defaults isolate the
// green tape used on the lab track.
var specs = []Spec{
	{Name: HueLower, Label: "Hue Lower", Min: 0, Max: 255, Default: 40},
	{Name: SatLower, Label: "Sat Lower", Min: 0, Max: 255, Default: 25},
	{Name: ValLower, Label: "Val Lower", Min: 0, Max: 255, Default: 73},
	{Name: HueUpper, Label: "Hue Upper", Min: 0, Max: 255, Default: 93},
	{Name: SatUpper, Label: "Sat Upper", Min: 0, Max: 255, Default: 194},
	{Name: ValUpper, Label: "Val Upper", Min: 0, Max: 255, Default: 245},
	{Name: Speed, Label: "Speed", Min: 0, Max: 100, Default: 0},
	{Name: SteerOffset, Label: "Steering Offset", Min: 0, Max: 180, Default: 90},
}

// Specs returns a copy of the slider definitions in display order.
func Specs() []Spec {
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// Names returns the parameter names in display order.
func Names() []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// Lookup returns the Spec for name.
func Lookup(name string) (Spec, error) {
	for _, s := range specs {
		if s.Name == name {
			return s, nil
		}
	}
	return Spec{}, fmt.Errorf("%w: %q", ErrUnknownParam, name)
}

// ColorBounds is an inclusive HSV box: a pixel is foreground iff every
// channel lies within [Lower[i], Upper[i]].
type ColorBounds struct {
	Lower [3]int `json:"lower"`
	Upper [3]int `json:"upper"`
}

// Inverted reports whether any channel has Lower > Upper. Such bounds are
// accepted; they select nothing.
func (b ColorBounds) Inverted() bool {
	for i := 0; i < 3; i++ {
		if b.Lower[i] > b.Upper[i] {
			return true
		}
	}
	return false
}

// Snapshot is a consistent copy of every parameter taken under one lock.
type Snapshot struct {
	Bounds      ColorBounds `json:"bounds"`
	Speed       int         `json:"speed"`
	SteerOffset int         `json:"steer_offset"`
}

// Values returns the snapshot as a name → value map.
func (s Snapshot) Values() map[string]int {
	return map[string]int{
		HueLower:    s.Bounds.Lower[0],
		SatLower:    s.Bounds.Lower[1],
		ValLower:    s.Bounds.Lower[2],
		HueUpper:    s.Bounds.Upper[0],
		SatUpper:    s.Bounds.Upper[1],
		ValUpper:    s.Bounds.Upper[2],
		Speed:       s.Speed,
		SteerOffset: s.SteerOffset,
	}
}

// Store is the operator-facing parameter panel.
type Store interface {
	Get(name string) (int, error)
	Set(name string, v int) error
	Snapshot() Snapshot
}
