package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/teslashibe/go-picar/internal/config"
	"github.com/teslashibe/go-picar/pkg/car"
	"github.com/teslashibe/go-picar/pkg/drive"
)

// tick is the progress bar resolution.
const tick = 100 * time.Millisecond

var (
	straightSpeed    int
	straightDuration time.Duration
	straightPause    time.Duration
)

var straightCmd = &cobra.Command{
	Use:   "straight",
	Short: "Drive forward, stop, then reverse in a straight line",
	Long: `Checks the car's motors and steering trim: steer straight, drive
forward, pause, drive back the same distance, and stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStraight(cmd.Context(), config.EventURL(carIP))
	},
}

func init() {
	f := straightCmd.Flags()
	f.IntVar(&straightSpeed, "speed", 50, "Drive speed from 0 to 100")
	f.DurationVar(&straightDuration, "duration", 5*time.Second, "How long to drive each way")
	f.DurationVar(&straightPause, "pause", 2*time.Second, "How long to stop between legs")

	rootCmd.AddCommand(straightCmd)
}

// phase is one leg of a scripted maneuver.
type phase struct {
	Name    string
	Command drive.Command
	For     time.Duration
}

// straightPhases is forward, pause, reverse with the wheels centred.
func straightPhases(speed int, leg, pause time.Duration) []phase {
	return []phase{
		{Name: "forward", Command: drive.Command{Speed: speed, Steer: drive.SteerStraight}, For: leg},
		{Name: "pause", Command: drive.Stop(), For: pause},
		{Name: "reverse", Command: drive.Command{Speed: -speed, Steer: drive.SteerStraight}, For: leg},
	}
}

func runStraight(ctx context.Context, eventURL string) error {
	client, err := car.Dial(ctx, eventURL)
	if err != nil {
		fmt.Println("Failed to connect to PiCar")
		fmt.Println("Check that your laptop is connected to the PiCar network")
		return err
	}
	d := car.NewDispatcher(client, car.WithPolicy(car.PolicyFatal))
	defer d.Close()

	phases := straightPhases(straightSpeed, straightDuration, straightPause)
	return runManeuver(ctx, d, phases, tick, os.Stderr)
}

// runManeuver sends each phase's command once, holds it for the phase
// duration and always finishes with a stop, even when cancelled.
func runManeuver(ctx context.Context, d *car.Dispatcher, phases []phase, step time.Duration, w io.Writer) (err error) {
	defer func() {
		if res := d.Halt(); !res.OK && err == nil {
			err = res.Err
		}
	}()

	var total int64
	for _, p := range phases {
		total += int64(p.For / step)
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("🚗 Straight line test"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(step),
	)
	defer bar.Finish()

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for _, p := range phases {
		bar.Describe(fmt.Sprintf("🚗 %-8s %s", p.Name, p.Command))
		if res := d.Send(p.Command); !res.OK {
			return fmt.Errorf("%s: %w", p.Name, res.Err)
		}

		for n := int64(p.For / step); n > 0; n-- {
			select {
			case <-ctx.Done():
				return errors.Join(ctx.Err(), errInterrupted)
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}
	return nil
}

var errInterrupted = errors.New("maneuver interrupted, car stopped")
