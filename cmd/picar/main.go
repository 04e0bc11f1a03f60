// picar - PiCar teleoperation and steering client
//
// Pulls the car's camera stream, segments the track tape, and drives the
// car from the operator's controls or a trained steering network.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-picar/internal/config"
	"github.com/teslashibe/go-picar/internal/log"
)

// Version is the application version.
const Version = "0.1.0"

var (
	carIP    string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "picar",
	Short:         "Drive a PiCar from its camera stream",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&carIP, "ip-address", "i", config.CarIP(config.DefaultCarIP), "Car ip address")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.LogLevel("info"), "Log level (debug, info, warn, error)")
}

func main() {
	// Ctrl+C (SIGINT) or kill (SIGTERM) cancels the command context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		stop()
		os.Exit(1)
	}
}
