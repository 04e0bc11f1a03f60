package main

import (
	"fmt"
	"io"

	"github.com/teslashibe/go-picar/internal/config"
	"github.com/teslashibe/go-picar/pkg/video"
)

const banner = `
 ____  _  ____
|  _ \(_)/ ___|__ _ _ __
| |_) | | |   / _' | '__|
|  __/| | |__| (_| | |
|_|   |_|\____\__,_|_|
`

const rule = "--------------------------------------------------------------------------"

func printBanner(w io.Writer) {
	fmt.Fprintln(w, banner)
}

func printConfig(w io.Writer, cfg config.RunConfig, opts config.Options) {
	fmt.Fprintln(w, "--------------------------------- Config ---------------------------------")
	fmt.Fprintf(w, "Neural network file name: %s\n", cfg.ModelPath)
	fmt.Fprintf(w, "Car ip address: %s\n", cfg.IPAddress)
	fmt.Fprintf(w, "Car speed: %d\n", cfg.DefaultSpeed)
	fmt.Fprintf(w, "Steering: %s\n", strategyName(opts.Predict))
	fmt.Fprintf(w, "Stream backend: %s\n", opts.StreamBackend)
	fmt.Fprintf(w, "On dispatch error: %s\n", opts.OnDispatchError)
	if opts.PanelPort != "" {
		fmt.Fprintf(w, "Control panel: http://localhost:%s\n", opts.PanelPort)
	}
	if opts.RecordPath != "" {
		fmt.Fprintf(w, "Recording to: %s\n", opts.RecordPath)
	}
}

func printCameraInfo(w io.Writer, ip string, info video.Info) {
	fmt.Fprintln(w, "----------------------------- Car Information ----------------------------")
	fmt.Fprintf(w, "Camera FPS: %.1f\n", info.FPS)
	fmt.Fprintf(w, "Camera width: %d\n", info.Width)
	fmt.Fprintf(w, "Camera height: %d\n", info.Height)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Capturing video from %s\n", ip)
}

func strategyName(predict bool) string {
	if predict {
		return "predictive"
	}
	return "manual"
}
