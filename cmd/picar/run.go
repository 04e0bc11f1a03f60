package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/teslashibe/go-picar/internal/config"
	"github.com/teslashibe/go-picar/internal/log"
	"github.com/teslashibe/go-picar/pkg/car"
	"github.com/teslashibe/go-picar/pkg/console"
	"github.com/teslashibe/go-picar/pkg/drive"
	"github.com/teslashibe/go-picar/pkg/loop"
	"github.com/teslashibe/go-picar/pkg/params"
	"github.com/teslashibe/go-picar/pkg/recorder"
	"github.com/teslashibe/go-picar/pkg/video"
	"github.com/teslashibe/go-picar/pkg/web"
)

// consoleLogFile receives log output while the terminal console owns the screen.
const consoleLogFile = "picar.log"

var (
	runModelPath string
	runSpeed     int
	runOpts      = config.DefaultOptions()
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the camera-to-steering control loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.NewRunConfig(runModelPath, carIP, runSpeed)
		runOpts.LogLevel = logLevel
		if err := runOpts.Validate(); err != nil {
			return err
		}
		return runLoop(cmd.Context(), cfg, runOpts)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runModelPath, "neural-network-file", "n", config.ModelPath(config.DefaultModelPath), "Neural network file name")
	f.IntVarP(&runSpeed, "speed", "s", config.IntEnv("PICAR_SPEED", 0), "Car speed value from 0 to 100")
	f.StringVar(&runOpts.StreamBackend, "stream-backend", runOpts.StreamBackend, "Video stream reader (capture or http)")
	f.StringVar(&runOpts.PanelPort, "panel-port", runOpts.PanelPort, "Control panel port (empty disables the panel)")
	f.BoolVar(&runOpts.Predict, "predict", false, "Steer with the neural network instead of the panel")
	f.StringVar(&runOpts.OnDispatchError, "on-dispatch-error", runOpts.OnDispatchError, "What a failed command send does (drop or fatal)")
	f.BoolVar(&runOpts.SafeStop, "safe-stop", runOpts.SafeStop, "Send a stop command when the loop ends")
	f.StringVar(&runOpts.RecordPath, "record", "", "Record drive telemetry to this SQLite file")
	f.BoolVar(&runOpts.Console, "console", false, "Show the terminal console")

	rootCmd.AddCommand(runCmd)
}

func runLoop(ctx context.Context, cfg config.RunConfig, opts config.Options) error {
	out := io.Writer(os.Stdout)

	printBanner(out)
	printConfig(out, cfg, opts)

	// Components capture their logger when built, so the console's log file
	// must be in place before any of them exist.
	if opts.Console {
		restore, err := redirectLogs(consoleLogFile)
		if err != nil {
			return err
		}
		defer restore()
	}

	store := params.NewMemoryStore()
	if err := store.Set(params.Speed, cfg.DefaultSpeed); err != nil {
		return err
	}

	policy, err := car.ParsePolicy(opts.OnDispatchError)
	if err != nil {
		return err
	}

	var deriver drive.Deriver = drive.Manual{}
	if opts.Predict {
		net, err := drive.LoadNet(cfg.ModelPath)
		if err != nil {
			return err
		}
		defer net.Close()
		deriver = drive.NewPredictive(net)
	}

	lcfg := loop.Config{
		Connect: func(ctx context.Context) (car.Emitter, error) {
			client, err := car.Dial(ctx, cfg.EventURL())
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Open: func(ctx context.Context) (video.Source, error) {
			src, err := openSource(ctx, opts.StreamBackend, cfg.StreamURL())
			if err != nil {
				return nil, err
			}
			if d, ok := src.(video.Describer); ok {
				printCameraInfo(out, cfg.IPAddress, d.Info())
			}
			return src, nil
		},
		Store:    store,
		Deriver:  deriver,
		Policy:   policy,
		SafeStop: opts.SafeStop,
	}

	if opts.PanelPort != "" {
		panel := web.NewServer(opts.PanelPort, store)
		panel.StartAsync()
		defer panel.Shutdown()

		lcfg.Display = panel.Display()
		lcfg.Quit = append(lcfg.Quit, panel)
		lcfg.Observers = append(lcfg.Observers, panel)
	}

	if opts.RecordPath != "" {
		rec, err := recorder.Open(opts.RecordPath,
			recorder.WithSessionInfo(deriver.Name(), cfg.IPAddress),
			recorder.WithMasks(true),
		)
		if err != nil {
			return err
		}
		defer rec.Close()
		lcfg.Recorder = rec
	}

	var consoleDone chan error
	if opts.Console {
		c := console.New(store, tea.WithAltScreen())
		lcfg.Quit = append(lcfg.Quit, c)
		lcfg.Observers = append(lcfg.Observers, c)

		consoleDone = make(chan error, 1)
		go func() { consoleDone <- c.Run() }()
	} else {
		lcfg.StatusOut = out
		fmt.Fprintln(out, "Press Ctrl+C to quit")
		fmt.Fprintln(out, "----------------------------- Sending Commands ---------------------------")
	}

	l, err := loop.New(lcfg)
	if err != nil {
		return err
	}

	runErr := l.Run(ctx)

	if consoleDone != nil {
		if err := <-consoleDone; err != nil {
			log.Warn("console exited with error", "error", err)
		}
	}
	fmt.Fprintln(out)

	return explain(out, runErr, cfg.IPAddress)
}

// redirectLogs sends log output to a fresh file at path until restore is
// called, which puts it back on stdout.
func redirectLogs(path string) (restore func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stdout)
		f.Close()
	}, nil
}

// openSource opens the camera stream with the chosen reader.
func openSource(ctx context.Context, backend, url string) (video.Source, error) {
	if backend == config.BackendHTTP {
		src, err := video.OpenMJPEG(ctx, url)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	src, err := video.OpenCapture(url)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// explain prints the operator hint for the failures they can fix.
func explain(w io.Writer, err error, ip string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, loop.ErrConnect):
		fmt.Fprintln(w, "Failed to connect to PiCar Socket Error")
		fmt.Fprintln(w, "Check that your laptop is connected to the PiCar network")
	case errors.Is(err, loop.ErrFrame):
		fmt.Fprintln(w, "Error displaying frame")
		fmt.Fprintln(w, "Have you connected to the PiCar?")
		fmt.Fprintf(w, "Is %s the correct ip address?\n", ip)
	}
	return err
}
