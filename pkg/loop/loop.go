// Package loop runs the PiCar control cycle: read a frame, segment it, show
// diagnostics, derive a command, dispatch it, check for quit.
//
// The loop is an explicit state machine. Every exit, clean or not, passes
// through Stopping, where cleanup runs exactly once.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-picar/internal/log"
	"github.com/teslashibe/go-picar/pkg/car"
	"github.com/teslashibe/go-picar/pkg/drive"
	"github.com/teslashibe/go-picar/pkg/params"
	"github.com/teslashibe/go-picar/pkg/video"
	"github.com/teslashibe/go-picar/pkg/vision"
	"gocv.io/x/gocv"
)

// State is the loop's lifecycle position.
type State int

const (
	Starting State = iota
	Running
	Stopping
	Terminated
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Segmenter produces the guidance mask. *vision.Segmenter implements it.
type Segmenter interface {
	Segment(frame gocv.Mat, b params.ColorBounds) (gocv.Mat, error)
}

// Display shows the mask and the annotated frame. Both Mats are only valid
// for the duration of the call.
type Display interface {
	Show(mask, frame gocv.Mat) error
	Close() error
}

// QuitPoller reports operator quit input. It must not block.
type QuitPoller interface {
	QuitRequested() bool
}

// Telemetry describes one completed cycle. Mask and Frame are only valid
// for the duration of the Record call.
type Telemetry struct {
	Seq        uint64
	Time       time.Time
	FPS        float64
	Command    drive.Command
	Dispatched bool
	Mask       gocv.Mat
	Frame      gocv.Mat
}

// Recorder persists cycle telemetry. A Record error is logged and never
// stops the loop.
type Recorder interface {
	Record(t Telemetry) error
}

// Status is a snapshot for panels and consoles.
type Status struct {
	State            State         `json:"state"`
	FPS              float64       `json:"fps"`
	Cycles           uint64        `json:"cycles"`
	Command          drive.Command `json:"command"`
	Strategy         string        `json:"strategy"`
	Connected        bool          `json:"connected"`
	Dispatched       uint64        `json:"dispatched"`
	DispatchFailures uint64        `json:"dispatch_failures"`
	Error            string        `json:"error,omitempty"`
}

// Observer receives a Status after every cycle and on every state change.
type Observer interface {
	Observe(s Status)
}

// ConnectFunc opens the event channel to the car.
type ConnectFunc func(ctx context.Context) (car.Emitter, error)

// OpenFunc opens the camera stream.
type OpenFunc func(ctx context.Context) (video.Source, error)

// Config wires the loop's collaborators. Connect, Open and Store are
// required.
type Config struct {
	Connect ConnectFunc
	Open    OpenFunc
	Store   params.Store

	// Segmenter defaults to the standard five-stage pipeline.
	Segmenter Segmenter

	// Deriver defaults to manual control.
	Deriver drive.Deriver

	Display   Display
	Quit      []QuitPoller
	Observers []Observer
	Recorder  Recorder

	// Policy decides whether a failed dispatch ends the run.
	Policy car.FailurePolicy

	// SafeStop sends one halt command on the way out when the channel is
	// still up.
	SafeStop bool

	// StatusOut receives the per-cycle "speed: N steering angle: M" line.
	StatusOut io.Writer

	// Alpha is the FPS smoothing factor. Zero uses DefaultAlpha.
	Alpha float64

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Loop is one control session.
type Loop struct {
	cfg    Config
	logger *slog.Logger
	fps    *FPS

	source     video.Source
	dispatcher *car.Dispatcher

	mu      sync.Mutex
	state   State
	cycles  uint64
	lastCmd drive.Command
	lastErr error

	cleanup sync.Once
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Loop, error) {
	if cfg.Connect == nil {
		return nil, errors.New("loop: Connect is required")
	}
	if cfg.Open == nil {
		return nil, errors.New("loop: Open is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("loop: Store is required")
	}
	if cfg.Segmenter == nil {
		cfg.Segmenter = vision.NewSegmenter(vision.DefaultConfig())
	}
	if cfg.Deriver == nil {
		cfg.Deriver = drive.Manual{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Loop{
		cfg:     cfg,
		logger:  log.For("loop"),
		fps:     NewFPS(cfg.Alpha),
		state:   Starting,
		lastCmd: drive.Stop(),
	}, nil
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Status builds a snapshot of the loop.
func (l *Loop) Status() Status {
	l.mu.Lock()
	s := Status{
		State:    l.state,
		FPS:      l.fps.Value(),
		Cycles:   l.cycles,
		Command:  l.lastCmd,
		Strategy: l.cfg.Deriver.Name(),
	}
	if l.lastErr != nil {
		s.Error = l.lastErr.Error()
	}
	d := l.dispatcher
	l.mu.Unlock()

	if d != nil {
		st := d.Stats()
		s.Connected = d.Connected()
		s.Dispatched = st.Sent
		s.DispatchFailures = st.Failures
	}
	return s
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.mu.Unlock()
	if prev != s {
		l.logger.Debug("state change", "from", prev, "to", s)
		l.notify()
	}
}

func (l *Loop) notify() {
	if len(l.cfg.Observers) == 0 {
		return
	}
	s := l.Status()
	for _, o := range l.cfg.Observers {
		o.Observe(s)
	}
}

// Run executes the session until quit, context cancellation or a fatal
// failure. A clean quit returns nil; failures return a *StopError.
func (l *Loop) Run(ctx context.Context) error {
	if l.State() != Starting {
		return errors.New("loop: already run")
	}

	emitter, err := l.cfg.Connect(ctx)
	if err != nil {
		return l.stop(Starting, fmt.Errorf("%w: %w", ErrConnect, err))
	}
	l.mu.Lock()
	l.dispatcher = car.NewDispatcher(emitter, car.WithPolicy(l.cfg.Policy))
	l.mu.Unlock()

	source, err := l.cfg.Open(ctx)
	if err != nil {
		return l.stop(Starting, fmt.Errorf("%w: %w", ErrFrame, err))
	}
	l.mu.Lock()
	l.source = source
	l.mu.Unlock()

	l.setState(Running)
	l.logger.Info("control loop running", "strategy", l.cfg.Deriver.Name(), "policy", l.cfg.Policy)

	for {
		if ctx.Err() != nil {
			l.logger.Info("interrupted, stopping")
			return l.stop(Running, nil)
		}
		quit, err := l.cycle(ctx)
		if err != nil {
			return l.stop(Running, err)
		}
		if quit {
			l.logger.Info("quit requested, stopping")
			return l.stop(Running, nil)
		}
	}
}

// cycle runs one pass. Frames and masks are released before it returns.
func (l *Loop) cycle(ctx context.Context) (quit bool, err error) {
	start := l.cfg.Now()

	res := l.source.NextFrame()
	frame := res.Frame
	defer frame.Close()
	if !res.OK {
		return false, fmt.Errorf("%w: %v", ErrFrame, res.Err)
	}

	// One snapshot per cycle so the mask and the command agree.
	snap := l.cfg.Store.Snapshot()

	mask, err := l.cfg.Segmenter.Segment(frame, snap.Bounds)
	defer mask.Close()
	if err != nil {
		return false, fmt.Errorf("%w: segment: %v", ErrFrame, err)
	}

	if l.cfg.Display != nil {
		// The overlay is for the operator only; derive and record get the
		// camera image untouched.
		annotated := frame.Clone()
		defer annotated.Close()
		if err := vision.DrawFPS(&annotated, l.fps.Value()); err != nil {
			return false, fmt.Errorf("%w: overlay: %v", ErrFrame, err)
		}
		if err := l.cfg.Display.Show(mask, annotated); err != nil {
			return false, fmt.Errorf("%w: display: %v", ErrFrame, err)
		}
	}

	cmd := l.cfg.Deriver.Derive(drive.Input{Frame: frame, Mask: mask, Params: snap})
	result := l.dispatcher.Send(cmd)

	l.mu.Lock()
	l.cycles++
	seq := l.cycles
	l.lastCmd = result.Sent
	l.mu.Unlock()

	if l.cfg.StatusOut != nil {
		fmt.Fprintf(l.cfg.StatusOut, "\r%s  ", result.Sent)
	}

	if l.cfg.Recorder != nil {
		rerr := l.cfg.Recorder.Record(Telemetry{
			Seq:        seq,
			Time:       start,
			FPS:        l.fps.Value(),
			Command:    result.Sent,
			Dispatched: result.OK,
			Mask:       mask,
			Frame:      frame,
		})
		if rerr != nil {
			l.logger.Warn("telemetry not recorded", "seq", seq, "error", rerr)
		}
	}

	if !result.OK && l.cfg.Policy == car.PolicyFatal {
		return false, fmt.Errorf("%w: %w", ErrDispatch, result.Err)
	}

	if l.quitRequested(ctx) {
		return true, nil
	}

	elapsed := l.cfg.Now().Sub(start)
	l.mu.Lock()
	l.fps.Observe(elapsed)
	l.mu.Unlock()
	l.notify()
	return false, nil
}

func (l *Loop) quitRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	for _, q := range l.cfg.Quit {
		if q.QuitRequested() {
			return true
		}
	}
	return false
}

// stop moves to Stopping, runs cleanup once and terminates. cause nil means
// a clean stop.
func (l *Loop) stop(from State, cause error) error {
	l.mu.Lock()
	l.lastErr = cause
	l.mu.Unlock()

	if cause != nil {
		l.logger.Error("control loop stopping", "state", from, "error", cause)
	}

	l.setState(Stopping)
	l.cleanup.Do(l.release)
	l.setState(Terminated)

	if cause == nil {
		return nil
	}
	return &StopError{State: from, Cause: cause}
}

// release halts the car if asked, then closes the source, the channel and
// the display.
func (l *Loop) release() {
	l.mu.Lock()
	d, src := l.dispatcher, l.source
	l.mu.Unlock()

	if l.cfg.StatusOut != nil {
		fmt.Fprintln(l.cfg.StatusOut)
	}

	if d != nil && l.cfg.SafeStop && d.Connected() {
		if res := d.Halt(); !res.OK {
			l.logger.Warn("halt command not delivered", "error", res.Err)
		} else {
			l.logger.Info("car halted")
		}
	}
	if src != nil {
		if err := src.Close(); err != nil {
			l.logger.Warn("close frame source", "error", err)
		}
	}
	if d != nil {
		if err := d.Close(); err != nil {
			l.logger.Warn("close event channel", "error", err)
		}
	}
	if l.cfg.Display != nil {
		if err := l.cfg.Display.Close(); err != nil {
			l.logger.Warn("close display", "error", err)
		}
	}
}
