// Package car sends drive commands to the PiCar over its event channel.
package car

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-picar/internal/log"
	"github.com/teslashibe/go-picar/pkg/drive"
	"github.com/teslashibe/go-picar/pkg/socketio"
)

// Event names understood by the car.
const (
	EventDrive = "drive"
	EventSteer = "steer"
)

// warnInterval limits how often dispatch failures are logged.
const warnInterval = 5 * time.Second

// ErrNotConnected is returned when the event channel is down.
var ErrNotConnected = errors.New("car: event channel not connected")

// Emitter is a named-event channel. *socketio.Client implements it.
type Emitter interface {
	Emit(event string, args ...any) error
	Connected() bool
}

// Ensure the Socket.IO client implements Emitter
var _ Emitter = (*socketio.Client)(nil)

// FailurePolicy decides what a failed dispatch means to the caller.
type FailurePolicy int

const (
	// PolicyDrop logs the failure and carries on with the next cycle.
	PolicyDrop FailurePolicy = iota
	// PolicyFatal stops the control loop on the first failure.
	PolicyFatal
)

func (p FailurePolicy) String() string {
	switch p {
	case PolicyDrop:
		return "drop"
	case PolicyFatal:
		return "fatal"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps "drop" or "fatal" to a FailurePolicy.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return PolicyDrop, nil
	case "fatal":
		return PolicyFatal, nil
	default:
		return PolicyDrop, fmt.Errorf("car: unknown dispatch policy %q", s)
	}
}

// Result reports one Send. Sent holds the clamped command that was
// attempted.
type Result struct {
	OK   bool
	Err  error
	Sent drive.Command
}

// Stats are dispatch counters since the Dispatcher was created.
type Stats struct {
	Sent     uint64        `json:"sent"`
	Failures uint64        `json:"failures"`
	Last     drive.Command `json:"last"`
}

// Dispatcher turns commands into the drive/steer event pair.
type Dispatcher struct {
	emitter Emitter
	policy  FailurePolicy
	logger  *slog.Logger

	mu            sync.Mutex
	sent          uint64
	failures      uint64
	last          drive.Command
	lastErrorTime time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPolicy sets the failure policy.
func WithPolicy(p FailurePolicy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// NewDispatcher creates a dispatcher on emitter.
func NewDispatcher(emitter Emitter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		emitter: emitter,
		policy:  PolicyDrop,
		logger:  log.For("car"),
		last:    drive.Stop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial makes the one startup connection to the car's event server. There
// is no retry. Anything the server sends back is only logged.
func Dial(ctx context.Context, eventURL string) (*socketio.Client, error) {
	logger := log.For("car")
	opts := socketio.DefaultOptions()
	opts.OnEvent = func(event string, args []any) {
		logger.Debug("server event", "event", event, "args", args)
	}
	return socketio.Dial(ctx, eventURL, opts)
}

// Send emits drive then steer. When the channel is down nothing is
// emitted; when drive fails, steer is skipped. No acknowledgement is
// awaited.
func (d *Dispatcher) Send(cmd drive.Command) Result {
	cmd = cmd.Clamp()
	res := Result{Sent: cmd}

	if !d.emitter.Connected() {
		res.Err = ErrNotConnected
	} else if err := d.emitter.Emit(EventDrive, cmd.Speed); err != nil {
		res.Err = fmt.Errorf("car: emit %s: %w", EventDrive, err)
	} else if err := d.emitter.Emit(EventSteer, cmd.Steer); err != nil {
		res.Err = fmt.Errorf("car: emit %s: %w", EventSteer, err)
	} else {
		res.OK = true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if res.OK {
		d.sent++
		d.last = cmd
		return res
	}

	d.failures++
	// Log errors (but don't spam - max once per 5 seconds)
	if d.lastErrorTime.IsZero() || time.Since(d.lastErrorTime) > warnInterval {
		d.logger.Warn("dispatch failed", "error", res.Err, "failures", d.failures, "policy", d.policy)
		d.lastErrorTime = time.Now()
	}
	return res
}

// Halt sends the stop command.
func (d *Dispatcher) Halt() Result {
	return d.Send(drive.Stop())
}

// Stats returns a copy of the counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Sent: d.sent, Failures: d.failures, Last: d.last}
}

// Connected reports whether the event channel is up.
func (d *Dispatcher) Connected() bool {
	return d.emitter.Connected()
}

// Close closes the underlying channel if it can be closed.
func (d *Dispatcher) Close() error {
	if c, ok := d.emitter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
