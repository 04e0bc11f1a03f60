// Package socketio wraps the zishang520 Socket.IO client for the car's event
// channel: one websocket session, no reconnection, and no send buffering
// while the session is down.
package socketio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-picar/internal/log"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Sentinel errors for common conditions.
var (
	ErrNotConnected = errors.New("socketio: not connected")
	ErrHandshake    = errors.New("socketio: handshake failed")
)

// DefaultNamespace is the namespace joined when Options leaves it empty.
const DefaultNamespace = "/"

// DefaultHandshakeTimeout bounds Dial when Options leaves it zero.
const DefaultHandshakeTimeout = 5 * time.Second

// Options configures Dial.
type Options struct {
	// Namespace to join. Empty means "/".
	Namespace string

	// Auth is sent with the namespace connect request when non-nil.
	Auth map[string]any

	// HandshakeTimeout bounds the websocket upgrade plus the namespace
	// connect.
	HandshakeTimeout time.Duration

	// OnEvent receives server-sent events. Called from the library's
	// goroutine.
	OnEvent func(event string, args []any)
}

// DefaultOptions returns options for the default namespace.
func DefaultOptions() Options {
	return Options{
		Namespace:        DefaultNamespace,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

// Client is a connected Socket.IO session.
type Client struct {
	sock   *socket.Socket
	logger *slog.Logger

	closing   atomic.Bool
	lostOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// ServerURL turns an event server address such as 192.168.0.10:3000 into
// the URL the client connects to, with the namespace as its path.
func ServerURL(raw, namespace string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("socketio: bad url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("socketio: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("socketio: url %q has no host", raw)
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	u.Path = namespace
	u.RawQuery = ""
	return u.String(), nil
}

// Dial connects to the event server at addr and joins the namespace.
// It does not retry.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}

	uri, err := ServerURL(addr, opts.Namespace)
	if err != nil {
		return nil, err
	}

	so := socket.DefaultOptions()
	so.SetTransports(types.NewSet(socket.WebSocket))
	so.SetForceNew(true)
	so.SetMultiplex(false)
	so.SetReconnection(false)
	so.SetAutoConnect(false)
	so.SetTimeout(opts.HandshakeTimeout)
	if opts.Auth != nil {
		so.SetAuth(opts.Auth)
	}

	sock, err := socket.Connect(uri, so)
	if err != nil {
		return nil, fmt.Errorf("socketio: connect %s: %w", addr, err)
	}

	c := &Client{
		sock:   sock,
		logger: log.For("socketio"),
		done:   make(chan struct{}),
	}

	result := make(chan error, 1)
	report := func(err error) {
		select {
		case result <- err:
		default:
		}
	}
	sock.On("connect", func(...any) { report(nil) })
	sock.On("connect_error", func(args ...any) { report(connectError(args)) })
	sock.On("disconnect", func(args ...any) { c.lost(disconnectReason(args)) })
	if opts.OnEvent != nil {
		sock.OnAny(func(args ...any) {
			if len(args) == 0 {
				return
			}
			if name, ok := args[0].(string); ok {
				opts.OnEvent(name, args[1:])
			}
		})
	}

	sock.Connect()

	timer := time.NewTimer(opts.HandshakeTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			c.abort()
			return nil, err
		}
	case <-timer.C:
		c.abort()
		return nil, fmt.Errorf("%w: no answer from %s within %s", ErrHandshake, addr, opts.HandshakeTimeout)
	case <-ctx.Done():
		c.abort()
		return nil, ctx.Err()
	}

	c.logger.Debug("connected", "url", uri, "sid", sock.Id(), "namespace", opts.Namespace)
	return c, nil
}

// connectError turns a connect_error payload into an ErrHandshake.
func connectError(args []any) error {
	for _, a := range args {
		if err, ok := a.(error); ok && err != nil {
			return fmt.Errorf("%w: %v", ErrHandshake, err)
		}
	}
	return ErrHandshake
}

func disconnectReason(args []any) string {
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			return s
		}
	}
	return "unknown"
}

// lost records the end of the session. The first cause wins.
func (c *Client) lost(reason string) {
	c.lostOnce.Do(func() {
		if !c.closing.Load() {
			c.logger.Warn("event channel lost", "reason", reason)
		}
		close(c.done)
	})
}

// abort tears down a session that never finished connecting.
func (c *Client) abort() {
	c.closing.Store(true)
	c.sock.Disconnect()
}

// Emit sends an event with the given arguments. It does not wait for the
// server to acknowledge.
func (c *Client) Emit(event string, args ...any) error {
	if !c.sock.Connected() {
		return ErrNotConnected
	}
	if err := c.sock.Emit(event, args...); err != nil {
		return fmt.Errorf("socketio: emit %s: %w", event, err)
	}
	return nil
}

// Connected reports whether the session is usable.
func (c *Client) Connected() bool {
	return c.sock.Connected()
}

// Close leaves the namespace and closes the socket. Safe to call more than
// once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.sock.Disconnect()
		c.lost("io client disconnect")
	})
	return nil
}
