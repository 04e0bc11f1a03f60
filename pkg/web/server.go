// Package web provides the operator control panel: parameter sliders, the
// live mask and video feeds, loop status, and a telemetry chart.
package web

import (
	_ "embed"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/teslashibe/go-picar/internal/log"
	"github.com/teslashibe/go-picar/pkg/hub"
	"github.com/teslashibe/go-picar/pkg/loop"
	"github.com/teslashibe/go-picar/pkg/params"
	"github.com/teslashibe/go-picar/pkg/vision"
)

//go:embed static/index.html
var indexHTML []byte

// historySize is how many cycles the telemetry chart keeps.
const historySize = 300

// Sample is one point on the telemetry chart.
type Sample struct {
	Cycle uint64  `json:"cycle"`
	FPS   float64 `json:"fps"`
	Speed int     `json:"speed"`
	Steer int     `json:"steer"`
}

// Server is the panel HTTP server.
type Server struct {
	app    *fiber.App
	port   string
	store  params.Store
	logger *slog.Logger

	// Hubs for websocket broadcast
	maskHub   *hub.Hub
	videoHub  *hub.Hub
	statusHub *hub.Hub

	quit atomic.Bool

	statusMu sync.RWMutex
	status   loop.Status
	history  []Sample

	// JPEG quality for the feeds
	quality int
}

// Ensure Server implements the loop hooks
var (
	_ loop.QuitPoller = (*Server)(nil)
	_ loop.Observer   = (*Server)(nil)
)

// NewServer creates a panel bound to store. Call Start to serve.
func NewServer(port string, store params.Store) *Server {
	s := &Server{
		port:      port,
		store:     store,
		logger:    log.For("web"),
		maskHub:   hub.New("mask"),
		videoHub:  hub.New("video"),
		statusHub: hub.New("status"),
		history:   make([]Sample, 0, historySize),
		status:    loop.Status{State: loop.Starting},
		quality:   vision.DefaultJPEGQuality,
	}

	app := fiber.New(fiber.Config{
		AppName:               "PiCar Panel",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	// API routes
	api := app.Group("/api")
	api.Get("/params", s.handleListParams)
	api.Put("/params/:name", s.handleSetParam)
	api.Get("/status", s.handleStatus)
	api.Post("/quit", s.handleQuit)

	app.Get("/debug/telemetry", s.handleTelemetryChart)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/mask", websocket.New(s.serveHub(s.maskHub)))
	app.Get("/ws/video", websocket.New(s.serveHub(s.videoHub)))
	app.Get("/ws/status", websocket.New(s.serveHub(s.statusHub)))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("control panel listening", "url", "http://localhost:"+s.port)

	go s.maskHub.Run()
	go s.videoHub.Run()
	go s.statusHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("control panel stopped", "error", err)
		}
	}()
}

// Shutdown stops the hubs and the HTTP server.
func (s *Server) Shutdown() error {
	s.maskHub.Stop()
	s.videoHub.Stop()
	s.statusHub.Stop()
	return s.app.Shutdown()
}

// RequestQuit asks the loop to stop at the end of the current cycle.
func (s *Server) RequestQuit() {
	s.quit.Store(true)
}

// QuitRequested implements loop.QuitPoller. It never blocks.
func (s *Server) QuitRequested() bool {
	return s.quit.Load()
}

// Observe implements loop.Observer: it keeps the latest status, extends
// the telemetry history on new cycles and pushes the status to panels.
func (s *Server) Observe(st loop.Status) {
	s.statusMu.Lock()
	if st.Cycles > s.status.Cycles {
		s.history = append(s.history, Sample{
			Cycle: st.Cycles,
			FPS:   st.FPS,
			Speed: st.Command.Speed,
			Steer: st.Command.Steer,
		})
		if len(s.history) > historySize {
			s.history = s.history[len(s.history)-historySize:]
		}
	}
	s.status = st
	s.statusMu.Unlock()

	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Debug("status broadcast failed", "error", err)
	}
}

// Status returns the last observed loop status.
func (s *Server) Status() loop.Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// History returns a copy of the telemetry samples, oldest first.
func (s *Server) History() []Sample {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	out := make([]Sample, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		hub.NewClient(h, c).Run()
	}
}
