// Package web serves reference poses and live episode progress over HTTP
// and websockets.
package web

import (
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	mimiclog "github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/env"
	"github.com/teslashibe/go-mimic/pkg/hub"
	"github.com/teslashibe/go-mimic/pkg/motion"
	"github.com/teslashibe/go-mimic/pkg/pose"
)

// Status summarizes the episodes seen through Observe.
type Status struct {
	Clip     string        `json:"clip"`
	Episodes int           `json:"episodes"`
	Steps    int           `json:"steps"`
	Current  *env.TimeStep `json:"current,omitempty"`
}

// Server exposes one clip and the episodes run against it.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	clip  *motion.Clip
	codec *pose.Codec

	status   Status
	statusMu sync.RWMutex

	steps *hub.Hub
}

// NewServer returns a server for clip. It does not listen until Start.
func NewServer(port string, clip *motion.Clip, codec *pose.Codec) *Server {
	s := &Server{
		port:   port,
		logger: mimiclog.With("component", "web"),
		clip:   clip,
		codec:  codec,
		status: Status{Clip: clip.Name()},
		steps:  hub.New("steps"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-mimic",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/clip", s.handleClip)
	api.Get("/joints", s.handleJoints)
	api.Get("/pose", s.handlePose)
	api.Get("/status", s.handleStatus)
	api.Get("/hub", s.handleHubStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/steps", websocket.New(s.handleStepsWS))
	app.Get("/ws/sample", s.sampleHandler())

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the steps hub and listens on the configured port. It blocks.
func (s *Server) Start() error {
	go s.steps.Run()
	s.logger.Info("listening", "addr", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync calls Start in a goroutine and logs its error.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("server stopped", "error", err)
		}
	}()
}

// Observe records ts as the current step and broadcasts it to /ws/steps
// subscribers. Pass it to env.WithObserver.
func (s *Server) Observe(ts env.TimeStep) {
	s.statusMu.Lock()
	if ts.First() {
		s.status.Episodes++
	} else {
		s.status.Steps++
	}
	current := ts
	s.status.Current = &current
	s.statusMu.Unlock()

	if s.steps.IsRunning() {
		if err := s.steps.BroadcastJSON(ts); err != nil {
			s.logger.Warn("broadcast step", "error", err)
		}
	}
}

// Status returns a copy of the current status.
func (s *Server) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st := s.status
	if st.Current != nil {
		current := *st.Current
		st.Current = &current
	}
	return st
}

// Steps returns the hub that fans out episode steps.
func (s *Server) Steps() *hub.Hub {
	return s.steps
}

// Shutdown stops the hub and the HTTP server.
func (s *Server) Shutdown() error {
	s.steps.Stop()
	return s.app.Shutdown()
}
