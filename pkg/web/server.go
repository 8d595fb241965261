// Package web provides a real-time operator dashboard for the robot.
// It mirrors the hull LCD, streams loop state and audit events over
// websockets, and never feeds anything back into the control loop.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/EngrAlegre/ALGAE-ML/internal/log"
	"github.com/EngrAlegre/ALGAE-ML/pkg/auditlog"
	"github.com/EngrAlegre/ALGAE-ML/pkg/display"
	"github.com/EngrAlegre/ALGAE-ML/pkg/hub"
	"github.com/EngrAlegre/ALGAE-ML/pkg/supervisor"
)

// how many audit events the dashboard keeps in memory
const eventBuffer = 200

// statusPeriod is how often loop state is pushed to websocket clients.
const statusPeriod = time.Second

// StateProvider exposes the loop state to the dashboard.
type StateProvider interface {
	State() supervisor.State
}

// SummaryProvider exposes the audit trail summary. Optional.
type SummaryProvider interface {
	Summary() (auditlog.Summary, error)
}

// LCDFrame is the dashboard mirror of the hull display.
type LCDFrame struct {
	View  string `json:"view"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// Server is the operator dashboard. It implements display.Renderer so it
// can be wired as an additional presentation sink.
type Server struct {
	app  *fiber.App
	port string

	provMu   sync.RWMutex
	provider StateProvider

	summary SummaryProvider

	frameMu sync.RWMutex
	frame   LCDFrame

	eventsMu sync.RWMutex
	events   []auditlog.Event

	statusHub *hub.Hub
	eventHub  *hub.Hub

	stop chan struct{}
}

// NewServer creates a dashboard server on the given port. The state
// provider may be nil at construction and bound later with SetProvider;
// the dashboard is typically wired into the loop's fan-outs before the
// loop itself exists.
func NewServer(port string, provider StateProvider, summary SummaryProvider) *Server {
	s := &Server{
		port:      port,
		provider:  provider,
		summary:   summary,
		events:    make([]auditlog.Event, 0, eventBuffer),
		statusHub: hub.New("status"),
		eventHub:  hub.New("events"),
		stop:      make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "AMLAC Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleEvents)
	api.Get("/summary", s.handleSummary)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// SetProvider binds the loop state source.
func (s *Server) SetProvider(p StateProvider) {
	s.provMu.Lock()
	s.provider = p
	s.provMu.Unlock()
}

// Start runs the server. Blocks until Shutdown.
func (s *Server) Start() error {
	log.Info("operator dashboard listening", "port", s.port)

	go s.statusHub.Run()
	go s.eventHub.Run()
	go s.pushStatus()

	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server error", "err", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	close(s.stop)
	return s.app.Shutdown()
}

// Show implements display.Renderer: mirror the LCD frame and push it.
func (s *Server) Show(v display.View, d display.Data) {
	f := display.Render(v, d)
	frame := LCDFrame{View: string(v), Line1: f.Line1, Line2: f.Line2}

	s.frameMu.Lock()
	s.frame = frame
	s.frameMu.Unlock()

	s.statusHub.BroadcastJSON(s.statusPayload())
}

// EventSink returns an auditlog.Store that buffers and broadcasts events
// for the dashboard. It never fails, so it is safe to Multi with the
// persistent stores.
func (s *Server) EventSink() auditlog.Store {
	return (*eventSink)(s)
}

func (s *Server) record(e auditlog.Event) {
	s.eventsMu.Lock()
	s.events = append(s.events, e)
	if len(s.events) > eventBuffer {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	s.eventHub.BroadcastJSON(e)
}

// pushStatus broadcasts loop state on a fixed period.
func (s *Server) pushStatus() {
	ticker := time.NewTicker(statusPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() > 0 {
				s.statusHub.BroadcastJSON(s.statusPayload())
			}
		}
	}
}

// eventSink adapts Server to auditlog.Store.
type eventSink Server

func (e *eventSink) Append(ev auditlog.Event) error {
	(*Server)(e).record(ev)
	return nil
}

func (e *eventSink) Summary() (auditlog.Summary, error) {
	return auditlog.Summary{}, nil
}

func (e *eventSink) Close() error { return nil }
