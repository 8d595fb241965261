package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/EngrAlegre/ALGAE-ML/pkg/auditlog"
	"github.com/EngrAlegre/ALGAE-ML/pkg/hub"
	"github.com/EngrAlegre/ALGAE-ML/pkg/supervisor"
)

// statusPayload is what /api/status and /ws/status serve.
type statusPayload struct {
	Loop    supervisor.State `json:"loop"`
	Display LCDFrame         `json:"display"`
}

func (s *Server) statusPayload() statusPayload {
	s.frameMu.RLock()
	frame := s.frame
	s.frameMu.RUnlock()

	s.provMu.RLock()
	provider := s.provider
	s.provMu.RUnlock()

	var loop supervisor.State
	if provider != nil {
		loop = provider.State()
	}
	return statusPayload{Loop: loop, Display: frame}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.statusPayload())
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	events := make([]auditlog.Event, len(s.events))
	copy(events, s.events)
	s.eventsMu.RUnlock()
	return c.JSON(events)
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	if s.summary == nil {
		return c.JSON(auditlog.Summary{})
	}
	sum, err := s.summary.Summary()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(sum)
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewSubscriber(s.statusHub, c).Run()
}

func (s *Server) handleEventsWS(c *websocket.Conn) {
	hub.NewSubscriber(s.eventHub, c).Run()
}
