package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Subscribers never send data, only pongs.
	maxInboundSize = 512
)

// Subscriber is one websocket connection attached to a hub. All writes
// to the connection happen on its write pump.
type Subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewSubscriber attaches conn to the hub.
func NewSubscriber(h *Hub, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.subscribe <- sub
	return sub
}

// Run pumps the connection until it closes. Call from the websocket
// handler; it blocks for the connection's lifetime.
func (s *Subscriber) Run() {
	go s.writePump()
	s.readPump()
}

// readPump discards inbound traffic. Reading is still required to see
// pongs and to notice the peer going away.
func (s *Subscriber) readPump() {
	defer func() {
		s.hub.unsubscribe <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxInboundSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub dropped us; say goodbye properly.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
