package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gmfc/helios-os/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Hub fans every syscall event out to every connected /events subscriber.
// It is constructed before the Bridge so its Broadcast method can be
// handed in as the Bridge's emit callback.
type Hub struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*websocket.Conn]chan types.SyscallEvent
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs: make(map[*websocket.Conn]chan types.SyscallEvent),
	}
}

// Broadcast delivers ev to every currently connected subscriber. Slow
// subscribers drop events rather than block the syscall that produced
// them; the event stream is best-effort.
func (h *Hub) Broadcast(ev types.SyscallEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Server) events(c echo.Context) error {
	conn, err := s.hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	subID := uuid.New().String()[:8]
	log.Printf("helios-os: event subscriber %s connected", subID)

	ch := make(chan types.SyscallEvent, 32)
	s.hub.mu.Lock()
	s.hub.subs[conn] = ch
	s.hub.mu.Unlock()

	defer func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, conn)
		s.hub.mu.Unlock()
		log.Printf("helios-os: event subscriber %s disconnected", subID)
	}()

	// Drain client reads so ping/pong and close frames are processed; this
	// connection never expects inbound application messages. done closes
	// when the peer goes away, so the write loop below isn't left blocked
	// on ch forever once Broadcast stops being able to reach it.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-ch:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}
