package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lazypower/muza/internal/engine"
	"github.com/lazypower/muza/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// streamMessage is one websocket frame: either a graph frame or a bus event.
type streamMessage struct {
	Type  string            `json:"type"`
	State *engine.CoreState `json:"state,omitempty"`
	Event *events.Event     `json:"event,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	origins := s.allowedOrigins()
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// frameState ticks the graph at most once per frame interval, however many
// clients are streaming, and otherwise returns a snapshot.
func (s *Server) frameState() engine.CoreState {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if now := time.Now(); now.Sub(s.lastTick) >= s.frame {
		s.lastTick = now
		return s.eng.Graph.Tick()
	}
	return s.eng.Graph.Snapshot()
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	evs, cancel := s.eng.Bus().Subscribe(64)
	defer cancel()

	done := make(chan struct{})
	go s.readPump(conn, done)

	frames := time.NewTicker(s.frame)
	defer frames.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	s.logger.Debug("stream: client connected", zap.Int("subscribers", s.eng.Bus().SubscriberCount()))

	for {
		var msg streamMessage
		select {
		case <-done:
			return
		case <-frames.C:
			state := s.frameState()
			msg = streamMessage{Type: "frame", State: &state}
		case e, ok := <-evs:
			if !ok {
				return
			}
			msg = streamMessage{Type: "event", Event: &e}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("stream: write failed", zap.Error(err))
			}
			return
		}
	}
}

// readPump drains client messages so pongs and close frames are handled.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("stream: read failed", zap.Error(err))
			}
			return
		}
	}
}
