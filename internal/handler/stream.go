package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"coinsignal/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamBuffer     = 16
)

type streamMessage struct {
	Type    string          `json:"type"`
	Signals []domain.Signal `json:"signals"`
	Count   int             `json:"count"`
}

type streamClient struct {
	send chan streamMessage
}

// SignalStream pushes newly assembled signals to websocket subscribers.
// Clients that fall behind are dropped.
type SignalStream struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

func NewSignalStream() *SignalStream {
	return &SignalStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

func (s *SignalStream) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// NotifySignals satisfies job.SignalNotifier.
func (s *SignalStream) NotifySignals(ctx context.Context, signals []domain.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msg := streamMessage{Type: "signals", Signals: signals, Count: len(signals)}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			log.Warn().Msg("signal stream client too slow, dropping")
			delete(s.clients, c)
			close(c.send)
		}
	}
	return nil
}

func (s *SignalStream) register() *streamClient {
	c := &streamClient{send: make(chan streamMessage, streamBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	return c
}

func (s *SignalStream) unregister(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// StreamSignals godoc
// @Summary      Live signal feed
// @Description  Websocket that receives {"type":"signals"} messages whenever the refresh poller sees new or flipped signals
// @Tags         signals
// @Success      101
// @Router       /ws/signals [get]
func (h *Handler) StreamSignals(c *gin.Context) {
	if h.stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal stream unavailable"})
		return
	}
	h.stream.serve(c.Writer, c.Request)
}

func (s *SignalStream) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := s.register()
	log.Debug().Str("remote", r.RemoteAddr).Msg("signal stream client connected")

	go s.writeLoop(conn, client)
	s.readLoop(conn, client)
}

// readLoop only watches for close frames and pongs.
func (s *SignalStream) readLoop(conn *websocket.Conn, client *streamClient) {
	defer func() {
		s.unregister(client)
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *SignalStream) writeLoop(conn *websocket.Conn, client *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
