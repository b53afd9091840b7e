package panelapi

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const streamWriteTimeout = 5 * time.Second

// Connected is the first message of a stream. Events that follow it are
// session.Event values.
type Connected struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// handleStream handles GET /api/stream. Every session event is written as a
// JSON text message until the client disconnects or the session closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.OriginPatterns,
	})
	if err != nil {
		s.logger.Debug("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	events, cancel := s.store.Subscribe()
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	s.logger.Debug("stream client connected", "remote", r.RemoteAddr)
	s.opts.Metrics.StreamClientConnected()
	defer s.opts.Metrics.StreamClientDisconnected()

	if err := s.write(ctx, conn, Connected{Type: "connected", Count: s.store.Len()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := s.write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, v); err != nil {
		s.logger.Debug("stream write failed", "error", err)
		return err
	}
	return nil
}
