package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsRequest struct {
	Text string `json:"text"`
}

type wsResponse struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Score    float32 `json:"score"`
	Error    string  `json:"error,omitempty"`
	Complete bool    `json:"complete"`
}

// handleWS streams one translation response per request message over a
// long-lived connection, so clients can feed a document sentence by
// sentence without re-handshaking.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	conn.SetReadLimit(512 * 1024)

	for {
		conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.writeWS(conn, wsResponse{Error: "invalid request", Complete: true})
			continue
		}
		if req.Text == "" {
			s.writeWS(conn, wsResponse{Error: "missing text", Complete: true})
			continue
		}
		metrics.TranslateRequests.WithLabelValues("ws").Inc()

		tr, err := s.tr.Translate(r.Context(), req.Text)
		if err != nil {
			logger.Log.Error("stream translate failed", "error", err)
			s.writeWS(conn, wsResponse{Source: req.Text, Error: "translation failed", Complete: true})
			continue
		}
		s.writeWS(conn, wsResponse{
			Source:   tr.Source,
			Target:   tr.Target,
			Score:    tr.Score,
			Complete: true,
		})
	}
}

func (s *Server) writeWS(conn *websocket.Conn, resp wsResponse) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(resp); err != nil {
		logger.Log.Warn("websocket write failed", "error", err)
	}
}
