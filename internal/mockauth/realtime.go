package mockauth

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/raysh454/authprobe/internal/jsonutil"
	"github.com/raysh454/authprobe/internal/logging"
	"github.com/raysh454/authprobe/internal/realtime"
)

// handleRealtime upgrades when the apikey query parameter is a known key,
// then answers joins and heartbeats until the client goes away.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	if s.keyTier(r.URL.Query().Get("apikey")) == 0 {
		writeError(w, http.StatusUnauthorized, "invalid_api_key")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("realtime read", logging.Field{Key: "error", Value: err.Error()})
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		var msg realtime.Message
		if err := jsonutil.Unmarshal(data, &msg); err != nil {
			continue
		}

		var reply realtime.Message
		switch msg.Event {
		case realtime.EventJoin, realtime.EventHeartbeat:
			reply = realtime.Message{
				Topic:   msg.Topic,
				Event:   realtime.EventReply,
				Payload: map[string]any{"status": "ok", "response": map[string]any{}},
				Ref:     msg.Ref,
			}
			if msg.Event == realtime.EventJoin {
				s.logger.Info("joined channel", logging.Field{Key: "topic", Value: msg.Topic})
			}
		default:
			reply = realtime.Message{
				Topic:   msg.Topic,
				Event:   realtime.EventReply,
				Payload: map[string]any{"status": "error", "response": map[string]any{"reason": "unmatched topic"}},
				Ref:     msg.Ref,
			}
		}
		out, err := jsonutil.Marshal(reply)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}
