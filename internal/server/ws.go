package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type positionPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type identifyPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

type chatPayload struct {
	Text     string `json:"text"`
	To       string `json:"to"`
	ToUserID string `json:"toUserId"`
}

// handleWS is the persistent per-client connection: it registers the
// connection with the hub, pumps outbound frames from the hub channel, and
// feeds inbound position/identify/chat events into the engine. Proximity
// is evaluated here on the server for every position report; clients never
// decide completions themselves.
func handleWS(logger *slog.Logger, hub *Hub, coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		connID, outbound, err := hub.Join()
		if err != nil {
			logger.Error("registering connection", "error", err)
			conn.Close(websocket.StatusInternalError, "registration failed")
			return
		}
		logger.Info("client connected", "conn_id", connID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		defer func() {
			boundUser, _ := hub.Presence().Get(connID)
			hub.Leave(connID)
			if boundUser.UserID != "" && len(hub.Presence().ConnectionsFor(boundUser.UserID)) == 0 {
				coord.ForgetUser(boundUser.UserID)
			}
			logger.Info("client disconnected", "conn_id", connID)
		}()

		// Writer: hub frames out to the socket, in hub order.
		go func() {
			for frame := range outbound {
				if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				logger.Debug("websocket read ended", "conn_id", connID, "error", err)
				return
			}

			var msg inboundMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				logger.Warn("malformed message", "conn_id", connID, "error", err)
				continue
			}

			switch msg.Type {
			case "position":
				var p positionPayload
				if err := json.Unmarshal(msg.Payload, &p); err != nil {
					continue
				}
				if err := hub.Move(connID, p.Latitude, p.Longitude); err != nil {
					logger.Warn("position rejected", "conn_id", connID, "error", err)
					continue
				}
				if pl, ok := hub.Presence().Get(connID); ok && pl.UserID != "" {
					coord.HandlePosition(ctx, pl.UserID, connID, p.Latitude, p.Longitude, time.Now())
				}

			case "identify":
				var p identifyPayload
				if err := json.Unmarshal(msg.Payload, &p); err != nil || p.UserID == "" {
					continue
				}
				if err := hub.Identify(connID, p.UserID, p.DisplayName, p.AvatarURL); err != nil {
					logger.Warn("identify rejected", "conn_id", connID, "error", err)
					continue
				}
				if err := coord.SeedVisited(ctx, p.UserID); err != nil {
					logger.Error("seeding visited zones", "user_id", p.UserID, "error", err)
				}

			case "chat":
				var p chatPayload
				if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Text == "" {
					continue
				}
				hub.Chat(connID, p.Text, p.To, p.ToUserID)

			default:
				logger.Warn("unknown message type", "conn_id", connID, "type", msg.Type)
			}
		}
	}
}
