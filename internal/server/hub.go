package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// ChatBroadcast is the chat target meaning "every connection".
const ChatBroadcast = "everyone"

// Event is the wire envelope for every server→client message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

func encodeEvent(typ string, payload any) []byte {
	data, _ := json.Marshal(Event{Type: typ, Payload: payload})
	return data
}

// ChatMessage is the delivered form of a chat event.
type ChatMessage struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	SenderName   string `json:"senderName"`
	SenderAvatar string `json:"senderAvatar"`
	SenderUserID string `json:"senderUserId"`
	Channel      string `json:"channel"`
	Timestamp    string `json:"timestamp"`
}

// Hub owns the Presence table and fans presence and chat events out to live
// connections. Each connection gets a buffered outbound channel; a consumer
// that cannot keep up has frames dropped rather than stalling the hub.
type Hub struct {
	logger   *slog.Logger
	presence *Presence

	mu    sync.Mutex
	conns map[string]chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		presence: NewPresence(),
		conns:    make(map[string]chan []byte),
	}
}

func (h *Hub) Presence() *Presence { return h.presence }

// Join registers a new connection: the joiner gets the full presence
// snapshot on its own channel, everyone else gets a newPlayer event.
func (h *Hub) Join() (string, <-chan []byte, error) {
	connID := newConnID()

	pl, err := h.presence.Register(connID)
	if err != nil {
		return "", nil, err
	}

	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.conns[connID] = ch
	h.mu.Unlock()

	h.send(connID, encodeEvent("currentPlayers", h.presence.Snapshot()))
	h.broadcastExcept(connID, encodeEvent("newPlayer", pl))
	return connID, ch, nil
}

// Move applies a position update and broadcasts the connection's full
// current state to all other connections.
func (h *Hub) Move(connID string, lat, lng float64) error {
	if _, _, err := h.presence.UpdatePosition(connID, lat, lng); err != nil {
		return err
	}
	pl, _ := h.presence.Get(connID)
	h.broadcastExcept(connID, encodeEvent("playerMoved", pl))
	return nil
}

// Identify binds the connection to a user and broadcasts the updated
// identity to every connection, the originator included, so the sender's
// other open views refresh too.
func (h *Hub) Identify(connID, userID, displayName, avatarURL string) error {
	pl, err := h.presence.Identify(connID, userID, displayName, avatarURL)
	if err != nil {
		return err
	}
	h.broadcastAll(encodeEvent("playerMoved", pl))
	return nil
}

// Leave removes the connection from the table, closes its channel and tells
// every remaining peer. Safe to call twice.
func (h *Hub) Leave(connID string) {
	h.presence.Remove(connID)

	h.mu.Lock()
	ch, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
		close(ch)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	h.broadcastAll(encodeEvent("playerDisconnected", connID))
}

// Chat routes a chat message. Broadcast goes to every connection. A directed
// message goes to every connection bound to the target user plus the sender
// itself; with no bound target connections only the sender sees it.
func (h *Hub) Chat(senderConnID, text, target, targetUserID string) {
	sender, _ := h.presence.Get(senderConnID)

	senderName := sender.DisplayName
	if senderName == "" {
		senderName = "Anonymous"
	}
	senderUserID := sender.UserID
	if senderUserID == "" {
		senderUserID = senderConnID
	}

	channel := target
	if target != ChatBroadcast {
		channel = targetUserID
	}

	msg := ChatMessage{
		ID:           newConnID(),
		Text:         text,
		SenderName:   senderName,
		SenderAvatar: sender.AvatarURL,
		SenderUserID: senderUserID,
		Channel:      channel,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	frame := encodeEvent("chatMessage", msg)

	if target == ChatBroadcast {
		h.broadcastAll(frame)
		return
	}

	delivered := map[string]bool{}
	for _, connID := range h.presence.ConnectionsFor(targetUserID) {
		h.send(connID, frame)
		delivered[connID] = true
	}
	if !delivered[senderConnID] {
		h.send(senderConnID, frame)
	}
}

// SendToConnection delivers a frame to one connection. Returns false if the
// connection is gone.
func (h *Hub) SendToConnection(connID string, frame []byte) bool {
	return h.send(connID, frame)
}

// SendToUser delivers a frame to every connection bound to the user.
func (h *Hub) SendToUser(userID string, frame []byte) {
	for _, connID := range h.presence.ConnectionsFor(userID) {
		h.send(connID, frame)
	}
}

// send delivers non-blocking while holding the lock, so a concurrent Leave
// cannot close the channel mid-send.
func (h *Hub) send(connID string, frame []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.conns[connID]
	if !ok {
		return false
	}
	select {
	case ch <- frame:
	default:
		h.logger.Warn("dropping frame for slow connection", "conn_id", connID)
	}
	return true
}

func (h *Hub) broadcastAll(frame []byte) {
	h.broadcastExcept("", frame)
}

func (h *Hub) broadcastExcept(skipConnID string, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.conns {
		if id == skipConnID {
			continue
		}
		select {
		case ch <- frame:
		default:
			h.logger.Warn("dropping frame for slow connection", "conn_id", id)
		}
	}
}

func newConnID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
