package server

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

const (
	subjectBalanceChanged = "campus.event.balance_changed"
	subjectZoneVisited    = "campus.event.zone_visited"
)

// Notifier carries the coordinator's success hooks out of process, so
// wallet displays and collectible services can react without polling.
type Notifier interface {
	BalanceChanged(userID string, newBalance int)
	ZoneVisited(userID, zoneID string)
}

type balanceChangedEvent struct {
	UserID     string `json:"userId"`
	NewBalance int    `json:"newBalance"`
}

type zoneVisitedEvent struct {
	UserID string `json:"userId"`
	ZoneID string `json:"zoneId"`
}

// NATSNotifier publishes the hooks as JSON events. Publishing is fire and
// forget: a broken bus is logged, never propagated into the completion
// path.
type NATSNotifier struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewNATSNotifier(conn *nats.Conn, logger *slog.Logger) *NATSNotifier {
	return &NATSNotifier{conn: conn, logger: logger}
}

func (n *NATSNotifier) BalanceChanged(userID string, newBalance int) {
	n.publish(subjectBalanceChanged, balanceChangedEvent{UserID: userID, NewBalance: newBalance})
}

func (n *NATSNotifier) ZoneVisited(userID, zoneID string) {
	n.publish(subjectZoneVisited, zoneVisitedEvent{UserID: userID, ZoneID: zoneID})
}

func (n *NATSNotifier) publish(subject string, event any) {
	data, _ := json.Marshal(event)
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error("publishing event", "subject", subject, "error", err)
	}
}

// NoopNotifier is used when no event bus is configured.
type NoopNotifier struct{}

func (NoopNotifier) BalanceChanged(string, int) {}
func (NoopNotifier) ZoneVisited(string, string) {}
