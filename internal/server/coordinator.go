package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tartanquest/campus/internal/quest"
)

type pairKey struct {
	userID string
	zoneID string
}

type questCompletedPayload struct {
	ZoneID     string `json:"zoneId"`
	ZoneName   string `json:"zoneName"`
	Reward     int    `json:"reward"`
	NewBalance int    `json:"newBalance"`
}

type questFailedPayload struct {
	ZoneID    string `json:"zoneId"`
	Retryable bool   `json:"retryable"`
}

type walletUpdatedPayload struct {
	Balance int `json:"balance"`
}

// Coordinator turns "entered a zone" into an exactly-once durable reward.
// Per (user, zone) pair the state machine is NotVisited → Pending →
// Visited, or back to NotVisited on persistence failure so the next
// position update can retry. The pending marker is the only thing held
// across the persistence call; the presence table is never locked here.
type Coordinator struct {
	logger   *slog.Logger
	store    VisitStore
	zones    *ZoneRegistry
	notifier Notifier
	timeout  time.Duration

	// sendToConn delivers a frame to the owning connection; wired to the
	// hub at startup.
	sendToConn func(connID string, frame []byte) bool

	mu       sync.Mutex
	inflight map[pairKey]struct{}
	visited  map[string]map[string]bool
}

func NewCoordinator(logger *slog.Logger, store VisitStore, zones *ZoneRegistry, notifier Notifier, timeout time.Duration) *Coordinator {
	return &Coordinator{
		logger:   logger,
		store:    store,
		zones:    zones,
		notifier: notifier,
		timeout:  timeout,
		inflight: make(map[pairKey]struct{}),
		visited:  make(map[string]map[string]bool),
	}
}

// SetConnSender wires the coordinator's per-connection notifications.
func (c *Coordinator) SetConnSender(send func(connID string, frame []byte) bool) {
	c.sendToConn = send
}

// SeedVisited loads the user's canonical visited set once per session. The
// local set is a cache; it is reconciled with the store's view here and
// extended only after successful persistence.
func (c *Coordinator) SeedVisited(ctx context.Context, userID string) error {
	c.mu.Lock()
	_, ok := c.visited[userID]
	c.mu.Unlock()
	if ok {
		return nil
	}

	ids, err := c.store.GetVisitedZoneIDs(ctx, userID)
	if err != nil {
		return err
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	c.mu.Lock()
	if existing, ok := c.visited[userID]; ok {
		// A concurrent seed or completion won; merge rather than clobber.
		for id := range existing {
			set[id] = true
		}
	}
	c.visited[userID] = set
	c.mu.Unlock()
	return nil
}

// HandlePosition evaluates a position report against the user's zone
// snapshot and starts a completion attempt for every newly-entered zone.
// Attempts run off the read loop so a slow persistence call never stalls
// movement processing.
func (c *Coordinator) HandlePosition(ctx context.Context, userID, connID string, lat, lng float64, at time.Time) {
	idx, err := c.zones.IndexFor(ctx, userID)
	if err != nil {
		c.logger.Error("loading zone snapshot", "user_id", userID, "error", err)
		return
	}

	c.mu.Lock()
	visited := make(map[string]bool, len(c.visited[userID]))
	for id := range c.visited[userID] {
		visited[id] = true
	}
	c.mu.Unlock()

	for _, z := range quest.Evaluate(idx, lat, lng, at, visited) {
		go c.complete(context.WithoutCancel(ctx), userID, connID, z)
	}
}

// complete drives one (user, zone) pair through the state machine.
func (c *Coordinator) complete(ctx context.Context, userID, connID string, z quest.Zone) {
	key := pairKey{userID: userID, zoneID: z.ID}

	c.mu.Lock()
	if c.visited[userID][z.ID] {
		c.mu.Unlock()
		return
	}
	if _, pending := c.inflight[key]; pending {
		// A duplicate trigger collapses into the in-flight attempt.
		c.mu.Unlock()
		return
	}
	c.inflight[key] = struct{}{}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.store.RecordVisitAndReward(ctx, userID, z.ID, z.Reward)

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil {
		if c.visited[userID] == nil {
			c.visited[userID] = make(map[string]bool)
		}
		c.visited[userID][z.ID] = true
	}
	c.mu.Unlock()

	if err != nil {
		// Failed is retry-eligible: the marker is released and the zone
		// stays out of the visited set, so the next position update can
		// try again.
		c.logger.Error("quest completion failed",
			"user_id", userID, "zone_id", z.ID, "error", err)
		if c.sendToConn != nil {
			c.sendToConn(connID, encodeEvent("questFailed", questFailedPayload{
				ZoneID:    z.ID,
				Retryable: true,
			}))
		}
		return
	}

	if !res.Created {
		// The visit already existed: an idempotent no-op, not an error.
		// The zone is marked visited locally but no reward events fire.
		c.logger.Debug("duplicate visit collapsed",
			"user_id", userID, "zone_id", z.ID)
		return
	}

	c.logger.Info("quest completed",
		"user_id", userID, "zone_id", z.ID, "reward", z.Reward, "balance", res.NewBalance)

	c.notifier.ZoneVisited(userID, z.ID)
	c.notifier.BalanceChanged(userID, res.NewBalance)

	if c.sendToConn != nil {
		c.sendToConn(connID, encodeEvent("questCompleted", questCompletedPayload{
			ZoneID:     z.ID,
			ZoneName:   z.Name,
			Reward:     z.Reward,
			NewBalance: res.NewBalance,
		}))
		c.sendToConn(connID, encodeEvent("walletUpdated", walletUpdatedPayload{
			Balance: res.NewBalance,
		}))
	}
}

// ForgetUser drops the user's cached visited set. Called when their last
// connection goes away so the next session reseeds from the store.
func (c *Coordinator) ForgetUser(userID string) {
	c.mu.Lock()
	delete(c.visited, userID)
	c.mu.Unlock()
}
