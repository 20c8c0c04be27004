package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tartanquest/campus/internal/quest"
)

// customQuestRadiusKm is the geofence radius for user-created quests,
// matching the 30 m radius of the seeded campus zones.
const customQuestRadiusKm = 0.03

// staticZones are the always-on campus landmarks.
var staticZones = []quest.Zone{
	{
		ID:        "zone-fence",
		Name:      "The Fence",
		Latitude:  40.4432,
		Longitude: -79.9428,
		RadiusKm:  0.03,
		Reward:    50,
		Source:    quest.SourceStatic,
	},
	{
		ID:        "zone-pausch-bridge",
		Name:      "Pausch Bridge",
		Latitude:  40.4423,
		Longitude: -79.9465,
		RadiusKm:  0.03,
		Reward:    100,
		Source:    quest.SourceStatic,
	},
}

// ZoneSource contributes zones to a user's snapshot. Calendar-derived
// quests arrive through an implementation of this; the ingestion itself
// lives outside this service.
type ZoneSource interface {
	Zones(ctx context.Context, userID string) ([]quest.Zone, error)
}

// ZoneRegistry owns the per-user geofence snapshots: static landmarks plus
// the store's custom/invited quests plus any extra sources, merged into a
// quest.Index per user. Snapshots are cached and rebuilt either on the
// refresh ticker or on explicit invalidation after a quest changes.
type ZoneRegistry struct {
	logger  *slog.Logger
	store   QuestZoneStore
	sources []ZoneSource
	refresh time.Duration

	mu      sync.Mutex
	indexes map[string]*quest.Index
}

func NewZoneRegistry(logger *slog.Logger, store QuestZoneStore, refresh time.Duration, sources ...ZoneSource) *ZoneRegistry {
	return &ZoneRegistry{
		logger:  logger,
		store:   store,
		sources: sources,
		refresh: refresh,
		indexes: make(map[string]*quest.Index),
	}
}

// IndexFor returns the user's current geofence index, building it on first
// use after a refresh or invalidation. The returned index is swapped
// atomically on rebuild, so concurrent queries never see a torn snapshot.
func (r *ZoneRegistry) IndexFor(ctx context.Context, userID string) (*quest.Index, error) {
	r.mu.Lock()
	idx, ok := r.indexes[userID]
	r.mu.Unlock()
	if ok {
		return idx, nil
	}

	zones, err := r.buildZones(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indexes[userID]; ok {
		return idx, nil
	}
	idx = quest.NewIndex()
	idx.Load(zones)
	r.indexes[userID] = idx
	return idx, nil
}

// ZonesFor returns the user's zone list for display.
func (r *ZoneRegistry) ZonesFor(ctx context.Context, userID string) ([]quest.Zone, error) {
	idx, err := r.IndexFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return idx.Zones(), nil
}

// Invalidate drops every cached snapshot. Called after a quest is created,
// answered or deleted so the next query sees the change immediately.
func (r *ZoneRegistry) Invalidate() {
	r.mu.Lock()
	r.indexes = make(map[string]*quest.Index)
	r.mu.Unlock()
}

// Run refreshes all live snapshots in place on the configured interval
// until ctx is cancelled.
func (r *ZoneRegistry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *ZoneRegistry) refreshAll(ctx context.Context) {
	r.mu.Lock()
	users := make([]string, 0, len(r.indexes))
	for userID := range r.indexes {
		users = append(users, userID)
	}
	r.mu.Unlock()

	for _, userID := range users {
		zones, err := r.buildZones(ctx, userID)
		if err != nil {
			r.logger.Error("refreshing zone snapshot", "user_id", userID, "error", err)
			continue
		}
		r.mu.Lock()
		if idx, ok := r.indexes[userID]; ok {
			idx.Load(zones)
		}
		r.mu.Unlock()
	}
}

func (r *ZoneRegistry) buildZones(ctx context.Context, userID string) ([]quest.Zone, error) {
	zones := make([]quest.Zone, len(staticZones))
	copy(zones, staticZones)

	custom, err := r.store.QuestZonesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	zones = append(zones, custom...)

	for _, src := range r.sources {
		extra, err := src.Zones(ctx, userID)
		if err != nil {
			// A failing auxiliary source (e.g. the calendar feed) must not
			// take quests down with it.
			r.logger.Warn("zone source failed", "user_id", userID, "error", err)
			continue
		}
		zones = append(zones, extra...)
	}
	return zones, nil
}
