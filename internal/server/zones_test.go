package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tartanquest/campus/internal/quest"
)

func TestZoneRegistryMergesStaticAndCustom(t *testing.T) {
	zoneStore := newFakeZoneStore()
	zoneStore.set("user-a", []quest.Zone{
		{ID: "q-1", Name: "Study", Latitude: 40.44, Longitude: -79.94, RadiusKm: 0.03, Reward: 25, Source: quest.SourceCustom},
	})
	r := NewZoneRegistry(testLogger(), zoneStore, time.Minute)

	zones, err := r.ZonesFor(context.Background(), "user-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != len(staticZones)+1 {
		t.Fatalf("zones = %d, want %d", len(zones), len(staticZones)+1)
	}

	// Another user gets only the landmarks.
	zones, err = r.ZonesFor(context.Background(), "user-b")
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != len(staticZones) {
		t.Errorf("user-b zones = %d, want %d", len(zones), len(staticZones))
	}
}

func TestZoneRegistryInvalidate(t *testing.T) {
	zoneStore := newFakeZoneStore()
	r := NewZoneRegistry(testLogger(), zoneStore, time.Minute)
	ctx := context.Background()

	zones, _ := r.ZonesFor(ctx, "user-a")
	if len(zones) != len(staticZones) {
		t.Fatalf("initial zones = %d", len(zones))
	}

	// The cached snapshot does not see the new quest until invalidated.
	zoneStore.set("user-a", []quest.Zone{
		{ID: "q-1", Name: "New", Latitude: 40.44, Longitude: -79.94, RadiusKm: 0.03, Reward: 10, Source: quest.SourceCustom},
	})
	zones, _ = r.ZonesFor(ctx, "user-a")
	if len(zones) != len(staticZones) {
		t.Errorf("stale snapshot grew without invalidation: %d", len(zones))
	}

	r.Invalidate()
	zones, _ = r.ZonesFor(ctx, "user-a")
	if len(zones) != len(staticZones)+1 {
		t.Errorf("zones after invalidate = %d, want %d", len(zones), len(staticZones)+1)
	}
}

type staticSource struct {
	zones []quest.Zone
	err   error
}

func (s staticSource) Zones(context.Context, string) ([]quest.Zone, error) {
	return s.zones, s.err
}

func TestZoneRegistryExtraSources(t *testing.T) {
	calendar := staticSource{zones: []quest.Zone{
		{ID: "cal-1", Name: "Lecture", Latitude: 40.4426, Longitude: -79.9449, RadiusKm: 0.03, Reward: 5, Source: quest.SourceCalendar},
	}}
	broken := staticSource{err: errors.New("feed offline")}

	r := NewZoneRegistry(testLogger(), newFakeZoneStore(), time.Minute, calendar, broken)

	// The broken source is skipped, not fatal.
	zones, err := r.ZonesFor(context.Background(), "user-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != len(staticZones)+1 {
		t.Fatalf("zones = %d, want %d", len(zones), len(staticZones)+1)
	}

	var found bool
	for _, z := range zones {
		if z.ID == "cal-1" {
			found = true
		}
	}
	if !found {
		t.Error("calendar zone missing from snapshot")
	}
}

func TestZoneRegistryStoreErrorPropagates(t *testing.T) {
	r := NewZoneRegistry(testLogger(), failingZoneStore{}, time.Minute)
	if _, err := r.ZonesFor(context.Background(), "user-a"); err == nil {
		t.Error("store failure should propagate, zones cannot be silently empty")
	}
}

type failingZoneStore struct{}

func (failingZoneStore) QuestZonesFor(context.Context, string) ([]quest.Zone, error) {
	return nil, errors.New("db gone")
}
