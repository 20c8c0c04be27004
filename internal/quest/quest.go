// Package quest defines the core domain types for quest zones and the
// geofence logic that decides when a player has entered one. It has zero
// external dependencies — everything here is pure Go.
package quest

import "time"

type Source string

const (
	SourceStatic        Source = "static"
	SourceCalendar      Source = "calendar"
	SourceCustom        Source = "custom"
	SourceCustomInvited Source = "custom_invited"
)

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Zone is a completable location target: a circular geofence with a reward,
// optionally gated by a scheduled time window and an invite status.
type Zone struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	RadiusKm     float64      `json:"radius"`
	Reward       int          `json:"reward"`
	Source       Source       `json:"source,omitempty"`
	InviteStatus InviteStatus `json:"inviteStatus,omitempty"`
	Category     string       `json:"category,omitempty"`
	Time         *time.Time   `json:"time,omitempty"`
}

// Scheduled-window bounds around a zone's start time: a quest opens 15
// minutes early and stays completable for two hours after it starts.
const (
	WindowBefore = 15 * time.Minute
	WindowAfter  = 2 * time.Hour
)

// InWindow reports whether at falls inside the zone's scheduled window.
// Zones without a scheduled time are always in window. Both bounds are
// inclusive.
func (z Zone) InWindow(at time.Time) bool {
	if z.Time == nil {
		return true
	}
	start := z.Time.Add(-WindowBefore)
	end := z.Time.Add(WindowAfter)
	return !at.Before(start) && !at.After(end)
}

// Completable reports whether the zone is eligible for proximity-triggered
// completion at all: only accepted invites and zones without an invite gate
// qualify. Pending and declined invites are never completable, regardless of
// position.
func (z Zone) Completable() bool {
	return z.InviteStatus == "" || z.InviteStatus == InviteAccepted
}

// Contains reports whether the point lies strictly inside the zone's radius.
func (z Zone) Contains(lat, lng float64) bool {
	return Haversine(lat, lng, z.Latitude, z.Longitude) < z.RadiusKm
}
