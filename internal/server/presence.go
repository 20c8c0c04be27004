package server

import (
	"errors"
	"sync"
)

var (
	ErrDuplicateConnection = errors.New("connection id already registered")
	ErrUnknownConnection   = errors.New("unknown connection")
)

// LatLng is a reported position.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Player is the live state of one connection: last-reported position plus
// the identity the client bound to it. Position stays nil until the first
// position report; UserID stays empty until the client identifies.
type Player struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId,omitempty"`
	DisplayName string  `json:"displayName,omitempty"`
	AvatarURL   string  `json:"avatarUrl,omitempty"`
	Position    *LatLng `json:"position,omitempty"`
}

// Presence is the authoritative in-memory registry of live connections.
// All mutation goes through its methods; callers never see the underlying
// map. Notifying peers about changes is the hub's job, not Presence's.
type Presence struct {
	mu      sync.RWMutex
	players map[string]*Player
}

func NewPresence() *Presence {
	return &Presence{players: make(map[string]*Player)}
}

// Register creates an entry with no position and no bound user.
func (p *Presence) Register(connID string) (Player, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.players[connID]; ok {
		return Player{}, ErrDuplicateConnection
	}
	pl := &Player{ID: connID}
	p.players[connID] = pl
	return *pl, nil
}

// UpdatePosition overwrites the connection's position and returns the
// previous and new position for delta-based consumers.
func (p *Presence) UpdatePosition(connID string, lat, lng float64) (prev *LatLng, cur LatLng, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pl, ok := p.players[connID]
	if !ok {
		return nil, LatLng{}, ErrUnknownConnection
	}
	if pl.Position != nil {
		old := *pl.Position
		prev = &old
	}
	cur = LatLng{Latitude: lat, Longitude: lng}
	pl.Position = &cur
	return prev, cur, nil
}

// Identify binds the connection to an application user. Redundant calls
// always overwrite, so an avatar change is just a second identify.
func (p *Presence) Identify(connID, userID, displayName, avatarURL string) (Player, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pl, ok := p.players[connID]
	if !ok {
		return Player{}, ErrUnknownConnection
	}
	pl.UserID = userID
	pl.DisplayName = displayName
	pl.AvatarURL = avatarURL
	return *pl, nil
}

// Remove deletes the entry. Removing an absent connection is a no-op so
// duplicate disconnect signals are tolerated.
func (p *Presence) Remove(connID string) {
	p.mu.Lock()
	delete(p.players, connID)
	p.mu.Unlock()
}

// Get returns a copy of the connection's current state.
func (p *Presence) Get(connID string) (Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pl, ok := p.players[connID]
	if !ok {
		return Player{}, false
	}
	return clonePlayer(pl), true
}

// Snapshot returns a copy of all current entries, used to seed newly-joined
// connections.
func (p *Presence) Snapshot() map[string]Player {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := make(map[string]Player, len(p.players))
	for id, pl := range p.players {
		snap[id] = clonePlayer(pl)
	}
	return snap
}

// ConnectionsFor returns the ids of every connection currently bound to the
// user. One user may hold several simultaneous sessions.
func (p *Presence) ConnectionsFor(userID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ids []string
	for id, pl := range p.players {
		if pl.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids
}

func clonePlayer(pl *Player) Player {
	out := *pl
	if pl.Position != nil {
		pos := *pl.Position
		out.Position = &pos
	}
	return out
}
