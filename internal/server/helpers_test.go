package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/tartanquest/campus/internal/database"
	"github.com/tartanquest/campus/internal/migrations"
	"github.com/tartanquest/campus/internal/quest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewSQLiteStore(db)
}

func seedUser(t *testing.T, store *SQLiteStore, id, name string) {
	t.Helper()
	err := store.UpsertUser(context.Background(), UserProfile{
		ID:          id,
		Email:       id + "@andrew.test",
		DisplayName: name,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

// memSessions is an in-memory Sessions for handler tests.
type memSessions struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemSessions() *memSessions {
	return &memSessions{tokens: make(map[string]string)}
}

func (s *memSessions) Create(_ context.Context, userID string) (string, error) {
	b := make([]byte, 16)
	rand.Read(b)
	token := hex.EncodeToString(b)
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
	return token, nil
}

func (s *memSessions) UserID(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[token]
	if !ok {
		return "", ErrNoSession
	}
	return userID, nil
}

func (s *memSessions) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return nil
}

// fakeVisitStore counts RecordVisitAndReward outcomes and can be told to
// fail or block, for coordinator tests.
type fakeVisitStore struct {
	mu      sync.Mutex
	visited map[string]map[string]bool
	balance map[string]int
	created int
	dupes   int
	failErr error
	gate    chan struct{}
}

func newFakeVisitStore() *fakeVisitStore {
	return &fakeVisitStore{
		visited: make(map[string]map[string]bool),
		balance: make(map[string]int),
	}
}

func (s *fakeVisitStore) GetVisitedZoneIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.visited[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeVisitStore) RecordVisitAndReward(ctx context.Context, userID, zoneID string, reward int) (VisitResult, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return VisitResult{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return VisitResult{}, s.failErr
	}
	if s.visited[userID][zoneID] {
		s.dupes++
		return VisitResult{Created: false, NewBalance: s.balance[userID]}, nil
	}
	if s.visited[userID] == nil {
		s.visited[userID] = make(map[string]bool)
	}
	s.visited[userID][zoneID] = true
	s.balance[userID] += reward
	s.created++
	return VisitResult{Created: true, NewBalance: s.balance[userID]}, nil
}

func (s *fakeVisitStore) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// fakeZoneStore serves a fixed set of custom zones to the registry.
type fakeZoneStore struct {
	mu    sync.Mutex
	zones map[string][]quest.Zone
}

func newFakeZoneStore() *fakeZoneStore {
	return &fakeZoneStore{zones: make(map[string][]quest.Zone)}
}

func (s *fakeZoneStore) QuestZonesFor(_ context.Context, userID string) ([]quest.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zones[userID], nil
}

func (s *fakeZoneStore) set(userID string, zones []quest.Zone) {
	s.mu.Lock()
	s.zones[userID] = zones
	s.mu.Unlock()
}

// collectNotifier records notifier calls.
type collectNotifier struct {
	mu       sync.Mutex
	balances []int
	zones    []string
}

func (n *collectNotifier) BalanceChanged(_ string, newBalance int) {
	n.mu.Lock()
	n.balances = append(n.balances, newBalance)
	n.mu.Unlock()
}

func (n *collectNotifier) ZoneVisited(_, zoneID string) {
	n.mu.Lock()
	n.zones = append(n.zones, zoneID)
	n.mu.Unlock()
}
