package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type apiTest struct {
	t      *testing.T
	srv    *httptest.Server
	store  *SQLiteStore
	tokens map[string]string // user id -> session token
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()

	store := setupStore(t)
	logger := testLogger()
	registry := NewZoneRegistry(logger, store, time.Minute)
	hub := NewHub(logger)
	coord := NewCoordinator(logger, store, registry, NoopNotifier{}, 2*time.Second)
	coord.SetConnSender(hub.SendToConnection)

	r := chi.NewRouter()
	addRoutes(r, Deps{
		Logger:      logger,
		Store:       store,
		Sessions:    newMemSessions(),
		Hub:         hub,
		Coordinator: coord,
		Zones:       registry,
		Notifier:    NoopNotifier{},
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &apiTest{t: t, srv: srv, store: store, tokens: make(map[string]string)}
}

// login runs the session exchange for the given identity and remembers the
// returned token.
func (a *apiTest) login(userID, name string) {
	a.t.Helper()
	status, body := a.do("", http.MethodPost, "/api/session", SessionRequest{
		UserID:      userID,
		Email:       userID + "@andrew.test",
		DisplayName: name,
	})
	if status != http.StatusOK {
		a.t.Fatalf("session exchange for %s: status %d, body %s", userID, status, body)
	}
	var resp SessionResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		a.t.Fatalf("bad session response: %s", body)
	}
	a.tokens[userID] = resp.Token
}

func (a *apiTest) do(userID, method, path string, payload any) (int, []byte) {
	a.t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			a.t.Fatalf("marshaling payload: %v", err)
		}
		body = bytes.NewBuffer(data)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, a.srv.URL+path, body)
	if err != nil {
		a.t.Fatal(err)
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[userID])
	}

	resp, err := a.srv.Client().Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes()
}

func TestSessionExchangeAndRevoke(t *testing.T) {
	a := newAPITest(t)

	// Missing identity fields are rejected.
	status, _ := a.do("", http.MethodPost, "/api/session", SessionRequest{Email: "x@andrew.test"})
	if status != http.StatusBadRequest {
		t.Errorf("empty userId status = %d, want 400", status)
	}

	a.login("user-a", "Ada")

	status, _ = a.do("user-a", http.MethodGet, "/api/wallet", nil)
	if status != http.StatusOK {
		t.Errorf("wallet with session = %d, want 200", status)
	}

	status, _ = a.do("user-a", http.MethodDelete, "/api/session", nil)
	if status != http.StatusNoContent {
		t.Errorf("revoke = %d, want 204", status)
	}

	status, _ = a.do("user-a", http.MethodGet, "/api/wallet", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("wallet after revoke = %d, want 401", status)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	a := newAPITest(t)

	for _, path := range []string{"/api/wallet", "/api/quests", "/api/friends", "/api/transactions"} {
		status, _ := a.do("", http.MethodGet, path, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, status)
		}
	}

	// A made-up token is as good as none.
	req, _ := http.NewRequest(http.MethodGet, a.srv.URL+"/api/wallet", nil)
	req.Header.Set("Authorization", "Bearer deadbeef")
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bogus token = %d, want 401", resp.StatusCode)
	}
}

func TestWalletAndVisitedZones(t *testing.T) {
	a := newAPITest(t)
	a.login("user-a", "Ada")
	ctx := context.Background()

	status, body := a.do("user-a", http.MethodGet, "/api/visited-zones", nil)
	if status != http.StatusOK || string(bytes.TrimSpace(body)) != "[]" {
		t.Errorf("fresh visited-zones = %d %s, want 200 []", status, body)
	}

	if _, err := a.store.RecordVisitAndReward(ctx, "user-a", "zone-fence", 50); err != nil {
		t.Fatal(err)
	}

	status, body = a.do("user-a", http.MethodGet, "/api/wallet", nil)
	if status != http.StatusOK {
		t.Fatalf("wallet = %d", status)
	}
	var wallet WalletResponse
	json.Unmarshal(body, &wallet)
	if wallet.Balance != 50 {
		t.Errorf("balance = %d, want 50", wallet.Balance)
	}

	_, body = a.do("user-a", http.MethodGet, "/api/visited-zones", nil)
	var ids []string
	json.Unmarshal(body, &ids)
	if len(ids) != 1 || ids[0] != "zone-fence" {
		t.Errorf("visited = %v", ids)
	}
}

func TestQuestEndpoints(t *testing.T) {
	a := newAPITest(t)
	a.login("user-a", "Ada")
	a.login("user-b", "Ben")

	// The default list is the two campus landmarks.
	status, body := a.do("user-a", http.MethodGet, "/api/quests", nil)
	if status != http.StatusOK {
		t.Fatalf("list = %d", status)
	}
	var zones []map[string]any
	json.Unmarshal(body, &zones)
	if len(zones) != 2 {
		t.Fatalf("default zones = %d, want 2 landmarks", len(zones))
	}

	status, body = a.do("user-a", http.MethodPost, "/api/quests", CreateQuestRequest{
		Name:            "Bagpipes at the fence",
		Latitude:        40.4432,
		Longitude:       -79.9428,
		Points:          25,
		Category:        "social",
		Time:            "2026-04-17T18:00:00Z",
		InviteFriendIDs: []string{"user-b"},
	})
	if status != http.StatusOK {
		t.Fatalf("create = %d %s", status, body)
	}
	var created CreateQuestResponse
	json.Unmarshal(body, &created)
	if created.ID == "" {
		t.Fatal("empty quest id")
	}

	// Invalid creates are rejected before touching the store.
	for _, bad := range []CreateQuestRequest{
		{Points: 10},                           // no name
		{Name: "x", Points: 0},                 // no points
		{Name: "x", Points: 5, Time: "17:00h"}, // bad time
	} {
		if status, _ := a.do("user-a", http.MethodPost, "/api/quests", bad); status != http.StatusBadRequest {
			t.Errorf("create %+v = %d, want 400", bad, status)
		}
	}

	// The creator sees it immediately; the snapshot cache was invalidated.
	_, body = a.do("user-a", http.MethodGet, "/api/quests", nil)
	json.Unmarshal(body, &zones)
	if len(zones) != 3 {
		t.Errorf("creator zones after create = %d, want 3", len(zones))
	}

	// The invitee sees it as pending until they respond.
	_, body = a.do("user-b", http.MethodGet, "/api/quests", nil)
	json.Unmarshal(body, &zones)
	var invited map[string]any
	for _, z := range zones {
		if z["id"] == created.ID {
			invited = z
		}
	}
	if invited == nil {
		t.Fatal("invitee does not see the quest")
	}
	if invited["inviteStatus"] != "pending" {
		t.Errorf("inviteStatus = %v, want pending", invited["inviteStatus"])
	}

	status, _ = a.do("user-b", http.MethodPost, "/api/quests/respond", RespondQuestRequest{
		QuestID: created.ID, Accept: true,
	})
	if status != http.StatusOK {
		t.Fatalf("respond = %d", status)
	}
	_, body = a.do("user-b", http.MethodGet, "/api/quests", nil)
	json.Unmarshal(body, &zones)
	for _, z := range zones {
		if z["id"] == created.ID && z["inviteStatus"] != "accepted" {
			t.Errorf("inviteStatus after accept = %v", z["inviteStatus"])
		}
	}

	// Only the creator can delete.
	status, _ = a.do("user-b", http.MethodDelete, "/api/quests/"+created.ID, nil)
	if status != http.StatusForbidden {
		t.Errorf("invitee delete = %d, want 403", status)
	}
	status, _ = a.do("user-a", http.MethodDelete, "/api/quests/"+created.ID, nil)
	if status != http.StatusOK {
		t.Errorf("creator delete = %d, want 200", status)
	}
	status, _ = a.do("user-a", http.MethodDelete, "/api/quests/"+created.ID, nil)
	if status != http.StatusNotFound {
		t.Errorf("double delete = %d, want 404", status)
	}
}

func TestFriendEndpoints(t *testing.T) {
	a := newAPITest(t)
	a.login("user-a", "Ada")
	a.login("user-b", "Ben")

	status, _ := a.do("user-a", http.MethodPost, "/api/friends", map[string]string{"friendId": "user-b"})
	if status != http.StatusOK {
		t.Fatalf("add friend = %d", status)
	}
	status, _ = a.do("user-a", http.MethodPost, "/api/friends", map[string]string{"friendId": "user-b"})
	if status != http.StatusBadRequest {
		t.Errorf("duplicate request = %d, want 400", status)
	}
	status, _ = a.do("user-a", http.MethodPost, "/api/friends", map[string]string{"friendId": "user-a"})
	if status != http.StatusBadRequest {
		t.Errorf("self-add = %d, want 400", status)
	}

	status, body := a.do("user-b", http.MethodGet, "/api/friends", nil)
	if status != http.StatusOK {
		t.Fatalf("list = %d", status)
	}
	var friends []FriendEntry
	json.Unmarshal(body, &friends)
	if len(friends) != 1 || !friends[0].Incoming {
		t.Fatalf("ben's inbox = %+v", friends)
	}

	status, _ = a.do("user-b", http.MethodPost, "/api/friends/respond", RespondFriendRequest{
		RequesterID: "user-a", Accept: true,
	})
	if status != http.StatusOK {
		t.Fatalf("accept = %d", status)
	}

	status, _ = a.do("user-a", http.MethodPost, "/api/friends/best", BestFriendRequest{
		FriendID: "user-b", BestFriend: true,
	})
	if status != http.StatusOK {
		t.Fatalf("best = %d", status)
	}
	_, body = a.do("user-a", http.MethodGet, "/api/friends", nil)
	json.Unmarshal(body, &friends)
	if len(friends) != 1 || !friends[0].BestFriend {
		t.Errorf("ada's list = %+v", friends)
	}

	status, body = a.do("user-a", http.MethodGet, "/api/users/search?query=ben", nil)
	if status != http.StatusOK {
		t.Fatalf("search = %d", status)
	}
	var results []UserProfile
	json.Unmarshal(body, &results)
	if len(results) != 1 || results[0].ID != "user-b" {
		t.Errorf("search results = %+v", results)
	}
}

func TestBlockEndpoints(t *testing.T) {
	a := newAPITest(t)
	a.login("user-a", "Ada")
	a.login("user-b", "Ben")

	a.do("user-a", http.MethodPost, "/api/friends", AddFriendRequest{FriendID: "user-b"})
	a.do("user-b", http.MethodPost, "/api/friends/respond", RespondFriendRequest{RequesterID: "user-a", Accept: true})

	status, _ := a.do("user-a", http.MethodPost, "/api/blocks", BlockRequest{BlockedUserID: "user-b"})
	if status != http.StatusOK {
		t.Fatalf("block = %d", status)
	}

	status, body := a.do("user-a", http.MethodGet, "/api/blocks", nil)
	if status != http.StatusOK {
		t.Fatalf("list blocks = %d", status)
	}
	var blocks []string
	json.Unmarshal(body, &blocks)
	if len(blocks) != 1 || blocks[0] != "user-b" {
		t.Errorf("blocks = %v", blocks)
	}

	// The friendship is gone on both sides.
	_, body = a.do("user-b", http.MethodGet, "/api/friends", nil)
	var friends []FriendEntry
	json.Unmarshal(body, &friends)
	if len(friends) != 0 {
		t.Errorf("ben's friends after being blocked = %+v", friends)
	}
}

func TestRedeemEndpoint(t *testing.T) {
	a := newAPITest(t)
	a.login("user-a", "Ada")
	ctx := context.Background()
	a.store.RecordVisitAndReward(ctx, "user-a", "zone-pausch-bridge", 100)

	status, body := a.do("user-a", http.MethodPost, "/api/redeem", RedeemRequest{
		CouponID: "coffee", CouponName: "Free coffee", Store: "La Prima", Cost: 60,
	})
	if status != http.StatusOK {
		t.Fatalf("redeem = %d %s", status, body)
	}
	var resp RedeemResponse
	json.Unmarshal(body, &resp)
	if resp.NewBalance != 40 {
		t.Errorf("balance = %d, want 40", resp.NewBalance)
	}
	if resp.CouponCode == "" {
		t.Error("missing coupon code")
	}

	status, _ = a.do("user-a", http.MethodPost, "/api/redeem", RedeemRequest{
		CouponID: "coffee", CouponName: "Free coffee", Cost: 60,
	})
	if status != http.StatusBadRequest {
		t.Errorf("over-redeem = %d, want 400", status)
	}
	status, _ = a.do("user-a", http.MethodPost, "/api/redeem", RedeemRequest{CouponID: "x", Cost: 0})
	if status != http.StatusBadRequest {
		t.Errorf("zero-cost redeem = %d, want 400", status)
	}

	_, body = a.do("user-a", http.MethodGet, "/api/transactions", nil)
	var txs []Transaction
	json.Unmarshal(body, &txs)
	if len(txs) != 1 {
		t.Errorf("transactions = %d, want 1", len(txs))
	}
}

func TestMosaicEndpoints(t *testing.T) {
	a := newAPITest(t)
	a.login("user-a", "Ada")

	status, _ := a.do("user-a", http.MethodPost, "/api/mosaics", map[string]any{
		"type": "event", "metadata": map[string]string{"event": "carnival"},
	})
	if status != http.StatusOK {
		t.Fatalf("collect = %d", status)
	}

	status, body := a.do("user-a", http.MethodGet, "/api/mosaics", nil)
	if status != http.StatusOK {
		t.Fatalf("list = %d", status)
	}
	var mosaics []Mosaic
	json.Unmarshal(body, &mosaics)
	if len(mosaics) != 1 || mosaics[0].Type != "event" {
		t.Errorf("mosaics = %+v", mosaics)
	}
}
