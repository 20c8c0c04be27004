package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/tartanquest/campus/internal/quest"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "CampusQuest API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the campus quest game: presence, quests, wallet and social features.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Live connection")
	getWS.SetDescription("Upgrades to the WebSocket carrying presence, proximity and chat events.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// POST /api/session
	postSession, _ := r.NewOperationContext(http.MethodPost, "/api/session")
	postSession.SetSummary("Create session")
	postSession.SetDescription("Identity handoff from the upstream auth layer. Returns a bearer token.")
	postSession.AddReqStructure(SessionRequest{})
	postSession.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postSession)

	// GET /api/wallet
	getWallet, _ := r.NewOperationContext(http.MethodGet, "/api/wallet")
	getWallet.SetSummary("Wallet balance")
	getWallet.AddRespStructure(WalletResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getWallet.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getWallet)

	// GET /api/visited-zones
	getVisited, _ := r.NewOperationContext(http.MethodGet, "/api/visited-zones")
	getVisited.SetSummary("Visited zone ids")
	getVisited.AddRespStructure([]string{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getVisited)

	// GET /api/quests
	getQuests, _ := r.NewOperationContext(http.MethodGet, "/api/quests")
	getQuests.SetSummary("Active quest zones")
	getQuests.SetDescription("Static landmarks plus the caller's custom and invited quests.")
	getQuests.AddRespStructure([]quest.Zone{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getQuests)

	// POST /api/quests
	postQuests, _ := r.NewOperationContext(http.MethodPost, "/api/quests")
	postQuests.SetSummary("Create custom quest")
	postQuests.AddReqStructure(CreateQuestRequest{})
	postQuests.AddRespStructure(CreateQuestResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postQuests.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postQuests)

	// POST /api/quests/respond
	postRespond, _ := r.NewOperationContext(http.MethodPost, "/api/quests/respond")
	postRespond.SetSummary("Respond to quest invite")
	postRespond.AddReqStructure(RespondQuestRequest{})
	postRespond.AddRespStructure(map[string]bool{}, openapi.WithHTTPStatus(http.StatusOK))
	postRespond.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postRespond)

	// POST /api/redeem
	postRedeem, _ := r.NewOperationContext(http.MethodPost, "/api/redeem")
	postRedeem.SetSummary("Redeem coupon")
	postRedeem.AddReqStructure(RedeemRequest{})
	postRedeem.AddRespStructure(RedeemResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postRedeem.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postRedeem)

	// GET /api/friends
	getFriends, _ := r.NewOperationContext(http.MethodGet, "/api/friends")
	getFriends.SetSummary("List friends")
	getFriends.AddRespStructure([]FriendEntry{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getFriends)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
