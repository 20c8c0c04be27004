package server

import (
	"database/sql"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/swaggest/swgui/v5emb"
)

type Deps struct {
	Logger      *slog.Logger
	Store       Store
	Sessions    Sessions
	Hub         *Hub
	Coordinator *Coordinator
	Zones       *ZoneRegistry
	Notifier    Notifier
	DB          *sql.DB
	Redis       *redis.Client
	NATS        *nats.Conn
	SPADir      string
}

func addRoutes(r chi.Router, d Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("CampusQuest API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(d.Logger, d.DB, d.Redis, d.NATS))

	// The live presence/quest connection.
	r.Get("/ws", handleWS(d.Logger, d.Hub, d.Coordinator))

	// Session exchange — the only unauthenticated API route.
	r.Post("/api/session", handleSessionCreate(d.Store, d.Sessions))

	r.Route("/api", func(r chi.Router) {
		r.Use(sessionMiddleware(d.Sessions))

		r.Delete("/session", handleSessionRevoke(d.Sessions))

		r.Get("/wallet", handleWallet(d.Store))
		r.Get("/visited-zones", handleVisitedZones(d.Store))

		r.Get("/quests", handleListQuests(d.Zones))
		r.Post("/quests", handleCreateQuest(d.Store, d.Zones))
		r.Post("/quests/respond", handleRespondQuest(d.Store, d.Zones))
		r.Delete("/quests/{id}", handleDeleteQuest(d.Store, d.Zones))

		r.Get("/friends", handleListFriends(d.Store))
		r.Post("/friends", handleAddFriend(d.Store))
		r.Post("/friends/respond", handleRespondFriend(d.Store))
		r.Post("/friends/best", handleSetBestFriend(d.Store))
		r.Get("/users/search", handleSearchUsers(d.Store))

		r.Get("/blocks", handleListBlocks(d.Store))
		r.Post("/blocks", handleAddBlock(d.Store))

		r.Post("/redeem", handleRedeem(d.Store, d.Notifier))
		r.Get("/transactions", handleListTransactions(d.Store))

		r.Get("/mosaics", handleListMosaics(d.Store))
		r.Post("/mosaics", handleCollectMosaic(d.Store))
	})

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			d.Logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
