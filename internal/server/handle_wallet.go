package server

import (
	"errors"
	"net/http"
)

type WalletResponse struct {
	Balance int `json:"balance"`
}

func handleWallet(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := store.WalletBalance(r.Context(), userFrom(r))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, WalletResponse{Balance: balance})
	}
}

// handleVisitedZones returns the visited zone ids used to seed the client's
// map state on session start.
func handleVisitedZones(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := store.GetVisitedZoneIDs(r.Context(), userFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, ids)
	}
}
