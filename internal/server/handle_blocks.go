package server

import (
	"errors"
	"net/http"
	"strings"
)

type BlockRequest struct {
	BlockedUserID string `json:"blockedUserId"`
}

func handleAddBlock(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		userID := userFrom(r)
		blocked := strings.TrimSpace(req.BlockedUserID)
		if blocked == "" {
			writeError(w, http.StatusBadRequest, "blockedUserId is required")
			return
		}
		if blocked == userID {
			writeError(w, http.StatusBadRequest, "cannot block yourself")
			return
		}

		err := store.AddBlock(r.Context(), userID, blocked)
		if errors.Is(err, ErrAlreadyExists) {
			writeError(w, http.StatusBadRequest, "already blocked")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func handleListBlocks(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := store.ListBlocks(r.Context(), userFrom(r))
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
