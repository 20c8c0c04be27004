package server

import (
	"net/http"
	"strings"
)

// SessionRequest is the identity handoff from the upstream OAuth layer: by
// the time it reaches this endpoint the caller has already been
// authenticated there, and this service only records the profile and mints
// a session token of its own.
type SessionRequest struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

type SessionResponse struct {
	Token string `json:"token"`
}

func handleSessionCreate(store Store, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.UserID = strings.TrimSpace(req.UserID)
		req.Email = strings.TrimSpace(req.Email)
		if req.UserID == "" || req.Email == "" {
			writeError(w, http.StatusBadRequest, "userId and email are required")
			return
		}

		if err := store.UpsertUser(r.Context(), UserProfile{
			ID:          req.UserID,
			Email:       req.Email,
			DisplayName: req.DisplayName,
			AvatarURL:   req.AvatarURL,
		}); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		token, err := sessions.Create(r.Context(), req.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, SessionResponse{Token: token})
	}
}

func handleSessionRevoke(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if err := sessions.Revoke(r.Context(), token); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
