package server

import (
	"errors"
	"net/http"
	"strings"
)

type AddFriendRequest struct {
	FriendID string `json:"friendId"`
	Email    string `json:"email"`
}

type RespondFriendRequest struct {
	RequesterID string `json:"requesterId"`
	Accept      bool   `json:"accept"`
}

type BestFriendRequest struct {
	FriendID   string `json:"friendId"`
	BestFriend bool   `json:"bestFriend"`
}

func handleListFriends(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		friends, err := store.ListFriends(r.Context(), userFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if friends == nil {
			friends = []FriendEntry{}
		}
		writeJSON(w, http.StatusOK, friends)
	}
}

// handleAddFriend sends a friend request, addressed either directly by id
// (from search) or by email (manual add).
func handleAddFriend(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddFriendRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		userID := userFrom(r)

		friendID := strings.TrimSpace(req.FriendID)
		if friendID == "" {
			email := strings.TrimSpace(req.Email)
			if email == "" {
				writeError(w, http.StatusBadRequest, "friendId or email is required")
				return
			}
			id, err := store.UserIDByEmail(r.Context(), email)
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			friendID = id
		}

		if friendID == userID {
			writeError(w, http.StatusBadRequest, "cannot add yourself")
			return
		}

		err := store.AddFriend(r.Context(), userID, friendID)
		if errors.Is(err, ErrAlreadyExists) {
			writeError(w, http.StatusBadRequest, "request already sent")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func handleRespondFriend(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RespondFriendRequest
		if err := readJSON(r, &req); err != nil || req.RequesterID == "" {
			writeError(w, http.StatusBadRequest, "requesterId is required")
			return
		}

		err := store.RespondFriend(r.Context(), userFrom(r), req.RequesterID, req.Accept)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func handleSetBestFriend(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BestFriendRequest
		if err := readJSON(r, &req); err != nil || req.FriendID == "" {
			writeError(w, http.StatusBadRequest, "friendId is required")
			return
		}

		err := store.SetBestFriend(r.Context(), userFrom(r), req.FriendID, req.BestFriend)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "friendship not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func handleSearchUsers(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("query"))
		if len(query) < 2 {
			writeJSON(w, http.StatusOK, []UserProfile{})
			return
		}

		users, err := store.SearchUsers(r.Context(), query, userFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if users == nil {
			users = []UserProfile{}
		}
		writeJSON(w, http.StatusOK, users)
	}
}
