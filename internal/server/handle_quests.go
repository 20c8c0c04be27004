package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tartanquest/campus/internal/quest"
)

type CreateQuestRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	Points          int      `json:"points"`
	Category        string   `json:"category"`
	Time            string   `json:"time"`
	InviteFriendIDs []string `json:"inviteFriendIds"`
}

type CreateQuestResponse struct {
	ID string `json:"id"`
}

type RespondQuestRequest struct {
	QuestID string `json:"questId"`
	Accept  bool   `json:"accept"`
}

// handleListQuests returns the caller's zone list: static landmarks plus
// their own and invited custom quests, invite status included.
func handleListQuests(zones *ZoneRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zs, err := zones.ZonesFor(r.Context(), userFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if zs == nil {
			zs = []quest.Zone{}
		}
		writeJSON(w, http.StatusOK, zs)
	}
}

func handleCreateQuest(store Store, zones *ZoneRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateQuestRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if req.Points <= 0 {
			writeError(w, http.StatusBadRequest, "points must be positive")
			return
		}

		in := QuestInput{
			Name:            req.Name,
			Description:     req.Description,
			Latitude:        req.Latitude,
			Longitude:       req.Longitude,
			Points:          req.Points,
			Category:        req.Category,
			InviteFriendIDs: req.InviteFriendIDs,
		}
		if req.Time != "" {
			t, err := time.Parse(time.RFC3339, req.Time)
			if err != nil {
				writeError(w, http.StatusBadRequest, "time must be RFC 3339")
				return
			}
			in.StartTime = &t
		}

		id, err := store.CreateQuest(r.Context(), userFrom(r), in)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		zones.Invalidate()
		writeJSON(w, http.StatusOK, CreateQuestResponse{ID: id})
	}
}

func handleRespondQuest(store Store, zones *ZoneRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RespondQuestRequest
		if err := readJSON(r, &req); err != nil || req.QuestID == "" {
			writeError(w, http.StatusBadRequest, "questId is required")
			return
		}

		err := store.RespondQuestInvite(r.Context(), req.QuestID, userFrom(r), req.Accept)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "invite not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		zones.Invalidate()
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func handleDeleteQuest(store Store, zones *ZoneRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questID := chi.URLParam(r, "id")

		err := store.DeleteQuest(r.Context(), questID, userFrom(r))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "quest not found")
			return
		}
		if errors.Is(err, ErrForbidden) {
			writeError(w, http.StatusForbidden, "not the quest creator")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		zones.Invalidate()
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
