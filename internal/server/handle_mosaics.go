package server

import (
	"encoding/json"
	"net/http"
)

type CollectMosaicRequest struct {
	Type     string          `json:"type"`
	Metadata json.RawMessage `json:"metadata"`
}

func handleCollectMosaic(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CollectMosaicRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		m, err := store.CollectMosaic(r.Context(), userFrom(r), req.Type, string(req.Metadata))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleListMosaics(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mosaics, err := store.ListMosaics(r.Context(), userFrom(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if mosaics == nil {
			mosaics = []Mosaic{}
		}
		writeJSON(w, http.StatusOK, mosaics)
	}
}
