package server

import (
	"errors"
	"net/http"
	"strings"
)

type RedeemRequest struct {
	CouponID   string `json:"couponId"`
	CouponName string `json:"couponName"`
	Cost       int    `json:"cost"`
	Store      string `json:"store"`
}

type RedeemResponse struct {
	CouponCode string `json:"couponCode"`
	NewBalance int    `json:"newBalance"`
}

func handleRedeem(store Store, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RedeemRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.CouponID = strings.TrimSpace(req.CouponID)
		if req.CouponID == "" || req.Cost <= 0 {
			writeError(w, http.StatusBadRequest, "invalid coupon data")
			return
		}

		userID := userFrom(r)

		code, balance, err := store.Redeem(r.Context(), userID, req.CouponID, req.CouponName, req.Store, req.Cost)
		if errors.Is(err, ErrInsufficientBalance) {
			writeError(w, http.StatusBadRequest, "insufficient points")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		notifier.BalanceChanged(userID, balance)
		writeJSON(w, http.StatusOK, RedeemResponse{CouponCode: code, NewBalance: balance})
	}
}

func handleListTransactions(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := store.ListTransactions(r.Context(), userFrom(r), 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if txs == nil {
			txs = []Transaction{}
		}
		writeJSON(w, http.StatusOK, txs)
	}
}
