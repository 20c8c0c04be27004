package server

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const ctxKeyUserID ctxKey = iota

// sessionMiddleware resolves the bearer token to a user id and stores it on
// the request context. Requests without a valid session are rejected.
func sessionMiddleware(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			userID, err := sessions.UserID(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found {
		return ""
	}
	return token
}

func userFrom(r *http.Request) string {
	return r.Context().Value(ctxKeyUserID).(string)
}
