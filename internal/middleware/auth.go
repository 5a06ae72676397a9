package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/shelf/internal/auth"
	"github.com/dukerupert/shelf/internal/store"
)

const SessionCookieName = "shelf_session"

// RequireAuth validates the session cookie, loads the account and populates
// AuthContext. Requests without a live session get a 401.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "Please sign in.")
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				writeError(w, http.StatusUnauthorized, "Please sign in.")
				return
			}

			u, err := userStore.GetByID(sess.UserID)
			if err != nil || u == nil {
				writeError(w, http.StatusUnauthorized, "Please sign in.")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.FromUser(u, sess.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAssigned lets through accounts that own or belong to a household.
func RequireAssigned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, _ := auth.FromContext(r.Context())
		if !ac.Assigned() {
			writeError(w, http.StatusForbidden, "Finish setting up your household first.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireVerified gates household features behind a confirmed email.
func RequireVerified(next http.Handler) http.Handler {
	return RequireAssigned(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, _ := auth.FromContext(r.Context())
		if !ac.Verified {
			writeError(w, http.StatusForbidden, "Please verify your email address.")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireOwner checks that the authenticated user owns their household.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsOwner(r.Context()) {
			writeError(w, http.StatusForbidden, "Owner access required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
