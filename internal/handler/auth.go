package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/shelf/internal/auth"
	"github.com/dukerupert/shelf/internal/database"
	"github.com/dukerupert/shelf/internal/membership"
	"github.com/dukerupert/shelf/internal/middleware"
	"github.com/dukerupert/shelf/internal/model"
	"github.com/dukerupert/shelf/internal/store"
	"github.com/dukerupert/shelf/internal/token"
)

const minPasswordLength = 8

// AuthHandler owns the password credential flow: signup, login, logout and
// the signed-in account view.
type AuthHandler struct {
	db           *sql.DB
	stores       store.Stores
	service      *membership.Service
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthHandler(db *sql.DB, svc *membership.Service, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		db:           db,
		stores:       store.New(db),
		service:      svc,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	addr := membership.NormalizeEmail(req.Email)
	if !membership.ValidEmail(addr) {
		writeError(w, r, h.logger, membership.ErrInvalidEmail)
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, r, h.logger, errWeakPassword)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var u *model.User
	err = database.WithTx(h.db, func(tx *sql.Tx) error {
		st := store.New(tx)
		var err error
		u, err = st.Users.Create(addr)
		if store.IsUniqueViolation(err) {
			return membership.ErrEmailInUse
		}
		if err != nil {
			return err
		}
		return st.Credentials.Create(u.ID, store.ProviderPassword, string(hash))
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.startSession(w, u.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("signup", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.stores.Users.GetByEmail(membership.NormalizeEmail(req.Email))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if u == nil {
		writeError(w, r, h.logger, errInvalidLogin)
		return
	}
	cred, err := h.stores.Credentials.Get(u.ID, store.ProviderPassword)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if cred == nil || bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(req.Password)) != nil {
		writeError(w, r, h.logger, errInvalidLogin)
		return
	}

	if err := h.startSession(w, u.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if err := h.stores.Sessions.Delete(ac.SessionID); err != nil {
		h.logger.Error("delete session", "error", err)
	}

	clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

type meResponse struct {
	User      *model.User      `json:"user"`
	Household *model.Household `json:"household"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.stores.Users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if u == nil {
		writeError(w, r, h.logger, membership.ErrUnauthenticated)
		return
	}

	resp := meResponse{User: u}
	if u.HouseholdID != nil {
		resp.Household, err = h.stores.Households.GetByID(*u.HouseholdID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type displayNameRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *AuthHandler) UpdateDisplayName(w http.ResponseWriter, r *http.Request) {
	var req displayNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.service.UpdateDisplayName(r.Context(), auth.UserID(r.Context()), req.DisplayName); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type apiKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (h *AuthHandler) UpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.service.UpdateAPIKey(r.Context(), auth.UserID(r.Context()), req.APIKey); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, userID int64) error {
	_, raw, err := h.stores.Sessions.Create(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    raw,
		Path:     "/",
		MaxAge:   int(token.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookieSecure,
	})
	return nil
}
