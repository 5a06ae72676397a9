package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/shelf/internal/config"
	"github.com/dukerupert/shelf/internal/email"
	"github.com/dukerupert/shelf/internal/membership"
	"github.com/dukerupert/shelf/internal/product"
)

var (
	errBadJSON      = errors.New("invalid JSON")
	errBadID        = errors.New("invalid id")
	errNotFound     = errors.New("not found")
	errInvalidLogin = errors.New("invalid email or password")
	errWeakPassword = errors.New("password too short")
)

// errorMapping pairs a sentinel error with the response a client sees.
type errorMapping struct {
	err     error
	status  int
	message string
}

// errorTable is checked in order, so wrapped sentinels must come before the
// errors they wrap.
var errorTable = []errorMapping{
	{membership.ErrUnauthenticated, http.StatusUnauthorized, "Please sign in."},
	{membership.ErrNotAssigned, http.StatusForbidden, "Finish setting up your household first."},
	{membership.ErrForbidden, http.StatusForbidden, "You don't have permission to do that."},
	{membership.ErrAlreadyAssigned, http.StatusConflict, "Your account already belongs to a household."},
	{membership.ErrInvalidDisplayName, http.StatusBadRequest, "Display name must be 1 to 32 characters."},
	{membership.ErrInvalidHouseholdName, http.StatusBadRequest, "Household name must be 1 to 64 characters."},
	{membership.ErrInvalidEmail, http.StatusBadRequest, "Please enter a valid email address."},
	{membership.ErrEmailInUse, http.StatusConflict, "That email already has an account."},
	{membership.ErrEmailReservedForMember, http.StatusConflict, "That email has a pending household invite. Accept or decline it first."},
	{membership.ErrInviteAlreadyActive, http.StatusConflict, "That email already has an active invite."},
	{membership.ErrInviteNotActive, http.StatusGone, "This invite is no longer active."},
	{membership.ErrInviteNotAccepted, http.StatusForbidden, "Accept your invite before joining the household."},
	{membership.ErrInviteNotFound, http.StatusNotFound, "Invite not found."},
	{membership.ErrInvalidToken, http.StatusBadRequest, "This link is invalid."},
	{membership.ErrTokenUsed, http.StatusGone, "This link has already been used."},
	{membership.ErrTokenExpired, http.StatusGone, "This link has expired."},
	{membership.ErrEmailMismatch, http.StatusForbidden, "This link belongs to a different email address."},
	{membership.ErrAlreadyVerified, http.StatusConflict, "Your email is already verified."},
	{membership.ErrMemberNotFound, http.StatusNotFound, "Member not found."},
	{email.ErrDelivery, http.StatusBadGateway, "We couldn't send the email. Please try again."},
	{config.ErrMissingConfiguration, http.StatusServiceUnavailable, "Email is not configured on this server."},
	{product.ErrNameRequired, http.StatusBadRequest, "Name is required."},
	{product.ErrNameTooLong, http.StatusBadRequest, "Name is too long."},
	{product.ErrInvalidValue, http.StatusBadRequest, "Amount must be greater than zero."},
	{product.ErrInvalidUnit, http.StatusBadRequest, "Unit must be one of pcs, g, ml, kg, l."},
	{errBadJSON, http.StatusBadRequest, "Invalid request body."},
	{errBadID, http.StatusBadRequest, "Invalid id."},
	{errNotFound, http.StatusNotFound, "Not found."},
	{errInvalidLogin, http.StatusUnauthorized, "Invalid email or password."},
	{errWeakPassword, http.StatusBadRequest, "Password must be at least 8 characters."},
}

const internalErrorMessage = "Something went wrong."

// lookupError returns the status and message for err. Unknown errors map to
// a 500 and ok is false.
func lookupError(err error) (status int, message string, ok bool) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.message, true
		}
	}
	return http.StatusInternalServerError, internalErrorMessage, false
}

// writeError responds with {"error": message} for err, logging anything the
// table does not know about.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg, ok := lookupError(err)
	if !ok {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeText is writeError for the pages opened from emailed links.
func writeText(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg, ok := lookupError(err)
	if !ok {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	http.Error(w, msg, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}
