package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/shelf/internal/auth"
	"github.com/dukerupert/shelf/internal/membership"
	"github.com/dukerupert/shelf/internal/model"
)

// MembershipHandler exposes the household lifecycle over HTTP. All rules
// live in membership.Service; handlers only decode, call and encode.
type MembershipHandler struct {
	service *membership.Service
	logger  *slog.Logger
}

func NewMembershipHandler(svc *membership.Service, logger *slog.Logger) *MembershipHandler {
	return &MembershipHandler{service: svc, logger: logger}
}

type emailRequest struct {
	Email string `json:"email"`
}

// Invites

func (h *MembershipHandler) CheckInvite(w http.ResponseWriter, r *http.Request) {
	check, err := h.service.CheckInvite(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *MembershipHandler) ReserveInvite(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := h.service.ReserveInvite(r.Context(), auth.UserID(r.Context()), req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"invite_id": id})
}

func (h *MembershipHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.service.ListInvites(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if invites == nil {
		invites = []model.Invite{}
	}
	writeJSON(w, http.StatusOK, invites)
}

func (h *MembershipHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.service.RevokeInvite(r.Context(), auth.UserID(r.Context()), req.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// AcceptInvite and DeclineInvite are opened from the invite email, so they
// answer in plain text.
func (h *MembershipHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.AcceptInvite(r.Context(), r.FormValue("token")); err != nil {
		writeText(w, r, h.logger, err)
		return
	}
	writePlain(w, "Invite accepted. Sign up with this email address to join the household.")
}

func (h *MembershipHandler) DeclineInvite(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.DeclineInvite(r.Context(), r.FormValue("token")); err != nil {
		writeText(w, r, h.logger, err)
		return
	}
	writePlain(w, "Invite declined.")
}

// Onboarding

func (h *MembershipHandler) CreateOwner(w http.ResponseWriter, r *http.Request) {
	var req displayNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	householdID, err := h.service.CreateOwner(r.Context(), auth.UserID(r.Context()), req.DisplayName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"household_id": householdID, "role": model.RoleOwner})
}

func (h *MembershipHandler) JoinHousehold(w http.ResponseWriter, r *http.Request) {
	var req displayNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	householdID, err := h.service.JoinHousehold(r.Context(), auth.UserID(r.Context()), req.DisplayName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"household_id": householdID, "role": model.RoleMember})
}

// Members and household

func (h *MembershipHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListMembers(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.MemberEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *MembershipHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, h.logger, errBadID)
		return
	}
	if err := h.service.RemoveMember(r.Context(), auth.UserID(r.Context()), memberID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MembershipHandler) Household(w http.ResponseWriter, r *http.Request) {
	household, err := h.service.Household(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if household == nil {
		writeError(w, r, h.logger, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, household)
}

type householdRequest struct {
	Name string `json:"name"`
}

func (h *MembershipHandler) RenameHousehold(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	household, err := h.service.RenameHousehold(r.Context(), auth.UserID(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, household)
}

// LeaveHousehold and DeleteHousehold delete the caller's account, so the
// session cookie is cleared as well.
func (h *MembershipHandler) LeaveHousehold(w http.ResponseWriter, r *http.Request) {
	if err := h.service.LeaveHousehold(r.Context(), auth.UserID(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MembershipHandler) DeleteHousehold(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteHousehold(r.Context(), auth.UserID(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// Verification

func (h *MembershipHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	err := h.service.ResendVerification(r.Context(), auth.UserID(r.Context()))
	if errors.Is(err, membership.ErrAlreadyVerified) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already-verified"})
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// ResendCooldown answers a resend inside the cooldown window. The link sent
// moments ago is still the current one, so the caller sees the same result
// without another email going out.
func (h *MembershipHandler) ResendCooldown(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("verification resend in cooldown", "user_id", auth.UserID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *MembershipHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.service.VerifyEmail(r.Context(), r.FormValue("token")); err != nil {
		writeText(w, r, h.logger, err)
		return
	}
	writePlain(w, "Email verified. You can close this page.")
}

func writePlain(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(msg + "\n"))
}
