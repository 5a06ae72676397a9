package auth

import (
	"context"

	"github.com/dukerupert/shelf/internal/model"
)

type contextKey struct{}

// AuthContext describes the signed-in account for the current request.
// HouseholdID is zero and Role empty for accounts that are not assigned yet.
type AuthContext struct {
	UserID      int64
	SessionID   int64
	Email       string
	HouseholdID int64
	Role        model.Role
	Verified    bool
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// FromUser builds the context for a loaded account and session.
func FromUser(u *model.User, sessionID int64) AuthContext {
	ac := AuthContext{
		UserID:    u.ID,
		SessionID: sessionID,
		Email:     u.Email,
		Verified:  u.Verified(),
	}
	if u.Assigned() {
		ac.HouseholdID = *u.HouseholdID
		ac.Role = *u.Role
	}
	return ac
}

func (ac AuthContext) Assigned() bool {
	return ac.HouseholdID != 0 && ac.Role != ""
}

func HouseholdID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.HouseholdID
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsOwner(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleOwner
}
