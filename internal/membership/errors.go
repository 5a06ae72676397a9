package membership

import (
	"errors"
	"fmt"

	"github.com/dukerupert/shelf/internal/token"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrForbidden       = errors.New("forbidden")
	// ErrNotAssigned is a Forbidden error for accounts that have not joined
	// or created a household yet.
	ErrNotAssigned            = fmt.Errorf("%w: account is not linked to a household", ErrForbidden)
	ErrAlreadyAssigned        = errors.New("account is already linked to a household")
	ErrInvalidDisplayName     = errors.New("display name must be 1 to 32 characters")
	ErrInvalidHouseholdName   = errors.New("household name must be 1 to 64 characters")
	ErrInvalidEmail           = errors.New("email is required")
	ErrEmailInUse             = errors.New("email already belongs to a user")
	ErrEmailReservedForMember = errors.New("email is reserved for a household member")
	ErrInviteAlreadyActive    = errors.New("email already has an active invite")
	ErrInviteNotActive        = errors.New("invite is no longer active")
	ErrInviteNotAccepted      = errors.New("invite not accepted yet")
	ErrInviteNotFound         = errors.New("invite not found")
	ErrEmailMismatch          = errors.New("verification token does not match the account")
	ErrAlreadyVerified        = errors.New("email already verified")
	ErrMemberNotFound         = errors.New("member not found")

	ErrInvalidToken = token.ErrInvalidToken
	ErrTokenUsed    = token.ErrTokenUsed
	ErrTokenExpired = token.ErrTokenExpired
)

// redemptionResult labels a token redemption outcome for metrics.
func redemptionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, token.ErrInvalidToken):
		return "invalid"
	case errors.Is(err, token.ErrTokenUsed):
		return "used"
	case errors.Is(err, token.ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrInviteNotActive):
		return "inactive"
	case errors.Is(err, ErrEmailMismatch):
		return "mismatch"
	default:
		return "error"
	}
}
