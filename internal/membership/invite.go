package membership

import (
	"context"
	"fmt"

	"github.com/dukerupert/shelf/internal/model"
	"github.com/dukerupert/shelf/internal/store"
	"github.com/dukerupert/shelf/internal/token"
)

// InviteCheck is the public view of an email's invite state, used by the
// signup screen to decide between owner and member onboarding.
type InviteCheck struct {
	Status          string      `json:"invite_status"`
	HasUser         bool        `json:"has_user"`
	Role            *model.Role `json:"user_role"`
	BlockedForOwner bool        `json:"blocked_for_owner"`
}

const (
	inviteCheckReserved = "reserved"
	inviteCheckAccepted = "accepted"
	inviteCheckNone     = "none"
)

// ReserveInvite reserves email for the owner's household and emails the
// accept and decline links. The invite is only committed once the email has
// been handed to the transport; a send failure leaves nothing behind.
func (s *Service) ReserveInvite(ctx context.Context, ownerID int64, rawEmail string) (int64, error) {
	addr := NormalizeEmail(rawEmail)
	if !ValidEmail(addr) {
		return 0, ErrInvalidEmail
	}

	var inv *model.Invite
	err := s.withTx(func(st store.Stores) error {
		o, err := owner(st, ownerID)
		if err != nil {
			return err
		}

		existing, err := st.Users.GetByEmail(addr)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailInUse
		}
		active, err := st.Invites.FindActiveByEmail(addr)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrInviteAlreadyActive
		}

		household, err := st.Households.GetByID(*o.HouseholdID)
		if err != nil {
			return err
		}
		if household == nil {
			return ErrForbidden
		}

		now := s.now().UTC()
		inv, err = st.Invites.Create(household.ID, addr, o.ID, now)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return ErrInviteAlreadyActive
			}
			return err
		}
		raw, hash, err := token.Issue()
		if err != nil {
			return err
		}
		if _, err := st.Invites.CreateToken(inv, hash, now.Add(token.InviteTTL), now); err != nil {
			return err
		}

		err = s.mailer.SendInvite(ctx, addr, household.Name, s.link("/invite/accept", raw), s.link("/invite/decline", raw))
		s.metrics.Email("invite", err)
		if err != nil {
			return fmt.Errorf("send invite: %w", deliveryError(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.InviteTransition(string(model.InviteReserved))
	s.logger.Info("invite reserved", "invite_id", inv.ID, "household_id", inv.HouseholdID)
	s.broadcast(inv.HouseholdID, "invite", "reserved", inv.ID)
	return inv.ID, nil
}

// AcceptInvite redeems an invite token and unlocks member signup for the
// invited email.
func (s *Service) AcceptInvite(ctx context.Context, raw string) (int64, error) {
	return s.answerInvite(raw, model.InviteAccepted)
}

// DeclineInvite redeems an invite token and revokes the invite.
func (s *Service) DeclineInvite(ctx context.Context, raw string) (int64, error) {
	return s.answerInvite(raw, model.InviteRevoked)
}

func (s *Service) answerInvite(raw string, to model.InviteStatus) (int64, error) {
	var inv *model.Invite
	err := s.withTx(func(st store.Stores) error {
		if raw == "" {
			return ErrInvalidToken
		}
		tok, err := st.Invites.GetTokenByHash(token.Hash(raw))
		if err != nil {
			return err
		}
		if tok == nil {
			return ErrInvalidToken
		}
		now := s.now().UTC()
		if err := token.Check(tok.UsedAt, tok.ExpiresAt, now); err != nil {
			return err
		}

		inv, err = st.Invites.GetByID(tok.InviteID)
		if err != nil {
			return err
		}
		if inv == nil || inv.Status != model.InviteReserved {
			return ErrInviteNotActive
		}
		next, err := inv.Status.Transition(to)
		if err != nil {
			return ErrInviteNotActive
		}
		if err := st.Invites.UpdateStatus(inv.ID, next); err != nil {
			return err
		}
		inv.Status = next
		return st.Invites.MarkTokenUsed(tok.ID, now)
	})
	s.metrics.TokenRedemption("invite", redemptionResult(err))
	if err != nil {
		return 0, err
	}

	s.metrics.InviteTransition(string(inv.Status))
	s.logger.Info("invite answered", "invite_id", inv.ID, "status", inv.Status)
	s.broadcast(inv.HouseholdID, "invite", string(inv.Status), inv.ID)
	return inv.HouseholdID, nil
}

// RevokeInvite revokes every active invite for email in the owner's
// household.
func (s *Service) RevokeInvite(ctx context.Context, ownerID int64, rawEmail string) error {
	addr := NormalizeEmail(rawEmail)
	if addr == "" {
		return ErrInvalidEmail
	}

	var householdID int64
	var revoked int
	err := s.withTx(func(st store.Stores) error {
		o, err := owner(st, ownerID)
		if err != nil {
			return err
		}
		householdID = *o.HouseholdID

		invites, err := st.Invites.ListByHouseholdAndEmail(householdID, addr)
		if err != nil {
			return err
		}
		for _, inv := range invites {
			next, err := inv.Status.Transition(model.InviteRevoked)
			if err != nil {
				continue
			}
			if err := st.Invites.UpdateStatus(inv.ID, next); err != nil {
				return err
			}
			revoked++
		}
		if revoked == 0 {
			return ErrInviteNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	for range revoked {
		s.metrics.InviteTransition(string(model.InviteRevoked))
	}
	s.logger.Info("invite revoked", "household_id", householdID, "count", revoked)
	s.broadcast(householdID, "invite", "revoked", 0)
	return nil
}

// ListInvites returns the reserved invites of the owner's household, newest
// first.
func (s *Service) ListInvites(ctx context.Context, ownerID int64) ([]model.Invite, error) {
	st := store.New(s.db)
	o, err := owner(st, ownerID)
	if err != nil {
		return nil, err
	}
	invites, err := st.Invites.ListByHouseholdAndStatus(*o.HouseholdID, model.InviteReserved)
	if err != nil {
		return nil, err
	}
	if invites == nil {
		invites = []model.Invite{}
	}
	return invites, nil
}

// CheckInvite reports the invite state of an email across all households.
// A reserved invite outranks an accepted one.
func (s *Service) CheckInvite(ctx context.Context, rawEmail string) (InviteCheck, error) {
	addr := NormalizeEmail(rawEmail)
	check := InviteCheck{Status: inviteCheckNone}
	if addr == "" {
		return check, nil
	}

	st := store.New(s.db)
	invites, err := st.Invites.ListByEmail(addr)
	if err != nil {
		return InviteCheck{}, err
	}
	for _, inv := range invites {
		switch inv.Status {
		case model.InviteReserved:
			check.Status = inviteCheckReserved
		case model.InviteAccepted:
			if check.Status != inviteCheckReserved {
				check.Status = inviteCheckAccepted
			}
		}
	}

	u, err := st.Users.GetByEmail(addr)
	if err != nil {
		return InviteCheck{}, err
	}
	if u != nil {
		check.HasUser = true
		check.Role = u.Role
	}
	check.BlockedForOwner = (u != nil && u.HasRole(model.RoleMember)) || check.Status != inviteCheckNone
	return check, nil
}
