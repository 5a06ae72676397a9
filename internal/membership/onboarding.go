package membership

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/shelf/internal/model"
	"github.com/dukerupert/shelf/internal/store"
)

// CreateOwner creates a household owned by the caller. Products created
// before households existed are moved into it. A verification email is
// sent once the assignment has committed.
func (s *Service) CreateOwner(ctx context.Context, userID int64, displayName string) (int64, error) {
	var (
		householdID int64
		addr        string
		verifyURL   string
		adopted     int64
	)
	err := s.withTx(func(st store.Stores) error {
		u, err := caller(st, userID)
		if err != nil {
			return err
		}
		if u.Role != nil || u.HouseholdID != nil {
			return ErrAlreadyAssigned
		}
		name, err := validateDisplayName(displayName)
		if err != nil {
			return err
		}
		addr = NormalizeEmail(u.Email)
		if addr == "" {
			return ErrInvalidEmail
		}

		active, err := st.Invites.FindActiveByEmail(addr)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrEmailReservedForMember
		}

		h, err := st.Households.Create(defaultHouseholdName, u.ID)
		if err != nil {
			return err
		}
		ok, err := st.Users.Assign(u.ID, h.ID, model.RoleOwner, name)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyAssigned
		}
		householdID = h.ID

		adopted, err = st.Products.AdoptLegacy(h.ID, u.ID, s.now())
		if err != nil {
			return err
		}

		verifyURL, err = s.issueVerification(st, u.ID, addr)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("household created", "household_id", householdID, "user_id", userID, "adopted_products", adopted)
	s.sendVerification(ctx, userID, addr, verifyURL)
	return householdID, nil
}

// JoinHousehold makes the caller a member of the household whose invite
// they accepted. The invite is marked consumed in the same transaction.
func (s *Service) JoinHousehold(ctx context.Context, userID int64, displayName string) (int64, error) {
	var (
		householdID int64
		addr        string
		verifyURL   string
	)
	err := s.withTx(func(st store.Stores) error {
		u, err := caller(st, userID)
		if err != nil {
			return err
		}
		if u.Role != nil || u.HouseholdID != nil {
			return ErrAlreadyAssigned
		}
		name, err := validateDisplayName(displayName)
		if err != nil {
			return err
		}
		addr = NormalizeEmail(u.Email)
		if addr == "" {
			return ErrInvalidEmail
		}

		inv, err := st.Invites.FindActiveByEmail(addr)
		if err != nil {
			return err
		}
		if inv == nil || inv.Status != model.InviteAccepted {
			return ErrInviteNotAccepted
		}

		ok, err := st.Users.Assign(u.ID, inv.HouseholdID, model.RoleMember, name)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyAssigned
		}
		next, err := inv.Status.Transition(model.InviteConsumed)
		if err != nil {
			return fmt.Errorf("consume invite: %w", err)
		}
		if err := st.Invites.UpdateStatus(inv.ID, next); err != nil {
			return err
		}
		householdID = inv.HouseholdID

		verifyURL, err = s.issueVerification(st, u.ID, addr)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.metrics.InviteTransition(string(model.InviteConsumed))
	s.logger.Info("member joined", "household_id", householdID, "user_id", userID)
	s.broadcast(householdID, "member", "joined", userID)
	s.sendVerification(ctx, userID, addr, verifyURL)
	return householdID, nil
}

// ListMembers returns the household's members together with accepted
// invites whose email has not created an account yet, sorted by name.
func (s *Service) ListMembers(ctx context.Context, ownerID int64) ([]model.MemberEntry, error) {
	st := store.New(s.db)
	o, err := owner(st, ownerID)
	if err != nil {
		return nil, err
	}
	householdID := *o.HouseholdID

	users, err := st.Users.ListByHousehold(householdID)
	if err != nil {
		return nil, err
	}
	entries := []model.MemberEntry{}
	memberEmails := make(map[string]bool)
	for _, u := range users {
		if !u.HasRole(model.RoleMember) {
			continue
		}
		id, name := u.ID, u.DisplayName
		entries = append(entries, model.MemberEntry{
			Kind:        model.MemberEntryMember,
			Key:         fmt.Sprintf("member:%d", u.ID),
			UserID:      &id,
			DisplayName: &name,
			Email:       u.Email,
		})
		memberEmails[NormalizeEmail(u.Email)] = true
	}

	accepted, err := st.Invites.ListByHouseholdAndStatus(householdID, model.InviteAccepted)
	if err != nil {
		return nil, err
	}
	label := "Invite accepted"
	for _, inv := range accepted {
		if memberEmails[NormalizeEmail(inv.Email)] {
			continue
		}
		entries = append(entries, model.MemberEntry{
			Kind:        model.MemberEntryInviteAccepted,
			Key:         fmt.Sprintf("invite:%d", inv.ID),
			Email:       inv.Email,
			StatusLabel: &label,
		})
	}

	slices.SortStableFunc(entries, func(a, b model.MemberEntry) int {
		return strings.Compare(strings.ToLower(a.SortName()), strings.ToLower(b.SortName()))
	})
	return entries, nil
}

func (s *Service) UpdateDisplayName(ctx context.Context, userID int64, displayName string) error {
	name, err := validateDisplayName(displayName)
	if err != nil {
		return err
	}
	return s.withTx(func(st store.Stores) error {
		u, err := caller(st, userID)
		if err != nil {
			return err
		}
		return st.Users.UpdateDisplayName(u.ID, name)
	})
}

// UpdateAPIKey stores the trimmed key; an empty key clears it.
func (s *Service) UpdateAPIKey(ctx context.Context, userID int64, apiKey string) error {
	key := strings.TrimSpace(apiKey)
	return s.withTx(func(st store.Stores) error {
		u, err := caller(st, userID)
		if err != nil {
			return err
		}
		if key == "" {
			return st.Users.UpdateAPIKey(u.ID, nil)
		}
		return st.Users.UpdateAPIKey(u.ID, &key)
	})
}

func (s *Service) RenameHousehold(ctx context.Context, ownerID int64, name string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxHouseholdName {
		return nil, ErrInvalidHouseholdName
	}
	var h *model.Household
	err := s.withTx(func(st store.Stores) error {
		o, err := owner(st, ownerID)
		if err != nil {
			return err
		}
		h, err = st.Households.Update(*o.HouseholdID, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.broadcast(h.ID, "household", "updated", h.ID)
	return h, nil
}

// Household returns the household the user belongs to.
func (s *Service) Household(ctx context.Context, userID int64) (*model.Household, error) {
	st := store.New(s.db)
	u, err := caller(st, userID)
	if err != nil {
		return nil, err
	}
	if u.HouseholdID == nil {
		return nil, ErrNotAssigned
	}
	return st.Households.GetByID(*u.HouseholdID)
}
