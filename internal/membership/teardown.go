package membership

import (
	"context"

	"github.com/dukerupert/shelf/internal/model"
	"github.com/dukerupert/shelf/internal/store"
)

// RemoveMember deletes a member account of the owner's household. Products
// the member last touched stay, with their attribution cleared.
func (s *Service) RemoveMember(ctx context.Context, ownerID, memberID int64) error {
	var householdID int64
	err := s.withTx(func(st store.Stores) error {
		o, err := owner(st, ownerID)
		if err != nil {
			return err
		}
		householdID = *o.HouseholdID

		m, err := st.Users.GetByID(memberID)
		if err != nil {
			return err
		}
		if m == nil || !m.HasRole(model.RoleMember) || m.HouseholdID == nil || *m.HouseholdID != householdID {
			return ErrMemberNotFound
		}
		if _, err := st.Products.ClearUpdatedBy(householdID, m.ID); err != nil {
			return err
		}
		return deleteAccount(st, m)
	})
	if err != nil {
		return err
	}

	s.metrics.Teardown("remove_member")
	s.logger.Info("member removed", "household_id", householdID, "user_id", memberID)
	s.disconnect(memberID)
	s.broadcast(householdID, "member", "removed", memberID)
	return nil
}

// LeaveHousehold deletes the calling member's account. Signing the caller
// out at the edge is left to the HTTP layer.
func (s *Service) LeaveHousehold(ctx context.Context, userID int64) error {
	var householdID int64
	err := s.withTx(func(st store.Stores) error {
		u, err := caller(st, userID)
		if err != nil {
			return err
		}
		if !u.HasRole(model.RoleMember) || u.HouseholdID == nil {
			return ErrForbidden
		}
		householdID = *u.HouseholdID
		if _, err := st.Products.ClearUpdatedBy(householdID, u.ID); err != nil {
			return err
		}
		return deleteAccount(st, u)
	})
	if err != nil {
		return err
	}

	s.metrics.Teardown("leave")
	s.logger.Info("member left", "household_id", householdID, "user_id", userID)
	s.disconnect(userID)
	s.broadcast(householdID, "member", "removed", userID)
	return nil
}

// DeleteHousehold removes the owner's household with every product, invite
// and account in it, the owner's included.
func (s *Service) DeleteHousehold(ctx context.Context, ownerID int64) error {
	var (
		householdID int64
		deleted     []int64
	)
	err := s.withTx(func(st store.Stores) error {
		o, err := owner(st, ownerID)
		if err != nil {
			return err
		}
		householdID = *o.HouseholdID

		if _, err := st.Products.DeleteByHousehold(householdID); err != nil {
			return err
		}
		if err := st.Invites.DeleteByHousehold(householdID); err != nil {
			return err
		}
		users, err := st.Users.ListByHousehold(householdID)
		if err != nil {
			return err
		}
		for i := range users {
			if err := deleteAccount(st, &users[i]); err != nil {
				return err
			}
			deleted = append(deleted, users[i].ID)
		}
		return st.Households.Delete(householdID)
	})
	if err != nil {
		return err
	}

	s.metrics.Teardown("delete_household")
	s.logger.Info("household deleted", "household_id", householdID, "accounts", len(deleted))
	s.broadcast(householdID, "household", "deleted", householdID)
	s.disconnect(deleted...)
	return nil
}

// deleteAccount removes an account and everything keyed by it or by its
// email. Each step is a no-op when its rows are already gone.
func deleteAccount(st store.Stores, u *model.User) error {
	addr := NormalizeEmail(u.Email)
	if addr != "" {
		if err := st.Invites.DeleteByEmail(addr); err != nil {
			return err
		}
		if err := st.VerificationTokens.DeleteByEmail(addr); err != nil {
			return err
		}
	}
	if err := st.VerificationTokens.DeleteByUser(u.ID); err != nil {
		return err
	}
	if err := st.Credentials.DeleteByUser(u.ID); err != nil {
		return err
	}
	if err := st.Sessions.DeleteByUser(u.ID); err != nil {
		return err
	}
	return st.Users.Delete(u.ID)
}
