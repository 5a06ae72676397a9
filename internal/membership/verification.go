package membership

import (
	"context"
	"fmt"

	"github.com/dukerupert/shelf/internal/model"
	"github.com/dukerupert/shelf/internal/store"
	"github.com/dukerupert/shelf/internal/token"
)

// issueVerification replaces every verification token of the user with a
// fresh one and returns the link that redeems it.
func (s *Service) issueVerification(st store.Stores, userID int64, addr string) (string, error) {
	if err := st.VerificationTokens.DeleteByUser(userID); err != nil {
		return "", err
	}
	raw, hash, err := token.Issue()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	if _, err := st.VerificationTokens.Create(userID, addr, hash, now.Add(token.VerificationTTL), now); err != nil {
		return "", err
	}
	return s.link("/verify-email", raw), nil
}

// sendVerification delivers the verification link after onboarding has
// committed. Failures are logged; the user can ask for a resend.
func (s *Service) sendVerification(ctx context.Context, userID int64, addr, verifyURL string) {
	err := s.mailer.SendVerification(ctx, addr, verifyURL)
	s.metrics.Email("verification", err)
	if err != nil {
		s.logger.Warn("verification email not sent", "user_id", userID, "error", err)
	}
}

// ResendVerification issues a new verification token and emails it. Any
// earlier token stops working. A send failure rolls the new token back so
// the previous one stays valid.
func (s *Service) ResendVerification(ctx context.Context, userID int64) error {
	return s.withTx(func(st store.Stores) error {
		u, err := caller(st, userID)
		if err != nil {
			return err
		}
		if !u.Assigned() {
			return ErrNotAssigned
		}
		if u.Verified() {
			return ErrAlreadyVerified
		}
		addr := NormalizeEmail(u.Email)
		if addr == "" {
			return ErrInvalidEmail
		}

		verifyURL, err := s.issueVerification(st, u.ID, addr)
		if err != nil {
			return err
		}
		err = s.mailer.SendVerification(ctx, addr, verifyURL)
		s.metrics.Email("verification", err)
		if err != nil {
			return fmt.Errorf("send verification: %w", deliveryError(err))
		}
		return nil
	})
}

// VerifyEmail redeems a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, raw string) error {
	var u *model.User
	err := s.withTx(func(st store.Stores) error {
		if raw == "" {
			return ErrInvalidToken
		}
		tok, err := st.VerificationTokens.GetByHash(token.Hash(raw))
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

		u, err = st.Users.GetByID(tok.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrInvalidToken
		}
		if NormalizeEmail(u.Email) != tok.Email {
			return ErrEmailMismatch
		}

		if err := st.Users.MarkEmailVerified(u.ID, now); err != nil {
			return err
		}
		if err := st.VerificationTokens.MarkUsed(tok.ID, now); err != nil {
			return err
		}
		return st.VerificationTokens.DeleteOthers(u.ID, tok.ID)
	})
	s.metrics.TokenRedemption("verification", redemptionResult(err))
	if err != nil {
		return err
	}
	s.logger.Info("email verified", "user_id", u.ID)
	return nil
}
