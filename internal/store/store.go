package store

import (
	"database/sql"
	"strings"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every store can run
// inside a caller's transaction.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Stores bundles every store bound to the same connection or transaction.
type Stores struct {
	Users              *UserStore
	Households         *HouseholdStore
	Credentials        *CredentialStore
	Sessions           *SessionStore
	Invites            *InviteStore
	VerificationTokens *VerificationTokenStore
	Products           *ProductStore
}

func New(db DBTX) Stores {
	return Stores{
		Users:              NewUserStore(db),
		Households:         NewHouseholdStore(db),
		Credentials:        NewCredentialStore(db),
		Sessions:           NewSessionStore(db),
		Invites:            NewInviteStore(db),
		VerificationTokens: NewVerificationTokenStore(db),
		Products:           NewProductStore(db),
	}
}

// IsUniqueViolation reports whether err came from a UNIQUE index, which is
// how a racing writer loses against a concurrent insert.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
