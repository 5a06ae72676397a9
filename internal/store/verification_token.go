package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/shelf/internal/model"
)

type VerificationTokenStore struct {
	db DBTX
}

func NewVerificationTokenStore(db DBTX) *VerificationTokenStore {
	return &VerificationTokenStore{db: db}
}

func scanVerificationToken(scanner interface{ Scan(...any) error }) (*model.VerificationToken, error) {
	var t model.VerificationToken
	var usedAt sql.NullTime
	err := scanner.Scan(&t.ID, &t.UserID, &t.Email, &t.TokenHash, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.UsedAt = nullTime(usedAt)
	return &t, nil
}

const verificationTokenCols = `id, user_id, email, token_hash, expires_at, used_at, created_at`

func (s *VerificationTokenStore) Create(userID int64, email, tokenHash string, expiresAt, createdAt time.Time) (*model.VerificationToken, error) {
	result, err := s.db.Exec(
		`INSERT INTO email_verification_tokens (user_id, email, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, email, tokenHash, expiresAt.UTC(), createdAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert verification token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+verificationTokenCols+` FROM email_verification_tokens WHERE id = ?`, id)
	return scanVerificationToken(row)
}

// GetByHash returns the token regardless of expiry or use, or nil.
func (s *VerificationTokenStore) GetByHash(tokenHash string) (*model.VerificationToken, error) {
	row := s.db.QueryRow(`SELECT `+verificationTokenCols+` FROM email_verification_tokens WHERE token_hash = ?`, tokenHash)
	t, err := scanVerificationToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verification token: %w", err)
	}
	return t, nil
}

func (s *VerificationTokenStore) ListByUser(userID int64) ([]model.VerificationToken, error) {
	rows, err := s.db.Query(`SELECT `+verificationTokenCols+` FROM email_verification_tokens WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list verification tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.VerificationToken
	for rows.Next() {
		t, err := scanVerificationToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

func (s *VerificationTokenStore) MarkUsed(id int64, at time.Time) error {
	_, err := s.db.Exec(`UPDATE email_verification_tokens SET used_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark verification token used: %w", err)
	}
	return nil
}

func (s *VerificationTokenStore) DeleteByUser(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM email_verification_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete verification tokens by user: %w", err)
	}
	return nil
}

// DeleteOthers removes every token of the user except keepID.
func (s *VerificationTokenStore) DeleteOthers(userID, keepID int64) error {
	_, err := s.db.Exec(`DELETE FROM email_verification_tokens WHERE user_id = ? AND id <> ?`, userID, keepID)
	if err != nil {
		return fmt.Errorf("delete other verification tokens: %w", err)
	}
	return nil
}

func (s *VerificationTokenStore) DeleteByEmail(email string) error {
	_, err := s.db.Exec(`DELETE FROM email_verification_tokens WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("delete verification tokens by email: %w", err)
	}
	return nil
}
