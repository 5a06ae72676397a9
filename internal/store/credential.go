package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/shelf/internal/model"
)

const ProviderPassword = "password"

type CredentialStore struct {
	db DBTX
}

func NewCredentialStore(db DBTX) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) Create(userID int64, provider, secretHash string) error {
	_, err := s.db.Exec(
		`INSERT INTO credentials (user_id, provider, secret_hash) VALUES (?, ?, ?)`,
		userID, provider, secretHash,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Get(userID int64, provider string) (*model.Credential, error) {
	var c model.Credential
	err := s.db.QueryRow(
		`SELECT id, user_id, provider, secret_hash, created_at FROM credentials WHERE user_id = ? AND provider = ?`,
		userID, provider,
	).Scan(&c.ID, &c.UserID, &c.Provider, &c.SecretHash, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

func (s *CredentialStore) DeleteByUser(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete credentials by user: %w", err)
	}
	return nil
}
