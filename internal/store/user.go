package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/shelf/internal/model"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var role, apiKey sql.NullString
	var householdID sql.NullInt64
	var verifiedAt sql.NullTime
	err := scanner.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &householdID, &verifiedAt, &apiKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if role.Valid {
		r := model.Role(role.String)
		u.Role = &r
	}
	u.HouseholdID = nullInt64(householdID)
	u.EmailVerifiedAt = nullTime(verifiedAt)
	u.APIKey = nullString(apiKey)
	return &u, nil
}

const userCols = `id, email, display_name, role, household_id, email_verified_at, api_key, created_at, updated_at`

// Create inserts an unassigned account. The email must already be normalized.
func (s *UserStore) Create(email string) (*model.User, error) {
	result, err := s.db.Exec(`INSERT INTO users (email) VALUES (?)`, email)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) ListByHousehold(householdID int64) ([]model.User, error) {
	rows, err := s.db.Query(`SELECT `+userCols+` FROM users WHERE household_id = ? ORDER BY id ASC`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list users by household: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Assign binds an unassigned account to a household with a role and clears
// any previous verification. It reports false when the account was already
// assigned, which leaves the row untouched.
func (s *UserStore) Assign(id, householdID int64, role model.Role, displayName string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE users SET role = ?, household_id = ?, display_name = ?, email_verified_at = NULL, updated_at = ?
		 WHERE id = ? AND role IS NULL AND household_id IS NULL`,
		string(role), householdID, displayName, time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("assign user: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *UserStore) UpdateDisplayName(id int64, displayName string) error {
	_, err := s.db.Exec(
		`UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?`,
		displayName, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}

// UpdateAPIKey stores the key, or clears it when apiKey is nil.
func (s *UserStore) UpdateAPIKey(id int64, apiKey *string) error {
	var key sql.NullString
	if apiKey != nil {
		key = sql.NullString{String: *apiKey, Valid: true}
	}
	_, err := s.db.Exec(
		`UPDATE users SET api_key = ?, updated_at = ? WHERE id = ?`,
		key, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	return nil
}

func (s *UserStore) MarkEmailVerified(id int64, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE users SET email_verified_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
