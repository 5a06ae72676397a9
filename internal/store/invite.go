package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/shelf/internal/model"
)

// InviteStore persists member invites and the tokens that answer them.
type InviteStore struct {
	db DBTX
}

func NewInviteStore(db DBTX) *InviteStore {
	return &InviteStore{db: db}
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.Invite, error) {
	var inv model.Invite
	var status string
	err := scanner.Scan(&inv.ID, &inv.HouseholdID, &inv.Email, &status, &inv.InvitedAt, &inv.InvitedBy)
	if err != nil {
		return nil, err
	}
	inv.Status = model.InviteStatus(status)
	return &inv, nil
}

const inviteCols = `id, household_id, email, status, invited_at, invited_by`

func (s *InviteStore) Create(householdID int64, email string, invitedBy int64, invitedAt time.Time) (*model.Invite, error) {
	result, err := s.db.Exec(
		`INSERT INTO member_invites (household_id, email, status, invited_at, invited_by) VALUES (?, ?, ?, ?, ?)`,
		householdID, email, string(model.InviteReserved), invitedAt.UTC(), invitedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *InviteStore) GetByID(id int64) (*model.Invite, error) {
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM member_invites WHERE id = ?`, id)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

// FindActiveByEmail returns the reserved or accepted invite for an email in
// any household, or nil.
func (s *InviteStore) FindActiveByEmail(email string) (*model.Invite, error) {
	row := s.db.QueryRow(
		`SELECT `+inviteCols+` FROM member_invites WHERE email = ? AND status IN (?, ?) ORDER BY invited_at DESC, id DESC LIMIT 1`,
		email, string(model.InviteReserved), string(model.InviteAccepted),
	)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active invite: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) ListByEmail(email string) ([]model.Invite, error) {
	return s.list(`SELECT `+inviteCols+` FROM member_invites WHERE email = ? ORDER BY invited_at DESC, id DESC`, email)
}

func (s *InviteStore) ListByHouseholdAndEmail(householdID int64, email string) ([]model.Invite, error) {
	return s.list(
		`SELECT `+inviteCols+` FROM member_invites WHERE household_id = ? AND email = ? ORDER BY invited_at DESC, id DESC`,
		householdID, email,
	)
}

// ListByHouseholdAndStatus returns the household's invites in one status,
// newest first.
func (s *InviteStore) ListByHouseholdAndStatus(householdID int64, status model.InviteStatus) ([]model.Invite, error) {
	return s.list(
		`SELECT `+inviteCols+` FROM member_invites WHERE household_id = ? AND status = ? ORDER BY invited_at DESC, id DESC`,
		householdID, string(status),
	)
}

func (s *InviteStore) list(query string, args ...any) ([]model.Invite, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var invites []model.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

func (s *InviteStore) UpdateStatus(id int64, status model.InviteStatus) error {
	_, err := s.db.Exec(`UPDATE member_invites SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update invite status: %w", err)
	}
	return nil
}

// DeleteByEmail removes every invite for an email, in any household, along
// with every invite token issued to that email.
func (s *InviteStore) DeleteByEmail(email string) error {
	if _, err := s.db.Exec(
		`DELETE FROM invite_tokens WHERE email = ? OR invite_id IN (SELECT id FROM member_invites WHERE email = ?)`,
		email, email,
	); err != nil {
		return fmt.Errorf("delete invite tokens by email: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM member_invites WHERE email = ?`, email); err != nil {
		return fmt.Errorf("delete invites by email: %w", err)
	}
	return nil
}

// DeleteByHousehold removes every invite of a household and their tokens.
func (s *InviteStore) DeleteByHousehold(householdID int64) error {
	if _, err := s.db.Exec(
		`DELETE FROM invite_tokens WHERE household_id = ? OR invite_id IN (SELECT id FROM member_invites WHERE household_id = ?)`,
		householdID, householdID,
	); err != nil {
		return fmt.Errorf("delete invite tokens by household: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM member_invites WHERE household_id = ?`, householdID); err != nil {
		return fmt.Errorf("delete invites by household: %w", err)
	}
	return nil
}

// --- Token methods ---

func scanInviteToken(scanner interface{ Scan(...any) error }) (*model.InviteToken, error) {
	var t model.InviteToken
	var usedAt sql.NullTime
	err := scanner.Scan(&t.ID, &t.HouseholdID, &t.InviteID, &t.Email, &t.TokenHash, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.UsedAt = nullTime(usedAt)
	return &t, nil
}

const inviteTokenCols = `id, household_id, invite_id, email, token_hash, expires_at, used_at, created_at`

func (s *InviteStore) CreateToken(inv *model.Invite, tokenHash string, expiresAt, createdAt time.Time) (*model.InviteToken, error) {
	result, err := s.db.Exec(
		`INSERT INTO invite_tokens (household_id, invite_id, email, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		inv.HouseholdID, inv.ID, inv.Email, tokenHash, expiresAt.UTC(), createdAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+inviteTokenCols+` FROM invite_tokens WHERE id = ?`, id)
	return scanInviteToken(row)
}

// GetTokenByHash returns the token regardless of expiry or use, or nil.
func (s *InviteStore) GetTokenByHash(tokenHash string) (*model.InviteToken, error) {
	row := s.db.QueryRow(`SELECT `+inviteTokenCols+` FROM invite_tokens WHERE token_hash = ?`, tokenHash)
	t, err := scanInviteToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite token: %w", err)
	}
	return t, nil
}

func (s *InviteStore) ListTokensByInvite(inviteID int64) ([]model.InviteToken, error) {
	rows, err := s.db.Query(`SELECT `+inviteTokenCols+` FROM invite_tokens WHERE invite_id = ? ORDER BY id ASC`, inviteID)
	if err != nil {
		return nil, fmt.Errorf("list invite tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.InviteToken
	for rows.Next() {
		t, err := scanInviteToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

func (s *InviteStore) MarkTokenUsed(id int64, at time.Time) error {
	_, err := s.db.Exec(`UPDATE invite_tokens SET used_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark invite token used: %w", err)
	}
	return nil
}
