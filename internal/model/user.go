package model

import "time"

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// User is an account. Role and HouseholdID are either both nil (the account
// is unassigned) or both set; once set they never change.
type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	DisplayName     string     `json:"display_name"`
	Role            *Role      `json:"role"`
	HouseholdID     *int64     `json:"household_id"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	APIKey          *string    `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (u *User) Assigned() bool {
	return u.Role != nil && u.HouseholdID != nil
}

func (u *User) HasRole(r Role) bool {
	return u.Role != nil && *u.Role == r
}

func (u *User) Verified() bool {
	return u.EmailVerifiedAt != nil
}

type Credential struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Provider   string    `json:"provider"`
	SecretHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
