package model

import "time"

type Household struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemberEntryKind distinguishes joined members from invitees who accepted
// but have not created their account yet.
type MemberEntryKind string

const (
	MemberEntryMember         MemberEntryKind = "member"
	MemberEntryInviteAccepted MemberEntryKind = "invite_accepted"
)

type MemberEntry struct {
	Kind        MemberEntryKind `json:"type"`
	Key         string          `json:"key"`
	UserID      *int64          `json:"user_id"`
	DisplayName *string         `json:"display_name"`
	Email       string          `json:"email"`
	StatusLabel *string         `json:"status_label"`
}

// SortName is the label an owner sees first for the entry.
func (e MemberEntry) SortName() string {
	if e.DisplayName != nil && *e.DisplayName != "" {
		return *e.DisplayName
	}
	return e.Email
}
