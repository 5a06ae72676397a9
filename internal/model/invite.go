package model

import (
	"fmt"
	"time"
)

type InviteStatus string

const (
	InviteReserved InviteStatus = "reserved"
	InviteAccepted InviteStatus = "accepted"
	InviteRevoked  InviteStatus = "revoked"
	// InviteConsumed marks an accepted invite whose email has joined the
	// household.
	InviteConsumed InviteStatus = "consumed"
)

// inviteTransitions lists every legal status change. Anything missing is
// rejected by Transition.
var inviteTransitions = map[InviteStatus][]InviteStatus{
	InviteReserved: {InviteAccepted, InviteRevoked},
	InviteAccepted: {InviteRevoked, InviteConsumed},
}

// Active reports whether the invite still blocks the email: it is either
// waiting for an answer or waiting for the account to be created.
func (s InviteStatus) Active() bool {
	return s == InviteReserved || s == InviteAccepted
}

func (s InviteStatus) CanTransition(to InviteStatus) bool {
	for _, next := range inviteTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns to if the change from s is legal.
func (s InviteStatus) Transition(to InviteStatus) (InviteStatus, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("invite status %s cannot become %s", s, to)
	}
	return to, nil
}

type Invite struct {
	ID          int64        `json:"id"`
	HouseholdID int64        `json:"household_id"`
	Email       string       `json:"email"`
	Status      InviteStatus `json:"status"`
	InvitedAt   time.Time    `json:"invited_at"`
	InvitedBy   int64        `json:"invited_by"`
}
