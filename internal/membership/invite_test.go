package membership

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/shelf/internal/config"
	"github.com/dukerupert/shelf/internal/email"
	"github.com/dukerupert/shelf/internal/model"
)

func TestReserveInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, householdID := f.newOwner(t, "owner@example.com")

	inviteID, err := f.svc.ReserveInvite(ctx, owner.ID, "  Bob@Example.com ")
	if err != nil {
		t.Fatalf("reserve invite: %v", err)
	}

	inv, _ := f.st.Invites.GetByID(inviteID)
	if inv == nil {
		t.Fatal("invite not stored")
	}
	if inv.Email != "bob@example.com" {
		t.Errorf("email = %q, want normalized", inv.Email)
	}
	if inv.Status != model.InviteReserved || inv.HouseholdID != householdID || inv.InvitedBy != owner.ID {
		t.Errorf("invite = %+v", inv)
	}

	if len(f.mailer.invites) != 1 {
		t.Fatalf("expected 1 invite email, got %d", len(f.mailer.invites))
	}
	sent := f.mailer.invites[0]
	if sent.to != "bob@example.com" || sent.householdName != "Household" {
		t.Errorf("sent = %+v", sent)
	}
	if !strings.HasPrefix(sent.acceptURL, "https://shelf.test/invite/accept?token=") {
		t.Errorf("accept url = %q", sent.acceptURL)
	}
	if !strings.HasPrefix(sent.declineURL, "https://shelf.test/invite/decline?token=") {
		t.Errorf("decline url = %q", sent.declineURL)
	}
	if tokenFrom(t, sent.acceptURL) != tokenFrom(t, sent.declineURL) {
		t.Error("accept and decline links should carry the same token")
	}

	tokens, _ := f.st.Invites.ListTokensByInvite(inviteID)
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	if tokens[0].TokenHash == tokenFrom(t, sent.acceptURL) {
		t.Error("raw token must not be stored")
	}
	if got := tokens[0].ExpiresAt.Sub(f.now); got < 7*24*time.Hour-time.Second || got > 7*24*time.Hour+time.Second {
		t.Errorf("token ttl = %v, want 7 days", got)
	}
}

func TestReserveInviteRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.newOwner(t, "owner@example.com")
	member := f.newMember(t, owner.ID, "member@example.com", "Member")
	loner := f.signup(t, "loner@example.com")

	if _, err := f.svc.ReserveInvite(ctx, member.ID, "x@example.com"); !errors.Is(err, ErrForbidden) {
		t.Errorf("member: err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.ReserveInvite(ctx, loner.ID, "x@example.com"); !errors.Is(err, ErrForbidden) {
		t.Errorf("unassigned: err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.ReserveInvite(ctx, 9999, "x@example.com"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("unknown user: err = %v, want ErrUnauthenticated", err)
	}
}

func TestReserveInviteInvalidEmail(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.newOwner(t, "owner@example.com")

	for _, addr := range []string{"", "   ", "bob", "@example.com", "bob@"} {
		if _, err := f.svc.ReserveInvite(context.Background(), owner.ID, addr); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("ReserveInvite(%q) err = %v, want ErrInvalidEmail", addr, err)
		}
	}
}

func TestReserveInviteEmailInUse(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.newOwner(t, "owner@example.com")
	f.signup(t, "bob@example.com")

	_, err := f.svc.ReserveInvite(context.Background(), owner.ID, "BOB@example.com")
	if !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("err = %v, want ErrEmailInUse", err)
	}
	if len(f.mailer.invites) != 0 {
		t.Error("no email should be sent")
	}
}

func TestReserveInviteAlreadyActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.newOwner(t, "owner@example.com")
	other, _ := f.newOwner(t, "other@example.com")

	raw := f.invite(t, owner.ID, "bob@example.com")
	if _, err := f.svc.ReserveInvite(ctx, owner.ID, "bob@example.com"); !errors.Is(err, ErrInviteAlreadyActive) {
		t.Errorf("same household: err = %v, want ErrInviteAlreadyActive", err)
	}
	if _, err := f.svc.ReserveInvite(ctx, other.ID, "bob@example.com"); !errors.Is(err, ErrInviteAlreadyActive) {
		t.Errorf("other household: err = %v, want ErrInviteAlreadyActive", err)
	}

	if _, err := f.svc.AcceptInvite(ctx, raw); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.ReserveInvite(ctx, owner.ID, "bob@example.com"); !errors.Is(err, ErrInviteAlreadyActive) {
		t.Errorf("accepted: err = %v, want ErrInviteAlreadyActive", err)
	}
	if n := f.activeInvites(t, "bob@example.com"); n != 1 {
		t.Errorf("active invites = %d, want 1", n)
	}
}

func TestReserveInviteDeliveryFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, householdID := f.newOwner(t, "owner@example.com")

	f.mailer.err = errors.New("smtp down")
	_, err := f.svc.ReserveInvite(ctx, owner.ID, "bob@example.com")
	if !errors.Is(err, email.ErrDelivery) {
		t.Fatalf("err = %v, want ErrDelivery", err)
	}
	invites, _ := f.st.Invites.ListByEmail("bob@example.com")
	if len(invites) != 0 {
		t.Fatalf("expected no invite after failed delivery, got %d", len(invites))
	}
	if len(f.notifier.broadcasts[householdID]) != 0 {
		t.Error("nothing should be broadcast for a rolled back invite")
	}

	f.mailer.err = nil
	if _, err := f.svc.ReserveInvite(ctx, owner.ID, "bob@example.com"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestReserveInviteMissingConfiguration(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.newOwner(t, "owner@example.com")

	f.mailer.err = config.ErrMissingConfiguration
	_, err := f.svc.ReserveInvite(context.Background(), owner.ID, "bob@example.com")
	if !errors.Is(err, config.ErrMissingConfiguration) {
		t.Fatalf("err = %v, want ErrMissingConfiguration", err)
	}
	if n := f.activeInvites(t, "bob@example.com"); n != 0 {
		t.Errorf("active invites = %d, want 0", n)
	}
}

func TestAcceptInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, householdID := f.newOwner(t, "owner@example.com")
	raw := f.invite(t, owner.ID, "bob@example.com")

	got, err := f.svc.AcceptInvite(ctx, raw)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got != householdID {
		t.Errorf("household = %d, want %d", got, householdID)
	}
	inv, _ := f.st.Invites.FindActiveByEmail("bob@example.com")
	if inv == nil || inv.Status != model.InviteAccepted {
		t.Fatalf("invite = %+v, want accepted", inv)
	}

	if _, err := f.svc.AcceptInvite(ctx, raw); !errors.Is(err, ErrTokenUsed) {
		t.Errorf("replay: err = %v, want ErrTokenUsed", err)
	}
	if _, err := f.svc.DeclineInvite(ctx, raw); !errors.Is(err, ErrTokenUsed) {
		t.Errorf("decline after accept: err = %v, want ErrTokenUsed", err)
	}
}

func TestAcceptInviteExpired(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.newOwner(t, "owner@example.com")
	raw := f.invite(t, owner.ID, "bob@example.com")

	f.advance(7*24*time.Hour + time.Minute)
	if _, err := f.svc.AcceptInvite(context.Background(), raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	inv, _ := f.st.Invites.FindActiveByEmail("bob@example.com")
	if inv == nil || inv.Status != model.InviteReserved {
		t.Errorf("invite = %+v, want still reserved", inv)
	}
}

func TestAcceptInviteInvalidToken(t *testing.T) {
	f := newFixture(t)
	for _, raw := range []string{"", "not-a-token"} {
		if _, err := f.svc.AcceptInvite(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("AcceptInvite(%q) err = %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestDeclineInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, householdID := f.newOwner(t, "owner@example.com")
	raw := f.invite(t, owner.ID, "bob@example.com")

	got, err := f.svc.DeclineInvite(ctx, raw)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if got != householdID {
		t.Errorf("household = %d, want %d", got, householdID)
	}
	if n := f.activeInvites(t, "bob@example.com"); n != 0 {
		t.Errorf("active invites = %d, want 0", n)
	}
	if _, err := f.svc.AcceptInvite(ctx, raw); !errors.Is(err, ErrTokenUsed) {
		t.Errorf("accept after decline: err = %v, want ErrTokenUsed", err)
	}

	if _, err := f.svc.ReserveInvite(ctx, owner.ID, "bob@example.com"); err != nil {
		t.Errorf("re-invite after decline: %v", err)
	}
}

func TestRevokeThenAcceptFailsNotActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.newOwner(t, "owner@example.com")
	raw := f.invite(t, owner.ID, "a@x.com")

	if err := f.svc.RevokeInvite(ctx, owner.ID, "A@x.com"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := f.svc.AcceptInvite(ctx, raw); !errors.Is(err, ErrInviteNotActive) {
		t.Fatalf("err = %v, want ErrInviteNotActive", err)
	}
}

func TestRevokeAcceptedInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.newOwner(t, "owner@example.com")
	raw := f.invite(t, owner.ID, "bob@example.com")
	f.svc.AcceptInvite(ctx, raw)

	if err := f.svc.RevokeInvite(ctx, owner.ID, "bob@example.com"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	bob := f.signup(t, "bob@example.com")
	if _, err := f.svc.JoinHousehold(ctx, bob.ID, "Bob"); !errors.Is(err, ErrInviteNotAccepted) {
		t.Errorf("join after revoke: err = %v, want ErrInviteNotAccepted", err)
	}
}

func TestRevokeInviteNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.newOwner(t, "owner@example.com")
	other, _ := f.newOwner(t, "other@example.com")
	f.invite(t, other.ID, "bob@example.com")

	if err := f.svc.RevokeInvite(ctx, owner.ID, "bob@example.com"); !errors.Is(err, ErrInviteNotFound) {
		t.Errorf("other household's invite: err = %v, want ErrInviteNotFound", err)
	}
	if err := f.svc.RevokeInvite(ctx, owner.ID, "nobody@example.com"); !errors.Is(err, ErrInviteNotFound) {
		t.Errorf("no invite: err = %v, want ErrInviteNotFound", err)
	}
	if err := f.svc.RevokeInvite(ctx, owner.ID, ""); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("empty email: err = %v, want ErrInvalidEmail", err)
	}

	f.svc.RevokeInvite(ctx, other.ID, "bob@example.com")
	if err := f.svc.RevokeInvite(ctx, other.ID, "bob@example.com"); !errors.Is(err, ErrInviteNotFound) {
		t.Errorf("second revoke: err = %v, want ErrInviteNotFound", err)
	}
}

func TestListInvites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.newOwner(t, "owner@example.com")

	invites, err := f.svc.ListInvites(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if invites == nil || len(invites) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", invites)
	}

	f.invite(t, owner.ID, "a@example.com")
	f.advance(time.Minute)
	f.invite(t, owner.ID, "b@example.com")
	f.advance(time.Minute)
	accepted := f.invite(t, owner.ID, "c@example.com")
	f.svc.AcceptInvite(ctx, accepted)

	invites, _ = f.svc.ListInvites(ctx, owner.ID)
	if len(invites) != 2 {
		t.Fatalf("expected 2 reserved invites, got %d", len(invites))
	}
	if invites[0].Email != "b@example.com" || invites[1].Email != "a@example.com" {
		t.Errorf("order = [%s %s], want newest first", invites[0].Email, invites[1].Email)
	}

	member := f.signup(t, "c@example.com")
	f.svc.JoinHousehold(ctx, member.ID, "C")
	if _, err := f.svc.ListInvites(ctx, member.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("member list: err = %v, want ErrForbidden", err)
	}
}

func TestCheckInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.newOwner(t, "owner@example.com")

	check, err := f.svc.CheckInvite(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if check.Status != "none" || check.HasUser || check.BlockedForOwner {
		t.Errorf("unknown email = %+v", check)
	}

	check, _ = f.svc.CheckInvite(ctx, "owner@example.com")
	if !check.HasUser || check.Role == nil || *check.Role != model.RoleOwner || check.BlockedForOwner {
		t.Errorf("owner = %+v", check)
	}

	raw := f.invite(t, owner.ID, "bob@example.com")
	check, _ = f.svc.CheckInvite(ctx, "BOB@example.com")
	if check.Status != "reserved" || !check.BlockedForOwner || check.HasUser {
		t.Errorf("reserved = %+v", check)
	}

	f.svc.AcceptInvite(ctx, raw)
	check, _ = f.svc.CheckInvite(ctx, "bob@example.com")
	if check.Status != "accepted" || !check.BlockedForOwner {
		t.Errorf("accepted = %+v", check)
	}

	bob := f.signup(t, "bob@example.com")
	f.svc.JoinHousehold(ctx, bob.ID, "Bob")
	check, _ = f.svc.CheckInvite(ctx, "bob@example.com")
	if check.Status != "none" || !check.HasUser || !check.BlockedForOwner {
		t.Errorf("member = %+v", check)
	}

	check, _ = f.svc.CheckInvite(ctx, "  ")
	if check.Status != "none" || check.HasUser {
		t.Errorf("empty = %+v", check)
	}
}

func TestInviteBroadcasts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, householdID := f.newOwner(t, "owner@example.com")
	raw := f.invite(t, owner.ID, "bob@example.com")
	f.svc.AcceptInvite(ctx, raw)

	msgs := f.notifier.broadcasts[householdID]
	if len(msgs) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(msgs))
	}
	if msgs[0].Type != "invite_reserved" || msgs[1].Type != "invite_accepted" {
		t.Errorf("types = %s, %s", msgs[0].Type, msgs[1].Type)
	}
}
