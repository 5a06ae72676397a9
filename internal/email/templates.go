package email

import (
	"context"
	"fmt"
	"html"
)

// Mailer renders the invite and verification emails and hands them to a
// Sender.
type Mailer struct {
	sender Sender
}

func NewMailer(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

// SendInvite emails an invitation with both an accept and a decline link.
func (m *Mailer) SendInvite(ctx context.Context, to, householdName, acceptURL, declineURL string) error {
	name := householdName
	if name == "" {
		name = "a household"
	}
	subject := fmt.Sprintf("You've been invited to %s on Shelf", name)
	text := fmt.Sprintf(
		"You've been invited to join %s on Shelf.\n\nAccept the invitation:\n%s\n\nNot interested? Decline it:\n%s\n\nThis invitation expires in 7 days.",
		name, acceptURL, declineURL,
	)
	htmlBody := fmt.Sprintf(
		`<p>You've been invited to join <strong>%s</strong> on Shelf.</p><p><a href="%s">Accept the invitation</a></p><p>Not interested? <a href="%s">Decline it</a>.</p><p>This invitation expires in 7 days.</p>`,
		html.EscapeString(name), html.EscapeString(acceptURL), html.EscapeString(declineURL),
	)
	return m.sender.Send(ctx, Message{To: to, Subject: subject, TextBody: text, HTMLBody: htmlBody})
}

// SendVerification emails the link that confirms the address.
func (m *Mailer) SendVerification(ctx context.Context, to, verifyURL string) error {
	text := fmt.Sprintf(
		"Confirm your email address for Shelf:\n\n%s\n\nThis link expires in 24 hours.",
		verifyURL,
	)
	htmlBody := fmt.Sprintf(
		`<p>Confirm your email address for Shelf:</p><p><a href="%s">Verify email</a></p><p>This link expires in 24 hours.</p>`,
		html.EscapeString(verifyURL),
	)
	return m.sender.Send(ctx, Message{To: to, Subject: "Verify your email for Shelf", TextBody: text, HTMLBody: htmlBody})
}
