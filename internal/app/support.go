package app

import (
	"context"
	"net/mail"
	"strings"

	"campusmart/internal/util"
	"campusmart/pkg/domain"
)

const maxSupportMessageLength = 5000

// SubmitSupportTicket stores a ticket and hands it to the notifier. Delivery
// failures are logged and do not fail the request.
func (a *App) SubmitSupportTicket(ctx context.Context, email, message string) (domain.SupportTicket, error) {
	email = normalizeEmail(email)
	message = strings.TrimSpace(message)
	if email == "" || message == "" {
		return domain.SupportTicket{}, ErrSupportFieldsRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.SupportTicket{}, ErrInvalidEmail
	}
	if len(message) > maxSupportMessageLength {
		return domain.SupportTicket{}, ErrSupportMessageTooLong
	}
	ticket := domain.SupportTicket{
		ID:        util.NewID(),
		Email:     email,
		Message:   message,
		CreatedAt: a.now(),
	}
	if err := a.store.SaveSupportTicket(ticket); err != nil {
		return domain.SupportTicket{}, err
	}
	if a.notifier != nil {
		if err := a.notifier.NotifyTicket(ctx, ticket); err != nil {
			util.LoggerFromContext(ctx).Warn("support_notify_failed", "ticket_id", ticket.ID, "err", err)
		}
	}
	return ticket, nil
}
