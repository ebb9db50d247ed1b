// Package notify emails the support inbox when a ticket is filed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"campusmart/pkg/domain"
)

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Inbox     string
	// Host overrides https://api.sendgrid.com, for tests.
	Host string
}

// SendGridNotifier sends one email per support ticket.
type SendGridNotifier struct {
	client *sendgrid.Client
	from   *mail.Email
	inbox  *mail.Email
}

func NewSendGridNotifier(cfg SendGridConfig) (*SendGridNotifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid api key is empty")
	}
	if strings.TrimSpace(cfg.Inbox) == "" || strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("sendgrid from and inbox addresses are required")
	}
	name := cfg.FromName
	if name == "" {
		name = "Campusmart Support"
	}
	client := sendgrid.NewSendClient(cfg.APIKey)
	if host := strings.TrimRight(cfg.Host, "/"); host != "" {
		client.BaseURL = host + "/v3/mail/send"
	}
	return &SendGridNotifier{
		client: client,
		from:   mail.NewEmail(name, cfg.FromEmail),
		inbox:  mail.NewEmail("", cfg.Inbox),
	}, nil
}

// NotifyTicket mails the ticket to the support inbox with the requester as reply-to.
func (n *SendGridNotifier) NotifyTicket(ctx context.Context, t domain.SupportTicket) error {
	subject := fmt.Sprintf("Support request from %s", t.Email)
	text := fmt.Sprintf("Ticket: %s\nFrom: %s\nReceived: %s\n\n%s",
		t.ID, t.Email, t.CreatedAt.Format("2006-01-02 15:04 MST"), t.Message)
	message := mail.NewSingleEmail(n.from, subject, n.inbox, text, "<pre>"+html.EscapeString(text)+"</pre>")
	message.SetReplyTo(mail.NewEmail("", t.Email))

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}
	slog.Info("support_ticket_mailed", "ticket_id", t.ID, "status", resp.StatusCode)
	return nil
}
