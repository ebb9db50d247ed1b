package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campusmart/pkg/domain"
	"campusmart/pkg/store"
)

// CASValidator exchanges a CAS service ticket for the authenticated username.
type CASValidator interface {
	Validate(ctx context.Context, ticket, service string) (username string, err error)
}

// TicketNotifier hands a stored support ticket to the delivery pipeline.
type TicketNotifier interface {
	NotifyTicket(ctx context.Context, ticket domain.SupportTicket) error
}

// MessagePublisher pushes a stored message to the receiver's live connections.
type MessagePublisher interface {
	Publish(msg domain.Message)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Sessions    store.SessionStore
	CAS         CASValidator
	Notifier    TicketNotifier
	Publisher   MessagePublisher

	// AdminEmails get the admin role at sign in; everyone else is demoted to user.
	AdminEmails []string
	// AllowedEmailDomains restricts CAS users by email suffix; empty allows all.
	AllowedEmailDomains []string
	// DefaultEmailDomain is appended to CAS usernames that are not emails.
	DefaultEmailDomain string

	Now func() time.Time
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	cas       CASValidator
	notifier  TicketNotifier
	publisher MessagePublisher

	admins         map[string]struct{}
	allowedDomains []string
	defaultDomain  string
	now            func() time.Time
}

// New constructs the application. A Store is opened from DatabaseURL when not injected.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	domains := make([]string, 0, len(cfg.AllowedEmailDomains))
	for _, d := range cfg.AllowedEmailDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d != "" {
			domains = append(domains, d)
		}
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &App{
		store:          dataStore,
		sessions:       cfg.Sessions,
		cas:            cfg.CAS,
		notifier:       cfg.Notifier,
		publisher:      cfg.Publisher,
		admins:         admins,
		allowedDomains: domains,
		defaultDomain:  strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.DefaultEmailDomain), "@")),
		now:            now,
	}, nil
}

// Close releases the underlying store.
func (a *App) Close() error {
	return a.store.Close()
}

// Store exposes the underlying store for background workers.
func (a *App) Store() store.Store {
	return a.store
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
