package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"campusmart/internal/cas"
	"campusmart/internal/util"
	"campusmart/pkg/domain"
	"campusmart/pkg/store"
)

// CASLogin is the result of a successful ticket exchange.
type CASLogin struct {
	User      domain.User
	Token     string
	TokenKind store.TokenKind
	IsNewUser bool
}

// ProfileInput carries the fields collected after the first SSO login.
type ProfileInput struct {
	FirstName     string
	LastName      string
	ContactNumber string
}

// Indian mobile: ten digits starting 6-9, optional +91, 91 or 0 prefix.
var contactPattern = regexp.MustCompile(`^(?:\+91|91|0)?[6-9][0-9]{9}$`)

// ValidateCASTicket exchanges a CAS ticket for a token. Users seen for the
// first time are created with only their email; until their profile is
// complete they receive a short-lived registration token.
func (a *App) ValidateCASTicket(ctx context.Context, ticket, service string) (CASLogin, error) {
	ticket = strings.TrimSpace(ticket)
	service = strings.TrimSpace(service)
	if ticket == "" || service == "" {
		return CASLogin{}, ErrTicketRequired
	}
	if a.cas == nil {
		return CASLogin{}, ErrCASUnavailable
	}
	username, err := a.cas.Validate(ctx, ticket, service)
	if err != nil {
		if errors.Is(err, cas.ErrTicketRejected) || errors.Is(err, cas.ErrServiceNotAllowed) {
			return CASLogin{}, ErrCASRejected
		}
		return CASLogin{}, fmt.Errorf("%w: %v", ErrCASUnavailable, err)
	}
	email := a.emailForUsername(username)
	if _, err := mail.ParseAddress(email); err != nil {
		return CASLogin{}, ErrInvalidEmail
	}
	if !a.domainAllowed(email) {
		return CASLogin{}, ErrEmailDomainRejected
	}

	user, found, err := a.store.GetUserByEmail(email)
	if err != nil {
		return CASLogin{}, err
	}
	isNew := !found
	now := a.now()
	if isNew {
		user = domain.User{
			ID:        util.NewID(),
			Email:     email,
			Role:      domain.RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	dirty := isNew
	// ADMIN_EMAILS is authoritative at every login, so removals demote.
	if role := a.roleFor(email); user.Role != role {
		user.Role = role
		user.UpdatedAt = now
		dirty = true
	}
	if dirty {
		if err := a.store.SaveUser(user); err != nil {
			return CASLogin{}, err
		}
	}

	kind := store.KindRegistration
	if user.Complete() {
		kind = store.KindSession
	}
	token, err := a.sessions.Issue(user, kind)
	if err != nil {
		return CASLogin{}, err
	}
	return CASLogin{User: user, Token: token, TokenKind: kind, IsNewUser: isNew}, nil
}

// RegisterDetails completes the profile of a freshly created user and returns
// a full session token.
func (a *App) RegisterDetails(userID string, in ProfileInput) (domain.User, string, error) {
	user, err := a.updateProfile(userID, in)
	if err != nil {
		return domain.User{}, "", err
	}
	token, err := a.sessions.Issue(user, store.KindSession)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// UpdateProfile edits name and contact number. Email is never changed.
func (a *App) UpdateProfile(userID string, in ProfileInput) (domain.User, error) {
	return a.updateProfile(userID, in)
}

func (a *App) updateProfile(userID string, in ProfileInput) (domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.ContactNumber = strings.ReplaceAll(strings.TrimSpace(in.ContactNumber), " ", "")
	if in.FirstName == "" || in.LastName == "" || in.ContactNumber == "" {
		return domain.User{}, ErrProfileFieldsRequired
	}
	if !contactPattern.MatchString(in.ContactNumber) {
		return domain.User{}, ErrInvalidContactNumber
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.ContactNumber = in.ContactNumber
	user.UpdatedAt = a.now()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Authenticate resolves a bearer token to its user.
func (a *App) Authenticate(token string) (domain.User, store.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, store.Claims{}, ErrUnauthorized
	}
	claims, err := a.sessions.Verify(token)
	if err != nil {
		return domain.User{}, store.Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	user, ok, err := a.store.GetUserByID(claims.UserID)
	if err != nil {
		return domain.User{}, store.Claims{}, err
	}
	if !ok || user.Email != claims.Email {
		return domain.User{}, store.Claims{}, ErrUnauthorized
	}
	return user, claims, nil
}

// Logout revokes the presented token.
func (a *App) Logout(token string) error {
	return a.sessions.Revoke(token)
}

func (a *App) GetUser(id string) (domain.User, bool, error) {
	return a.store.GetUserByID(id)
}

// PublicProfile looks a user up by email for display to other users.
func (a *App) PublicProfile(email string) (domain.PublicUser, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.PublicUser{}, ErrInvalidEmail
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.PublicUser{}, err
	}
	if !ok {
		return domain.PublicUser{}, ErrUserNotFound
	}
	return user.Public(), nil
}

func (a *App) emailForUsername(username string) string {
	email := normalizeEmail(username)
	if !strings.Contains(email, "@") && a.defaultDomain != "" {
		email += "@" + a.defaultDomain
	}
	return email
}

func (a *App) domainAllowed(email string) bool {
	if len(a.allowedDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	host := email[at+1:]
	for _, d := range a.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (a *App) roleFor(email string) domain.UserRole {
	if _, ok := a.admins[email]; ok {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}
