package app

import (
	"strings"
	"unicode/utf8"

	"campusmart/internal/util"
	"campusmart/pkg/domain"
)

const maxMessageLength = 2000

// SendMessage stores a message from sender and pushes it to the receiver's
// live connections.
func (a *App) SendMessage(sender domain.User, receiver, content string) (domain.Message, error) {
	receiver = normalizeEmail(receiver)
	content = strings.TrimSpace(content)
	if receiver == "" {
		return domain.Message{}, ErrReceiverRequired
	}
	if receiver == sender.Email {
		return domain.Message{}, ErrSelfMessage
	}
	if content == "" {
		return domain.Message{}, ErrContentRequired
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return domain.Message{}, ErrContentTooLong
	}
	msg := domain.Message{
		ID:        util.NewID(),
		Sender:    sender.Email,
		Receiver:  receiver,
		Content:   content,
		Timestamp: a.now(),
	}
	if err := a.store.AppendMessage(msg); err != nil {
		return domain.Message{}, err
	}
	if a.publisher != nil {
		a.publisher.Publish(msg)
	}
	return msg, nil
}

// History returns the conversation between caller and other, oldest first.
func (a *App) History(caller domain.User, other string) ([]domain.Message, error) {
	other = normalizeEmail(other)
	if other == "" {
		return nil, ErrReceiverRequired
	}
	return a.store.ListConversation(caller.Email, other)
}

// ChatPartners lists everyone email has exchanged messages with. Callers may
// only ask about themselves unless they are admins.
func (a *App) ChatPartners(caller domain.User, email string) ([]string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if email != caller.Email && caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	partners, err := a.store.ListChatPartners(email)
	if err != nil {
		return nil, err
	}
	if partners == nil {
		partners = []string{}
	}
	return partners, nil
}
