package util

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string used as the primary key of users,
// products, orders, messages and tickets.
func NewID() string {
	return uuid.NewString()
}
