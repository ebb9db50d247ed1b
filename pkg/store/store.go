package store

import (
	"errors"
	"time"

	"campusmart/pkg/domain"
)

// ErrDuplicateTitle is returned when a product insert hits the unique title index.
var ErrDuplicateTitle = errors.New("duplicate product title")

// ProductFilter narrows catalog listings. Zero values match everything.
type ProductFilter struct {
	Category    string
	SubCategory string
	SellerEmail string
}

// OrderFilter narrows order listings. Zero values match everything.
type OrderFilter struct {
	SellerEmail string
	BuyerEmail  string
	Status      domain.OrderStatus
}

// Store defines persistence for users, catalog, carts, orders, messages and support tickets.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// products
	CreateProduct(domain.Product) error
	GetProduct(id string) (domain.Product, bool, error)
	GetProductByTitle(title string) (domain.Product, bool, error)
	GetProductsByIDs(ids []string) (map[string]domain.Product, error)
	ListProducts(filter ProductFilter) ([]domain.Product, error)
	DeleteProduct(id string) (bool, error)

	// carts
	//
	// AddCartQuantity adds delta to the line in one atomic step and deletes the
	// line when the result drops to zero or below. A missing line is created only
	// for a positive delta; ok is false when a non-positive delta found no line.
	AddCartQuantity(userID, productID string, delta int) (quantity int, ok bool, err error)
	SetCartQuantity(userID, productID string, quantity int) error
	RemoveCartItem(userID, productID string) error
	ListCart(userID string) ([]domain.CartItem, error)
	ClearCart(userID string) error

	// orders
	//
	// CreateOrders inserts all orders and, when clearCartUserID is set, empties
	// that user's cart in the same transaction.
	CreateOrders(orders []domain.Order, clearCartUserID string) error
	GetOrder(id string) (domain.Order, bool, error)
	// SetPendingOrderOTP replaces the OTP hash; updated is false unless the order is Pending.
	SetPendingOrderOTP(id, otpHash string) (updated bool, err error)
	// CompleteOrder moves a Pending order to Completed provided its OTP hash is
	// still otpHash; updated is false otherwise.
	CompleteOrder(id, otpHash string, at time.Time) (updated bool, err error)
	ListOrders(filter OrderFilter) ([]domain.Order, error)

	// messages
	AppendMessage(domain.Message) error
	ListConversation(userA, userB string) ([]domain.Message, error)
	ListChatPartners(email string) ([]string, error)

	// support
	SaveSupportTicket(domain.SupportTicket) error
	GetSupportTicket(id string) (domain.SupportTicket, bool, error)

	Close() error
}

// TokenKind distinguishes full sessions from the short-lived token handed out
// between first SSO login and profile completion.
type TokenKind string

const (
	KindSession      TokenKind = "session"
	KindRegistration TokenKind = "registration"
)

// Claims is the verified content of a bearer token.
type Claims struct {
	TokenID   string
	UserID    string
	Email     string
	Kind      TokenKind
	ExpiresAt time.Time
}

// SessionStore issues and validates bearer tokens.
type SessionStore interface {
	Issue(user domain.User, kind TokenKind) (string, error)
	Verify(token string) (Claims, error)
	Revoke(token string) error
}
