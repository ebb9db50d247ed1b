package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderCompleted OrderStatus = "Completed"
)

// User is keyed by the email issued by CAS; the email never changes after creation.
type User struct {
	ID            string    `json:"_id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstname,omitempty"`
	LastName      string    `json:"lastname,omitempty"`
	ContactNumber string    `json:"contactnumber,omitempty"`
	Role          UserRole  `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Complete reports whether the profile has been filled in after the first SSO login.
func (u User) Complete() bool {
	return strings.TrimSpace(u.FirstName) != "" &&
		strings.TrimSpace(u.LastName) != "" &&
		strings.TrimSpace(u.ContactNumber) != ""
}

// PublicUser is the view of a user exposed to other users.
type PublicUser struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

type Product struct {
	ID          string          `json:"_id"`
	Title       string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image"`
	Category    string          `json:"category"`
	SubCategory string          `json:"subCategory"`
	SellerEmail string          `json:"seller_email"`
	BuyerEmail  string          `json:"buyer_email,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// CartItem is one stored cart line. Quantity is always >= 1.
type CartItem struct {
	UserID    string    `json:"-"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// CartLine is a cart entry with its product resolved. Product is nil when the
// product was deleted after being added.
type CartLine struct {
	ProductID string   `json:"productId"`
	Product   *Product `json:"product"`
	Quantity  int      `json:"quantity"`
}

type LineItem struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

type Order struct {
	ID          string      `json:"_id"`
	BuyerEmail  string      `json:"buyer"`
	SellerEmail string      `json:"seller"`
	Items       []LineItem  `json:"items"`
	Status      OrderStatus `json:"status"`
	OTPHash     string      `json:"-"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// ResolvedLineItem carries the product record for display; Product may be nil.
type ResolvedLineItem struct {
	ProductID string   `json:"productId"`
	Product   *Product `json:"product"`
	Quantity  int      `json:"quantity"`
}

// OrderView is an order with its line items resolved against the catalog.
type OrderView struct {
	ID          string             `json:"_id"`
	BuyerEmail  string             `json:"buyer"`
	SellerEmail string             `json:"seller"`
	Items       []ResolvedLineItem `json:"items"`
	Status      OrderStatus        `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}

// IssuedOTP pairs a newly created order with the plaintext OTP shown to the buyer once.
type IssuedOTP struct {
	OrderID     string `json:"order_id"`
	SellerEmail string `json:"seller"`
	OTP         string `json:"otp"`
}

type Message struct {
	ID        string    `json:"_id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SupportTicket struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
