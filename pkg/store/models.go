package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID            string `gorm:"primaryKey"`
	Email         string `gorm:"uniqueIndex;not null"`
	FirstName     string
	LastName      string
	ContactNumber string
	Role          string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

type ProductModel struct {
	ID          string          `gorm:"primaryKey"`
	Title       string          `gorm:"uniqueIndex;not null"`
	Description string          `gorm:"type:text;not null"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ImageURL    string          `gorm:"not null"`
	Category    string          `gorm:"not null;index:idx_product_category"`
	SubCategory string          `gorm:"not null;index:idx_product_category"`
	SellerEmail string          `gorm:"not null;index"`
	BuyerEmail  string
	CreatedAt   time.Time `gorm:"not null;index"`
}

// CartItemModel holds one cart line; (user_id, product_id) is the primary key.
type CartItemModel struct {
	UserID    string    `gorm:"primaryKey"`
	ProductID string    `gorm:"primaryKey"`
	Quantity  int       `gorm:"not null"`
	AddedAt   time.Time `gorm:"not null"`
}

type OrderModel struct {
	ID          string         `gorm:"primaryKey"`
	BuyerEmail  string         `gorm:"not null;index"`
	SellerEmail string         `gorm:"not null;index:idx_order_seller_status"`
	Status      string         `gorm:"not null;index:idx_order_seller_status"`
	Items       datatypes.JSON `gorm:"type:jsonb;not null"`
	OTPHash     string         `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null;index"`
	CompletedAt *time.Time
}

type MessageModel struct {
	ID        string    `gorm:"primaryKey"`
	Sender    string    `gorm:"not null;index"`
	Receiver  string    `gorm:"not null;index"`
	Content   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null;index"`
}

type SupportTicketModel struct {
	ID        string    `gorm:"primaryKey"`
	Email     string    `gorm:"not null;index"`
	Message   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
