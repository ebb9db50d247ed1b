package app

import (
	"errors"
	"fmt"

	"campusmart/pkg/domain"
)

// Validation failures. Messages are shown to end users as-is.
var (
	ErrTicketRequired        = errors.New("Missing ticket or service URL")
	ErrProfileFieldsRequired = errors.New("All fields are required")
	ErrInvalidContactNumber  = errors.New("Invalid contact number")
	ErrProductFieldsRequired = errors.New("Please fill all the fields")
	ErrInvalidPrice          = errors.New("price must be a positive amount")
	ErrInvalidCategory       = errors.New("Invalid category")
	ErrInvalidSubCategory    = errors.New("Invalid type for selected category")
	ErrProductIDRequired     = errors.New("Product ID is required")
	ErrInvalidQuantity       = errors.New("quantity must be a non-zero whole number")
	ErrNewCartItemQuantity   = errors.New("quantity must be positive for an item not yet in the cart")
	ErrOwnListing            = errors.New("you cannot order your own listing")
	ErrOrderIDRequired       = errors.New("orderId is required")
	ErrInvalidOTPFormat      = errors.New("otp must be exactly 6 digits")
	ErrReceiverRequired      = errors.New("receiver is required")
	ErrSelfMessage           = errors.New("cannot send a message to yourself")
	ErrContentRequired       = errors.New("content is required")
	ErrContentTooLong        = errors.New("content exceeds 2000 characters")
	ErrSupportFieldsRequired = errors.New("email and message are required")
	ErrInvalidEmail          = errors.New("Invalid email")
	ErrSupportMessageTooLong = errors.New("message exceeds 5000 characters")
	ErrInvalidOrderStatus    = errors.New("status must be pending or completed")
)

var (
	// ErrInvalidOTP is returned on a wrong code. Retries are unlimited.
	ErrInvalidOTP = errors.New("Invalid OTP")

	// ErrCASRejected means the CAS server answered "no" for the ticket.
	ErrCASRejected = errors.New("Invalid CAS ticket")
	// ErrCASUnavailable wraps transport or protocol failures talking to CAS.
	ErrCASUnavailable = errors.New("CAS server unavailable")
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrEmailDomainRejected = errors.New("email domain is not allowed")
	ErrNotOrderSeller      = errors.New("only the seller of this order can verify it")
	ErrNotOrderBuyer       = errors.New("only the buyer of this order can reissue its OTP")
	ErrNotProductSeller    = errors.New("only the seller can remove this listing")
)

var (
	ErrUserNotFound    = errors.New("User not found")
	ErrProductNotFound = errors.New("Product not found")
	ErrOrderNotFound   = errors.New("Order not found")
	// ErrOrderNotPending is reported like a missing order: a completed order no
	// longer exists as far as the pickup flow is concerned.
	ErrOrderNotPending = errors.New("order is not pending")
)

// DuplicateTitleError is returned when a listing title is already taken.
type DuplicateTitleError struct {
	Existing domain.Product
}

func (e *DuplicateTitleError) Error() string {
	return fmt.Sprintf("Product with this title already exists (id %s)", e.Existing.ID)
}
