// Package payment creates gateway orders with Razorpay.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultRazorpayBaseURL = "https://api.razorpay.com"

var (
	ErrInvalidAmount = errors.New("amount must be a positive INR value")
	// ErrGateway wraps failures reported by, or in reaching, the gateway.
	ErrGateway = errors.New("payment gateway error")
)

// maxAmount is Razorpay's per-order ceiling in rupees.
var maxAmount = decimal.NewFromInt(5_00_00_000)

// Order is the gateway's order object, relayed to the client for checkout.
type Order struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	KeyID    string `json:"key_id,omitempty"`
}

type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
}

// RazorpayClient calls the Razorpay Orders API.
type RazorpayClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

func NewRazorpayClient(cfg Config) (*RazorpayClient, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, errors.New("razorpay key id and secret required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultRazorpayBaseURL
	}
	return &RazorpayClient{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// ToPaise converts a rupee amount to the smallest currency unit.
func ToPaise(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() || amount.GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	paise := amount.Shift(2)
	if !paise.Equal(paise.Truncate(0)) {
		return 0, ErrInvalidAmount
	}
	return paise.IntPart(), nil
}

// CreateOrder registers an INR order of amount rupees with the gateway.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount decimal.Decimal) (Order, error) {
	paise, err := ToPaise(amount)
	if err != nil {
		return Order{}, err
	}
	payload := map[string]any{
		"amount":   paise,
		"currency": "INR",
		"receipt":  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Order{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error.Description != "" {
			return Order{}, fmt.Errorf("%w: %s", ErrGateway, apiErr.Error.Description)
		}
		return Order{}, fmt.Errorf("%w: %s", ErrGateway, resp.Status)
	}
	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return Order{}, fmt.Errorf("%w: decode order: %v", ErrGateway, err)
	}
	order.KeyID = c.keyID
	return order, nil
}
