package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToPaise(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"200", 20000, false},
		{"199.99", 19999, false},
		{"0.01", 1, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"1.005", 0, true},
	}
	for _, tc := range cases {
		got, err := ToPaise(decimal.RequireFromString(tc.in))
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%s: expected invalid amount, got %d %v", tc.in, got, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s: got %d err=%v, want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test" || pass != "secret" {
			t.Errorf("missing basic auth")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["amount"] != float64(25050) || body["currency"] != "INR" {
			t.Errorf("unexpected body %+v", body)
		}
		receipt, _ := body["receipt"].(string)
		if !strings.HasPrefix(receipt, "rcpt_") || len(receipt) > 40 {
			t.Errorf("bad receipt %q", receipt)
		}
		_, _ = w.Write([]byte(`{"id":"order_1","entity":"order","amount":25050,"currency":"INR","receipt":"` + receipt + `","status":"created"}`))
	}))
	defer srv.Close()

	c, err := NewRazorpayClient(Config{KeyID: "rzp_test", KeySecret: "secret", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	order, err := c.CreateOrder(context.Background(), decimal.RequireFromString("250.50"))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_1" || order.Amount != 25050 || order.KeyID != "rzp_test" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestCreateOrderGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
	}))
	defer srv.Close()
	c, _ := NewRazorpayClient(Config{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})
	_, err := c.CreateOrder(context.Background(), decimal.NewFromInt(1))
	if !errors.Is(err, ErrGateway) || !strings.Contains(err.Error(), "Authentication failed") {
		t.Fatalf("expected gateway error, got %v", err)
	}
}
