package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"campusmart/internal/app"
	"campusmart/pkg/domain"
)

type checkoutLine struct {
	Product  productRef `json:"product"`
	Quantity int        `json:"quantity"`
}

type checkoutRequest struct {
	// nil when the key is absent, which checks out the stored cart.
	Cart []checkoutLine `json:"cart"`
}

type verifyOTPRequest struct {
	OrderID string `json:"orderId"`
	OTP     string `json:"otp"`
}

func (s *Server) handleOrderAdd(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	// An empty body, or one without "cart", checks out the stored cart.
	var req checkoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var snapshot []domain.LineItem
	if req.Cart != nil {
		snapshot = make([]domain.LineItem, 0, len(req.Cart))
	}
	for _, l := range req.Cart {
		snapshot = append(snapshot, domain.LineItem{ProductID: string(l.Product), Quantity: l.Quantity})
	}
	issued, err := s.app.CreateOrders(user, snapshot)
	if err != nil {
		writeAppError(w, r, "order_add", err)
		return
	}
	ids := make([]string, 0, len(issued))
	for _, o := range issued {
		ids = append(ids, o.OrderID)
	}
	s.audit(r, "order.create", "success", "user_id", user.ID, "order_ids", ids)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Orders created successfully",
		"orders":  issued,
	})
}

func (s *Server) handleGenerateOTP(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	orderID := strings.TrimPrefix(r.URL.Path, "/api/order/generate-otp/")
	if orderID == "" || strings.Contains(orderID, "/") {
		writeError(w, http.StatusBadRequest, app.ErrOrderIDRequired.Error())
		return
	}
	issued, err := s.app.RegenerateOTP(user, orderID)
	if err != nil {
		s.audit(r, "order.otp.regenerate", "fail", "user_id", user.ID, "order_id", orderID, "reason", err.Error())
		writeAppError(w, r, "order_generate_otp", err)
		return
	}
	s.audit(r, "order.otp.regenerate", "success", "user_id", user.ID, "order_id", orderID)
	writeJSON(w, http.StatusOK, issued)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.otpLimiter, "too many OTP attempts") {
		s.audit(r, "order.otp.verify", "rate_limited", "user_id", user.ID)
		return
	}
	var req verifyOTPRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	order, err := s.app.VerifyOTP(user, req.OrderID, req.OTP)
	if err != nil {
		s.audit(r, "order.otp.verify", "fail", "user_id", user.ID, "order_id", req.OrderID, "reason", err.Error())
		writeAppError(w, r, "order_verify", err)
		return
	}
	s.audit(r, "order.otp.verify", "success", "user_id", user.ID, "order_id", order.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Order verified and completed successfully",
		"order":   order,
	})
}

// handleSellerOrders serves both /pending and /completed.
func (s *Server) handleSellerOrders(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	status := domain.OrderPending
	if strings.HasSuffix(r.URL.Path, "/completed") {
		status = domain.OrderCompleted
	}
	orders, err := s.app.SellerOrders(user, status)
	if err != nil {
		writeAppError(w, r, "order_seller_list", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleOrderList(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	orders, err := s.app.Purchases(user, domain.OrderPending)
	if err != nil {
		writeAppError(w, r, "order_list", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	status, err := app.ParseOrderStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeAppError(w, r, "order_purchases", err)
		return
	}
	orders, err := s.app.Purchases(user, status)
	if err != nil {
		writeAppError(w, r, "order_purchases", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleAdminPendingOrders(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	orders, err := s.app.AllPendingOrders(user)
	if err != nil {
		writeAppError(w, r, "admin_pending_orders", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": orders,
		"count": len(orders),
	})
}
