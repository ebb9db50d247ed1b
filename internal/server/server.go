package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"campusmart/internal/app"
	"campusmart/internal/assistant"
	"campusmart/internal/payment"
	"campusmart/internal/ratelimit"
	"campusmart/internal/security"
	"campusmart/internal/util"
	"campusmart/pkg/storage"
)

// PaymentGateway creates orders with the external payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal) (payment.Order, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App       *app.App
	Assistant *assistant.Assistant
	Payments  PaymentGateway
	Images    storage.ObjectStore
	Hub       *Hub

	// Redis backs the rate limiters and the audit alerter.
	Redis *redis.Client

	ServiceName    string
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies

	CASRateLimitPerMinute       int
	AssistantRateLimitPerMinute int
	SupportRateLimitPerMinute   int
	UploadRateLimitPerMinute    int
	OTPVerifyRateLimitPerMinute int
}

// Server exposes the marketplace HTTP API.
type Server struct {
	app       *app.App
	assistant *assistant.Assistant
	payments  PaymentGateway
	images    storage.ObjectStore
	hub       *Hub
	upgrader  *websocket.Upgrader
	alerter   *security.AuditAlerter
	mux       *http.ServeMux

	serviceName    string
	allowedOrigins []string
	trustedProxies *util.TrustedProxies

	casLimiter       *ratelimit.FixedWindowLimiter
	assistantLimiter *ratelimit.FixedWindowLimiter
	supportLimiter   *ratelimit.FixedWindowLimiter
	uploadLimiter    *ratelimit.FixedWindowLimiter
	otpLimiter       *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("server: redis client is required")
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit, def int) (*ratelimit.FixedWindowLimiter, error) {
		if limit <= 0 {
			limit = def
		}
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "campusmart:ratelimit:"+name, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	casLimiter, err := newLimiter("cas", cfg.CASRateLimitPerMinute, 10)
	if err != nil {
		return nil, err
	}
	assistantLimiter, err := newLimiter("assistant", cfg.AssistantRateLimitPerMinute, 20)
	if err != nil {
		return nil, err
	}
	supportLimiter, err := newLimiter("support", cfg.SupportRateLimitPerMinute, 5)
	if err != nil {
		return nil, err
	}
	uploadLimiter, err := newLimiter("upload", cfg.UploadRateLimitPerMinute, 10)
	if err != nil {
		return nil, err
	}
	otpLimiter, err := newLimiter("otp", cfg.OTPVerifyRateLimitPerMinute, 10)
	if err != nil {
		return nil, err
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub()
	}
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "campusmart"
	}
	s := &Server{
		app:              cfg.App,
		assistant:        cfg.Assistant,
		payments:         cfg.Payments,
		images:           cfg.Images,
		hub:              hub,
		upgrader:         newUpgrader(cfg.AllowedOrigins),
		alerter:          security.NewAuditAlerter(cfg.Redis, ""),
		mux:              http.NewServeMux(),
		serviceName:      name,
		allowedOrigins:   cfg.AllowedOrigins,
		trustedProxies:   cfg.TrustedProxies,
		casLimiter:       casLimiter,
		assistantLimiter: assistantLimiter,
		supportLimiter:   supportLimiter,
		uploadLimiter:    uploadLimiter,
		otpLimiter:       otpLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog(s.serviceName,
			util.WithSecurityHeaders(
				util.WithCORS(s.allowedOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// users
	s.mux.HandleFunc("/api/user/cas-validate", s.handleCASValidate)
	s.mux.Handle("/api/user/register-details", s.registering(s.handleRegisterDetails))
	s.mux.Handle("/api/user/profile", s.authenticated(s.handleProfile))
	s.mux.HandleFunc("/api/user/email/", s.handleUserByEmail)
	s.mux.HandleFunc("/api/user/logout", s.handleLogout)

	// cart
	s.mux.Handle("/api/cart/add", s.authenticated(s.handleCartAdd))
	s.mux.Handle("/api/cart/update", s.authenticated(s.handleCartUpdate))
	s.mux.Handle("/api/cart/remove", s.authenticated(s.handleCartRemove))
	s.mux.Handle("/api/cart/clear", s.authenticated(s.handleCartClear))
	s.mux.Handle("/api/cart/list", s.authenticated(s.handleCartList))

	// catalog
	s.mux.Handle("/api/product/add", s.authenticated(s.handleProductAdd))
	s.mux.HandleFunc("/api/product/list", s.handleProductList)
	s.mux.HandleFunc("/api/product/categories", s.handleCategories)
	s.mux.Handle("/api/product/remove/", s.authenticated(s.handleProductRemove))
	s.mux.HandleFunc("/api/product/", s.handleProductByID)

	// orders
	s.mux.Handle("/api/order/add", s.authenticated(s.handleOrderAdd))
	s.mux.Handle("/api/order/generate-otp/", s.authenticated(s.handleGenerateOTP))
	s.mux.Handle("/api/order/verify", s.authenticated(s.handleVerifyOTP))
	s.mux.Handle("/api/order/pending", s.authenticated(s.handleSellerOrders))
	s.mux.Handle("/api/order/completed", s.authenticated(s.handleSellerOrders))
	s.mux.Handle("/api/order/list", s.authenticated(s.handleOrderList))
	s.mux.Handle("/api/order/purchases", s.authenticated(s.handlePurchases))
	s.mux.Handle("/api/admin/orders/pending", s.adminOnly(s.handleAdminPendingOrders))

	// messages
	s.mux.Handle("/api/messages/send", s.authenticated(s.handleSendMessage))
	s.mux.Handle("/api/messages/history", s.authenticated(s.handleHistory))
	s.mux.Handle("/api/messages/chat-users/", s.authenticated(s.handleChatUsers))
	s.mux.HandleFunc("/api/messages/ws", s.handleMessagesWS)

	// collaborators
	s.mux.Handle("/api/payment/create-order", s.authenticated(s.handleCreatePayment))
	s.mux.Handle("/api/upload/image", s.authenticated(s.handleUploadImage))
	s.mux.HandleFunc("/api/support", s.handleSupport)
	s.mux.HandleFunc("/api/generate-text", s.handleGenerateText)
	s.mux.HandleFunc("/generate-text", s.handleGenerateText)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}

// audit logs a security_event and feeds the alerter. Alerts are logged at
// Error so they stand out from ordinary failures.
func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := s.clientIP(r)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
	} else {
		logger.Warn("security_event", logAttrs...)
	}
	if s.alerter == nil || outcome == "success" {
		return
	}
	res, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security_alert_observe_failed", "event", event, "error", err)
		return
	}
	if res.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", res.Count,
			"threshold", res.Threshold,
			"window", res.Window.String(),
		)
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + s.clientIP(r)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	retry := int(limiter.Window().Seconds())
	if retry <= 0 {
		retry = 60
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func logHandlerError(r *http.Request, op string, err error) {
	util.LoggerFromContext(r.Context()).Error("handler_failed", "op", op, "error", err)
}
