package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"campusmart/internal/util"
	"campusmart/pkg/ai"
	"campusmart/pkg/domain"
	"campusmart/pkg/storage"
)

type createPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type supportRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

type generateTextRequest struct {
	Prompt  string    `json:"prompt"`
	History []ai.Turn `json:"history"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.payments == nil {
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}
	var req createPaymentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	order, err := s.payments.CreateOrder(r.Context(), req.Amount)
	if err != nil {
		writeAppError(w, r, "payment_create_order", err)
		return
	}
	util.LoggerFromContext(r.Context()).Info("payment_order_created", "user_id", user.ID, "gateway_order_id", order.ID, "amount_paise", order.Amount)
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.images == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}
	if !s.allowRate(w, r, s.uploadLimiter, "too many uploads") {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image exceeds 5 MB")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	if header.Size > storage.MaxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds 5 MB")
		return
	}
	contentType, err := storage.ImageContentType(header.Filename)
	if err != nil {
		writeAppError(w, r, "upload_image", err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, storage.MaxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		writeAppError(w, r, "upload_image", storage.ErrUnsupportedImage)
		return
	}
	key := storage.ImageKey(user.ID, util.NewID(), header.Filename)
	if err := s.images.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		util.LoggerFromContext(r.Context()).Error("image_upload_failed", "user_id", user.ID, "key", key, "error", err)
		writeError(w, http.StatusBadGateway, "image upload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": s.images.URL(key)})
}

func (s *Server) handleSupport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.supportLimiter, "too many support requests") {
		return
	}
	var req supportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ticket, err := s.app.SubmitSupportTicket(r.Context(), req.Email, req.Message)
	if err != nil {
		writeAppError(w, r, "support", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"message":  "Support request received",
		"ticketId": ticket.ID,
	})
}

// handleGenerateText is open to guests; the limiter keys on client IP.
func (s *Server) handleGenerateText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}
	if !s.allowRate(w, r, s.assistantLimiter, "too many assistant requests") {
		return
	}
	var req generateTextRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reply, err := s.assistant.Respond(r.Context(), req.Prompt, req.History)
	if err != nil {
		writeAppError(w, r, "generate_text", err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
