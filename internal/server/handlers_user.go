package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"campusmart/internal/app"
	"campusmart/pkg/domain"
)

type casValidateRequest struct {
	Ticket  string `json:"ticket"`
	Service string `json:"service"`
}

type casValidateResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	TokenKind string      `json:"tokenKind"`
	User      domain.User `json:"user"`
	IsNewUser bool        `json:"isNewUser"`
}

type profileRequest struct {
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	ContactNumber string `json:"contactnumber"`
}

func (r profileRequest) input() app.ProfileInput {
	return app.ProfileInput{FirstName: r.FirstName, LastName: r.LastName, ContactNumber: r.ContactNumber}
}

func (s *Server) handleCASValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.casLimiter, "too many login attempts") {
		s.audit(r, "user.cas_validate", "rate_limited")
		return
	}
	var req casValidateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "user.cas_validate", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	login, err := s.app.ValidateCASTicket(r.Context(), req.Ticket, req.Service)
	if err != nil {
		s.audit(r, "user.cas_validate", "fail", "reason", err.Error())
		writeAppError(w, r, "cas_validate", err)
		return
	}
	s.audit(r, "user.cas_validate", "success", "user_id", login.User.ID, "new_user", login.IsNewUser)
	writeJSON(w, http.StatusOK, casValidateResponse{
		Success:   true,
		Token:     login.Token,
		TokenKind: string(login.TokenKind),
		User:      login.User,
		IsNewUser: login.IsNewUser,
	})
}

func (s *Server) handleRegisterDetails(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req profileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, token, err := s.app.RegisterDetails(user.ID, req.input())
	if err != nil {
		writeAppError(w, r, "register_details", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Registration completed",
		"token":   token,
		"user":    updated,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		var req profileRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.app.UpdateProfile(user.ID, req.input())
		if err != nil {
			writeAppError(w, r, "update_profile", err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUserByEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/api/user/email/")
	email, err := url.PathUnescape(raw)
	if err != nil || email == "" || strings.Contains(email, "/") {
		writeError(w, http.StatusBadRequest, app.ErrInvalidEmail.Error())
		return
	}
	profile, err := s.app.PublicProfile(email)
	if err != nil {
		writeAppError(w, r, "user_by_email", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleLogout revokes whatever token is presented, including a registration
// token, so it is not wrapped in authenticated.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		s.audit(r, "user.logout", "fail", "reason", "revoke_failed")
		writeAppError(w, r, "logout", err)
		return
	}
	s.audit(r, "user.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}
