package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"campusmart/internal/app"
	"campusmart/internal/util"
	"campusmart/pkg/domain"
	"campusmart/pkg/store"
)

type sendMessageRequest struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// sender is implied by the token; a conflicting value is refused.
	if sender := strings.ToLower(strings.TrimSpace(req.Sender)); sender != "" && sender != user.Email {
		writeError(w, http.StatusForbidden, app.ErrForbidden.Error())
		return
	}
	msg, err := s.app.SendMessage(user, req.Receiver, req.Content)
	if err != nil {
		writeAppError(w, r, "message_send", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleHistory takes ?with=<email>, or the older ?user1=&user2= pair where one
// side must be the caller.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	other := strings.TrimSpace(q.Get("with"))
	if other == "" {
		u1 := strings.ToLower(strings.TrimSpace(q.Get("user1")))
		u2 := strings.ToLower(strings.TrimSpace(q.Get("user2")))
		switch user.Email {
		case u1:
			other = u2
		case u2:
			other = u1
		default:
			if u1 != "" || u2 != "" {
				writeError(w, http.StatusForbidden, app.ErrForbidden.Error())
				return
			}
		}
	}
	msgs, err := s.app.History(user, other)
	if err != nil {
		writeAppError(w, r, "message_history", err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleChatUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	email, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/api/messages/chat-users/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, app.ErrInvalidEmail.Error())
		return
	}
	partners, err := s.app.ChatPartners(user, email)
	if err != nil {
		writeAppError(w, r, "chat_users", err)
		return
	}
	writeJSON(w, http.StatusOK, partners)
}

func (s *Server) handleMessagesWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	token, ok := wsToken(r)
	if !ok {
		s.audit(r, "messages.ws.authorize", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, claims, err := s.app.Authenticate(token)
	if err != nil || claims.Kind != store.KindSession {
		s.audit(r, "messages.ws.authorize", "fail", "reason", "invalid_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.audit(r, "messages.ws.authorize", "success", "user_id", user.ID)
	if err := s.hub.serve(w, r, user.Email, s.upgrader); err != nil {
		// the upgrader has already written the error response
		util.LoggerFromContext(r.Context()).Warn("ws_upgrade_failed", "user_id", user.ID, "error", err)
	}
}
