package server

import (
	"net/http"
	"strings"

	"campusmart/pkg/domain"
	"campusmart/pkg/store"
)

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

// authenticated requires a full session token.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r, "authorize", store.KindSession)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// registering accepts the short-lived registration token handed out by
// cas-validate as well as a full session token.
func (s *Server) registering(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r, "authorize", store.KindRegistration, store.KindSession)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r, "admin.authorize", store.KindSession)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != domain.RoleAdmin {
			s.audit(r, "admin.authorize", "fail", "reason", "forbidden", "user_id", user.ID)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request, event string, kinds ...store.TokenKind) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, event, "fail", "reason", "missing_token")
		return domain.User{}, false
	}
	user, claims, err := s.app.Authenticate(token)
	if err != nil {
		s.audit(r, event, "fail", "reason", "invalid_token")
		return domain.User{}, false
	}
	if !kindAllowed(claims.Kind, kinds) {
		s.audit(r, event, "fail", "reason", "wrong_token_kind", "user_id", user.ID, "kind", string(claims.Kind))
		return domain.User{}, false
	}
	s.audit(r, event, "success", "user_id", user.ID)
	return user, true
}

func kindAllowed(kind store.TokenKind, kinds []store.TokenKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// wsToken also reads the token query parameter; browsers cannot set headers
// on a websocket handshake.
func wsToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r); ok {
		return token, true
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	return token, token != ""
}
