package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"campusmart/pkg/domain"
)

const (
	defaultJWTIssuer   = "campusmart-api"
	defaultJWTAudience = "campusmart-web"
	minJWTSecretLength = 32
)

var (
	defaultJWTLeeway       = 30 * time.Second
	defaultSessionTTL      = time.Hour
	defaultRegistrationTTL = 10 * time.Minute
)

// ErrTokenRevoked is returned by Verify for a token revoked before expiry.
var ErrTokenRevoked = errors.New("token revoked")

// JWTOptions configures JWT claim validation behavior and token lifetimes.
type JWTOptions struct {
	Issuer          string
	Audience        string
	Leeway          time.Duration
	SessionTTL      time.Duration
	RegistrationTTL time.Duration
}

type tokenClaims struct {
	Email string    `json:"email"`
	Kind  TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// JWTSessionStore issues and validates HS256 bearer tokens.
type JWTSessionStore struct {
	secret  []byte
	revoker TokenRevoker

	issuer          string
	audience        string
	leeway          time.Duration
	sessionTTL      time.Duration
	registrationTTL time.Duration
}

// NewJWTSessionStore builds a store signing with a shared secret.
func NewJWTSessionStore(secret string, revoker TokenRevoker, opts JWTOptions) (*JWTSessionStore, error) {
	if len(strings.TrimSpace(secret)) < minJWTSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minJWTSecretLength)
	}
	opts = normalizeJWTOptions(opts)
	return &JWTSessionStore{
		secret:          []byte(secret),
		revoker:         revoker,
		issuer:          opts.Issuer,
		audience:        opts.Audience,
		leeway:          opts.Leeway,
		sessionTTL:      opts.SessionTTL,
		registrationTTL: opts.RegistrationTTL,
	}, nil
}

// Issue signs a token of the given kind for the user.
func (s *JWTSessionStore) Issue(user domain.User, kind TokenKind) (string, error) {
	var ttl time.Duration
	switch kind {
	case KindSession:
		ttl = s.sessionTTL
	case KindRegistration:
		ttl = s.registrationTTL
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
	if strings.TrimSpace(user.ID) == "" {
		return "", errors.New("token subject missing")
	}
	now := time.Now().UTC()
	claims := tokenClaims{
		Email: user.Email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        randomHexID(12),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify validates signature and claims, then checks revocation.
func (s *JWTSessionStore) Verify(token string) (Claims, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return Claims{}, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Claims{}, ErrTokenRevoked
		}
	}
	return Claims{
		TokenID:   claims.ID,
		UserID:    claims.Subject,
		Email:     claims.Email,
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// Revoke blocks the token until it would have expired anyway.
func (s *JWTSessionStore) Revoke(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (s *JWTSessionStore) parseAndVerify(token string) (tokenClaims, error) {
	claims := tokenClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOptions...)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("token jti missing")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return claims, errors.New("token subject missing")
	}
	if claims.Kind != KindSession && claims.Kind != KindRegistration {
		return claims, errors.New("token kind invalid")
	}
	return claims, nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.RegistrationTTL <= 0 {
		opts.RegistrationTTL = defaultRegistrationTTL
	}
	return opts
}
