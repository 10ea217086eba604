package auth

import (
	"errors"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the only error Verify returns. Bad structure, a wrong
// signature, an unexpected algorithm and expiry are deliberately not
// distinguished.
var ErrInvalidToken = errors.New("invalid token")

const (
	// ClaimSubject carries the identity a token was issued to.
	ClaimSubject = "sub"
	// ClaimUsername repeats the identity for display by the web client.
	ClaimUsername = "username"
)

// TokenService issues and verifies HS256-signed JWTs.
//
// Tokens are stateless: nothing is stored server side and there is no
// revocation list. A token stays valid until its exp claim passes, or
// forever when the service is configured without a TTL.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds a TokenService. ttl <= 0 issues tokens without an
// exp claim. now may be nil, in which case time.Now is used.
func NewTokenService(secret []byte, ttl time.Duration, now func() time.Time) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if now == nil {
		now = time.Now
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenService{secret: key, ttl: ttl, now: now}, nil
}

// Issue signs claims. The input map is not modified; iat is always added
// and exp is added when the service has a TTL.
func (s *TokenService) Issue(claims map[string]any) (string, error) {
	mc := jwt.MapClaims{}
	maps.Copy(mc, claims)

	now := s.now()
	mc["iat"] = now.Unix()
	if s.ttl > 0 {
		mc["exp"] = now.Add(s.ttl).Unix()
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(s.secret)
}

// IssueFor issues a token for identity.
func (s *TokenService) IssueFor(identity string) (string, error) {
	return s.Issue(map[string]any{
		ClaimSubject:  identity,
		ClaimUsername: identity,
	})
}

// Verify checks the signature and, when present, the expiry of token and
// returns its claims.
func (s *TokenService) Verify(token string) (claims map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, ErrInvalidToken
		}
	}()

	mc := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, mc, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return map[string]any(mc), nil
}

// Identity verifies token and returns its subject.
func (s *TokenService) Identity(token string) (string, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return "", err
	}
	sub, ok := claims[ClaimSubject].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
