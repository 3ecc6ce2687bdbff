// Package auth provides stateless wallet sessions using JWT.
// Any instance holding the secret can validate a session.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/trustmeter/ports"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "trustmeter"

// ErrInvalidSession is returned for expired, malformed or forged tokens.
var ErrInvalidSession = errors.New("invalid session token")

// Claims carries the wallet identity of a session.
type Claims struct {
	Address string `json:"addr"`
	jwt.RegisteredClaims
}

// SessionService issues HS256 session tokens after a successful wallet login.
// Safe for concurrent use.
type SessionService struct {
	secret []byte
	ttl    time.Duration
	clock  ports.Clock
}

// NewSessionService creates a session service. An empty secret generates a
// random one, which invalidates sessions on restart.
func NewSessionService(secret string, ttl time.Duration, clock ports.Clock) (*SessionService, error) {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionService{secret: key, ttl: ttl, clock: clock}, nil
}

// Issue signs a session token for the user.
func (s *SessionService) Issue(userID, address string) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate checks the token signature, issuer and expiry.
func (s *SessionService) Validate(token string) (ports.SessionClaims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return ports.SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.Address == "" {
		return ports.SessionClaims{}, ErrInvalidSession
	}

	return ports.SessionClaims{
		UserID:    claims.Subject,
		Address:   claims.Address,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

var _ ports.SessionIssuer = (*SessionService)(nil)
