package app

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
)

// AuthConfig configures wallet sign-in.
type AuthConfig struct {
	Challenge     identity.ChallengeParams
	EnforceExpiry bool
}

// Session is an issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      identity.User
}

// Authenticator verifies signed sign-in challenges.
type Authenticator struct {
	identities *IdentityService
	verifier   ports.SignatureVerifier
	sessions   ports.SessionIssuer
	observer   ports.Observer
	clock      ports.Clock
	cfg        AuthConfig
	logger     zerolog.Logger
}

// NewAuthenticator creates an authenticator. sessions may be nil if session
// tokens are not offered.
func NewAuthenticator(identities *IdentityService, verifier ports.SignatureVerifier, sessions ports.SessionIssuer, observer ports.Observer, clock ports.Clock, cfg AuthConfig, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		identities: identities,
		verifier:   verifier,
		sessions:   sessions,
		observer:   observerOrNop(observer),
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Challenge returns the message the wallet must sign, creating the user on first sight.
func (a *Authenticator) Challenge(ctx context.Context, address string) (identity.Challenge, error) {
	u, err := a.identities.GetOrCreate(ctx, address)
	if err != nil {
		return identity.Challenge{}, err
	}
	return a.challengeFor(u), nil
}

func (a *Authenticator) challengeFor(u identity.User) identity.Challenge {
	return identity.BuildChallenge(a.cfg.Challenge, u.Address, u.Nonce, u.NonceIssuedAt)
}

// Authenticate verifies that signature signs the user's current challenge and
// rotates the nonce so the signature cannot be replayed.
// All authentication failures return ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, address string, signature []byte) (identity.User, error) {
	u, err := a.identities.GetOrCreate(ctx, address)
	if errors.Is(err, ErrInvalidInput) {
		return identity.User{}, a.reject("invalid_address", address, err)
	}
	if err != nil {
		return identity.User{}, err
	}

	ch := a.challengeFor(u)
	if !a.verifier.Verify(ch.Message, signature, u.Address) {
		return identity.User{}, a.reject("bad_signature", u.Address, nil)
	}
	if a.cfg.EnforceExpiry && ch.Expired(a.clock.Now()) {
		return identity.User{}, a.reject("expired", u.Address, nil)
	}

	if _, err := a.identities.RotateNonce(ctx, u); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return identity.User{}, a.reject("replayed", u.Address, err)
		}
		return identity.User{}, err
	}

	a.logger.Debug().Str("user_id", u.ID).Str("address", u.Address).Msg("wallet authenticated")
	return u, nil
}

// SessionsEnabled reports whether session tokens are issued.
func (a *Authenticator) SessionsEnabled() bool {
	return a.sessions != nil
}

// StartSession authenticates a signature and issues a session token.
func (a *Authenticator) StartSession(ctx context.Context, address string, signature []byte) (Session, error) {
	if a.sessions == nil {
		return Session{}, errors.New("sessions are not enabled")
	}
	u, err := a.Authenticate(ctx, address, signature)
	if err != nil {
		return Session{}, err
	}
	token, expiresAt, err := a.sessions.Issue(u.ID, u.Address)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// ResumeSession validates a session token and returns its user.
func (a *Authenticator) ResumeSession(ctx context.Context, token string) (identity.User, error) {
	if a.sessions == nil {
		return identity.User{}, a.reject("sessions_disabled", "", nil)
	}
	claims, err := a.sessions.Validate(token)
	if err != nil {
		return identity.User{}, a.reject("bad_session", "", err)
	}
	u, err := a.identities.Get(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) || (err == nil && !identity.SameAddress(u.Address, claims.Address)) {
		return identity.User{}, a.reject("unknown_session_user", claims.Address, err)
	}
	if err != nil {
		return identity.User{}, err
	}
	return u, nil
}

func (a *Authenticator) reject(reason, address string, cause error) error {
	a.observer.AuthFailed(reason)
	ev := a.logger.Info().Str("reason", reason)
	if address != "" {
		ev = ev.Str("address", address)
	}
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Msg("authentication rejected")
	return ErrUnauthorized
}
