// Package identity provides wallet identity value types and the sign-in challenge format.
// This package has no I/O.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NonceBytes is the entropy of a sign-in nonce (hex-encoded to 64 characters).
const NonceBytes = 32

// ErrInvalidAddress is returned for strings that are not 0x-prefixed 20-byte hex addresses.
var ErrInvalidAddress = errors.New("invalid wallet address")

// User is a wallet-backed identity (immutable value type).
type User struct {
	ID            string
	Address       string // lower-case 0x-hex
	Nonce         string
	NonceIssuedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WithNonce returns a copy of the user carrying a new nonce.
func (u User) WithNonce(nonce string, issuedAt time.Time) User {
	u.Nonce = nonce
	u.NonceIssuedAt = issuedAt
	u.UpdatedAt = issuedAt
	return u
}

// NormalizeAddress validates a wallet address and returns its lower-case form.
// Addresses compare case-insensitively, so the lower-case form is the storage key.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return "", ErrInvalidAddress
	}
	if !common.IsHexAddress(addr) {
		return "", ErrInvalidAddress
	}
	return "0x" + strings.ToLower(addr[2:]), nil
}

// ChecksumAddress renders an address in EIP-55 mixed-case form.
func ChecksumAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ChallengeParams describes the service side of a sign-in message.
type ChallengeParams struct {
	Domain   string
	URI      string
	TermsURL string
	Version  string
	ChainID  int64
	TTL      time.Duration
}

// Challenge is a fully rendered sign-in message.
type Challenge struct {
	Address   string
	Nonce     string
	Message   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge is no longer acceptable at now.
func (c Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// BuildChallenge renders the EIP-4361 style sign-in message for a nonce.
// The output depends only on its inputs, so the server can rebuild the exact
// text the wallet signed from the stored nonce and its issuance time.
func BuildChallenge(p ChallengeParams, address, nonce string, issuedAt time.Time) Challenge {
	issued := issuedAt.UTC().Truncate(time.Second)
	var expires time.Time
	if p.TTL > 0 {
		expires = issued.Add(p.TTL)
	}

	version := p.Version
	if version == "" {
		version = "1"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", p.Domain)
	fmt.Fprintf(&b, "%s\n\n", ChecksumAddress(address))
	fmt.Fprintf(&b, "I accept the Terms of Service: %s\n\n", p.TermsURL)
	fmt.Fprintf(&b, "URI: %s\n", p.URI)
	fmt.Fprintf(&b, "Version: %s\n", version)
	fmt.Fprintf(&b, "Chain ID: %d\n", p.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", nonce)
	fmt.Fprintf(&b, "Issued At: %s", issued.Format(time.RFC3339))
	if !expires.IsZero() {
		fmt.Fprintf(&b, "\nExpiration Time: %s", expires.Format(time.RFC3339))
	}

	return Challenge{
		Address:   address,
		Nonce:     nonce,
		Message:   b.String(),
		IssuedAt:  issued,
		ExpiresAt: expires,
	}
}
