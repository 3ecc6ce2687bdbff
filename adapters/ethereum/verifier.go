// Package ethereum provides go-ethereum backed implementations of the
// signature, chain reader and contract ports.
package ethereum

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/artpar/trustmeter/ports"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned for signatures that are not 65 hex-encoded bytes.
var ErrInvalidSignature = errors.New("invalid signature encoding")

// Verifier checks EIP-191 personal_sign signatures.
type Verifier struct{}

// Verify reports whether signature over message recovers to claimedAddress.
// It returns false for any malformed input.
func (Verifier) Verify(message string, signature []byte, claimedAddress string) bool {
	if len(signature) != crypto.SignatureLength || !common.IsHexAddress(claimedAddress) {
		return false
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return false
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(claimedAddress)
}

var _ ports.SignatureVerifier = Verifier{}

// DecodeSignature parses a hex signature, with or without 0x prefix.
func DecodeSignature(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != crypto.SignatureLength {
		return nil, ErrInvalidSignature
	}
	return b, nil
}

// SignText signs message the way wallets implement personal_sign (V = 27/28).
func SignText(key *ecdsa.PrivateKey, message string) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
