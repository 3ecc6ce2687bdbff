// Package catalog provides registered API value types and validation.
package catalog

import (
	"errors"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// MaxNameLength bounds API names.
const MaxNameLength = 128

// Validation errors.
var (
	ErrInvalidName  = errors.New("api name must be 1-128 characters")
	ErrInvalidPrice = errors.New("price per request must be a non-negative integer")
)

// API is a registered, metered API (immutable value type).
type API struct {
	ID              string
	Name            string
	OwnerID         string
	PricePerRequest *big.Int // wei
	ChainMirrored   bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New builds a validated API record.
func New(id, ownerID, name string, price *big.Int, at time.Time) (API, error) {
	name = strings.TrimSpace(name)
	if err := Validate(name, price); err != nil {
		return API{}, err
	}
	return API{
		ID:              id,
		Name:            name,
		OwnerID:         ownerID,
		PricePerRequest: new(big.Int).Set(price),
		CreatedAt:       at,
		UpdatedAt:       at,
	}, nil
}

// Validate checks a name and price pair.
func Validate(name string, price *big.Int) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(name)); n == 0 || n > MaxNameLength {
		return ErrInvalidName
	}
	return ValidatePrice(price)
}

// ValidatePrice checks a per-request price.
func ValidatePrice(price *big.Int) error {
	if price == nil || price.Sign() < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// IsOwnedBy reports whether userID owns the API.
func (a API) IsOwnedBy(userID string) bool {
	return a.OwnerID != "" && a.OwnerID == userID
}

// ContractID returns the uint256 identifier used for this API on the settlement contract.
// UUIDs map to their 128-bit integer value; other IDs map to their keccak256 digest.
func ContractID(apiID string) *big.Int {
	if u, err := uuid.Parse(apiID); err == nil {
		return new(big.Int).SetBytes(u[:])
	}
	return new(big.Int).SetBytes(crypto.Keccak256([]byte(apiID)))
}
