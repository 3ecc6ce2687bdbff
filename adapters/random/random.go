// Package random provides Random implementations.
package random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/artpar/trustmeter/ports"
)

// Real reads from crypto/rand. Nonces and batch ids depend on it being unpredictable.
type Real struct{}

// Bytes returns n bytes from the CSPRNG.
func (Real) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}

// Hex returns n random bytes as 2n lower-case hex characters.
func (r Real) Hex(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var _ ports.Random = Real{}

// Fake returns preset or deterministic values for tests.
type Fake struct {
	mu      sync.Mutex
	counter byte
	hexes   []string
}

// NewFake creates a fake source. Preset hex values are returned in order by Hex.
func NewFake(hexes ...string) *Fake {
	return &Fake{hexes: hexes}
}

// Bytes returns n bytes filled with an incrementing counter value.
func (f *Fake) Bytes(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	b := make([]byte, n)
	for i := range b {
		b[i] = f.counter
	}
	return b, nil
}

// Hex returns the next preset value, or hex of Bytes(n) once presets run out.
func (f *Fake) Hex(n int) (string, error) {
	f.mu.Lock()
	if len(f.hexes) > 0 {
		v := f.hexes[0]
		f.hexes = f.hexes[1:]
		f.mu.Unlock()
		return v, nil
	}
	f.mu.Unlock()

	b, err := f.Bytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var _ ports.Random = (*Fake)(nil)
