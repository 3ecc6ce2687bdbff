package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/artpar/trustmeter/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := newWallet(t)

	ch, err := e.auth.Challenge(ctx, w.address)
	require.NoError(t, err)
	assert.Contains(t, ch.Message, w.address)
	assert.Contains(t, ch.Message, "Nonce: "+ch.Nonce)
	assert.Len(t, ch.Nonce, 64)

	u, err := e.auth.Authenticate(ctx, w.address, w.sign(t, ch.Message))
	require.NoError(t, err)
	assert.Equal(t, ch.Address, u.Address)

	next, err := e.auth.Challenge(ctx, w.address)
	require.NoError(t, err)
	assert.NotEqual(t, ch.Nonce, next.Nonce, "nonce must rotate after success")
}

func TestAuthenticate_Replay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := newWallet(t)

	ch, err := e.auth.Challenge(ctx, w.address)
	require.NoError(t, err)
	sig := w.sign(t, ch.Message)

	_, err = e.auth.Authenticate(ctx, w.address, sig)
	require.NoError(t, err)

	_, err = e.auth.Authenticate(ctx, w.address, sig)
	assert.ErrorIs(t, err, app.ErrUnauthorized)
	assert.Equal(t, 1, e.observer.count("auth_failed:bad_signature"))
}

func TestAuthenticate_ConcurrentReplay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := newWallet(t)

	ch, err := e.auth.Challenge(ctx, w.address)
	require.NoError(t, err)
	sig := w.sign(t, ch.Message)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.auth.Authenticate(ctx, w.address, sig); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes, "one signature must authenticate once")
}

func TestAuthenticate_Failures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := newWallet(t)
	other := newWallet(t)

	ch, err := e.auth.Challenge(ctx, w.address)
	require.NoError(t, err)

	tests := []struct {
		name    string
		address string
		sig     []byte
	}{
		{"wrong signer", w.address, other.sign(t, ch.Message)},
		{"wrong message", w.address, w.sign(t, "hello")},
		{"garbage signature", w.address, []byte{1, 2, 3}},
		{"empty signature", w.address, nil},
		{"invalid address", "not-an-address", w.sign(t, ch.Message)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.auth.Authenticate(ctx, tt.address, tt.sig)
			assert.ErrorIs(t, err, app.ErrUnauthorized)
		})
	}

	// Failures never rotate the nonce.
	again, err := e.auth.Challenge(ctx, w.address)
	require.NoError(t, err)
	assert.Equal(t, ch.Nonce, again.Nonce)
}

func TestAuthenticate_ExpiredChallenge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := newWallet(t)

	ch, err := e.auth.Challenge(ctx, w.address)
	require.NoError(t, err)

	e.clock.Advance(25 * time.Hour)
	_, err = e.auth.Authenticate(ctx, w.address, w.sign(t, ch.Message))
	assert.ErrorIs(t, err, app.ErrUnauthorized)
	assert.Equal(t, 1, e.observer.count("auth_failed:expired"))
}

func TestSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := newWallet(t)

	ch, err := e.auth.Challenge(ctx, w.address)
	require.NoError(t, err)

	s, err := e.auth.StartSession(ctx, w.address, w.sign(t, ch.Message))
	require.NoError(t, err)
	require.NotEmpty(t, s.Token)

	u, err := e.auth.ResumeSession(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, u.ID)

	_, err = e.auth.ResumeSession(ctx, "garbage")
	assert.ErrorIs(t, err, app.ErrUnauthorized)

	_, err = e.auth.ResumeSession(ctx, "tok:nobody:"+w.address)
	assert.ErrorIs(t, err, app.ErrUnauthorized)
}

func TestGetOrCreate_ConcurrentFirstSight(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := newWallet(t)

	const n = 20
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := e.identity.GetOrCreate(ctx, w.address)
			if err == nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
	users, err := e.users.List(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
