package app_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/trustmeter/adapters/clock"
	"github.com/artpar/trustmeter/adapters/ethereum"
	"github.com/artpar/trustmeter/adapters/idgen"
	"github.com/artpar/trustmeter/adapters/memory"
	"github.com/artpar/trustmeter/adapters/random"
	"github.com/artpar/trustmeter/app"
	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/ports"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeChain serves canned transactions.
type fakeChain struct {
	mu    sync.Mutex
	txs   map[string]settlement.Transaction
	errs  map[string]error
	block chan struct{} // if set, Transaction waits on it or the context
	calls atomic.Int32
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		txs:  make(map[string]settlement.Transaction),
		errs: make(map[string]error),
	}
}

func (f *fakeChain) put(tx settlement.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[tx.Hash] = tx
}

func (f *fakeChain) fail(hash string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[hash] = err
}

func (f *fakeChain) Transaction(ctx context.Context, hash string) (settlement.Transaction, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return settlement.Transaction{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[hash]; ok {
		return settlement.Transaction{}, err
	}
	tx, ok := f.txs[hash]
	if !ok {
		return settlement.Transaction{}, ports.ErrTxNotFound
	}
	return tx, nil
}

// fakeRegistrar returns a fixed error.
type fakeRegistrar struct {
	err   error
	calls atomic.Int32
}

func (f *fakeRegistrar) RegisterAPI(ctx context.Context, api catalog.API, ownerAddress string) error {
	f.calls.Add(1)
	return f.err
}

// recordingObserver counts events by name.
type recordingObserver struct {
	mu     sync.Mutex
	events map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{events: make(map[string]int)}
}

func (o *recordingObserver) add(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events[name]++
}

func (o *recordingObserver) count(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events[name]
}

func (o *recordingObserver) AuthFailed(reason string)         { o.add("auth_failed:" + reason) }
func (o *recordingObserver) UsageRecorded(string, *big.Int)   { o.add("usage") }
func (o *recordingObserver) BatchClosed(string, *big.Int)     { o.add("batch_closed") }
func (o *recordingObserver) SettlementConfirmed(mode string)  { o.add("confirmed:" + mode) }
func (o *recordingObserver) SettlementRejected(reason string) { o.add("rejected:" + reason) }
func (o *recordingObserver) StoreConflict(op string)          { o.add("conflict:" + op) }
func (o *recordingObserver) ChainRegistrationFailed()         { o.add("registration_failed") }

// wallet is a test signer.
type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w wallet) sign(t *testing.T, message string) []byte {
	t.Helper()
	sig, err := ethereum.SignText(w.key, message)
	require.NoError(t, err)
	return sig
}

type testEnv struct {
	users    *memory.UserStore
	apis     *memory.APIStore
	usage    *memory.UsageStore
	clock    *clock.Fake
	random   *random.Fake
	chain    *fakeChain
	observer *recordingObserver

	identity *app.IdentityService
	auth     *app.Authenticator
	catalog  *app.CatalogService
	meter    *app.UsageMeter
	settle   *app.SettlementCoordinator
}

type envOption func(*envConfig)

type envConfig struct {
	settlement app.SettlementConfig
	registrar  ports.ChainRegistrar
	usageStore ports.UsageStore
}

func withSettlement(cfg app.SettlementConfig) envOption {
	return func(c *envConfig) { c.settlement = cfg }
}

func withRegistrar(r ports.ChainRegistrar) envOption {
	return func(c *envConfig) { c.registrar = r }
}

func withUsageStore(s ports.UsageStore) envOption {
	return func(c *envConfig) { c.usageStore = s }
}

func newEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	e := &testEnv{
		users:    memory.NewUserStore(),
		apis:     memory.NewAPIStore(),
		usage:    memory.NewUsageStore(8),
		clock:    clock.NewFake(t0),
		random:   random.NewFake(),
		chain:    newFakeChain(),
		observer: newRecordingObserver(),
	}

	cfg := envConfig{settlement: app.DefaultSettlementConfig()}
	for _, o := range opts {
		o(&cfg)
	}
	var usageStore ports.UsageStore = e.usage
	if cfg.usageStore != nil {
		usageStore = cfg.usageStore
	}

	logger := zerolog.Nop()
	ids := idgen.NewSequential("id-")

	sessions := &stubSessions{}
	e.identity = app.NewIdentityService(e.users, ids, e.random, e.clock, logger)
	e.auth = app.NewAuthenticator(e.identity, ethereum.Verifier{}, sessions, e.observer, e.clock, app.AuthConfig{
		Challenge: identity.ChallengeParams{
			Domain:   "trustmeter.test",
			URI:      "https://trustmeter.test",
			TermsURL: "https://trustmeter.test/tos",
			ChainID:  31337,
			TTL:      24 * time.Hour,
		},
		EnforceExpiry: true,
	}, logger)
	e.catalog = app.NewCatalogService(e.apis, e.users, cfg.registrar, ids, e.clock, e.observer, logger)
	e.meter = app.NewUsageMeter(usageStore, e.apis, ids, e.clock, e.observer, app.UsageConfig{MaxRetries: 3}, logger)
	e.settle = app.NewSettlementCoordinator(usageStore, e.apis, e.users, e.chain, e.random, e.clock, e.observer, cfg.settlement, logger)
	return e
}

// user creates a user for a fresh wallet.
func (e *testEnv) user(t *testing.T) (identity.User, wallet) {
	t.Helper()
	w := newWallet(t)
	u, err := e.identity.GetOrCreate(context.Background(), w.address)
	require.NoError(t, err)
	return u, w
}

// api registers an API owned by a fresh user.
func (e *testEnv) api(t *testing.T, price int64) (catalog.API, identity.User) {
	t.Helper()
	owner, _ := e.user(t)
	a, err := e.catalog.Register(context.Background(), owner.ID, "weather", big.NewInt(price))
	require.NoError(t, err)
	return a, owner
}

// stubSessions issues tokens of the form "tok:<user>:<address>".
type stubSessions struct{}

func (stubSessions) Issue(userID, address string) (string, time.Time, error) {
	return "tok:" + userID + ":" + address, t0.Add(time.Hour), nil
}

func (stubSessions) Validate(token string) (ports.SessionClaims, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 || parts[0] != "tok" {
		return ports.SessionClaims{}, errors.New("bad token")
	}
	return ports.SessionClaims{UserID: parts[1], Address: parts[2]}, nil
}
