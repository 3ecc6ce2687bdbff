package postgres

import (
	"context"
	"math/big"
	"time"

	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/ports"
	"github.com/jackc/pgx/v5"
)

const apiColumns = `id, name, owner_id, price_per_request::text, chain_mirrored, created_at, updated_at`

// APIStore implements ports.APIStore using PostgreSQL.
type APIStore struct {
	db *DB
}

// NewAPIStore creates a new PostgreSQL API store.
func NewAPIStore(db *DB) *APIStore {
	return &APIStore{db: db}
}

// Get retrieves an API by ID.
func (s *APIStore) Get(ctx context.Context, id string) (catalog.API, error) {
	return scanAPI(s.db.QueryRow(ctx, `SELECT `+apiColumns+` FROM apis WHERE id = $1`, id))
}

// Create stores a new API.
func (s *APIStore) Create(ctx context.Context, a catalog.API) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO apis (id, name, owner_id, price_per_request, chain_mirrored, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
	`, a.ID, a.Name, a.OwnerID, a.PricePerRequest.String(), a.ChainMirrored, a.CreatedAt, a.UpdatedAt)
	return classify(err)
}

// List returns all APIs ordered by creation time.
func (s *APIStore) List(ctx context.Context) ([]catalog.API, error) {
	return s.query(ctx, `SELECT `+apiColumns+` FROM apis ORDER BY created_at, id`)
}

// ListByOwner returns APIs owned by ownerID.
func (s *APIStore) ListByOwner(ctx context.Context, ownerID string) ([]catalog.API, error) {
	return s.query(ctx, `SELECT `+apiColumns+` FROM apis WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
}

// UpdatePrice sets the price charged for future requests.
func (s *APIStore) UpdatePrice(ctx context.Context, id string, price *big.Int, at time.Time) error {
	return s.update(ctx, `UPDATE apis SET price_per_request = $1::numeric, updated_at = $2 WHERE id = $3`, price.String(), at, id)
}

// SetMirrored records on-chain registration status.
func (s *APIStore) SetMirrored(ctx context.Context, id string, mirrored bool) error {
	return s.update(ctx, `UPDATE apis SET chain_mirrored = $1 WHERE id = $2`, mirrored, id)
}

func (s *APIStore) update(ctx context.Context, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *APIStore) query(ctx context.Context, query string, args ...any) ([]catalog.API, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.API, error) {
		return scanAPI(row)
	})
}

func scanAPI(row pgx.Row) (catalog.API, error) {
	var a catalog.API
	var price string
	if err := row.Scan(&a.ID, &a.Name, &a.OwnerID, &price, &a.ChainMirrored, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return catalog.API{}, classify(err)
	}
	var err error
	if a.PricePerRequest, err = parseAmount("price_per_request", price); err != nil {
		return catalog.API{}, err
	}
	return a, nil
}

// Ensure interface compliance.
var _ ports.APIStore = (*APIStore)(nil)
