package sqlite

import (
	"context"
	"math/big"
	"time"

	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/ports"
)

const apiColumns = `id, name, owner_id, price_per_request, chain_mirrored, created_at, updated_at`

// APIStore implements ports.APIStore using SQLite.
type APIStore struct {
	db *DB
}

// NewAPIStore creates a new SQLite API store.
func NewAPIStore(db *DB) *APIStore {
	return &APIStore{db: db}
}

// Get retrieves an API by ID.
func (s *APIStore) Get(ctx context.Context, id string) (catalog.API, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+apiColumns+` FROM apis WHERE id = ?`, id)
	return scanAPI(row)
}

// Create stores a new API.
func (s *APIStore) Create(ctx context.Context, a catalog.API) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO apis (`+apiColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.OwnerID, a.PricePerRequest.String(), a.ChainMirrored, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	return classify(err)
}

// List returns all APIs ordered by creation time.
func (s *APIStore) List(ctx context.Context) ([]catalog.API, error) {
	return s.query(ctx, `SELECT `+apiColumns+` FROM apis ORDER BY created_at, id`)
}

// ListByOwner returns APIs owned by ownerID.
func (s *APIStore) ListByOwner(ctx context.Context, ownerID string) ([]catalog.API, error) {
	return s.query(ctx, `SELECT `+apiColumns+` FROM apis WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
}

// UpdatePrice sets the price charged for future requests.
func (s *APIStore) UpdatePrice(ctx context.Context, id string, price *big.Int, at time.Time) error {
	return s.update(ctx, `UPDATE apis SET price_per_request = ?, updated_at = ? WHERE id = ?`, price.String(), at.UTC(), id)
}

// SetMirrored records on-chain registration status.
func (s *APIStore) SetMirrored(ctx context.Context, id string, mirrored bool) error {
	return s.update(ctx, `UPDATE apis SET chain_mirrored = ? WHERE id = ?`, mirrored, id)
}

func (s *APIStore) update(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *APIStore) query(ctx context.Context, query string, args ...any) ([]catalog.API, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apis []catalog.API
	for rows.Next() {
		a, err := scanAPI(rows)
		if err != nil {
			return nil, err
		}
		apis = append(apis, a)
	}
	return apis, rows.Err()
}

func scanAPI(row scanner) (catalog.API, error) {
	var a catalog.API
	var price string
	err := row.Scan(&a.ID, &a.Name, &a.OwnerID, &price, &a.ChainMirrored, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return catalog.API{}, classify(err)
	}
	if a.PricePerRequest, err = parseAmount("price_per_request", price); err != nil {
		return catalog.API{}, err
	}
	return a, nil
}

// Ensure interface compliance.
var _ ports.APIStore = (*APIStore)(nil)
