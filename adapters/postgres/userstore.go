package postgres

import (
	"context"
	"time"

	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/ports"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, address, nonce, nonce_issued_at, created_at, updated_at`

// UserStore implements ports.UserStore using PostgreSQL.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new PostgreSQL user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (identity.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByAddress retrieves a user by normalized wallet address.
func (s *UserStore) GetByAddress(ctx context.Context, address string) (identity.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE address = $1`, address))
}

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, u identity.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Address, u.Nonce, u.NonceIssuedAt, u.CreatedAt, u.UpdatedAt)
	return classify(err)
}

// SwapNonce replaces the nonce only if it still equals oldNonce.
func (s *UserStore) SwapNonce(ctx context.Context, userID, oldNonce, newNonce string, issuedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET nonce = $1, nonce_issued_at = $2, updated_at = $2
		WHERE id = $3 AND nonce = $4
	`, newNonce, issuedAt, userID, oldNonce)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, userID); err != nil {
			return err
		}
		return ports.ErrStateChanged
	}
	return nil
}

// List returns users ordered by creation time.
func (s *UserStore) List(ctx context.Context, limit int) ([]identity.User, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at LIMIT $1`, lim)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (identity.User, error) {
		return scanUser(row)
	})
}

func scanUser(row pgx.Row) (identity.User, error) {
	var u identity.User
	if err := row.Scan(&u.ID, &u.Address, &u.Nonce, &u.NonceIssuedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return identity.User{}, classify(err)
	}
	return u, nil
}

// Ensure interface compliance.
var _ ports.UserStore = (*UserStore)(nil)
