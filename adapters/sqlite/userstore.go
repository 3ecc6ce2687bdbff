package sqlite

import (
	"context"
	"time"

	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/ports"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, address, nonce, nonce_issued_at, created_at, updated_at`

// UserStore implements ports.UserStore using SQLite.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new SQLite user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (identity.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetByAddress retrieves a user by normalized wallet address.
func (s *UserStore) GetByAddress(ctx context.Context, address string) (identity.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE address = ?`, address)
	return scanUser(row)
}

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, u identity.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Address, u.Nonce, u.NonceIssuedAt.UTC(), u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	return classify(err)
}

// SwapNonce replaces the nonce only if it still equals oldNonce.
func (s *UserStore) SwapNonce(ctx context.Context, userID, oldNonce, newNonce string, issuedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET nonce = ?, nonce_issued_at = ?, updated_at = ?
		WHERE id = ? AND nonce = ?
	`, newNonce, issuedAt.UTC(), issuedAt.UTC(), userID, oldNonce)
	if err != nil {
		return classify(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Get(ctx, userID); err != nil {
			return err
		}
		return ports.ErrStateChanged
	}
	return nil
}

// List returns users ordered by creation time.
func (s *UserStore) List(ctx context.Context, limit int) ([]identity.User, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row scanner) (identity.User, error) {
	var u identity.User
	err := row.Scan(&u.ID, &u.Address, &u.Nonce, &u.NonceIssuedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return identity.User{}, classify(err)
	}
	return u, nil
}

// Ensure interface compliance.
var _ ports.UserStore = (*UserStore)(nil)
