package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/ports"
)

const periodColumns = `id, user_id, api_id, state, request_count, pending_payment,
	batch_id, settle_tx_hash, opened_at, updated_at, closed_at, settled_at`

// UsageStore implements ports.UsageStore using SQLite.
// Writes run in BEGIN IMMEDIATE transactions, which serializes the
// read-modify-write of a period across connections.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Increment records one request on the open period, creating it if needed.
func (s *UsageStore) Increment(ctx context.Context, userID, apiID, newID string, price *big.Int, at time.Time) (usage.Period, error) {
	var out usage.Period
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getOpen(ctx, tx, userID, apiID)
		created := errors.Is(err, ports.ErrNotFound)
		switch {
		case created:
			p = usage.Open(newID, userID, apiID, at)
		case err != nil:
			return err
		}

		if p, err = usage.Record(p, price, at); err != nil {
			return err
		}

		if created {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO usage_periods (id, user_id, api_id, state, request_count, pending_payment, opened_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, p.ID, p.UserID, p.APIID, string(p.State), p.RequestCount, p.PendingPayment.String(), p.OpenedAt.UTC(), p.UpdatedAt.UTC())
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE usage_periods
				SET request_count = ?, pending_payment = ?, updated_at = ?
				WHERE id = ? AND state = 'open'
			`, p.RequestCount, p.PendingPayment.String(), p.UpdatedAt.UTC(), p.ID)
		}
		if err != nil {
			return classify(err)
		}
		out = p
		return nil
	})
	return out, err
}

// GetOpen returns the open period for (userID, apiID).
func (s *UsageStore) GetOpen(ctx context.Context, userID, apiID string) (usage.Period, error) {
	return getOpen(ctx, s.db, userID, apiID)
}

// CloseOpen freezes the open period under batchID.
func (s *UsageStore) CloseOpen(ctx context.Context, userID, apiID, batchID string, at time.Time) (usage.Period, error) {
	var out usage.Period
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getOpen(ctx, tx, userID, apiID)
		if err != nil {
			return err
		}
		if p, err = usage.Close(p, batchID, at); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE usage_periods
			SET state = 'closed', batch_id = ?, closed_at = ?, updated_at = ?
			WHERE id = ? AND state = 'open'
		`, p.BatchID, at.UTC(), at.UTC(), p.ID)
		if err != nil {
			return classify(err)
		}
		out = p
		return nil
	})
	return out, err
}

// GetByBatch returns the period frozen under batchID.
func (s *UsageStore) GetByBatch(ctx context.Context, batchID string) (usage.Period, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM usage_periods WHERE batch_id = ?`, batchID)
	return scanPeriod(row)
}

// MarkSettled moves a closed period to settled.
func (s *UsageStore) MarkSettled(ctx context.Context, batchID, txHash string, at time.Time) (usage.Period, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE usage_periods
		SET state = 'settled', settle_tx_hash = ?, settled_at = ?, updated_at = ?
		WHERE batch_id = ? AND state = 'closed'
	`, txHash, at.UTC(), at.UTC(), batchID)
	if err != nil {
		return usage.Period{}, classify(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return usage.Period{}, err
	}
	p, err := s.GetByBatch(ctx, batchID)
	if err != nil {
		return usage.Period{}, err
	}
	if n == 0 {
		return usage.Period{}, ports.ErrStateChanged
	}
	return p, nil
}

// List returns periods matching f, newest first.
func (s *UsageStore) List(ctx context.Context, f usage.Filter) ([]usage.Period, error) {
	var where []string
	var args []any
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.APIID != "" {
		where = append(where, "api_id = ?")
		args = append(args, f.APIID)
	}
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(f.State))
	}

	query := `SELECT ` + periodColumns + ` FROM usage_periods`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY opened_at DESC, id DESC LIMIT ?"
	args = append(args, f.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []usage.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (s *UsageStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return classify(tx.Commit())
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getOpen(ctx context.Context, q queryRower, userID, apiID string) (usage.Period, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+periodColumns+`
		FROM usage_periods
		WHERE user_id = ? AND api_id = ? AND state = 'open'
	`, userID, apiID)
	return scanPeriod(row)
}

func scanPeriod(row scanner) (usage.Period, error) {
	var (
		p                   usage.Period
		state, pending      string
		batchID, txHash     sql.NullString
		closedAt, settledAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.APIID, &state, &p.RequestCount, &pending,
		&batchID, &txHash, &p.OpenedAt, &p.UpdatedAt, &closedAt, &settledAt)
	if err != nil {
		return usage.Period{}, classify(err)
	}

	p.State = usage.State(state)
	p.BatchID = batchID.String
	p.SettleTxHash = txHash.String
	if closedAt.Valid {
		p.ClosedAt = &closedAt.Time
	}
	if settledAt.Valid {
		p.SettledAt = &settledAt.Time
	}
	if p.PendingPayment, err = parseAmount("pending_payment", pending); err != nil {
		return usage.Period{}, err
	}
	return p, nil
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
