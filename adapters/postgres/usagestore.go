package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/ports"
	"github.com/jackc/pgx/v5"
)

const periodColumns = `id, user_id, api_id, state, request_count, pending_payment::text,
	batch_id, settle_tx_hash, opened_at, updated_at, closed_at, settled_at`

// UsageStore implements ports.UsageStore using PostgreSQL.
// Every transition is a single conditional statement, so row locks taken by
// the statement serialize concurrent writers on the same period.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new PostgreSQL usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Increment records one request on the open period, creating it if needed.
func (s *UsageStore) Increment(ctx context.Context, userID, apiID, newID string, price *big.Int, at time.Time) (usage.Period, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO usage_periods (id, user_id, api_id, state, request_count, pending_payment, opened_at, updated_at)
		VALUES ($1, $2, $3, 'open', 1, $4::numeric, $5, $5)
		ON CONFLICT (user_id, api_id) WHERE state = 'open'
		DO UPDATE SET
			request_count = usage_periods.request_count + 1,
			pending_payment = usage_periods.pending_payment + EXCLUDED.pending_payment,
			updated_at = EXCLUDED.updated_at
		RETURNING `+periodColumns,
		newID, userID, apiID, price.String(), at)
	return scanPeriod(row)
}

// GetOpen returns the open period for (userID, apiID).
func (s *UsageStore) GetOpen(ctx context.Context, userID, apiID string) (usage.Period, error) {
	return scanPeriod(s.db.QueryRow(ctx, `
		SELECT `+periodColumns+`
		FROM usage_periods
		WHERE user_id = $1 AND api_id = $2 AND state = 'open'
	`, userID, apiID))
}

// CloseOpen freezes the open period under batchID.
func (s *UsageStore) CloseOpen(ctx context.Context, userID, apiID, batchID string, at time.Time) (usage.Period, error) {
	p, err := scanPeriod(s.db.QueryRow(ctx, `
		UPDATE usage_periods
		SET state = 'closed', batch_id = $3, closed_at = $4, updated_at = $4
		WHERE user_id = $1 AND api_id = $2 AND state = 'open' AND request_count > 0
		RETURNING `+periodColumns,
		userID, apiID, batchID, at))
	if !errors.Is(err, ports.ErrNotFound) {
		return p, err
	}

	if _, err := s.GetOpen(ctx, userID, apiID); err != nil {
		return usage.Period{}, err
	}
	return usage.Period{}, usage.ErrEmptyPeriod
}

// GetByBatch returns the period frozen under batchID.
func (s *UsageStore) GetByBatch(ctx context.Context, batchID string) (usage.Period, error) {
	return scanPeriod(s.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM usage_periods WHERE batch_id = $1`, batchID))
}

// MarkSettled moves a closed period to settled.
func (s *UsageStore) MarkSettled(ctx context.Context, batchID, txHash string, at time.Time) (usage.Period, error) {
	p, err := scanPeriod(s.db.QueryRow(ctx, `
		UPDATE usage_periods
		SET state = 'settled', settle_tx_hash = $2, settled_at = $3, updated_at = $3
		WHERE batch_id = $1 AND state = 'closed'
		RETURNING `+periodColumns,
		batchID, txHash, at))
	if !errors.Is(err, ports.ErrNotFound) {
		return p, err
	}

	if _, err := s.GetByBatch(ctx, batchID); err != nil {
		return usage.Period{}, err
	}
	return usage.Period{}, ports.ErrStateChanged
}

// List returns periods matching f, newest first.
func (s *UsageStore) List(ctx context.Context, f usage.Filter) ([]usage.Period, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.APIID != "" {
		add("api_id = $%d", f.APIID)
	}
	if f.State != "" {
		add("state = $%d", string(f.State))
	}

	query := `SELECT ` + periodColumns + ` FROM usage_periods`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY opened_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (usage.Period, error) {
		return scanPeriod(row)
	})
}

func scanPeriod(row pgx.Row) (usage.Period, error) {
	var (
		p               usage.Period
		state, pending  string
		batchID, txHash *string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.APIID, &state, &p.RequestCount, &pending,
		&batchID, &txHash, &p.OpenedAt, &p.UpdatedAt, &p.ClosedAt, &p.SettledAt)
	if err != nil {
		return usage.Period{}, classify(err)
	}

	p.State = usage.State(state)
	if batchID != nil {
		p.BatchID = *batchID
	}
	if txHash != nil {
		p.SettleTxHash = *txHash
	}
	if p.PendingPayment, err = parseAmount("pending_payment", pending); err != nil {
		return usage.Period{}, err
	}
	return p, nil
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
