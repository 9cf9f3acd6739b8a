package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vouchercore/internal/voucher"
	"vouchercore/pkg/platform/sentinel"
)

// PostgresStore implements the external voucher store contract against
// PostgreSQL. Conditional UPDATEs provide the compare-and-swap semantics the
// contract requires.
//
// Expected schema (owned by the voucher service, consumed here):
//
//	CREATE TABLE vouchers (
//	    id               TEXT PRIMARY KEY,
//	    provider_id      TEXT NOT NULL,
//	    state            TEXT NOT NULL,
//	    redemption_count INTEGER NOT NULL DEFAULT 0
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed voucher store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetVoucher loads and reconstructs a voucher, validating invariants on the
// way in.
func (s *PostgresStore) GetVoucher(ctx context.Context, id string) (*voucher.Voucher, error) {
	var fields voucher.Fields
	err := s.db.QueryRowContext(ctx,
		`SELECT id, provider_id, state, redemption_count FROM vouchers WHERE id = $1`, id,
	).Scan(&fields.ID, &fields.ProviderID, &fields.State, &fields.RedemptionCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	return voucher.Reconstruct(fields)
}

// SetState performs a compare-and-swap state transition. A concurrent writer
// that moved the voucher out of `from` first makes this attempt lose with
// ErrConflict.
func (s *PostgresStore) SetState(ctx context.Context, id string, from, to voucher.State) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vouchers SET state = $1 WHERE id = $2 AND state = $3`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("set voucher state: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set voucher state rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing voucher from a lost CAS race.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM vouchers WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("set voucher state existence check: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

// IncrementRedemption bumps the redemption counter atomically in the store.
func (s *PostgresStore) IncrementRedemption(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vouchers SET redemption_count = redemption_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment redemption: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment redemption rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
