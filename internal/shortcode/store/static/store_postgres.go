package static

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vouchercore/internal/shortcode"
	"vouchercore/pkg/platform/sentinel"
)

// Clock supplies the current time; injected for testability.
type Clock func() time.Time

// PostgresStore is the durable registry for print-campaign codes.
//
// Expected schema:
//
//	CREATE TABLE static_short_codes (
//	    code       TEXT PRIMARY KEY,
//	    voucher_id TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db    *sql.DB
	clock Clock
}

// PostgresStoreOption configures a PostgresStore.
type PostgresStoreOption func(*PostgresStore)

// WithPostgresClock sets the clock function for testability.
func WithPostgresClock(clock Clock) PostgresStoreOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgresStore constructs a PostgreSQL-backed static code registry.
func NewPostgresStore(db *sql.DB, opts ...PostgresStoreOption) *PostgresStore {
	s := &PostgresStore{
		db:    db,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create registers a code atomically. Two concurrent operators registering
// the same code resolve at the primary key: the loser sees ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, code, voucherID string) error {
	query := `
		INSERT INTO static_short_codes (code, voucher_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, code, voucherID, s.clock())
	if err != nil {
		return fmt.Errorf("create static code: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create static code rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// Find resolves a registered static code.
func (s *PostgresStore) Find(ctx context.Context, code string) (*shortcode.Record, error) {
	var voucherID string
	err := s.db.QueryRowContext(ctx,
		`SELECT voucher_id FROM static_short_codes WHERE code = $1`, code,
	).Scan(&voucherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find static code: %w", err)
	}
	return &shortcode.Record{
		Code:      code,
		VoucherID: voucherID,
		Kind:      shortcode.KindStatic,
	}, nil
}
