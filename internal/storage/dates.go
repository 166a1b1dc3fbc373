package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	coreerrors "github.com/jiwelabs/threatwatch/internal/core/errors"
)

// CalendarDate is a dimension row, one per distinct calendar date ever seen.
// Value is normalized to midnight UTC.
type CalendarDate struct {
	ID    string
	Value time.Time
}

// FindDate looks a calendar date up by its date value.
func (db *DB) FindDate(ctx context.Context, value time.Time) (*CalendarDate, error) {
	var id pgtype.UUID

	var stored pgtype.Date

	err := db.Pool.QueryRow(ctx, `
		SELECT id, value
		FROM date
		WHERE value = $1
	`, toDate(value)).Scan(&id, &stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrNotFound
		}

		return nil, fmt.Errorf("find date: %w", err)
	}

	return &CalendarDate{ID: fromUUID(id), Value: fromDate(stored)}, nil
}

// EnsureDate returns the stored row for value's calendar date, creating it on
// first sight. Dates are created lazily, exactly once; concurrent identical
// calls converge on a single row through the unique constraint.
func (db *DB) EnsureDate(ctx context.Context, value time.Time) (*CalendarDate, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // best-effort cleanup
	}()

	day := toDate(value)

	if _, err = tx.Exec(ctx, `
		INSERT INTO date (value)
		VALUES ($1)
		ON CONFLICT (value) DO NOTHING
	`, day); err != nil {
		return nil, fmt.Errorf("ensure date: %w", err)
	}

	var id pgtype.UUID

	var stored pgtype.Date

	if err = tx.QueryRow(ctx, `
		SELECT id, value
		FROM date
		WHERE value = $1
	`, day).Scan(&id, &stored); err != nil {
		return nil, fmt.Errorf("ensure date select: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &CalendarDate{ID: fromUUID(id), Value: fromDate(stored)}, nil
}
