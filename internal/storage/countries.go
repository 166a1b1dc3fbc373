package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	coreerrors "github.com/jiwelabs/threatwatch/internal/core/errors"
)

// Country is a dimension row keyed by the statistics site's numeric id.
type Country struct {
	ID   int64
	Name string
}

// FindCountry looks a country up by its external id. Returns
// coreerrors.ErrNotFound when no row exists.
func (db *DB) FindCountry(ctx context.Context, id int64) (*Country, error) {
	c := &Country{ID: id}

	err := db.Pool.QueryRow(ctx, `
		SELECT name
		FROM country
		WHERE id = $1
	`, id).Scan(&c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrNotFound
		}

		return nil, fmt.Errorf("find country: %w", err)
	}

	return c, nil
}

// EnsureCountry returns the stored country row for id, creating it when seen
// for the first time. An existing row is returned unchanged; its attributes
// are never updated on re-sight. Safe to call repeatedly with identical input.
func (db *DB) EnsureCountry(ctx context.Context, id int64, name string) (*Country, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // rollback after commit returns error, this is best-effort cleanup
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO country (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, id, name); err != nil {
		return nil, fmt.Errorf("ensure country: %w", err)
	}

	c := &Country{ID: id}
	if err = tx.QueryRow(ctx, `
		SELECT name
		FROM country
		WHERE id = $1
	`, id).Scan(&c.Name); err != nil {
		return nil, fmt.Errorf("ensure country select: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return c, nil
}
