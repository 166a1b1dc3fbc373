package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	coreerrors "github.com/jiwelabs/threatwatch/internal/core/errors"
)

// Threat is a dimension row keyed by the detection-type code ("ransomware",
// "oas", ...).
type Threat struct {
	ID   string
	Name string
}

// FindThreat looks a threat category up by its code.
func (db *DB) FindThreat(ctx context.Context, code string) (*Threat, error) {
	t := &Threat{ID: code}

	err := db.Pool.QueryRow(ctx, `
		SELECT name
		FROM threat
		WHERE id = $1
	`, code).Scan(&t.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrNotFound
		}

		return nil, fmt.Errorf("find threat: %w", err)
	}

	return t, nil
}

// EnsureThreat returns the stored threat row for code, creating it when seen
// for the first time. Idempotent; never mutates an existing row.
func (db *DB) EnsureThreat(ctx context.Context, code, name string) (*Threat, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // best-effort cleanup
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO threat (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, code, name); err != nil {
		return nil, fmt.Errorf("ensure threat: %w", err)
	}

	t := &Threat{ID: code}
	if err = tx.QueryRow(ctx, `
		SELECT name
		FROM threat
		WHERE id = $1
	`, code).Scan(&t.Name); err != nil {
		return nil, fmt.Errorf("ensure threat select: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return t, nil
}
