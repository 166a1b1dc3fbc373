package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	coreerrors "github.com/jiwelabs/threatwatch/internal/core/errors"
)

// pgForeignKeyViolation is the Postgres error code for FK violations.
const pgForeignKeyViolation = "23503"

// MetricValue is a fact row: one measured count per (country, threat, date)
// triple.
type MetricValue struct {
	ID        string
	Value     int64
	CountryID int64
	ThreatID  string
	DateID    string
}

// FindMetricValue looks a metric up by its (country, threat, date) triple.
func (db *DB) FindMetricValue(ctx context.Context, countryID int64, threatID, dateID string) (*MetricValue, error) {
	m := &MetricValue{CountryID: countryID, ThreatID: threatID, DateID: dateID}

	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		SELECT id, value
		FROM metric_value
		WHERE country_id = $1
		  AND threat_id = $2
		  AND date_id = $3
	`, countryID, threatID, toUUID(dateID)).Scan(&id, &m.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrNotFound
		}

		return nil, fmt.Errorf("find metric value: %w", err)
	}

	m.ID = fromUUID(id)

	return m, nil
}

// SaveMetricValue inserts a metric fact row. The uniqueness constraint on the
// (country, threat, date) triple makes a replayed insert a no-op, so re-runs
// never duplicate rows and never overwrite the first stored count.
func (db *DB) SaveMetricValue(ctx context.Context, m *MetricValue) error {
	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO metric_value (value, country_id, threat_id, date_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (country_id, threat_id, date_id) DO NOTHING
		RETURNING id
	`, m.Value, m.CountryID, m.ThreatID, toUUID(m.DateID)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict: the triple is already stored.
			return coreerrors.ErrDuplicateRecord
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("save metric value: %w", coreerrors.ErrIntegrityViolation)
		}

		return fmt.Errorf("save metric value: %w", err)
	}

	m.ID = fromUUID(id)

	return nil
}
