package db

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"
)

// psql builds queries with Postgres-style $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// clampLimit guards the uint64 conversion: a non-positive row bound must not
// wrap around into an effectively unbounded LIMIT.
func clampLimit(n int) uint64 {
	if n < 1 {
		return 1
	}

	return uint64(n)
}

// MetricReportRow is a denormalized metric value for reporting.
type MetricReportRow struct {
	Country string
	Threat  string
	Date    time.Time
	Value   int64
}

// NewsFilter selects which news rows a listing returns.
type NewsFilter int

const (
	// NewsAll returns every stored item.
	NewsAll NewsFilter = iota
	// NewsApproved returns items a reviewer accepted.
	NewsApproved
	// NewsPending returns items still awaiting review.
	NewsPending
)

// MetricReport returns metric values for the most recent date window,
// joined with dimension display names. Ordered by date descending, then
// country and threat.
func (db *DB) MetricReport(ctx context.Context, dates int) ([]MetricReportRow, error) {
	window := psql.Select("id").
		From("date").
		OrderBy("value DESC").
		Limit(clampLimit(dates))

	query, args, err := psql.Select("c.name", "t.name", "d.value", "mv.value").
		From("metric_value mv").
		Join("country c ON mv.country_id = c.id").
		Join("threat t ON mv.threat_id = t.id").
		Join("date d ON mv.date_id = d.id").
		Where(window.Prefix("mv.date_id IN (").Suffix(")")).
		OrderBy("d.value DESC", "c.name", "t.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build metric report query: %w", err)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metric report: %w", err)
	}
	defer rows.Close()

	var report []MetricReportRow

	for rows.Next() {
		var r MetricReportRow

		var day pgtype.Date

		if err := rows.Scan(&r.Country, &r.Threat, &day, &r.Value); err != nil {
			return nil, fmt.Errorf("scan metric report row: %w", err)
		}

		r.Date = fromDate(day)
		report = append(report, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric report rows: %w", err)
	}

	return report, nil
}

// ListNews returns stored news items matching the filter, most recently
// scraped first.
func (db *DB) ListNews(ctx context.Context, filter NewsFilter, limit int) ([]NewsItem, error) {
	builder := psql.Select("id", "url", "title", "description", "publishing_time", "scraping_time", "is_approved").
		From("news_item").
		OrderBy("scraping_time DESC").
		Limit(clampLimit(limit))

	switch filter {
	case NewsApproved:
		builder = builder.Where(sq.Eq{"is_approved": true})
	case NewsPending:
		builder = builder.Where("is_approved IS NULL")
	case NewsAll:
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build news listing query: %w", err)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query news listing: %w", err)
	}
	defer rows.Close()

	var items []NewsItem

	for rows.Next() {
		item, err := db.scanNewsRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan news row: %w", err)
		}

		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news rows: %w", err)
	}

	return items, nil
}
