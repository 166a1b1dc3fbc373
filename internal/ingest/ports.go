// Package ingest implements the incremental ingestion engine: it maps
// fetched records onto the relational star schema, guarantees idempotent
// re-ingestion through natural-key lookups, and applies the rolling temporal
// cutoff to news records.
//
// The engine consumes already-normalized records from a Fetcher collaborator
// and persists rows through a Storage collaborator; it never parses markup or
// talks to the network itself.
package ingest

import (
	"context"
	"time"

	db "github.com/jiwelabs/threatwatch/internal/storage"
)

// CountryRef identifies a country in the source's authoritative list.
type CountryRef struct {
	ID   int64
	Name string
}

// ThreatRef identifies a threat category in the source's authoritative list.
type ThreatRef struct {
	Code string
	Name string
}

// MetricPoint is one normalized time-series sample for a (country, threat)
// pair. Date is the source's raw date string; the engine parses it.
type MetricPoint struct {
	Date  string
	Count int64
}

// NewsRecord is one normalized article record. Published is the source's raw
// timestamp string; the engine parses it.
type NewsRecord struct {
	URL         string
	Title       string
	Description string
	Published   string
}

// Fetcher is the source collaborator the engine pulls records from.
type Fetcher interface {
	ListCountries(ctx context.Context) ([]CountryRef, error)
	ListThreatCategories(ctx context.Context) ([]ThreatRef, error)
	FetchMetricSeries(ctx context.Context, countryID int64, threatCode string) ([]MetricPoint, error)
	FetchNews(ctx context.Context, searchTerm string) ([]NewsRecord, error)
}

// Storage is the persistence collaborator. Find* methods resolve rows by
// natural key with no side effects; Ensure* methods create dimension rows
// exactly once; Save* methods insert fact rows and report duplicates through
// coreerrors.ErrDuplicateRecord.
type Storage interface {
	EnsureCountry(ctx context.Context, id int64, name string) (*db.Country, error)
	EnsureThreat(ctx context.Context, code, name string) (*db.Threat, error)
	EnsureDate(ctx context.Context, value time.Time) (*db.CalendarDate, error)

	FindCountry(ctx context.Context, id int64) (*db.Country, error)
	FindThreat(ctx context.Context, code string) (*db.Threat, error)
	FindMetricValue(ctx context.Context, countryID int64, threatID, dateID string) (*db.MetricValue, error)
	FindNewsByURL(ctx context.Context, url string) (*db.NewsItem, error)

	SaveMetricValue(ctx context.Context, m *db.MetricValue) error
	SaveNewsItem(ctx context.Context, item *db.NewsItem) error
}
