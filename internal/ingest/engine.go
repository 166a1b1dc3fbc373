package ingest

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultCutoff is the rolling window beyond which news records are never
// ingested.
const DefaultCutoff = 24 * 7 * 24 * time.Hour

// Log key constants for ingestion.
const (
	logKeyCountry = "country"
	logKeyThreat  = "threat"
	logKeyDate    = "date"
	logKeyURL     = "url"
	logKeyTerm    = "search_term"
)

// Stats counts per-record outcomes of one ingestion pass.
type Stats struct {
	Inserted   int
	Duplicates int
	Stale      int
	Malformed  int
}

// Add merges other into s.
func (s *Stats) Add(other Stats) {
	s.Inserted += other.Inserted
	s.Duplicates += other.Duplicates
	s.Stale += other.Stale
	s.Malformed += other.Malformed
}

// Engine drives ingestion runs. It is single-writer: one run owns its storage
// handle for the duration of the pass.
type Engine struct {
	store   Storage
	fetcher Fetcher
	cutoff  time.Duration
	logger  *zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates an ingestion engine. A non-positive cutoff falls back to
// DefaultCutoff.
func New(store Storage, fetcher Fetcher, cutoff time.Duration, logger *zerolog.Logger) *Engine {
	if cutoff <= 0 {
		cutoff = DefaultCutoff
	}

	return &Engine{
		store:   store,
		fetcher: fetcher,
		cutoff:  cutoff,
		logger:  logger,
		now:     time.Now,
	}
}
