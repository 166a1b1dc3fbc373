package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/jiwelabs/threatwatch/internal/core/errors"
	db "github.com/jiwelabs/threatwatch/internal/storage"
)

// memStore is an in-memory Storage used to exercise the engine without a
// database. Natural keys mirror the real schema constraints.
type memStore struct {
	countries map[int64]db.Country
	threats   map[string]db.Threat
	dates     map[string]db.CalendarDate // keyed by date value
	metrics   map[string]db.MetricValue  // keyed by (country, threat, date) triple
	news      map[string]db.NewsItem     // keyed by canonical url

	nextID int

	// saveNewsErr injects a storage failure into SaveNewsItem.
	saveNewsErr error

	// saveMetricErr injects a per-record failure into SaveMetricValue.
	saveMetricErr func(*db.MetricValue) error
}

func newMemStore() *memStore {
	return &memStore{
		countries: map[int64]db.Country{},
		threats:   map[string]db.Threat{},
		dates:     map[string]db.CalendarDate{},
		metrics:   map[string]db.MetricValue{},
		news:      map[string]db.NewsItem{},
	}
}

func (s *memStore) id() string {
	s.nextID++

	return fmt.Sprintf("id-%d", s.nextID)
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func tripleKey(countryID int64, threatID, dateID string) string {
	return fmt.Sprintf("%d|%s|%s", countryID, threatID, dateID)
}

func (s *memStore) EnsureCountry(_ context.Context, id int64, name string) (*db.Country, error) {
	if c, ok := s.countries[id]; ok {
		return &c, nil
	}

	c := db.Country{ID: id, Name: name}
	s.countries[id] = c

	return &c, nil
}

func (s *memStore) EnsureThreat(_ context.Context, code, name string) (*db.Threat, error) {
	if t, ok := s.threats[code]; ok {
		return &t, nil
	}

	t := db.Threat{ID: code, Name: name}
	s.threats[code] = t

	return &t, nil
}

func (s *memStore) EnsureDate(_ context.Context, value time.Time) (*db.CalendarDate, error) {
	key := dateKey(value)
	if d, ok := s.dates[key]; ok {
		return &d, nil
	}

	y, m, dd := value.UTC().Date()
	d := db.CalendarDate{ID: s.id(), Value: time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)}
	s.dates[key] = d

	return &d, nil
}

func (s *memStore) FindCountry(_ context.Context, id int64) (*db.Country, error) {
	if c, ok := s.countries[id]; ok {
		return &c, nil
	}

	return nil, coreerrors.ErrNotFound
}

func (s *memStore) FindThreat(_ context.Context, code string) (*db.Threat, error) {
	if t, ok := s.threats[code]; ok {
		return &t, nil
	}

	return nil, coreerrors.ErrNotFound
}

func (s *memStore) FindMetricValue(_ context.Context, countryID int64, threatID, dateID string) (*db.MetricValue, error) {
	if m, ok := s.metrics[tripleKey(countryID, threatID, dateID)]; ok {
		return &m, nil
	}

	return nil, coreerrors.ErrNotFound
}

func (s *memStore) FindNewsByURL(_ context.Context, url string) (*db.NewsItem, error) {
	if n, ok := s.news[url]; ok {
		return &n, nil
	}

	return nil, coreerrors.ErrNotFound
}

func (s *memStore) SaveMetricValue(_ context.Context, m *db.MetricValue) error {
	if s.saveMetricErr != nil {
		if err := s.saveMetricErr(m); err != nil {
			return err
		}
	}

	key := tripleKey(m.CountryID, m.ThreatID, m.DateID)
	if _, ok := s.metrics[key]; ok {
		return coreerrors.ErrDuplicateRecord
	}

	m.ID = s.id()
	s.metrics[key] = *m

	return nil
}

func (s *memStore) SaveNewsItem(_ context.Context, item *db.NewsItem) error {
	if s.saveNewsErr != nil {
		return s.saveNewsErr
	}

	if _, ok := s.news[item.URL]; ok {
		return coreerrors.ErrDuplicateRecord
	}

	item.ID = s.id()
	s.news[item.URL] = *item

	return nil
}

// memFetcher serves canned records.
type memFetcher struct {
	countries []CountryRef
	threats   []ThreatRef
	series    map[string][]MetricPoint // keyed by "countryID|threatCode"
	news      map[string][]NewsRecord
}

func (f *memFetcher) ListCountries(context.Context) ([]CountryRef, error) {
	return f.countries, nil
}

func (f *memFetcher) ListThreatCategories(context.Context) ([]ThreatRef, error) {
	return f.threats, nil
}

func (f *memFetcher) FetchMetricSeries(_ context.Context, countryID int64, threatCode string) ([]MetricPoint, error) {
	return f.series[fmt.Sprintf("%d|%s", countryID, threatCode)], nil
}

func (f *memFetcher) FetchNews(_ context.Context, searchTerm string) ([]NewsRecord, error) {
	return f.news[searchTerm], nil
}

func newTestEngine(store Storage, fetcher Fetcher) *Engine {
	logger := zerolog.Nop()

	return New(store, fetcher, 0, &logger)
}

func TestRunEndToEnd(t *testing.T) {
	store := newMemStore()
	fetcher := &memFetcher{
		countries: []CountryRef{{ID: 404, Name: "Kenya"}},
		threats:   []ThreatRef{{Code: "ransomware", Name: "Ransomware"}},
		series: map[string][]MetricPoint{
			"404|ransomware": {
				{Date: "2024-01-01", Count: 5},
				{Date: "2024-01-02", Count: 7},
			},
		},
	}

	engine := newTestEngine(store, fetcher)

	stats, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Inserted)
	assert.Len(t, store.countries, 1)
	assert.Len(t, store.threats, 1)
	assert.Len(t, store.dates, 2)
	require.Len(t, store.metrics, 2)

	values := map[int64]bool{}
	for _, m := range store.metrics {
		values[m.Value] = true
	}

	assert.True(t, values[5])
	assert.True(t, values[7])
}

func TestMetricIngestionIdempotent(t *testing.T) {
	store := newMemStore()
	fetcher := &memFetcher{
		countries: []CountryRef{{ID: 404, Name: "Kenya"}},
		threats:   []ThreatRef{{Code: "oas", Name: "On-Access Scan"}},
		series: map[string][]MetricPoint{
			"404|oas": {{Date: "2024-03-01", Count: 11}},
		},
	}

	engine := newTestEngine(store, fetcher)

	_, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)

	// Re-run with a changed count: no second row, first count retained.
	fetcher.series["404|oas"] = []MetricPoint{{Date: "2024-03-01", Count: 99}}

	stats, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 1, stats.Duplicates)
	require.Len(t, store.metrics, 1)

	for _, m := range store.metrics {
		assert.Equal(t, int64(11), m.Value)
	}
}

func TestDateDimensionSingularity(t *testing.T) {
	store := newMemStore()
	fetcher := &memFetcher{
		countries: []CountryRef{{ID: 404, Name: "Kenya"}, {ID: 710, Name: "South Africa"}},
		threats:   []ThreatRef{{Code: "oas", Name: "On-Access Scan"}},
		series: map[string][]MetricPoint{
			"404|oas": {{Date: "2024-05-05", Count: 1}},
			"710|oas": {{Date: "2024-05-05", Count: 2}},
		},
	}

	engine := newTestEngine(store, fetcher)

	_, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Len(t, store.dates, 1)
	assert.Len(t, store.metrics, 2)
}

func TestMalformedDateSkipsSingleRecord(t *testing.T) {
	store := newMemStore()
	country := &db.Country{ID: 404, Name: "Kenya"}
	threat := &db.Threat{ID: "oas", Name: "On-Access Scan"}

	engine := newTestEngine(store, &memFetcher{})

	stats, err := engine.IngestMetricSeries(context.Background(), country, threat, []MetricPoint{
		{Date: "not a date at all 2024///", Count: 3},
		{Date: "2024-06-01", Count: 4},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, 1, stats.Inserted)
	assert.Len(t, store.metrics, 1)
}

func TestMetricIntegrityViolationDoesNotAbortSeries(t *testing.T) {
	store := newMemStore()
	store.saveMetricErr = func(m *db.MetricValue) error {
		if m.Value == 3 {
			return coreerrors.ErrIntegrityViolation
		}

		return nil
	}

	country := &db.Country{ID: 404, Name: "Kenya"}
	threat := &db.Threat{ID: "oas", Name: "On-Access Scan"}

	engine := newTestEngine(store, &memFetcher{})

	stats, err := engine.IngestMetricSeries(context.Background(), country, threat, []MetricPoint{
		{Date: "2024-06-01", Count: 3},
		{Date: "2024-06-02", Count: 4},
	})

	// The violation is surfaced to the caller without blocking the rest of
	// the series.
	require.Error(t, err)
	assert.True(t, errors.Is(err, coreerrors.ErrIntegrityViolation))
	assert.Equal(t, 1, stats.Inserted)
	assert.Len(t, store.metrics, 1)

	for _, m := range store.metrics {
		assert.Equal(t, int64(4), m.Value)
	}
}

func TestMetricStorageFailureAbortsPass(t *testing.T) {
	store := newMemStore()
	store.saveMetricErr = func(*db.MetricValue) error {
		return errors.New("connection reset")
	}

	country := &db.Country{ID: 404, Name: "Kenya"}
	threat := &db.Threat{ID: "oas", Name: "On-Access Scan"}

	engine := newTestEngine(store, &memFetcher{})

	stats, err := engine.IngestMetricSeries(context.Background(), country, threat, []MetricPoint{
		{Date: "2024-06-01", Count: 3},
		{Date: "2024-06-02", Count: 4},
	})

	require.Error(t, err)
	assert.False(t, errors.Is(err, coreerrors.ErrIntegrityViolation))
	assert.Equal(t, 0, stats.Inserted)
	assert.Empty(t, store.metrics)
}

func TestNewsIngestionIdempotent(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store, &memFetcher{})

	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }

	record := NewsRecord{
		URL:         "http://x/1",
		Title:       "Breach reported",
		Description: "A breach was reported.",
		Published:   now.Format(time.RFC1123),
	}

	stats, err := engine.IngestNews(context.Background(), []NewsRecord{record})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	stats, err = engine.IngestNews(context.Background(), []NewsRecord{record})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Len(t, store.news, 1)

	item := store.news["http://x/1"]
	assert.Equal(t, now, item.ScrapingTime)
	assert.Nil(t, item.IsApproved)
}

func TestNewsCutoffBoundary(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		published time.Time
		wantStale bool
	}{
		{name: "25 weeks old rejected", published: now.Add(-25 * 7 * 24 * time.Hour), wantStale: true},
		{name: "23 weeks old accepted", published: now.Add(-23 * 7 * 24 * time.Hour), wantStale: false},
		{name: "exactly 24 weeks accepted", published: now.Add(-24 * 7 * 24 * time.Hour), wantStale: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			engine := newTestEngine(store, &memFetcher{})
			engine.now = func() time.Time { return now }

			stats, err := engine.IngestNews(context.Background(), []NewsRecord{{
				URL:         "http://x/cutoff",
				Title:       "Old news",
				Description: "Maybe too old.",
				Published:   tt.published.Format(time.RFC3339),
			}})
			require.NoError(t, err)

			if tt.wantStale {
				assert.Equal(t, 1, stats.Stale)
				assert.Empty(t, store.news)
			} else {
				assert.Equal(t, 1, stats.Inserted)
				assert.Len(t, store.news, 1)
			}
		})
	}
}

func TestNewsRequiredFieldValidation(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	published := now.Format(time.RFC3339)

	tests := []struct {
		name   string
		record NewsRecord
	}{
		{name: "missing url", record: NewsRecord{Title: "t", Description: "d", Published: published}},
		{name: "missing title", record: NewsRecord{URL: "http://x/2", Description: "d", Published: published}},
		{name: "missing description", record: NewsRecord{URL: "http://x/3", Title: "t", Published: published}},
		{name: "missing published", record: NewsRecord{URL: "http://x/4", Title: "t", Description: "d"}},
		{name: "unparsable published", record: NewsRecord{URL: "http://x/5", Title: "t", Description: "d", Published: "yesterday-ish"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			engine := newTestEngine(store, &memFetcher{})
			engine.now = func() time.Time { return now }

			stats, err := engine.IngestNews(context.Background(), []NewsRecord{tt.record})
			require.NoError(t, err)

			assert.Equal(t, 1, stats.Malformed)
			assert.Empty(t, store.news)
		})
	}
}

func TestNewsStorageFailureAbortsPass(t *testing.T) {
	store := newMemStore()
	store.saveNewsErr = errors.New("connection reset")

	engine := newTestEngine(store, &memFetcher{})

	_, err := engine.IngestNews(context.Background(), []NewsRecord{{
		URL:         "http://x/6",
		Title:       "t",
		Description: "d",
		Published:   time.Now().UTC().Format(time.RFC3339),
	}})
	require.Error(t, err)
}

// resettableFetcher counts the per-run cache resets the engine requests.
type resettableFetcher struct {
	memFetcher

	resets int
}

func (f *resettableFetcher) Reset() {
	f.resets++
}

func TestRunResetsFetcherEachRun(t *testing.T) {
	store := newMemStore()
	fetcher := &resettableFetcher{
		memFetcher: memFetcher{
			countries: []CountryRef{{ID: 404, Name: "Kenya"}},
			threats:   []ThreatRef{{Code: "oas", Name: "On-Access Scan"}},
		},
	}

	engine := newTestEngine(store, fetcher)

	_, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.resets)
}

func TestSyncKnownEntitiesBeforeFacts(t *testing.T) {
	store := newMemStore()
	fetcher := &memFetcher{
		countries: []CountryRef{{ID: 404, Name: "Kenya"}},
		threats:   []ThreatRef{{Code: "oas", Name: "On-Access Scan"}},
	}

	engine := newTestEngine(store, fetcher)

	countries, threats, err := engine.SyncKnownEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, countries, 1)
	require.Len(t, threats, 1)

	// A second sync resolves the same rows instead of creating new ones.
	again, _, err := engine.SyncKnownEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, countries, again)
	assert.Len(t, store.countries, 1)
}
