// Package fetch implements the source collaborators: the Kaspersky cybermap
// statistics site for metric series and Google News RSS for articles. Both
// return normalized records; all relational logic lives in the ingest engine.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	coreerrors "github.com/jiwelabs/threatwatch/internal/core/errors"
	"github.com/jiwelabs/threatwatch/internal/ingest"
)

const (
	statsSlug  = "/stats"
	seriesSlug = "/data/securelist/graph_%s_w_%d.json"

	threatSelectQuery = "select#world_stats_detection_type option"
)

// countriesAllRe extracts the inline country list the stats page ships as a
// script assignment.
var countriesAllRe = regexp.MustCompile(`window\.countriesAll = (\[.+\])`)

// Kaspersky fetches threat statistics from the cybermap stats page and its
// per-series JSON endpoint.
type Kaspersky struct {
	baseURL string
	wanted  map[string]bool
	client  *http.Client
	limiter *rate.Limiter
	logger  *zerolog.Logger

	// statsPage caches the stats page body across the country and threat
	// listings of one run.
	statsPage []byte
}

// NewKaspersky creates a stats fetcher limited to the given country display
// names. rps bounds outbound requests.
func NewKaspersky(baseURL string, countries []string, rps float64, client *http.Client, logger *zerolog.Logger) *Kaspersky {
	wanted := make(map[string]bool, len(countries))
	for _, name := range countries {
		wanted[name] = true
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &Kaspersky{
		baseURL: strings.TrimRight(baseURL, "/"),
		wanted:  wanted,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

func (k *Kaspersky) get(ctx context.Context, slug string) ([]byte, error) {
	if err := k.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := k.baseURL + slug
	k.logger.Info().Str("url", url).Msg("Fetching stats source")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// Reset drops the cached stats page so the next listing re-reads the source.
// The cache is only valid within a single ingestion run; the engine resets it
// at the start of each run.
func (k *Kaspersky) Reset() {
	k.statsPage = nil
}

func (k *Kaspersky) fetchStatsPage(ctx context.Context) ([]byte, error) {
	if k.statsPage != nil {
		return k.statsPage, nil
	}

	body, err := k.get(ctx, statsSlug)
	if err != nil {
		return nil, err
	}

	k.statsPage = body

	return body, nil
}

// ListCountries returns the configured subset of the site's authoritative
// country list.
func (k *Kaspersky) ListCountries(ctx context.Context) ([]ingest.CountryRef, error) {
	body, err := k.fetchStatsPage(ctx)
	if err != nil {
		return nil, err
	}

	match := countriesAllRe.FindSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("stats page country list: %w", coreerrors.ErrNoResults)
	}

	var all []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	if err := json.Unmarshal(match[1], &all); err != nil {
		return nil, fmt.Errorf("parse country list: %w", err)
	}

	var refs []ingest.CountryRef

	for _, c := range all {
		if k.wanted[c.Name] {
			refs = append(refs, ingest.CountryRef{ID: c.ID, Name: c.Name})
		}
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("no configured country found on stats page: %w", coreerrors.ErrNoResults)
	}

	return refs, nil
}

// ListThreatCategories returns the detection types offered by the stats page
// selector.
func (k *Kaspersky) ListThreatCategories(ctx context.Context) ([]ingest.ThreatRef, error) {
	body, err := k.fetchStatsPage(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse stats page: %w", err)
	}

	var refs []ingest.ThreatRef

	doc.Find(threatSelectQuery).Each(func(_ int, sel *goquery.Selection) {
		code, ok := sel.Attr("value")
		if !ok || code == "" {
			return
		}

		refs = append(refs, ingest.ThreatRef{
			Code: code,
			Name: strings.TrimSpace(sel.Text()),
		})
	})

	if len(refs) == 0 {
		return nil, fmt.Errorf("stats page threat selector: %w", coreerrors.ErrNoResults)
	}

	return refs, nil
}

// FetchMetricSeries returns the time series for one (country, threat)
// combination.
func (k *Kaspersky) FetchMetricSeries(ctx context.Context, countryID int64, threatCode string) ([]ingest.MetricPoint, error) {
	body, err := k.get(ctx, fmt.Sprintf(seriesSlug, strings.ToLower(threatCode), countryID))
	if err != nil {
		return nil, err
	}

	var series []struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}

	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("parse metric series: %w", err)
	}

	points := make([]ingest.MetricPoint, len(series))
	for i, s := range series {
		points[i] = ingest.MetricPoint{Date: s.Date, Count: s.Count}
	}

	return points, nil
}
