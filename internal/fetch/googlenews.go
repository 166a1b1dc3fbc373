package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	coreerrors "github.com/jiwelabs/threatwatch/internal/core/errors"
	"github.com/jiwelabs/threatwatch/internal/ingest"
)

const defaultNewsBaseURL = "https://news.google.com/rss/search"

// GoogleNews fetches article records from the Google News RSS search feed.
type GoogleNews struct {
	baseURL string
	country string
	parser  *gofeed.Parser
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewGoogleNews creates an RSS news fetcher for the given edition country
// code (e.g. "KE"). An empty baseURL falls back to the public feed.
func NewGoogleNews(baseURL, country string, rps float64, logger *zerolog.Logger) *GoogleNews {
	if baseURL == "" {
		baseURL = defaultNewsBaseURL
	}

	return &GoogleNews{
		baseURL: baseURL,
		country: country,
		parser:  gofeed.NewParser(),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// FetchNews returns the feed entries for one search term. Published
// timestamps are passed through raw; the ingest engine parses and filters
// them.
func (g *GoogleNews) FetchNews(ctx context.Context, searchTerm string) ([]ingest.NewsRecord, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	feedURL := fmt.Sprintf("%s?q=%s&hl=en&gl=%s&ceid=%s:en",
		g.baseURL, url.QueryEscape(searchTerm), g.country, g.country)

	g.logger.Info().Str("url", feedURL).Msg("Fetching news feed")

	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed for %q: %w", searchTerm, err)
	}

	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed for %q: %w", searchTerm, coreerrors.ErrNoResults)
	}

	records := make([]ingest.NewsRecord, 0, len(feed.Items))

	for _, item := range feed.Items {
		records = append(records, ingest.NewsRecord{
			URL:         item.Link,
			Title:       item.Title,
			Description: fragmentText(item.Description),
			Published:   item.Published,
		})
	}

	return records, nil
}

// fragmentText extracts plain text from the HTML fragment the feed puts in
// the description field. The fragment wraps the summary in an anchor; fall
// back to the whole fragment's text when no anchor is present.
func fragmentText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	if text := strings.TrimSpace(doc.Find("a").First().Text()); text != "" {
		return text
	}

	return strings.TrimSpace(doc.Text())
}
