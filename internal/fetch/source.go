package fetch

import "github.com/jiwelabs/threatwatch/internal/ingest"

// Source combines the statistics and news fetchers into the single Fetcher
// the ingest engine consumes.
type Source struct {
	*Kaspersky
	*GoogleNews
}

var _ ingest.Fetcher = (*Source)(nil)

func NewSource(stats *Kaspersky, news *GoogleNews) *Source {
	return &Source{Kaspersky: stats, GoogleNews: news}
}
