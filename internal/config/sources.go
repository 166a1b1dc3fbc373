package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Sources describes which countries, threat feeds and news searches an
// ingestion run covers. It is loaded from a YAML file so operators can adjust
// coverage without rebuilding.
type Sources struct {
	// Countries filters the authoritative country list by display name.
	Countries []string `yaml:"countries"`

	// SearchTerms are queries issued against the news feed.
	SearchTerms []string `yaml:"searchTerms"`

	// FeedCountry is the edition code for the news feed (e.g. "KE").
	FeedCountry string `yaml:"feedCountry"`

	Stats StatsSource `yaml:"stats"`
}

// StatsSource points at the threat-statistics site.
type StatsSource struct {
	BaseURL string `yaml:"baseUrl"`
}

func defaultSources() Sources {
	return Sources{
		Countries:   []string{"Kenya", "Nigeria", "South Africa"},
		SearchTerms: []string{"cybersecurity"},
		FeedCountry: "KE",
		Stats: StatsSource{
			BaseURL: "https://cybermap.kaspersky.com",
		},
	}
}

// LoadSources reads the sources file at path, falling back to defaults when
// the file does not exist.
func LoadSources(path string) (Sources, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSources(), nil
		}

		return Sources{}, fmt.Errorf("read sources file: %w", err)
	}

	src := defaultSources()
	if err := yaml.Unmarshal(raw, &src); err != nil {
		return Sources{}, fmt.Errorf("parse sources file: %w", err)
	}

	if len(src.Countries) == 0 {
		src.Countries = defaultSources().Countries
	}

	if src.Stats.BaseURL == "" {
		src.Stats.BaseURL = defaultSources().Stats.BaseURL
	}

	return src, nil
}
