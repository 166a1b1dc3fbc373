package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	SourcesPath string `env:"SOURCES_PATH" envDefault:"./sources.yaml"`

	// News older than this rolling window is never ingested.
	NewsCutoffWeeks int `env:"NEWS_CUTOFF_WEEKS" envDefault:"24"`

	// ScrapeInterval > 0 re-runs ingestion on a ticker; zero means run once.
	ScrapeInterval time.Duration `env:"SCRAPE_INTERVAL" envDefault:"0"`

	FetchRPS     float64       `env:"FETCH_RPS" envDefault:"2"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	HealthPort   int           `env:"HEALTH_PORT" envDefault:"8080"`

	// ReportDates bounds the date window printed by the report command.
	ReportDates int `env:"REPORT_DATES" envDefault:"7"`
}

// NewsCutoff returns the rolling cutoff window as a duration.
func (c *Config) NewsCutoff() time.Duration {
	return time.Duration(c.NewsCutoffWeeks) * 7 * 24 * time.Hour
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
