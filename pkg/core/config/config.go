// Package config loads the lookup tool's settings from YAML with environment
// overrides. The resulting Config is passed explicitly to every component.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"financial_lookup/pkg/core/financial"

	"gopkg.in/yaml.v2"
)

// DefaultPath is where cmd binaries look for the config file.
const DefaultPath = "config/lookup.yaml"

// Config holds all settings.
type Config struct {
	Server ServerConfig `yaml:"server"`
	SEC    SECConfig    `yaml:"sec"`
	Market MarketConfig `yaml:"market"`
	News   NewsConfig   `yaml:"news"`
	LLM    LLMConfig    `yaml:"llm"`
	Cache  CacheConfig  `yaml:"cache"`
	Report ReportConfig `yaml:"report"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	StaticDir  string `yaml:"static_dir"`
	MaxResults int    `yaml:"max_results"` // search suggestions per query
}

// SECConfig configures the EDGAR client. SEC rejects requests without a
// descriptive User-Agent.
type SECConfig struct {
	DataURL   string        `yaml:"data_url"`   // https://data.sec.gov
	FilesURL  string        `yaml:"files_url"`  // https://www.sec.gov
	UserAgent string        `yaml:"user_agent"` // "App Name (contact@example.com)"
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second
}

// MarketConfig configures the Alpha Vantage client.
type MarketConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	MinDelay time.Duration `yaml:"min_delay"` // spacing between requests
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// NewsConfig configures the Serper news client.
type NewsConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Results  int           `yaml:"results"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LLMConfig selects and configures the summarizer provider.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // "gemini" or "openrouter"
	Model       string        `yaml:"model"`    // empty = provider default
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"` // OpenRouter only
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	PromptDir   string        `yaml:"prompt_dir"` // optional override templates
}

// CacheConfig configures the company lookup cache.
type CacheConfig struct {
	Dir         string        `yaml:"dir"`
	DatabaseURL string        `yaml:"database_url"` // optional Postgres backing
	AnalysisTTL time.Duration `yaml:"analysis_ttl"` // 0 = keep forever
}

// ReportConfig holds the extraction settings.
type ReportConfig struct {
	FiscalYear    int    `yaml:"fiscal_year"`    // 0 = current calendar year
	CataloguePath string `yaml:"catalogue_path"` // empty = built-in catalogue
}

// Default returns a Config with working defaults for every field except API keys.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			StaticDir:  "web",
			MaxResults: 10,
		},
		SEC: SECConfig{
			DataURL:   "https://data.sec.gov",
			FilesURL:  "https://www.sec.gov",
			UserAgent: "Financial Lookup App (contact@example.com)",
			Timeout:   30 * time.Second,
			RateLimit: 8,
		},
		Market: MarketConfig{
			BaseURL:  "https://www.alphavantage.co/query",
			Timeout:  10 * time.Second,
			MinDelay: 200 * time.Millisecond,
			CacheTTL: 5 * time.Minute,
		},
		News: NewsConfig{
			BaseURL:  "https://google.serper.dev",
			Results:  5,
			Timeout:  30 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Temperature: 0.7,
			MaxTokens:   1000,
			Timeout:     60 * time.Second,
		},
		Cache: CacheConfig{
			Dir:         ".cache/lookup",
			AnalysisTTL: 24 * time.Hour,
		},
	}
}

// Load reads a YAML config file over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.Report.FiscalYear == 0 {
		cfg.Report.FiscalYear = time.Now().Year()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. godotenv has
// already merged any .env file into the environment by the time this runs.
func applyEnvOverrides(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("LOOKUP_ADDR", &cfg.Server.Addr)
	setString("SEC_USER_AGENT", &cfg.SEC.UserAgent)
	setString("ALPHA_VANTAGE_API_KEY", &cfg.Market.APIKey)
	setString("SERPER_API_KEY", &cfg.News.APIKey)
	setString("LLM_PROVIDER", &cfg.LLM.Provider)
	setString("LLM_MODEL", &cfg.LLM.Model)
	setString("CACHE_DIR", &cfg.Cache.Dir)
	setString("DATABASE_URL", &cfg.Cache.DatabaseURL)
	setString("CATALOGUE_PATH", &cfg.Report.CataloguePath)

	// Provider-specific keys only fill an empty api_key.
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "gemini":
			setString("GEMINI_API_KEY", &cfg.LLM.APIKey)
		case "openrouter":
			setString("OPENROUTER_API_KEY", &cfg.LLM.APIKey)
		}
	}

	if v := os.Getenv("FISCAL_YEAR"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FISCAL_YEAR %q: %w", v, err)
		}
		cfg.Report.FiscalYear = year
	}

	return nil
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.SEC.UserAgent == "" {
		return fmt.Errorf("sec.user_agent is required by SEC fair-access rules")
	}
	if c.SEC.RateLimit <= 0 {
		return fmt.Errorf("sec.rate_limit must be positive, got %v", c.SEC.RateLimit)
	}
	if y := c.Report.FiscalYear; y < 1000 || y > 9999 {
		return fmt.Errorf("report.fiscal_year must be a 4-digit year, got %d", y)
	}
	switch c.LLM.Provider {
	case "gemini", "openrouter", "":
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	return nil
}

// Catalogue loads the configured metric catalogue, or the built-in one.
func (c *Config) Catalogue() (*financial.Catalogue, error) {
	if c.Report.CataloguePath == "" {
		return financial.DefaultCatalogue(), nil
	}
	return financial.LoadCatalogue(c.Report.CataloguePath)
}

// Extractor builds the extractor for the configured fiscal year. year overrides
// the configured year when non-zero.
func (c *Config) Extractor(year int) (*financial.Extractor, error) {
	cat, err := c.Catalogue()
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = c.Report.FiscalYear
	}
	return financial.NewExtractor(cat, year)
}
