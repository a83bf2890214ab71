// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gewnthar/agendawatch/models"
)

// DefaultListingURL is the Austin City Council Meeting Info Center, the page
// the meeting type table in utils was built for.
const DefaultListingURL = "https://www.austintexas.gov/department/city-council/council/council_meeting_info_center.htm"

type ServerConfig struct {
	Port string `yaml:"port"`
}

type ListingConfig struct {
	URL       string `yaml:"url"`
	UserAgent string `yaml:"user_agent"`
	// DocumentPatterns are href substrings that identify a document download
	// link that does not end in ".pdf".
	DocumentPatterns []string `yaml:"document_patterns"`
}

type HTTPConfig struct {
	PageTimeout      time.Duration `yaml:"page_timeout"`
	DocumentTimeout  time.Duration `yaml:"document_timeout"`
	MaxDocumentBytes int64         `yaml:"max_document_bytes"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite | mysql
	Path     string `yaml:"path"`   // sqlite database file
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type SummarizerConfig struct {
	Provider      string        `yaml:"provider"` // gemini | openai | none
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxInputChars int           `yaml:"max_input_chars"`
}

type ExtractorConfig struct {
	Backend       string `yaml:"backend"` // auto | pdftotext | native | none
	PdftotextPath string `yaml:"pdftotext_path"`
}

type NotifierConfig struct {
	DiscordWebhookURL string        `yaml:"discord_webhook_url"`
	Title             string        `yaml:"title"`
	MaxSummaryChars   int           `yaml:"max_summary_chars"`
	Color             int           `yaml:"color"`
	Timeout           time.Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	Pacing              time.Duration `yaml:"pacing"`
	NotifyRetryWindow   time.Duration `yaml:"notify_retry_window"`
	AgendaRefreshWindow time.Duration `yaml:"agenda_refresh_window"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Listing    ListingConfig    `yaml:"listing"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at configPath, applies defaults, then overlays
// environment variables. An empty configPath searches the usual locations and
// falls back to defaults plus environment when no file is found.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	potentialPaths := []string{
		"config.yaml",
		"config/config.yaml",
		"../config/config.yaml",
	}
	for _, p := range potentialPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Listing.URL == "" {
		c.Listing.URL = DefaultListingURL
	}
	if c.Listing.UserAgent == "" {
		c.Listing.UserAgent = "Mozilla/5.0 (agendawatch - Public Information Tool)"
	}
	if len(c.Listing.DocumentPatterns) == 0 {
		c.Listing.DocumentPatterns = []string{"document.cfm?id="}
	}
	if c.HTTP.PageTimeout == 0 {
		c.HTTP.PageTimeout = 15 * time.Second
	}
	if c.HTTP.DocumentTimeout == 0 {
		c.HTTP.DocumentTimeout = 30 * time.Second
	}
	if c.HTTP.MaxDocumentBytes == 0 {
		c.HTTP.MaxDocumentBytes = 50 << 20
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "agendawatch.db"
	}
	if c.Database.Driver == "mysql" && c.Database.Port == "" {
		c.Database.Port = "3306"
	}
	if c.Summarizer.Timeout == 0 {
		c.Summarizer.Timeout = 120 * time.Second
	}
	if c.Summarizer.MaxInputChars == 0 {
		c.Summarizer.MaxInputChars = 100000
	}
	if c.Extractor.Backend == "" {
		c.Extractor.Backend = "auto"
	}
	if c.Extractor.PdftotextPath == "" {
		c.Extractor.PdftotextPath = "pdftotext"
	}
	if c.Notifier.Title == "" {
		c.Notifier.Title = "New City Council Meeting"
	}
	if c.Notifier.MaxSummaryChars == 0 {
		c.Notifier.MaxSummaryChars = 1000 // Discord embed field limit is 1024
	}
	if c.Notifier.Color == 0 {
		c.Notifier.Color = 5814783
	}
	if c.Notifier.Timeout == 0 {
		c.Notifier.Timeout = 10 * time.Second
	}
	if c.Pipeline.Pacing == 0 {
		c.Pipeline.Pacing = 2 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnv overlays secrets and deployment-specific values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("AGENDAWATCH_LISTING_URL"); v != "" {
		c.Listing.URL = v
	}
	if v := os.Getenv("AGENDAWATCH_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("SUMMARIZER_API_KEY"); v != "" {
		c.Summarizer.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Summarizer.APIKey == "" {
		c.Summarizer.APIKey = v
		if c.Summarizer.Provider == "" {
			c.Summarizer.Provider = "gemini"
		}
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notifier.DiscordWebhookURL = v
	}
}

// Validate checks the settings required to run a cycle. Failures wrap
// models.ErrConfiguration and are fatal at startup.
func (c *Config) Validate() error {
	var problems []string

	if c.Listing.URL == "" {
		problems = append(problems, "listing.url is required")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			problems = append(problems, "database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.Host == "" || c.Database.DBName == "" {
			problems = append(problems, "database.host and database.dbname are required for mysql")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}
	switch c.Extractor.Backend {
	case "auto", "pdftotext", "native":
	case "none":
		problems = append(problems, "extractor.backend none leaves no document extractor")
	default:
		problems = append(problems, fmt.Sprintf("unknown extractor.backend %q", c.Extractor.Backend))
	}
	switch strings.ToLower(c.Summarizer.Provider) {
	case "", "none", "gemini", "openai":
	default:
		problems = append(problems, fmt.Sprintf("unknown summarizer.provider %q", c.Summarizer.Provider))
	}
	if c.Summarizer.MaxInputChars < 0 {
		problems = append(problems, "summarizer.max_input_chars must be positive")
	}
	if c.Pipeline.Pacing < 0 {
		problems = append(problems, "pipeline.pacing must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
