package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobhound/internal/model"
)

// Config is the root configuration for jobhound.
type Config struct {
	Schedule     string
	LogLevel     string
	ProfilePath  string // resolved against the config file's directory
	Database     DatabaseConfig
	API          APIConfig
	Scoring      ScoringConfig
	Sources      SourcesConfig
	Notification NotificationConfig
	AI           AIConfig
}

// DatabaseConfig selects and configures the store.
type DatabaseConfig struct {
	Driver      string // "sqlite" or "postgres"
	Path        string // sqlite file
	DSN         string // postgres connection string
	CleanupDays int    // postings older than this are deleted; 0 disables
}

// APIConfig is the HTTP API listen address.
type APIConfig struct {
	Host string
	Port int
}

// Addr returns host:port.
func (a APIConfig) Addr() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ScoringConfig holds the thresholds and the final score weights.
type ScoringConfig struct {
	KeywordThreshold float64 // minimum keyword score before AI scoring
	AIThreshold      float64 // minimum final score to notify
	Weights          model.Weights
}

// SourcesConfig groups the adapter settings.
type SourcesConfig struct {
	SearchIndex SearchIndexConfig
	Inbox       InboxConfig
}

// SearchIndexConfig configures the Welcome to the Jungle adapter.
type SearchIndexConfig struct {
	Enabled      bool
	BaseURL      string
	Queries      []string
	Location     string
	ContractType string
	MaxPages     int
	HitsPerPage  int
	Delay        time.Duration
	Timeout      time.Duration
}

// InboxConfig configures the LinkedIn alert e-mail adapter.
type InboxConfig struct {
	Enabled         bool
	Label           string
	MaxEmails       int
	CredentialsPath string
	TokenPath       string
	FetchDetails    bool
	Delay           time.Duration
	MaxFetches      int
	UserAgents      []string
	SessionCookie   string
	Timeout         time.Duration
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type         string `yaml:"type"`        // log, slack, discord or redis
	WebhookURL   string `yaml:"webhook_url"` // slack and discord
	RedisURL     string `yaml:"redis_url"`
	RedisChannel string `yaml:"redis_channel"`
}

// AIConfig controls the optional in-process LLM scoring pass.
type AIConfig struct {
	Enabled    bool
	BaseURL    string // defaults to https://api.openai.com/v1
	Model      string
	APIKey     string // expanded from env var by Load
	Timeout    time.Duration
	BatchSize  int
	MaxRetries int
}

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultSearchIndexURL  = "https://www.welcometothejungle.com"
	defaultCredentialsPath = "credentials/gmail_credentials.json"
	defaultTokenPath       = "credentials/gmail_token.json"
	defaultRedisChannel    = "jobhound:postings"
	slackWebhookPrefix     = "https://hooks.slack.com/"

	// EnvConfigPath overrides the default config location.
	EnvConfigPath = "JOBHOUND_CONFIG"
	// EnvSessionCookie supplies the LinkedIn session cookie when the config leaves it empty.
	EnvSessionCookie = "LINKEDIN_LI_AT_COOKIE"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Schedule     string             `yaml:"schedule"`
	LogLevel     string             `yaml:"log_level"`
	ProfilePath  string             `yaml:"profile_path"`
	Database     rawDatabaseConfig  `yaml:"database"`
	API          rawAPIConfig       `yaml:"api"`
	Scoring      rawScoringConfig   `yaml:"scoring"`
	Sources      rawSourcesConfig   `yaml:"sources"`
	Notification NotificationConfig `yaml:"notification"`
	AI           rawAIConfig        `yaml:"ai"`
}

type rawDatabaseConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	DSN         string `yaml:"dsn"`
	CleanupDays *int   `yaml:"cleanup_days"`
}

type rawAPIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type rawScoringConfig struct {
	KeywordThreshold *float64 `yaml:"keyword_prefilter_threshold"`
	AIThreshold      *float64 `yaml:"ai_scoring_threshold"`
	Weights          struct {
		Keyword *float64 `yaml:"keyword_score"`
		AI      *float64 `yaml:"ai_score"`
	} `yaml:"weights"`
}

type rawSourcesConfig struct {
	SearchIndex rawSearchIndexConfig `yaml:"search_index"`
	Inbox       rawInboxConfig       `yaml:"inbox"`
}

type rawSearchIndexConfig struct {
	Enabled      bool     `yaml:"enabled"`
	BaseURL      string   `yaml:"base_url"`
	Queries      []string `yaml:"search_queries"`
	Location     string   `yaml:"location"`
	ContractType string   `yaml:"contract_type"`
	MaxPages     int      `yaml:"max_pages"`
	HitsPerPage  int      `yaml:"hits_per_page"`
	Delay        string   `yaml:"delay_between_requests"`
	Timeout      string   `yaml:"timeout"`
}

type rawInboxConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Label           string   `yaml:"email_label"`
	MaxEmails       int      `yaml:"max_emails_per_run"`
	CredentialsPath string   `yaml:"credentials_path"`
	TokenPath       string   `yaml:"token_path"`
	FetchDetails    *bool    `yaml:"fetch_details"`
	Delay           string   `yaml:"delay_between_requests"`
	MaxFetches      *int     `yaml:"max_fetches_per_run"`
	UserAgents      []string `yaml:"user_agents"`
	SessionCookie   string   `yaml:"session_cookie"`
	Timeout         string   `yaml:"timeout"`
}

type rawAIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	Timeout    string `yaml:"timeout"`
	BatchSize  int    `yaml:"batch_size"`
	MaxRetries *int   `yaml:"max_retries"`
}

// ResolvePath picks the config file: the flag value, then $JOBHOUND_CONFIG,
// then ./config.yaml.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return "config.yaml"
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromRaw(raw rawConfig, dir string) (*Config, error) {
	si := raw.Sources.SearchIndex
	siDelay, err := durationOr(si.Delay, 2*time.Second, "sources.search_index.delay_between_requests")
	if err != nil {
		return nil, err
	}
	siTimeout, err := durationOr(si.Timeout, 20*time.Second, "sources.search_index.timeout")
	if err != nil {
		return nil, err
	}

	in := raw.Sources.Inbox
	inDelay, err := durationOr(in.Delay, 15*time.Second, "sources.inbox.delay_between_requests")
	if err != nil {
		return nil, err
	}
	inTimeout, err := durationOr(in.Timeout, 15*time.Second, "sources.inbox.timeout")
	if err != nil {
		return nil, err
	}

	aiTimeout, err := durationOr(raw.AI.Timeout, 30*time.Second, "ai.timeout")
	if err != nil {
		return nil, err
	}

	cookie := in.SessionCookie
	if cookie == "" {
		cookie = os.Getenv(EnvSessionCookie)
	}

	cfg := &Config{
		Schedule:    stringOr(raw.Schedule, "@every 6h"),
		LogLevel:    strings.ToLower(stringOr(raw.LogLevel, "info")),
		ProfilePath: resolve(dir, stringOr(raw.ProfilePath, "profile.yaml")),
		Database: DatabaseConfig{
			Driver:      strings.ToLower(stringOr(raw.Database.Driver, "sqlite")),
			Path:        resolve(dir, stringOr(raw.Database.Path, "data/jobs.db")),
			DSN:         raw.Database.DSN,
			CleanupDays: intOr(raw.Database.CleanupDays, 30),
		},
		API: APIConfig{
			Host: stringOr(raw.API.Host, "127.0.0.1"),
			Port: raw.API.Port,
		},
		Scoring: ScoringConfig{
			KeywordThreshold: floatOr(raw.Scoring.KeywordThreshold, 30),
			AIThreshold:      floatOr(raw.Scoring.AIThreshold, 70),
			Weights: model.Weights{
				Keyword: floatOr(raw.Scoring.Weights.Keyword, model.DefaultWeights.Keyword),
				AI:      floatOr(raw.Scoring.Weights.AI, model.DefaultWeights.AI),
			},
		},
		Sources: SourcesConfig{
			SearchIndex: SearchIndexConfig{
				Enabled:      si.Enabled,
				BaseURL:      strings.TrimRight(stringOr(si.BaseURL, defaultSearchIndexURL), "/"),
				Queries:      si.Queries,
				Location:     si.Location,
				ContractType: si.ContractType,
				MaxPages:     positiveOr(si.MaxPages, 5),
				HitsPerPage:  positiveOr(si.HitsPerPage, 20),
				Delay:        siDelay,
				Timeout:      siTimeout,
			},
			Inbox: InboxConfig{
				Enabled:         in.Enabled,
				Label:           stringOr(in.Label, "LinkedIn Jobs"),
				MaxEmails:       positiveOr(in.MaxEmails, 50),
				CredentialsPath: resolve(dir, firstNonEmpty(in.CredentialsPath, os.Getenv("GMAIL_CREDENTIALS_PATH"), defaultCredentialsPath)),
				TokenPath:       resolve(dir, firstNonEmpty(in.TokenPath, os.Getenv("GMAIL_TOKEN_PATH"), defaultTokenPath)),
				FetchDetails:    in.FetchDetails == nil || *in.FetchDetails,
				Delay:           inDelay,
				MaxFetches:      intOr(in.MaxFetches, 30),
				UserAgents:      in.UserAgents,
				SessionCookie:   strings.TrimSpace(cookie),
				Timeout:         inTimeout,
			},
		},
		Notification: NotificationConfig{
			Type:         strings.ToLower(stringOr(raw.Notification.Type, "log")),
			WebhookURL:   raw.Notification.WebhookURL,
			RedisURL:     raw.Notification.RedisURL,
			RedisChannel: stringOr(raw.Notification.RedisChannel, defaultRedisChannel),
		},
		AI: AIConfig{
			Enabled:    raw.AI.Enabled,
			BaseURL:    stringOr(raw.AI.BaseURL, defaultOpenAIBaseURL),
			Model:      raw.AI.Model,
			APIKey:     raw.AI.APIKey,
			Timeout:    aiTimeout,
			BatchSize:  positiveOr(raw.AI.BatchSize, 20),
			MaxRetries: intOr(raw.AI.MaxRetries, 2),
		},
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8000
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Schedule) == "" {
		errs = append(errs, errors.New("schedule must not be empty"))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", cfg.LogLevel))
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if cfg.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", cfg.Database.Driver))
	}
	if cfg.Database.CleanupDays < 0 {
		errs = append(errs, fmt.Errorf("database.cleanup_days must not be negative, got %d", cfg.Database.CleanupDays))
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port must be between 1 and 65535, got %d", cfg.API.Port))
	}

	sc := cfg.Scoring
	if sc.KeywordThreshold < 0 || sc.KeywordThreshold > 100 {
		errs = append(errs, fmt.Errorf("scoring.keyword_prefilter_threshold must be between 0 and 100, got %v", sc.KeywordThreshold))
	}
	if sc.AIThreshold < 0 || sc.AIThreshold > 100 {
		errs = append(errs, fmt.Errorf("scoring.ai_scoring_threshold must be between 0 and 100, got %v", sc.AIThreshold))
	}
	if sc.Weights.Keyword < 0 || sc.Weights.AI < 0 || sc.Weights.Keyword+sc.Weights.AI == 0 {
		errs = append(errs, errors.New("scoring.weights must be non-negative and not both zero"))
	}

	si := cfg.Sources.SearchIndex
	in := cfg.Sources.Inbox
	if !si.Enabled && !in.Enabled {
		errs = append(errs, errors.New("at least one source must be enabled"))
	}
	if si.Enabled && len(si.Queries) == 0 {
		errs = append(errs, errors.New("sources.search_index.search_queries must not be empty when enabled"))
	}
	if in.Enabled && in.MaxFetches < 0 {
		errs = append(errs, fmt.Errorf("sources.inbox.max_fetches_per_run must not be negative, got %d", in.MaxFetches))
	}

	n := cfg.Notification
	switch n.Type {
	case "log":
	case "slack":
		if !strings.HasPrefix(n.WebhookURL, slackWebhookPrefix) {
			errs = append(errs, fmt.Errorf("notification.webhook_url must start with %s", slackWebhookPrefix))
		}
	case "discord":
		if n.WebhookURL == "" {
			errs = append(errs, errors.New("notification.webhook_url is required when type is \"discord\""))
		}
	case "redis":
		if n.RedisURL == "" {
			errs = append(errs, errors.New("notification.redis_url is required when type is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("notification.type must be log, slack, discord or redis, got %q", n.Type))
	}

	if cfg.AI.Enabled {
		if cfg.AI.APIKey == "" {
			errs = append(errs, errors.New("ai.api_key is required when ai.enabled is true"))
		}
		if cfg.AI.Model == "" {
			errs = append(errs, errors.New("ai.model is required when ai.enabled is true"))
		}
		if cfg.AI.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("ai.max_retries must not be negative, got %d", cfg.AI.MaxRetries))
		}
	}

	return errors.Join(errs...)
}

func durationOr(s string, def time.Duration, field string) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %v", field, d)
	}
	return d, nil
}

func stringOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func positiveOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// resolve makes a relative path relative to dir.
func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
