// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.astral/config.yaml)
//  3. Default values
//
// Secrets (provider API keys, SMTP password, Postgres password) are read from
// the environment only and are masked in MarshalJSON/String so an accidental
// dump of the configuration never leaks them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation, checked with errors.Is().
var (
	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates an unsupported provider name.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidNamespace indicates an empty vector index namespace.
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrInvalidPostgres indicates an unusable PostgreSQL configuration.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidSessionCapacity indicates a non-positive session cache size.
	ErrInvalidSessionCapacity = errors.New("invalid session capacity")
)

// Provider identifiers for generation and embedding backends.
const (
	ProviderGroq   = "groq"   // OpenAI-compatible chat completions (generation)
	ProviderOpenAI = "openai" // native OpenAI
	ProviderJina   = "jina"   // OpenAI-compatible embeddings
	ProviderGemini = "gemini" // Google Gemini via google.golang.org/genai
)

// Defaults matching the production deployment.
const (
	DefaultGenerationModel = "llama-3.3-70b-versatile"
	DefaultEmbeddingModel  = "jina-embeddings-v2-base-en"
	DefaultGroqBaseURL     = "https://api.groq.com/openai/v1"
	DefaultJinaBaseURL     = "https://api.jina.ai/v1"

	// DefaultVectorDimension is the pgvector column width. Embeddings with a
	// different length are padded or truncated to fit; see vector.AlignVector.
	DefaultVectorDimension = 768

	// DefaultSystemPrompt keeps answers grounded in retrieved context only.
	DefaultSystemPrompt = "You are Astral Assist, an enterprise knowledge assistant. " +
		"Use only the provided context to answer the user. " +
		"Be concise. Do not list document names, scores, or raw citations. " +
		"Ask at most one brief clarifying question only if truly needed. " +
		"Do not propose emails or actions unless explicitly requested. " +
		"When information is missing, say so briefly."
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Generation backend
	GenerationProvider string  `mapstructure:"generation_provider" json:"generation_provider"`
	GenerationModel    string  `mapstructure:"generation_model" json:"generation_model"`
	GenerationBaseURL  string  `mapstructure:"generation_base_url" json:"generation_base_url"`
	GenerationAPIKey   string  `mapstructure:"generation_api_key" json:"generation_api_key"` // SENSITIVE
	Temperature        float64 `mapstructure:"temperature" json:"temperature"`

	// Embedding backend
	EmbeddingProvider string `mapstructure:"embedding_provider" json:"embedding_provider"`
	EmbeddingModel    string `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingBaseURL  string `mapstructure:"embedding_base_url" json:"embedding_base_url"`
	EmbeddingAPIKey   string `mapstructure:"embedding_api_key" json:"embedding_api_key"` // SENSITIVE

	// Retrieval
	Namespace       string `mapstructure:"namespace" json:"namespace"`
	TopK            int    `mapstructure:"top_k" json:"top_k"`
	VectorDimension int    `mapstructure:"vector_dimension" json:"vector_dimension"`
	SystemPrompt    string `mapstructure:"system_prompt" json:"system_prompt"`
	HistoryWindow   int    `mapstructure:"history_window" json:"history_window"`

	// Session memory
	SessionCapacity int `mapstructure:"session_capacity" json:"session_capacity"`

	// External call timeouts (seconds)
	EmbedTimeoutSec    int `mapstructure:"embed_timeout_sec" json:"embed_timeout_sec"`
	SearchTimeoutSec   int `mapstructure:"search_timeout_sec" json:"search_timeout_sec"`
	GenerateTimeoutSec int `mapstructure:"generate_timeout_sec" json:"generate_timeout_sec"`

	// Storage (PostgreSQL + pgvector)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HR directory collaborator
	HRBaseURL string `mapstructure:"hr_base_url" json:"hr_base_url"`

	// Email dispatch collaborator
	SMTPHost     string `mapstructure:"smtp_host" json:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port" json:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user" json:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password" json:"smtp_password"` // SENSITIVE
	EmailFrom    string `mapstructure:"email_from" json:"email_from"`
	EmailLogsDir string `mapstructure:"email_logs_dir" json:"email_logs_dir"`

	// HTTP API
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".astral"))
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults", "config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual Postgres fields.
	if err := cfg.parseDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Generation defaults (Groq-hosted Llama, matching production)
	v.SetDefault("generation_provider", ProviderGroq)
	v.SetDefault("generation_model", DefaultGenerationModel)
	v.SetDefault("generation_base_url", "")
	v.SetDefault("temperature", 0.2)

	// Embedding defaults (Jina, OpenAI-compatible endpoint)
	v.SetDefault("embedding_provider", ProviderJina)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("embedding_base_url", "")

	// Retrieval defaults
	v.SetDefault("namespace", "main")
	v.SetDefault("top_k", 5)
	v.SetDefault("vector_dimension", DefaultVectorDimension)
	v.SetDefault("system_prompt", DefaultSystemPrompt)
	v.SetDefault("history_window", 10)

	// Session memory
	v.SetDefault("session_capacity", 1024)

	// External call timeouts
	v.SetDefault("embed_timeout_sec", 30)
	v.SetDefault("search_timeout_sec", 10)
	v.SetDefault("generate_timeout_sec", 60)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "astral")
	v.SetDefault("postgres_password", "astral_dev_password")
	v.SetDefault("postgres_db_name", "astral")
	v.SetDefault("postgres_ssl_mode", "disable")

	// HR directory
	v.SetDefault("hr_base_url", "http://localhost:8000")

	// Email dispatch
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("email_logs_dir", "logs")

	// HTTP API
	v.SetDefault("listen_addr", ":5001")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_burst", 60)
	v.SetDefault("trust_proxy", false)

	// Logging
	v.SetDefault("log_json", false)
	v.SetDefault("log_level", "info")
}

// bindEnvVariables binds environment variables explicitly. Secrets are only
// ever read from the environment, never from the config file.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("generation_api_key", "GROQ_API_KEY")
	mustBind("embedding_api_key", "JINA_API_KEY")
	mustBind("smtp_password", "SMTP_PASSWORD")
	mustBind("postgres_password", "POSTGRES_PASSWORD")

	mustBind("generation_provider", "ASTRAL_GENERATION_PROVIDER")
	mustBind("generation_model", "ASTRAL_GENERATION_MODEL")
	mustBind("embedding_provider", "ASTRAL_EMBEDDING_PROVIDER")
	mustBind("embedding_model", "ASTRAL_EMBEDDING_MODEL")
	mustBind("namespace", "ASTRAL_NAMESPACE")
	mustBind("hr_base_url", "HR_API_URL")
	mustBind("listen_addr", "ASTRAL_LISTEN_ADDR")
	mustBind("cors_origins", "ASTRAL_CORS_ORIGINS")
	mustBind("trust_proxy", "ASTRAL_TRUST_PROXY")

	// NOTE: OPENAI_API_KEY and GEMINI_API_KEY are consulted as fallbacks in
	// APIKeyFor when the matching provider is selected.
}

// APIKeyFor returns the configured API key for the given provider, falling
// back to the provider's conventional environment variable.
func APIKeyFor(provider, configured string) string {
	if configured != "" {
		return configured
	}
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	case ProviderGroq:
		return os.Getenv("GROQ_API_KEY")
	case ProviderJina:
		return os.Getenv("JINA_API_KEY")
	}
	return ""
}

// PostgresConnectionString builds a postgres:// URL from the individual fields.
func (c *Config) PostgresConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   c.PostgresHost + ":" + strconv.Itoa(c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// parseDatabaseURL overrides the Postgres fields from a postgres:// URL.
// Empty input is a no-op.
func (c *Config) parseDatabaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidPostgres, u.Scheme)
	}

	c.PostgresHost = u.Hostname()
	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%w: invalid port %q", ErrInvalidPostgres, port)
		}
		c.PostgresPort = p
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if name := filepath.Base(u.Path); name != "." && name != "/" {
		c.PostgresDBName = name
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}
	return nil
}

// EmbedTimeout returns the embedding call timeout as a duration.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSec) * time.Second
}

// SearchTimeout returns the vector search timeout as a duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutSec) * time.Second
}

// GenerateTimeout returns the generation call timeout as a duration.
func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSec) * time.Second
}

// Validate fails fast on configuration the process cannot run with.
// Provider API keys are checked at client construction, not here, so
// commands that never call a provider still work without keys.
func (c *Config) Validate() error {
	switch c.GenerationProvider {
	case ProviderGroq, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: generation provider %q", ErrInvalidProvider, c.GenerationProvider)
	}
	switch c.EmbeddingProvider {
	case ProviderJina, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: embedding provider %q", ErrInvalidProvider, c.EmbeddingProvider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: %d (must be in [1, 100])", ErrInvalidTopK, c.TopK)
	}
	if c.Namespace == "" {
		return ErrInvalidNamespace
	}
	if c.SessionCapacity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSessionCapacity, c.SessionCapacity)
	}
	if c.PostgresHost == "" || c.PostgresDBName == "" {
		return fmt.Errorf("%w: host and database name are required", ErrInvalidPostgres)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully masked
// to prevent substring matching; longer secrets keep the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GenerationAPIKey = maskSecret(a.GenerationAPIKey)
	a.EmbeddingAPIKey = maskSecret(a.EmbeddingAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.SMTPPassword = maskSecret(a.SMTPPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// SlogLevel converts the configured log level string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
