package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported model providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config holds all service configuration. It is built once at startup and
// passed by value to constructors; nothing mutates it afterwards.
type Config struct {
	// UploadDir receives transient per-request image files
	UploadDir string `env:"UPLOAD_DIR" envDefault:"/app/temp-data"`

	// MaxImageSize is the largest accepted image in bytes
	MaxImageSize int64 `env:"MAX_IMAGE_SIZE" envDefault:"80000"`

	// AllowedOrigins lists CORS origins. Empty means any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8090"`

	// DataDir holds <region>-summary.txt instruction documents
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// StaticDir is served under /static
	StaticDir string `env:"STATIC_DIR" envDefault:"./static"`

	// RegionAliasesFile is an optional YAML file mapping city names to region keys
	RegionAliasesFile string `env:"REGION_ALIASES_FILE"`

	Model ModelConfig

	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ModelConfig configures the external multimodal model
type ModelConfig struct {
	Provider    string        `env:"MODEL_PROVIDER" envDefault:"openai"`
	Name        string        `env:"MODEL_NAME" envDefault:"gpt-4o-2024-08-06"`
	Temperature float64       `env:"MODEL_TEMPERATURE" envDefault:"0.5"`
	MaxTokens   int           `env:"MODEL_MAX_TOKENS" envDefault:"1024"`
	APIKey      string        `env:"MODEL_API_KEY"`
	BaseURL     string        `env:"MODEL_BASE_URL"`
	Timeout     time.Duration `env:"MODEL_TIMEOUT" envDefault:"60s"`
	MaxRetries  int           `env:"MODEL_MAX_RETRIES" envDefault:"2"`

	// ImageMaxDim bounds the longest image side sent to the model. 0 disables resizing.
	ImageMaxDim int `env:"MODEL_IMAGE_MAX_DIM" envDefault:"1024"`

	// Provider-specific keys, used when MODEL_API_KEY is empty
	OpenAIKey    string `env:"OPENAI_API_KEY"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	GeminiKey    string `env:"GEMINI_API_KEY"`
}

// Load reads an optional .env file and parses the process environment
func Load() (Config, error) {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromMap parses configuration from an explicit environment map
func FromMap(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
	c.Model.Provider = strings.ToLower(strings.TrimSpace(c.Model.Provider))
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
}

// Validate checks ranges and enumerations
func (c Config) Validate() error {
	var errs []error
	if c.MaxImageSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_SIZE must be positive, got %d", c.MaxImageSize))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("UPLOAD_DIR is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown MODEL_PROVIDER %q", c.Model.Provider))
	}
	if c.Model.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MODEL_MAX_RETRIES must not be negative, got %d", c.Model.MaxRetries))
	}
	if c.Model.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("MODEL_TIMEOUT must be positive, got %s", c.Model.Timeout))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Origins returns the CORS allow list, defaulting to any origin
func (c Config) Origins() []string {
	if len(c.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return c.AllowedOrigins
}

// ResolveAPIKey returns MODEL_API_KEY or the provider-specific key
func (m ModelConfig) ResolveAPIKey() string {
	if m.APIKey != "" {
		return m.APIKey
	}
	switch m.Provider {
	case ProviderAnthropic:
		return m.AnthropicKey
	case ProviderGemini:
		return m.GeminiKey
	default:
		return m.OpenAIKey
	}
}
