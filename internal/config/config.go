package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Secrets  SecretsConfig  `yaml:"-" envconfig:"SECRETS"`
	Upstream UpstreamConfig `yaml:"upstream" envconfig:"UPSTREAM"`
	Mail     MailConfig     `yaml:"mail" envconfig:"MAIL"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecretsConfig holds the cryptographic material and provider credentials.
// Environment-only: these never come from the YAML overlay, never appear in
// logs, and absence of any secret required by an active code path is a
// configuration error rather than a silent fallback.
type SecretsConfig struct {
	// KeyDerivationSecret seeds the payload cipher key (SHA-256 of this
	// string). It must match the secret embedded in the desktop engine.
	KeyDerivationSecret string `envconfig:"KEY_DERIVATION_SECRET"`
	// NonceSeed derives the fixed AEAD nonce shared with the engine.
	NonceSeed string `envconfig:"NONCE_SEED" default:"ug_lic_nonce"`
	// SigningKeyHex is the hex-encoded 32-byte Ed25519 seed.
	SigningKeyHex string `envconfig:"PRIVATE_KEY_HEX"`
	// WebhookSecret is the shared secret for the payment provider's
	// delivery-signature HMAC.
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
}

// UpstreamConfig configures the outbound purchase-verification call. An empty
// APIKey switches the service into the restricted development mode that only
// accepts the sentinel test key.
type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://api.lemonsqueezy.com/v1"`
	APIKey         string        `yaml:"-" envconfig:"API_KEY"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"10s"`
}

// MailConfig configures outbound license delivery for the webhook path.
type MailConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://api.resend.com"`
	APIKey         string        `yaml:"-" envconfig:"API_KEY"`
	FromAddress    string        `yaml:"from_address" envconfig:"FROM_ADDRESS" default:"Undergrowth <noreply@undergrowth.io>"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"10s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"20"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"10"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/license-server.log"`
}

// envPrefix namespaces all environment variables, e.g. UG_SERVER_PORT,
// UG_SECRETS_PRIVATE_KEY_HEX.
const envPrefix = "UG"

// Load loads configuration from environment variables and an optional YAML
// overlay. Environment values take precedence.
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Overlay non-secret settings from the config file if present
	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Server.Port == 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if envConfig.Server.ReadTimeout == 0 {
		envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if envConfig.Server.WriteTimeout == 0 {
		envConfig.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if envConfig.Upstream.BaseURL == "" {
		envConfig.Upstream.BaseURL = fileConfig.Upstream.BaseURL
	}
	if envConfig.Mail.BaseURL == "" {
		envConfig.Mail.BaseURL = fileConfig.Mail.BaseURL
	}
	if envConfig.Mail.FromAddress == "" {
		envConfig.Mail.FromAddress = fileConfig.Mail.FromAddress
	}
	if envConfig.Logging.Level == "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	return envConfig
}

// findConfigFile returns the path to the config file, if any
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// validate validates the non-secret configuration. Secret presence is checked
// per code path at issuance time so that, for example, a manual-only
// deployment can omit the mail key.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Upstream.RequestTimeout <= 0 {
		return fmt.Errorf("upstream request timeout must be positive")
	}

	if c.Secrets.NonceSeed == "" {
		return fmt.Errorf("nonce seed must not be empty")
	}

	return nil
}

// DevMode reports whether purchase verification is unconfigured and the
// service runs in the restricted sentinel-key development mode.
func (c *Config) DevMode() bool {
	return c.Upstream.APIKey == ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		Secrets: SecretsConfig{
			NonceSeed: "ug_lic_nonce",
		},
		Upstream: UpstreamConfig{
			BaseURL:        "https://api.lemonsqueezy.com/v1",
			RequestTimeout: 10 * time.Second,
		},
		Mail: MailConfig{
			BaseURL:        "https://api.resend.com",
			FromAddress:    "Undergrowth <noreply@undergrowth.io>",
			RequestTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
