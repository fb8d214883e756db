// Package core holds configuration, configuration errors, and the small
// shared types used by every storyforge package.
package core

import (
	"crypto/tls"
	"net/http"
	"os"
	"strings"
	"time"
)

// Config holds all configuration values. Every provider is optional; a
// batch fails only when its selected provider is not configured.
type Config struct {
	// OpenAI-compatible Images API (fast and high-fidelity tiers)
	OpenAIAPIKey     string
	ImageAPIURL      string // Optional base URL override, e.g. a proxy
	FastImageModel   string
	FastImageQuality string
	HiFiImageModel   string
	HiFiImageQuality string

	// Azure OpenAI deployments serving the hosted tiers
	AzureOpenAIEndpoint       string
	AzureOpenAIKey            string
	AzureOpenAIDeployment     string
	AzureOpenAIHiFiDeployment string // Falls back to AzureOpenAIDeployment
	AzureOpenAIAPIVersion     string

	// Third-party seeded provider
	FalAPIKey  string
	FalBaseURL string
	FalModel   string

	// Directories and history
	OutputDir            string
	BrandDir             string
	DatabasePath         string
	HistoryEnabled       bool
	HistoryRetentionDays int // 0 keeps history forever

	// Scheduling and retry
	MaxParallelWorkers int
	RetryMaxAttempts   int
	RetryBaseDelay     float64 // Exponent base in seconds, 2.0 gives 1s, 2s, 4s

	// Timeouts
	ProviderTimeout time.Duration
	DownloadTimeout time.Duration

	// Pacing and caching
	ImageRequestsPerMinute int // 0 disables pacing
	DownloadCacheTTL       time.Duration

	// Post-processing
	TextOverlayEnabled bool

	// Server
	ListenAddr           string
	AllowSelfSignedCerts bool

	// Logging
	LogFile  string
	LogLevel string
	DevMode  bool
}

// Default values applied by LoadConfig.
const (
	DefaultImageModel          = "dall-e-3"
	DefaultFastQuality         = "standard"
	DefaultHiFiQuality         = "hd"
	DefaultAzureAPIVersion     = "2024-02-15-preview"
	DefaultFalBaseURL          = "https://fal.run"
	DefaultFalModel            = "fal-ai/nano-banana-pro"
	DefaultOutputDir           = "./generated_images"
	DefaultBrandDir            = "./brands"
	DefaultDatabasePath        = "./storyforge.db"
	DefaultMaxParallelWorkers  = 3
	DefaultRetryMaxAttempts    = 3
	DefaultRetryBaseDelay      = 2.0
	DefaultProviderTimeoutSecs = 180
	DefaultDownloadTimeoutSecs = 60
	DefaultDownloadCacheTTL    = 10 * time.Minute
	DefaultListenAddr          = ":8000"
	DefaultLogFile             = "storyforge.log"
)

// LoadConfig reads configuration from the environment. .env files must be
// loaded by the caller beforehand. The result is validated.
func LoadConfig() (*Config, error) {
	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		openAIKey = os.Getenv("OPENAI_KEY") // Legacy support
	}

	azureDeployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")

	cfg := &Config{
		OpenAIAPIKey:     openAIKey,
		ImageAPIURL:      strings.TrimRight(os.Getenv("IMAGE_API_URL"), "/"),
		FastImageModel:   GetEnvOrDefault("FAST_IMAGE_MODEL", DefaultImageModel),
		FastImageQuality: GetEnvOrDefault("FAST_IMAGE_QUALITY", DefaultFastQuality),
		HiFiImageModel:   GetEnvOrDefault("HIFI_IMAGE_MODEL", DefaultImageModel),
		HiFiImageQuality: GetEnvOrDefault("HIFI_IMAGE_QUALITY", DefaultHiFiQuality),

		AzureOpenAIEndpoint:       os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIKey:            os.Getenv("AZURE_OPENAI_KEY"),
		AzureOpenAIDeployment:     azureDeployment,
		AzureOpenAIHiFiDeployment: GetEnvOrDefault("AZURE_OPENAI_HIFI_DEPLOYMENT", azureDeployment),
		AzureOpenAIAPIVersion:     GetEnvOrDefault("AZURE_OPENAI_API_VERSION", DefaultAzureAPIVersion),

		FalAPIKey:  firstNonEmpty(os.Getenv("FAL_API_KEY"), os.Getenv("FAL_KEY")),
		FalBaseURL: strings.TrimRight(GetEnvOrDefault("FAL_BASE_URL", DefaultFalBaseURL), "/"),
		FalModel:   GetEnvOrDefault("FAL_MODEL", DefaultFalModel),

		OutputDir:      GetEnvOrDefault("OUTPUT_DIR", DefaultOutputDir),
		BrandDir:       GetEnvOrDefault("BRAND_DIR", DefaultBrandDir),
		DatabasePath:   GetEnvOrDefault("DATABASE_PATH", DefaultDatabasePath),
		HistoryEnabled: ParseBoolEnv("HISTORY_ENABLED", true),

		HistoryRetentionDays: ParseIntEnv("HISTORY_RETENTION_DAYS", 0),

		MaxParallelWorkers: ParseIntEnv("MAX_PARALLEL_WORKERS", DefaultMaxParallelWorkers),
		RetryMaxAttempts:   ParseIntEnv("RETRY_MAX_ATTEMPTS", DefaultRetryMaxAttempts),
		RetryBaseDelay:     ParseFloat64Env("RETRY_BASE_DELAY", DefaultRetryBaseDelay),

		ProviderTimeout: ParseDurationEnv("PROVIDER_TIMEOUT", DefaultProviderTimeoutSecs),
		DownloadTimeout: ParseDurationEnv("DOWNLOAD_TIMEOUT", DefaultDownloadTimeoutSecs),

		ImageRequestsPerMinute: ParseIntEnv("IMAGE_REQUESTS_PER_MINUTE", 0),
		DownloadCacheTTL:       ParseDurationEnv("DOWNLOAD_CACHE_TTL", int(DefaultDownloadCacheTTL/time.Second)),

		TextOverlayEnabled: ParseBoolEnv("TEXT_OVERLAY_ENABLED", false),

		ListenAddr:           GetEnvOrDefault("LISTEN_ADDR", DefaultListenAddr),
		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),

		LogFile:  GetEnvOrDefault("LOG_FILE", DefaultLogFile),
		LogLevel: os.Getenv("LOG_LEVEL"),
		DevMode:  ParseBoolEnv("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. It does not require any provider
// credentials.
func (c *Config) Validate() error {
	if c.MaxParallelWorkers < 1 || c.MaxParallelWorkers > 32 {
		return ErrInvalidValue("MAX_PARALLEL_WORKERS", c.MaxParallelWorkers, "between 1 and 32")
	}
	if c.RetryMaxAttempts < 1 || c.RetryMaxAttempts > 10 {
		return ErrInvalidValue("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts, "between 1 and 10")
	}
	if c.RetryBaseDelay < 1.0 || c.RetryBaseDelay > 10.0 {
		return ErrInvalidValue("RETRY_BASE_DELAY", c.RetryBaseDelay, "between 1.0 and 10.0")
	}
	if c.ProviderTimeout < time.Second {
		return ErrInvalidValue("PROVIDER_TIMEOUT", c.ProviderTimeout, "at least 1 second")
	}
	if c.ImageRequestsPerMinute < 0 {
		return ErrInvalidValue("IMAGE_REQUESTS_PER_MINUTE", c.ImageRequestsPerMinute, "0 (unlimited) or positive")
	}
	if c.HistoryRetentionDays < 0 {
		return ErrInvalidValue("HISTORY_RETENTION_DAYS", c.HistoryRetentionDays, "0 (keep forever) or positive")
	}
	if c.OutputDir == "" {
		return ErrMissingConfig("OUTPUT_DIR")
	}
	if c.AzureOpenAIEndpoint != "" && c.AzureOpenAIKey == "" {
		return ErrMissingAuth("azure")
	}
	return nil
}

// HasHostedProvider reports whether the fast and high-fidelity tiers can
// be served, either directly or through Azure.
func (c *Config) HasHostedProvider() bool {
	return c.OpenAIAPIKey != "" || c.UsesAzure()
}

// UsesAzure reports whether the hosted tiers go to Azure deployments.
func (c *Config) UsesAzure() bool {
	return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIKey != "" && c.AzureOpenAIDeployment != ""
}

// HasFalProvider reports whether the third-party provider is configured.
func (c *Config) HasFalProvider() bool {
	return c.FalAPIKey != ""
}

// GetHTTPClient returns an HTTP client configured with TLS settings based on AllowSelfSignedCerts.
// This should be used for all HTTP requests to external APIs to ensure TLS configuration is respected.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg != nil && cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
