package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the speech bridge service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// fish.audio API configuration. The API key is the only required
	// credential; everything else carries a workable default.
	FishAudioAPIKey  string `envconfig:"FISHAUDIO_API_KEY" required:"true"`
	FishAudioBaseURL string `envconfig:"FISHAUDIO_BASE_URL" default:"https://api.fish.audio"`
	FishAudioLiveURL string `envconfig:"FISHAUDIO_LIVE_URL" default:"wss://api.fish.audio/v1/tts/live"`

	// Synthesis defaults applied to every session
	Language    string  `envconfig:"FISHAUDIO_LANGUAGE" default:"en"`      // Language code (en, ja, zh, etc.)
	ReferenceID string  `envconfig:"FISHAUDIO_REFERENCE_ID" default:""`    // Voice reference ID, empty for default voice
	Temperature float64 `envconfig:"FISHAUDIO_TEMPERATURE" default:"0.7"`  // Sampling temperature in [0.0, 1.0]
	TopP        float64 `envconfig:"FISHAUDIO_TOP_P" default:"0.7"`        // Nucleus sampling in [0.0, 1.0]
	ChunkLength int     `envconfig:"FISHAUDIO_CHUNK_LENGTH" default:"120"` // Chunking hint in characters, 0 to omit
	Latency     string  `envconfig:"FISHAUDIO_LATENCY" default:""`         // "", "normal" or "balanced"
	Backend     string  `envconfig:"FISHAUDIO_BACKEND" default:"s1"`       // Backend model (s1, speech-1.5, etc.)

	// Timeouts in seconds
	RequestTimeout   int `envconfig:"FISHAUDIO_REQUEST_TIMEOUT" default:"30"`   // Batched synthesis HTTP timeout
	HandshakeTimeout int `envconfig:"FISHAUDIO_HANDSHAKE_TIMEOUT" default:"10"` // WebSocket handshake timeout

	// Resilience configuration for the gateway handlers. The synthesis
	// client itself never retries.
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum batched synthesis attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the constraints that envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.FishAudioAPIKey == "" {
		return fmt.Errorf("FISHAUDIO_API_KEY is required")
	}
	if c.Temperature < 0.0 || c.Temperature > 1.0 {
		return fmt.Errorf("FISHAUDIO_TEMPERATURE must be in [0.0, 1.0], got %v", c.Temperature)
	}
	if c.TopP < 0.0 || c.TopP > 1.0 {
		return fmt.Errorf("FISHAUDIO_TOP_P must be in [0.0, 1.0], got %v", c.TopP)
	}
	if c.ChunkLength < 0 {
		return fmt.Errorf("FISHAUDIO_CHUNK_LENGTH must not be negative, got %d", c.ChunkLength)
	}
	switch c.Latency {
	case "", "normal", "balanced":
	default:
		return fmt.Errorf("FISHAUDIO_LATENCY must be empty, \"normal\" or \"balanced\", got %q", c.Latency)
	}
	return nil
}

// RequestTimeoutDuration returns the batched synthesis timeout as a duration.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// HandshakeTimeoutDuration returns the WebSocket handshake timeout as a duration.
func (c *Config) HandshakeTimeoutDuration() time.Duration {
	return time.Duration(c.HandshakeTimeout) * time.Second
}
