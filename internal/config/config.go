package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the application.
type Config struct {
	// Model endpoint (OpenAI-compatible chat completions).
	ModelAPIURL string
	ModelAPIKey string // optional for local endpoints
	ModelName   string

	// Provider selects the text generator: "openai" (default) or "gemini".
	Provider     string
	GeminiAPIKey string

	// AQIToken authenticates against the air-quality feed ("demo" works for testing).
	AQIToken string

	// Telegram Config
	TelegramBotToken    string
	TelegramWebhookURL  string
	TelegramAllowUserID int64

	// HTTP API
	ServerAddr string
	JWTSecret  string

	MetricsDBPath string

	Tunables Tunables
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	modelAPIURL := os.Getenv("MODEL_API_URL")
	if modelAPIURL == "" {
		return nil, fmt.Errorf("MODEL_API_URL environment variable not set")
	}

	provider := os.Getenv("MODEL_PROVIDER")
	if provider == "" {
		provider = "openai"
	}

	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	if provider == "gemini" && geminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	modelName := os.Getenv("MODEL_NAME")
	if modelName == "" {
		modelName = "local-model"
	}

	aqiToken := os.Getenv("AQI_TOKEN")
	if aqiToken == "" {
		aqiToken = "demo"
	}

	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = ":8080"
	}

	metricsDBPath := os.Getenv("METRICS_DB_PATH")
	if metricsDBPath == "" {
		metricsDBPath = "data/metrics.db"
	}

	var telegramAllowUserID int64
	if s := os.Getenv("TELEGRAM_ALLOW_USER_ID"); s != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOW_USER_ID: %w", err)
		}
		telegramAllowUserID = id
	}

	tunables := DefaultTunables()
	if path := os.Getenv("TUNABLES_PATH"); path != "" {
		t, err := LoadTunables(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load tunables: %w", err)
		}
		tunables = t
	}

	return &Config{
		ModelAPIURL:         modelAPIURL,
		ModelAPIKey:         os.Getenv("MODEL_API_KEY"),
		ModelName:           modelName,
		Provider:            provider,
		GeminiAPIKey:        geminiAPIKey,
		AQIToken:            aqiToken,
		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:  os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowUserID: telegramAllowUserID,
		ServerAddr:          serverAddr,
		JWTSecret:           os.Getenv("JWT_SECRET"),
		MetricsDBPath:       metricsDBPath,
		Tunables:            tunables,
	}, nil
}

// Tunables are pacing, retry, and timeout constants. They vary between
// deployments (local models tolerate longer timeouts, shared geocoders need
// slower pacing), so they live in configuration rather than code.
type Tunables struct {
	// Geocoder queue pacing.
	QueueMinDelayMs    int `yaml:"queue_min_delay_ms"`
	QueueSettleDelayMs int `yaml:"queue_settle_delay_ms"`
	QueueItemTimeoutMs int `yaml:"queue_item_timeout_ms"`

	// Location resolution.
	GeocodeAttempts    int `yaml:"geocode_attempts"`
	GeocodeRetryBaseMs int `yaml:"geocode_retry_base_ms"`
	GeocodeTimeoutMs   int `yaml:"geocode_timeout_ms"`
	IPLookupTimeoutMs  int `yaml:"ip_lookup_timeout_ms"`

	// Weather / air quality.
	EnvFetchTimeoutMs int `yaml:"env_fetch_timeout_ms"`

	// Model calls.
	ModelTimeoutMs   int `yaml:"model_timeout_ms"`
	ModelAttempts    int `yaml:"model_attempts"`
	ModelRetryBaseMs int `yaml:"model_retry_base_ms"`

	// Fallback location when every resolution stage fails.
	DefaultCity      string  `yaml:"default_city"`
	DefaultCountry   string  `yaml:"default_country"`
	DefaultLatitude  float64 `yaml:"default_latitude"`
	DefaultLongitude float64 `yaml:"default_longitude"`
}

// DefaultTunables returns defaults matching the reference deployment.
func DefaultTunables() Tunables {
	return Tunables{
		QueueMinDelayMs:    1200,
		QueueSettleDelayMs: 300,
		QueueItemTimeoutMs: 60_000,
		GeocodeAttempts:    2,
		GeocodeRetryBaseMs: 1100,
		GeocodeTimeoutMs:   15_000,
		IPLookupTimeoutMs:  10_000,
		EnvFetchTimeoutMs:  10_000,
		ModelTimeoutMs:     45_000,
		ModelAttempts:      3,
		ModelRetryBaseMs:   1500,
		DefaultCity:        "London",
		DefaultCountry:     "United Kingdom",
		DefaultLatitude:    51.5,
		DefaultLongitude:   -0.12,
	}
}

// LoadTunables reads a YAML tunables file, overlaying it on the defaults so a
// partial file only overrides the keys it names.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read tunables file: %w", err)
	}

	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to parse tunables file: %w", err)
	}

	return t, nil
}

// Ms converts a millisecond tunable to a time.Duration.
func Ms(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
