package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"threatscope/internal/scoring"
)

type Config struct {
	Env            string
	ListenAddr     string
	DatabaseURL    string
	MigrateOnStart bool

	TorProxyURL    string
	FetchTimeout   time.Duration
	FetchMaxBytes  int64
	FetchUserAgent string
	OverlayMarker  string

	ScoringPolicy string
	CatalogPath   string

	GroqAPIKey     string
	GroqModel      string
	GroqBaseURL    string
	InsightTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel  string
	LogFormat string
}

// ErrNoDatabase is returned by Load when DATABASE_URL is unset. It is not
// fatal: callers that can run without persistence may ignore it.
var ErrNoDatabase = errors.New("DATABASE_URL not set")

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the environment, after merging a .env file in the working
// directory when one exists.
func Load() (Config, error) { return LoadWith(nil) }

// LoadWith is Load with overrides applied before validation, so command-line
// flags can replace a bad environment value.
func LoadWith(override func(*Config)) (Config, error) {
	_ = godotenv.Load()
	cfg := Config{
		Env:            getenv("APP_ENV", "development"),
		ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrateOnStart: getenvBool("MIGRATE_ON_START", false),

		TorProxyURL:    getenv("TOR_PROXY_URL", "socks5h://127.0.0.1:9050"),
		FetchTimeout:   getenvDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchMaxBytes:  int64(getenvInt("FETCH_MAX_BYTES", 10<<20)),
		FetchUserAgent: getenv("FETCH_USER_AGENT", "Mozilla/5.0"),
		OverlayMarker:  getenv("OVERLAY_MARKER", ".onion"),

		ScoringPolicy: getenv("SCORING_POLICY", "weighted"),
		CatalogPath:   os.Getenv("CATALOG_PATH"),

		GroqAPIKey:     os.Getenv("GROQ_API_KEY"),
		GroqModel:      getenv("GROQ_MODEL", "llama3-8b-8192"),
		GroqBaseURL:    getenv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		InsightTimeout: getenvDuration("INSIGHT_TIMEOUT", 30*time.Second),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "threatscope.analyses"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", defaultLogFormat(getenv("APP_ENV", "development"))),
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.DatabaseURL == "" {
		return cfg, ErrNoDatabase
	}
	return cfg, nil
}

// Validate reports settings that make the pipeline unusable.
func (c Config) Validate() error {
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive (got %s)", c.FetchTimeout)
	}
	if c.FetchMaxBytes <= 0 {
		return fmt.Errorf("FETCH_MAX_BYTES must be positive (got %d)", c.FetchMaxBytes)
	}
	if strings.TrimSpace(c.OverlayMarker) == "" {
		return errors.New("OVERLAY_MARKER cannot be empty")
	}
	if _, err := scoring.ByName(c.ScoringPolicy); err != nil {
		return fmt.Errorf("SCORING_POLICY: %w", err)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func defaultLogFormat(env string) string {
	if env == "production" {
		return "json"
	}
	return "text"
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
