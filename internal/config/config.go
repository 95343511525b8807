package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ExtractModeLocal  = "local"
	ExtractModeRemote = "remote"

	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"

	LLMProviderOllama = "ollama"
	LLMProviderGemini = "gemini"
	LLMProviderNone   = "none"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	ExtractMode           string `yaml:"extract_mode"`
	ExtractMaxBytes       int64  `yaml:"extract_max_bytes"`
	ExtractTimeoutSeconds int    `yaml:"extract_timeout_seconds"`
	PDFEngine             string `yaml:"pdf_engine"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	MaxInFlight    int     `yaml:"max_in_flight"`

	PostgresDSN string `yaml:"postgres_dsn"`

	NATSURL                   string `yaml:"nats_url"`
	NATSSubject               string `yaml:"nats_subject"`
	NATSQueueGroup            string `yaml:"nats_queue_group"`
	NATSRequestTimeoutSeconds int    `yaml:"nats_request_timeout_seconds"`

	StorageBackend string `yaml:"storage_backend"`
	StoragePath    string `yaml:"storage_path"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Region       string `yaml:"s3_region"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3PathStyle    bool   `yaml:"s3_path_style"`

	LLMProvider    string `yaml:"llm_provider"`
	OllamaURL      string `yaml:"ollama_url"`
	OllamaGenModel string `yaml:"ollama_gen_model"`
	GeminiAPIKey   string `yaml:"gemini_api_key"`
	GeminiModel    string `yaml:"gemini_model"`

	RetryMaxAttempts int  `yaml:"retry_max_attempts"`
	BreakerEnabled   bool `yaml:"breaker_enabled"`

	WorkerMetricsPort string `yaml:"worker_metrics_port"`
	WorkerConcurrency int    `yaml:"worker_concurrency"`
}

func Defaults() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		ExtractMode:           ExtractModeLocal,
		ExtractMaxBytes:       50 << 20,
		ExtractTimeoutSeconds: 60,
		PDFEngine:             "ledongthuc",

		RateLimitRPS:   20,
		RateLimitBurst: 40,
		MaxInFlight:    32,

		NATSURL:                   "nats://localhost:4222",
		NATSSubject:               "doctext.extract",
		NATSQueueGroup:            "workers",
		NATSRequestTimeoutSeconds: 60,

		StorageBackend: StorageBackendLocal,
		StoragePath:    "./data/staging",
		S3Region:       "us-east-1",

		LLMProvider:    LLMProviderOllama,
		OllamaURL:      "http://localhost:11434",
		OllamaGenModel: "llama3.1:8b",
		GeminiModel:    "gemini-1.5-flash",

		RetryMaxAttempts: 3,
		BreakerEnabled:   true,

		WorkerMetricsPort: "9090",
	}
}

// Load resolves configuration from defaults, an optional YAML file named by
// CONFIG_FILE, an optional .env file and finally the process environment.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	dotenv := mustEnv("DOTENV_FILE", ".env")
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.APIPort = mustEnv("API_PORT", c.APIPort)
	c.LogLevel = mustEnv("LOG_LEVEL", c.LogLevel)

	c.ExtractMode = strings.ToLower(mustEnv("EXTRACT_MODE", c.ExtractMode))
	c.ExtractMaxBytes = mustEnvInt64("EXTRACT_MAX_BYTES", c.ExtractMaxBytes)
	c.ExtractTimeoutSeconds = mustEnvInt("EXTRACT_TIMEOUT_SECONDS", c.ExtractTimeoutSeconds)
	c.PDFEngine = mustEnv("PDF_ENGINE", c.PDFEngine)

	c.RateLimitRPS = mustEnvFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = mustEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.MaxInFlight = mustEnvInt("MAX_IN_FLIGHT", c.MaxInFlight)

	c.PostgresDSN = mustEnv("POSTGRES_DSN", c.PostgresDSN)

	c.NATSURL = mustEnv("NATS_URL", c.NATSURL)
	c.NATSSubject = mustEnv("NATS_SUBJECT", c.NATSSubject)
	c.NATSQueueGroup = mustEnv("NATS_QUEUE_GROUP", c.NATSQueueGroup)
	c.NATSRequestTimeoutSeconds = mustEnvInt("NATS_REQUEST_TIMEOUT_SECONDS", c.NATSRequestTimeoutSeconds)

	c.StorageBackend = strings.ToLower(mustEnv("STORAGE_BACKEND", c.StorageBackend))
	c.StoragePath = mustEnv("STORAGE_PATH", c.StoragePath)
	c.S3Bucket = mustEnv("S3_BUCKET", c.S3Bucket)
	c.S3Region = mustEnv("S3_REGION", c.S3Region)
	c.S3Endpoint = mustEnv("S3_ENDPOINT", c.S3Endpoint)
	c.S3AccessKey = mustEnv("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = mustEnv("S3_SECRET_KEY", c.S3SecretKey)
	c.S3PathStyle = mustEnvBool("S3_PATH_STYLE", c.S3PathStyle)

	c.LLMProvider = strings.ToLower(mustEnv("LLM_PROVIDER", c.LLMProvider))
	c.OllamaURL = mustEnv("OLLAMA_URL", c.OllamaURL)
	c.OllamaGenModel = mustEnv("OLLAMA_GEN_MODEL", c.OllamaGenModel)
	c.GeminiAPIKey = mustEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = mustEnv("GEMINI_MODEL", c.GeminiModel)

	c.RetryMaxAttempts = mustEnvInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.BreakerEnabled = mustEnvBool("BREAKER_ENABLED", c.BreakerEnabled)

	c.WorkerMetricsPort = mustEnv("WORKER_METRICS_PORT", c.WorkerMetricsPort)
	c.WorkerConcurrency = mustEnvInt("WORKER_CONCURRENCY", c.WorkerConcurrency)
}

func (c Config) Validate() error {
	var errs []error
	switch c.ExtractMode {
	case ExtractModeLocal, ExtractModeRemote:
	default:
		errs = append(errs, fmt.Errorf("EXTRACT_MODE must be %q or %q, got %q", ExtractModeLocal, ExtractModeRemote, c.ExtractMode))
	}
	switch c.StorageBackend {
	case StorageBackendLocal:
	case StorageBackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	switch c.LLMProvider {
	case LLMProviderOllama, LLMProviderNone:
	case LLMProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.ExtractMaxBytes <= 0 {
		errs = append(errs, errors.New("EXTRACT_MAX_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
