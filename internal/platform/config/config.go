package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	// WriteTimeout bounds a whole response, including page recognition.
	WriteTimeout time.Duration
}

// Verification holds the decision thresholds.
type Verification struct {
	AcceptanceThreshold float64
	FuzzyThreshold      float64
	SimilarityMetric    string
	DocumentPass        bool
	Informational       []string
}

// Quality holds image metric bounds.
type Quality struct {
	Sharpness     float64
	BrightnessMin float64
	BrightnessMax float64
	ContrastMin   float64
}

// Issuer describes the signing identity.
type Issuer struct {
	DID      string
	Name     string
	KeyFile  string
	TrustURL string
}

// Storage selects the artifact cache backend.
type Storage struct {
	Backend     string
	ArtifactTTL time.Duration
	MaxEntries  int
}

// Redis configures the optional Redis backend.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Audit selects where audit events go.
type Audit struct {
	Sink    string
	Brokers []string
	Topic   string
}

// OCR configures the external recognizer.
type OCR struct {
	CredentialsFile string
}

// Assist configures LLM-assisted extraction.
type Assist struct {
	APIKey string
	Model  string
}

// Logging configures slog.
type Logging struct {
	Level  string
	Format string
}

// Config is the full runtime configuration.
type Config struct {
	Server       Server
	Verification Verification
	Quality      Quality
	Issuer       Issuer
	Storage      Storage
	Redis        Redis
	Audit        Audit
	OCR          OCR
	Assist       Assist
	Logging      Logging
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", ShutdownTimeout: 10 * time.Second, WriteTimeout: 2 * time.Minute},
		Verification: Verification{
			AcceptanceThreshold: 0.85,
			FuzzyThreshold:      85,
			SimilarityMetric:    "levenshtein",
			DocumentPass:        true,
		},
		Quality: Quality{Sharpness: 100, BrightnessMin: 50, BrightnessMax: 200, ContrastMin: 30},
		Issuer: Issuer{
			DID:     "did:key:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH",
			Name:    "Document Verification Service",
			KeyFile: "attestor-key.json",
		},
		Storage: Storage{Backend: "memory", ArtifactTTL: 24 * time.Hour, MaxEntries: 10000},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Audit:   Audit{Sink: "log", Topic: "attestor.audit"},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// FromEnv overlays ATTESTOR_* environment variables on the defaults so main
// stays lean. Malformed numbers are reported rather than ignored.
func FromEnv() (Config, error) {
	cfg := Default()
	e := envReader{}

	cfg.Server.Addr = e.str("ATTESTOR_ADDR", cfg.Server.Addr)
	cfg.Server.ShutdownTimeout = e.duration("ATTESTOR_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.WriteTimeout = e.duration("ATTESTOR_WRITE_TIMEOUT", cfg.Server.WriteTimeout)

	cfg.Verification.AcceptanceThreshold = e.float("ATTESTOR_ACCEPTANCE_THRESHOLD", cfg.Verification.AcceptanceThreshold)
	cfg.Verification.FuzzyThreshold = e.float("ATTESTOR_FUZZY_THRESHOLD", cfg.Verification.FuzzyThreshold)
	cfg.Verification.SimilarityMetric = e.str("ATTESTOR_SIMILARITY_METRIC", cfg.Verification.SimilarityMetric)
	cfg.Verification.DocumentPass = e.boolean("ATTESTOR_DOCUMENT_PASS", cfg.Verification.DocumentPass)
	cfg.Verification.Informational = e.list("ATTESTOR_INFORMATIONAL_FIELDS", cfg.Verification.Informational)

	cfg.Quality.Sharpness = e.float("ATTESTOR_SHARPNESS_THRESHOLD", cfg.Quality.Sharpness)
	cfg.Quality.BrightnessMin = e.float("ATTESTOR_BRIGHTNESS_MIN", cfg.Quality.BrightnessMin)
	cfg.Quality.BrightnessMax = e.float("ATTESTOR_BRIGHTNESS_MAX", cfg.Quality.BrightnessMax)
	cfg.Quality.ContrastMin = e.float("ATTESTOR_CONTRAST_MIN", cfg.Quality.ContrastMin)

	cfg.Issuer.DID = e.str("ATTESTOR_ISSUER_DID", cfg.Issuer.DID)
	cfg.Issuer.Name = e.str("ATTESTOR_ISSUER_NAME", cfg.Issuer.Name)
	cfg.Issuer.KeyFile = e.str("ATTESTOR_KEY_FILE", cfg.Issuer.KeyFile)
	cfg.Issuer.TrustURL = e.str("ATTESTOR_TRUSTED_JWKS_URL", cfg.Issuer.TrustURL)

	cfg.Storage.Backend = e.str("ATTESTOR_STORAGE", cfg.Storage.Backend)
	cfg.Storage.ArtifactTTL = e.duration("ATTESTOR_ARTIFACT_TTL", cfg.Storage.ArtifactTTL)
	cfg.Storage.MaxEntries = e.integer("ATTESTOR_ARTIFACT_MAX_ENTRIES", cfg.Storage.MaxEntries)

	cfg.Redis.URL = e.str("ATTESTOR_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.PoolSize = e.integer("ATTESTOR_REDIS_POOL_SIZE", cfg.Redis.PoolSize)

	cfg.Audit.Sink = e.str("ATTESTOR_AUDIT_SINK", cfg.Audit.Sink)
	cfg.Audit.Brokers = e.list("ATTESTOR_KAFKA_BROKERS", cfg.Audit.Brokers)
	cfg.Audit.Topic = e.str("ATTESTOR_AUDIT_TOPIC", cfg.Audit.Topic)

	cfg.OCR.CredentialsFile = e.str("GOOGLE_APPLICATION_CREDENTIALS", cfg.OCR.CredentialsFile)
	cfg.Assist.APIKey = e.str("GEMINI_API_KEY", cfg.Assist.APIKey)
	cfg.Assist.Model = e.str("ATTESTOR_ASSIST_MODEL", cfg.Assist.Model)

	cfg.Logging.Level = e.str("ATTESTOR_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = e.str("ATTESTOR_LOG_FORMAT", cfg.Logging.Format)

	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, cfg.Validate()
}

// Validate rejects thresholds outside their ranges and unknown backends.
func (c Config) Validate() error {
	v := c.Verification
	if v.AcceptanceThreshold <= 0 || v.AcceptanceThreshold > 1 {
		return fmt.Errorf("acceptance threshold must be in (0,1], got %v", v.AcceptanceThreshold)
	}
	if v.FuzzyThreshold <= 0 || v.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy threshold must be in (0,100], got %v", v.FuzzyThreshold)
	}
	if c.Quality.BrightnessMin >= c.Quality.BrightnessMax {
		return fmt.Errorf("brightness bounds are inverted: %v >= %v", c.Quality.BrightnessMin, c.Quality.BrightnessMax)
	}
	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis storage needs ATTESTOR_REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.ArtifactTTL <= 0 {
		return fmt.Errorf("artifact ttl must be positive")
	}
	switch c.Audit.Sink {
	case "log", "none":
	case "kafka":
		if len(c.Audit.Brokers) == 0 {
			return fmt.Errorf("kafka audit sink needs ATTESTOR_KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown audit sink %q", c.Audit.Sink)
	}
	return nil
}

type envReader struct {
	err error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) float(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return f
}

func (e *envReader) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) list(key string, def []string) []string {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
}
