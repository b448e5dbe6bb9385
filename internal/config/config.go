// Package config reads process configuration from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const mib = 1 << 20

type Config struct {
	HTTPAddr string

	DatabaseDriver string
	DatabaseURL    string

	MaxUploadBytes     int64
	MaxDurationSeconds float64

	UploadRoot    string
	UploadTempDir string
	StagingRoot   string
	PublicRoot    string
	PublicBaseURL string

	EncodeTimeout  time.Duration
	ProbeTimeout   time.Duration
	ToolSearchPath string
	FFmpegBin      string
	FFprobeBin     string
	DefaultWidth   int
	DefaultHeight  int

	CatalogDriver     string
	CatalogDSN        string
	CatalogTable      string
	CatalogCategoryID int
	CatalogStatus     string
	CatalogBaseURL    string

	KafkaBrokers    []string
	KafkaTopic      string
	OutboxInterval  time.Duration
	OutboxBatchSize int

	LogLevel  string
	LogFormat string
}

// RelayEnabled reports whether outbox events should be forwarded to Kafka.
func (c Config) RelayEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads .env (if any) and the environment. Variables already set in the
// environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	e := &env{}
	cfg := Config{
		HTTPAddr: e.str("HTTP_ADDR", ":8081"),

		DatabaseDriver: e.str("DATABASE_DRIVER", "pgx"),
		DatabaseURL:    e.str("DATABASE_URL", ""),

		MaxUploadBytes:     int64(e.int("MAX_UPLOAD_MB", 2500)) * mib,
		MaxDurationSeconds: float64(e.int("MAX_DURATION_SECONDS", 600)),

		UploadRoot:    e.str("UPLOAD_ROOT", "./media/video"),
		UploadTempDir: e.str("UPLOAD_TEMP_DIR", os.TempDir()),
		StagingRoot:   e.str("STAGING_ROOT", "./media/staging"),
		PublicRoot:    e.str("PUBLIC_MEDIA_ROOT", "./media/public"),
		PublicBaseURL: e.str("PUBLIC_MEDIA_BASE_URL", "/media"),

		EncodeTimeout:  e.seconds("ENCODE_TIMEOUT_SECONDS", 7200),
		ProbeTimeout:   e.seconds("PROBE_TIMEOUT_SECONDS", 30),
		ToolSearchPath: e.str("TOOL_SEARCH_PATH", "/usr/local/bin:/usr/bin:/bin"),
		FFmpegBin:      e.str("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:     e.str("FFPROBE_BIN", "ffprobe"),
		DefaultWidth:   e.int("DEFAULT_WIDTH", 1280),
		DefaultHeight:  e.int("DEFAULT_HEIGHT", 720),

		CatalogDriver:     e.str("CATALOG_DRIVER", "mysql"),
		CatalogDSN:        e.str("CATALOG_DSN", ""),
		CatalogTable:      e.str("CATALOG_TABLE", "multimedia"),
		CatalogCategoryID: e.int("CATALOG_CATEGORY_ID", 2),
		CatalogStatus:     e.str("CATALOG_STATUS", "Aktif"),
		CatalogBaseURL:    e.str("CATALOG_BASE_URL", ""),

		KafkaBrokers:    e.list("KAFKA_BROKERS"),
		KafkaTopic:      e.str("KAFKA_TOPIC", "video-events"),
		OutboxInterval:  e.duration("OUTBOX_INTERVAL", 2*time.Second),
		OutboxBatchSize: e.int("OUTBOX_BATCH_SIZE", 100),

		LogLevel:  strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(e.str("LOG_FORMAT", "json")),
	}
	if e.err != nil {
		return Config{}, e.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is empty")
	}
	switch c.DatabaseDriver {
	case "pgx", "sqlite3":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be pgx or sqlite3, got %q", c.DatabaseDriver)
	}
	switch c.CatalogDriver {
	case "mysql", "pgx", "sqlite3":
	default:
		return fmt.Errorf("CATALOG_DRIVER must be mysql, pgx or sqlite3, got %q", c.CatalogDriver)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	positive := map[string]int64{
		"MAX_UPLOAD_MB":          c.MaxUploadBytes,
		"MAX_DURATION_SECONDS":   int64(c.MaxDurationSeconds),
		"ENCODE_TIMEOUT_SECONDS": int64(c.EncodeTimeout),
		"PROBE_TIMEOUT_SECONDS":  int64(c.ProbeTimeout),
		"DEFAULT_WIDTH":          int64(c.DefaultWidth),
		"DEFAULT_HEIGHT":         int64(c.DefaultHeight),
		"OUTBOX_INTERVAL":        int64(c.OutboxInterval),
		"OUTBOX_BATCH_SIZE":      int64(c.OutboxBatchSize),
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// env collects the first parse error so Load reports one malformed variable
// at a time.
type env struct {
	err error
}

func (e *env) str(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(fmt.Errorf("parse %s: %w", key, err))
		return fallback
	}
	return v
}

func (e *env) seconds(key string, fallback int) time.Duration {
	return time.Duration(e.int(key, fallback)) * time.Second
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(fmt.Errorf("parse %s: %w", key, err))
		return fallback
	}
	return v
}

func (e *env) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
