// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Content store backends.
const (
	BackendBadger   = "badger"
	BackendDynamoDB = "dynamodb"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Storage    StorageConfig
	Content    ContentConfig
	Dynamo     DynamoConfig
	Cache      CacheConfig
	Pagination PaginationConfig
	Write      WriteConfig
	Search     SearchConfig
	Server     ServerConfig
	RateLimit  RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds on-disk storage configuration.
type StorageConfig struct {
	// DataPath holds the SQLite database, the Badger directory and the
	// chapter index.
	DataPath string
}

// ContentConfig selects the chapter content store.
type ContentConfig struct {
	Backend string // badger or dynamodb
}

// DynamoConfig holds DynamoDB settings, used when Content.Backend is dynamodb.
type DynamoConfig struct {
	Table    string
	Region   string
	Endpoint string // Optional
}

// CacheConfig holds page cache configuration.
type CacheConfig struct {
	ChapterTTL  time.Duration
	BookListTTL time.Duration
	GenreTTL    time.Duration
	MaxCost     int64 // bytes
	// VersionedKeys adds the owner's last-updated time to chapter page keys.
	VersionedKeys bool
}

// PaginationConfig holds page size defaults and ceilings.
type PaginationConfig struct {
	ChapterPageSize    int
	ChapterMaxPageSize int
	BookPageSize       int
	BookMaxPageSize    int
}

// WriteConfig holds write path tuning.
type WriteConfig struct {
	MaxAttempts int // chapter number and permalink retries
}

// SearchConfig holds search tuning.
type SearchConfig struct {
	Threshold float64 // minimum trigram similarity
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string
}

// RateLimitConfig holds per-IP write limits. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// Flags in extra are parsed alongside the configuration flags, so commands
// can add their own without rejecting the shared ones.
func Load(args []string, extra ...*pflag.FlagSet) (*Config, error) {
	fs := pflag.NewFlagSet("quill", pflag.ContinueOnError)
	for _, e := range extra {
		fs.AddFlagSet(e)
	}

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for databases and indexes")
	backend := fs.String("content-backend", "", "Chapter content store (badger, dynamodb)")
	dynamoTable := fs.String("dynamo-table", "", "DynamoDB table for chapters")
	dynamoRegion := fs.String("dynamo-region", "", "DynamoDB region")
	dynamoEndpoint := fs.String("dynamo-endpoint", "", "DynamoDB endpoint override")

	// Cache flags
	chapterTTL := fs.String("chapter-cache-ttl", "", "Chapter page cache TTL (default: 60m)")
	bookListTTL := fs.String("book-cache-ttl", "", "Book list cache TTL (default: 30m)")
	genreTTL := fs.String("genre-cache-ttl", "", "Genre list cache TTL (default: 12m)")
	cacheMaxCost := fs.String("cache-max-bytes", "", "Page cache size in bytes (default: 64MiB)")
	versionedKeys := fs.String("versioned-cache-keys", "", "Include owner timestamps in chapter page keys (default: false)")

	// Pagination flags
	chapterPageSize := fs.String("chapter-page-size", "", "Default chapter page size (default: 10)")
	chapterMaxPageSize := fs.String("chapter-max-page-size", "", "Maximum chapter page size (default: 100)")
	bookPageSize := fs.String("book-page-size", "", "Default book page size (default: 20)")
	bookMaxPageSize := fs.String("book-max-page-size", "", "Maximum book page size (default: 100)")

	maxAttempts := fs.String("max-write-attempts", "", "Chapter number allocation attempts (default: 5)")
	threshold := fs.String("search-threshold", "", "Minimum trigram similarity (default: 0.3)")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma-separated CORS origins (default: *)")
	rateRPS := fs.String("write-rps", "", "Per-IP write requests per second, 0 disables (default: 10)")
	rateBurst := fs.String("write-burst", "", "Per-IP write burst (default: 20)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Missing .env is fine. Variables already in the environment win.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Content: ContentConfig{
			Backend: strings.ToLower(getConfigValue(*backend, "CONTENT_BACKEND", BackendBadger)),
		},
		Dynamo: DynamoConfig{
			Table:    getConfigValue(*dynamoTable, "DYNAMO_TABLE", "quill-chapters"),
			Region:   getConfigValue(*dynamoRegion, "DYNAMO_REGION", ""),
			Endpoint: getConfigValue(*dynamoEndpoint, "DYNAMO_ENDPOINT", ""),
		},
		Cache: CacheConfig{
			VersionedKeys: getBoolConfigValue(*versionedKeys, "CACHE_VERSIONED_KEYS", false),
		},
		Pagination: PaginationConfig{
			ChapterPageSize:    getIntConfigValue(*chapterPageSize, "CHAPTER_PAGE_SIZE", 10),
			ChapterMaxPageSize: getIntConfigValue(*chapterMaxPageSize, "CHAPTER_MAX_PAGE_SIZE", 100),
			BookPageSize:       getIntConfigValue(*bookPageSize, "BOOK_PAGE_SIZE", 20),
			BookMaxPageSize:    getIntConfigValue(*bookMaxPageSize, "BOOK_MAX_PAGE_SIZE", 100),
		},
		Write: WriteConfig{
			MaxAttempts: getIntConfigValue(*maxAttempts, "MAX_WRITE_ATTEMPTS", 5),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "*")),
		},
		RateLimit: RateLimitConfig{
			Burst: getIntConfigValue(*rateBurst, "WRITE_BURST", 20),
		},
	}

	maxCost, err := strconv.ParseInt(getConfigValue(*cacheMaxCost, "CACHE_MAX_BYTES", "67108864"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cache size: %w", err)
	}
	cfg.Cache.MaxCost = maxCost

	if cfg.Search.Threshold, err = strconv.ParseFloat(getConfigValue(*threshold, "SEARCH_THRESHOLD", "0.3"), 64); err != nil {
		return nil, fmt.Errorf("invalid search threshold: %w", err)
	}
	if cfg.RateLimit.RPS, err = strconv.ParseFloat(getConfigValue(*rateRPS, "WRITE_RPS", "10"), 64); err != nil {
		return nil, fmt.Errorf("invalid write rps: %w", err)
	}

	durations := []struct {
		dst          *time.Duration
		flag, envKey string
		def          string
	}{
		{&cfg.Cache.ChapterTTL, *chapterTTL, "CHAPTER_CACHE_TTL", "60m"},
		{&cfg.Cache.BookListTTL, *bookListTTL, "BOOK_CACHE_TTL", "30m"},
		{&cfg.Cache.GenreTTL, *genreTTL, "GENRE_CACHE_TTL", "12m"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	switch c.Content.Backend {
	case BackendBadger:
	case BackendDynamoDB:
		if c.Dynamo.Table == "" {
			return errors.New("DYNAMO_TABLE is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("invalid content backend: %s (must be badger or dynamodb)", c.Content.Backend)
	}

	if c.Write.MaxAttempts < 1 {
		return errors.New("max write attempts must be at least 1")
	}
	if c.Pagination.ChapterPageSize < 1 || c.Pagination.ChapterMaxPageSize < c.Pagination.ChapterPageSize {
		return errors.New("chapter page size must be positive and at most the maximum")
	}
	if c.Pagination.BookPageSize < 1 || c.Pagination.BookMaxPageSize < c.Pagination.BookPageSize {
		return errors.New("book page size must be positive and at most the maximum")
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return fmt.Errorf("search threshold %v must be between 0 and 1", c.Search.Threshold)
	}
	if c.RateLimit.RPS < 0 {
		return errors.New("write rps cannot be negative")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Quill", "data")

	expanded, err := expandPath(c.Storage.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
