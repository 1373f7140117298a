package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the server configuration. DefaultPollDuration applies when a
// create request omits a duration.
type Config struct {
	HTTPAddr            string
	JWTSecret           string
	ModeratorUsername   string
	ModeratorPassword   string
	TokenTTL            time.Duration
	RequireToken        bool
	RedisAddr           string
	ArchiveTTL          time.Duration
	ArchiveLimit        int
	NATSURL             string
	NATSSubjectPrefix   string
	CORSAllowedOrigins  []string
	DefaultPollDuration time.Duration
	ChatMaxMessages     int
	ChatMaxLength       int
	LogLevel            string
	LogFormat           string
}

// fileConfig mirrors the TOML layout. Pointer fields distinguish "unset"
// from zero values.
type fileConfig struct {
	HTTPAddr            *string  `toml:"http_addr"`
	JWTSecret           *string  `toml:"jwt_secret"`
	ModeratorUsername   *string  `toml:"moderator_username"`
	ModeratorPassword   *string  `toml:"moderator_password"`
	TokenTTL            *string  `toml:"token_ttl"`
	RequireToken        *bool    `toml:"require_token"`
	RedisAddr           *string  `toml:"redis_addr"`
	ArchiveTTL          *string  `toml:"archive_ttl"`
	ArchiveLimit        *int     `toml:"archive_limit"`
	NATSURL             *string  `toml:"nats_url"`
	NATSSubjectPrefix   *string  `toml:"nats_subject_prefix"`
	CORSAllowedOrigins  []string `toml:"cors_allowed_origins"`
	DefaultPollDuration *string  `toml:"default_poll_duration"`
	ChatMaxMessages     *int     `toml:"chat_max_messages"`
	ChatMaxLength       *int     `toml:"chat_max_length"`
	LogLevel            *string  `toml:"log_level"`
	LogFormat           *string  `toml:"log_format"`
}

const devSecret = "dev-secret-change-in-production"

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		HTTPAddr:            ":8080",
		JWTSecret:           devSecret,
		ModeratorUsername:   "admin",
		ModeratorPassword:   "password123",
		TokenTTL:            24 * time.Hour,
		RequireToken:        true,
		ArchiveTTL:          24 * time.Hour,
		ArchiveLimit:        500,
		NATSSubjectPrefix:   "livepoll",
		CORSAllowedOrigins:  []string{"*"},
		DefaultPollDuration: 60 * time.Second,
		ChatMaxMessages:     1000,
		ChatMaxLength:       500,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load builds the configuration from defaults, an optional TOML file and the
// environment, in that order of precedence (later wins). An empty path skips
// the file; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
			slog.Warn("config: file not found, using defaults", "path", path)
		} else if err := cfg.applyFile(&fc); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(fc *fileConfig) error {
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.JWTSecret, fc.JWTSecret)
	setString(&c.ModeratorUsername, fc.ModeratorUsername)
	setString(&c.ModeratorPassword, fc.ModeratorPassword)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.NATSURL, fc.NATSURL)
	setString(&c.NATSSubjectPrefix, fc.NATSSubjectPrefix)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	if fc.RequireToken != nil {
		c.RequireToken = *fc.RequireToken
	}
	if fc.ArchiveLimit != nil {
		c.ArchiveLimit = *fc.ArchiveLimit
	}
	if fc.ChatMaxMessages != nil {
		c.ChatMaxMessages = *fc.ChatMaxMessages
	}
	if fc.ChatMaxLength != nil {
		c.ChatMaxLength = *fc.ChatMaxLength
	}
	if fc.CORSAllowedOrigins != nil {
		c.CORSAllowedOrigins = fc.CORSAllowedOrigins
	}

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"token_ttl", fc.TokenTTL, &c.TokenTTL},
		{"archive_ttl", fc.ArchiveTTL, &c.ArchiveTTL},
		{"default_poll_duration", fc.DefaultPollDuration, &c.DefaultPollDuration},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = getEnv("LIVEPOLL_HTTP_ADDR", c.HTTPAddr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("LIVEPOLL_HTTP_ADDR") == "" {
		c.HTTPAddr = ":" + port
	}
	c.JWTSecret = getEnv("LIVEPOLL_JWT_SECRET", getEnv("JWT_SECRET", c.JWTSecret))
	c.ModeratorUsername = getEnv("LIVEPOLL_MODERATOR_USERNAME", getEnv("HOST_USERNAME", c.ModeratorUsername))
	c.ModeratorPassword = getEnv("LIVEPOLL_MODERATOR_PASSWORD", getEnv("HOST_PASSWORD", c.ModeratorPassword))
	c.RedisAddr = getEnv("LIVEPOLL_REDIS_ADDR", getEnv("REDIS_URI", c.RedisAddr))
	c.NATSURL = getEnv("LIVEPOLL_NATS_URL", c.NATSURL)
	c.NATSSubjectPrefix = getEnv("LIVEPOLL_NATS_SUBJECT_PREFIX", c.NATSSubjectPrefix)
	c.LogLevel = getEnv("LIVEPOLL_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LIVEPOLL_LOG_FORMAT", c.LogFormat)
	if v := os.Getenv("LIVEPOLL_CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}

	var err error
	if c.RequireToken, err = getEnvBool("LIVEPOLL_REQUIRE_TOKEN", c.RequireToken); err != nil {
		return err
	}
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"LIVEPOLL_TOKEN_TTL", &c.TokenTTL},
		{"LIVEPOLL_ARCHIVE_TTL", &c.ArchiveTTL},
		{"LIVEPOLL_DEFAULT_POLL_DURATION", &c.DefaultPollDuration},
	} {
		if *d.dst, err = getEnvDuration(d.key, *d.dst); err != nil {
			return err
		}
	}
	for _, n := range []struct {
		key string
		dst *int
	}{
		{"LIVEPOLL_ARCHIVE_LIMIT", &c.ArchiveLimit},
		{"LIVEPOLL_CHAT_MAX_MESSAGES", &c.ChatMaxMessages},
		{"LIVEPOLL_CHAT_MAX_LENGTH", &c.ChatMaxLength},
	} {
		if *n.dst, err = getEnvInt(n.key, *n.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http address is required")
	}
	if c.JWTSecret == "" {
		return errors.New("config: jwt secret is required")
	}
	if c.DefaultPollDuration < 30*time.Second || c.DefaultPollDuration > 300*time.Second {
		return fmt.Errorf("config: default poll duration %s outside [30s, 5m]", c.DefaultPollDuration)
	}
	if c.DefaultPollDuration%time.Second != 0 {
		return fmt.Errorf("config: default poll duration %s is not a whole number of seconds", c.DefaultPollDuration)
	}
	if c.TokenTTL < 0 || c.ArchiveTTL < 0 {
		return errors.New("config: durations must not be negative")
	}
	if c.ChatMaxMessages <= 0 || c.ChatMaxLength <= 0 || c.ArchiveLimit <= 0 {
		return errors.New("config: chat and archive limits must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log level %q", c.LogLevel)
}

// UsesDevSecret reports whether the built-in signing secret is still in use
func (c *Config) UsesDevSecret() bool {
	return c.JWTSecret == devSecret
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
