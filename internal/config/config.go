// Package config provides configuration management for shotnamer.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/shotnamer/internal/caption"
	"github.com/thebtf/shotnamer/internal/naming"
	"github.com/thebtf/shotnamer/internal/pipeline"
	"github.com/thebtf/shotnamer/internal/watcher"
)

// Environment variables.
const (
	EnvAPIKey       = "OPENAI_API_KEY"
	EnvDir          = "SCREENSHOT_DIR"
	EnvLanguage     = "LANGUAGE"
	EnvLangOverride = "SHOTNAMER_LANGUAGE"
	EnvPrefix       = "SHOTNAMER_PREFIX"
	EnvModel        = "SHOTNAMER_MODEL"
	EnvAPIBase      = "SHOTNAMER_API_BASE"
	EnvMaxTokens    = "SHOTNAMER_MAX_TOKENS"
	EnvDebounce     = "SHOTNAMER_DEBOUNCE"
	EnvTimeout      = "SHOTNAMER_TIMEOUT"
	EnvQueueSize    = "SHOTNAMER_QUEUE_SIZE"
	EnvStatusAddr   = "SHOTNAMER_STATUS_ADDR"
	EnvLogLevel     = "SHOTNAMER_LOG_LEVEL"
)

// DotEnvFile is read from the working directory before the environment.
const DotEnvFile = ".env"

// Config is read once at startup and passed by value to every component.
type Config struct {
	APIKey     string
	Dir        string
	Language   string
	Prefix     string
	Model      string
	APIBase    string
	MaxTokens  int
	Debounce   time.Duration
	Timeout    time.Duration
	QueueSize  int
	StatusAddr string
	LogLevel   zerolog.Level
}

// Error is a configuration problem that prevents startup.
type Error struct {
	Key     string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// IsConfigError reports whether err is a configuration Error.
func IsConfigError(err error) bool {
	var cErr *Error
	return errors.As(err, &cErr)
}

// Default returns the configuration used when nothing is set.
// The API key is always empty.
func Default() Config {
	return Config{
		Dir:       DefaultDir(),
		Language:  caption.DefaultLanguage,
		Prefix:    naming.DefaultPrefix,
		Model:     caption.DefaultModel,
		APIBase:   caption.DefaultBaseURL,
		MaxTokens: caption.DefaultMaxTokens,
		Debounce:  pipeline.DefaultDebounce,
		Timeout:   caption.DefaultTimeout,
		QueueSize: watcher.DefaultQueueSize,
		LogLevel:  zerolog.InfoLevel,
	}
}

// DefaultDir returns the user's desktop directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Desktop"
	}
	return filepath.Join(home, "Desktop")
}

// envKeys lists every variable FromEnv reads.
var envKeys = []string{
	EnvAPIKey, EnvDir, EnvLanguage, EnvLangOverride, EnvPrefix, EnvModel, EnvAPIBase,
	EnvMaxTokens, EnvDebounce, EnvTimeout, EnvQueueSize, EnvStatusAddr, EnvLogLevel,
}

// Load reads DotEnvFile if present and then the process environment.
// Non-blank variables already set in the environment win over the file;
// blank ones are treated as unset so the file can fill them.
func Load() (Config, error) {
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) == "" {
			_ = os.Unsetenv(key)
		}
	}
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("file", DotEnvFile).Msg("Failed to read env file")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. A missing API key or an unusable
// directory is returned as *Error; bad optional values fall back to defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	cfg.APIKey = strings.TrimSpace(getenv(EnvAPIKey))
	if cfg.APIKey == "" {
		return cfg, &Error{
			Key:     EnvAPIKey,
			Message: fmt.Sprintf("%s is not set; add it to the environment or to a %s file", EnvAPIKey, DotEnvFile),
		}
	}

	cfg.Language = getString(getenv, EnvLangOverride, getString(getenv, EnvLanguage, cfg.Language))
	cfg.Prefix = getString(getenv, EnvPrefix, cfg.Prefix)
	cfg.Model = getString(getenv, EnvModel, cfg.Model)
	cfg.APIBase = getString(getenv, EnvAPIBase, cfg.APIBase)
	cfg.StatusAddr = getString(getenv, EnvStatusAddr, "")
	cfg.MaxTokens = getPositiveInt(getenv, EnvMaxTokens, cfg.MaxTokens)
	cfg.QueueSize = getPositiveInt(getenv, EnvQueueSize, cfg.QueueSize)
	cfg.Debounce = getDuration(getenv, EnvDebounce, cfg.Debounce, true)
	cfg.Timeout = getDuration(getenv, EnvTimeout, cfg.Timeout, false)
	cfg.LogLevel = getLevel(getenv, EnvLogLevel, cfg.LogLevel)

	dir, err := resolveDir(getString(getenv, EnvDir, cfg.Dir))
	if err != nil {
		return cfg, err
	}
	cfg.Dir = dir

	return cfg, nil
}

// resolveDir expands ~ and requires an existing directory.
func resolveDir(dir string) (string, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &Error{Key: EnvDir, Message: fmt.Sprintf("%s %q is not a valid path: %v", EnvDir, dir, err)}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", &Error{Key: EnvDir, Message: fmt.Sprintf("%s %q does not exist or cannot be read", EnvDir, abs)}
	}
	if !info.IsDir() {
		return "", &Error{Key: EnvDir, Message: fmt.Sprintf("%s %q is not a directory", EnvDir, abs)}
	}
	return abs, nil
}

func getString(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func getPositiveInt(getenv func(string) string, key string, def int) int {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		log.Warn().
			Str("key", key).
			Str("env_value", raw).
			Int("default", def).
			Msg("Invalid integer in environment, using default")
		return def
	}
	return n
}

// getDuration accepts Go durations ("1.5s") or plain seconds ("2").
func getDuration(getenv func(string) string, key string, def time.Duration, allowZero bool) time.Duration {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			d = -1
		} else {
			d = time.Duration(secs * float64(time.Second))
		}
	}

	if d < 0 || (d == 0 && !allowZero) {
		log.Warn().
			Str("key", key).
			Str("env_value", raw).
			Dur("default", def).
			Msg("Invalid duration in environment, using default")
		return def
	}
	return d
}

func getLevel(getenv func(string) string, key string, def zerolog.Level) zerolog.Level {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def
	}

	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil || level == zerolog.NoLevel {
		log.Warn().
			Str("key", key).
			Str("env_value", raw).
			Msg("Invalid log level in environment, using default")
		return def
	}
	return level
}
