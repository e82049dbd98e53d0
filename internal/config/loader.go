package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/specnotify/internal/domain/notify"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "specnotify.yaml"

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional; a missing
// file is not an error.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Slack.Token, "SLACK_TOKEN")
	setString(&cfg.Slack.APIURL, "SPECNOTIFY_SLACK_API_URL")
	setInt(&cfg.Slack.PageLimit, "SPECNOTIFY_SLACK_PAGE_LIMIT")
	setDuration(&cfg.Slack.Timeout, "SPECNOTIFY_SLACK_TIMEOUT")
	setString(&cfg.DeliveryLog.Path, "SPECNOTIFY_DELIVERY_LOG")
	setString(&cfg.Logging.Level, "SPECNOTIFY_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SPECNOTIFY_LOG_SERVICE")
	setString(&cfg.Logging.Format, "SPECNOTIFY_LOG_FORMAT")
	setString(&cfg.Server.Port, "SPECNOTIFY_PORT")
	setString(&cfg.Server.Secret, "SPECNOTIFY_SERVER_SECRET")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, "SPECNOTIFY_NATS_SUBJECT")
	setString(&cfg.Tags.Index, "SPECNOTIFY_TAG_INDEX")
	setInt64(&cfg.Tags.CacheMaxCost, "SPECNOTIFY_TAG_CACHE_MAX")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Slack.Provider == "" {
		return errors.New("slack.provider is required")
	}
	if cfg.Slack.PageLimit < 1 {
		return errors.New("slack.page_limit must be >= 1")
	}
	if cfg.DeliveryLog.Path == "" {
		return errors.New("delivery_log.path is required")
	}
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Logging.Format {
	case "json", "text", "auto":
	default:
		return fmt.Errorf("logging.format must be json, text or auto, got %q", cfg.Logging.Format)
	}
	if cfg.Tags.CacheMaxCost < 1 {
		return errors.New("tags.cache_max_cost must be >= 1")
	}
	for i, r := range cfg.Registrations {
		if err := notify.Validate(r.Notify.Configuration); err != nil {
			return fmt.Errorf("registrations[%d]: %w", i, err)
		}
		if r.Notify.Kind() == notify.KindByTag && cfg.Tags.Index == "" {
			return fmt.Errorf("registrations[%d]: %w: testTags needs tags.index", i, notify.ErrConfiguration)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
