// Package config provides hierarchical configuration loading for specnotify.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for specnotify.
type Config struct {
	Slack         Slack          `yaml:"slack"`
	DeliveryLog   DeliveryLog    `yaml:"delivery_log"`
	Logging       Logging        `yaml:"logging"`
	Server        Server         `yaml:"server"`
	NATS          NATS           `yaml:"nats"`
	Tags          Tags           `yaml:"tags"`
	Registrations []Registration `yaml:"registrations"`
}

// Slack holds chat service configuration. An empty token disables delivery.
type Slack struct {
	Provider  string        `yaml:"provider"`
	Token     string        `yaml:"token"`
	APIURL    string        `yaml:"api_url"`
	PageLimit int           `yaml:"page_limit"` // users.list page size (default: 200)
	Timeout   time.Duration `yaml:"timeout"`
}

// DeliveryLog holds the delivery record document location.
type DeliveryLog struct {
	Path string `yaml:"path"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Format  string `yaml:"format"` // "json" | "text" | "auto"
}

// Server holds the lifecycle event receiver configuration.
type Server struct {
	Port string `yaml:"port"`
	// Secret, when set, requires every event POST to carry an HMAC-SHA256
	// signature of its body in the X-Specnotify-Signature header.
	Secret string `yaml:"secret"`
}

// NATS holds the optional delivery record publisher. Empty URL disables it.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Tags holds the effective-tag index used by tag-routed registrations.
type Tags struct {
	Index        string `yaml:"index"`
	CacheMaxCost int64  `yaml:"cache_max_cost"` // max cached specs
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Slack: Slack{
			Provider:  "slack",
			APIURL:    "https://slack.com/api",
			PageLimit: 200,
			Timeout:   30 * time.Second,
		},
		DeliveryLog: DeliveryLog{
			Path: "slack-notified.json",
		},
		Logging: Logging{
			Level:   "info",
			Service: "specnotify",
			Format:  "auto",
		},
		Server: Server{
			Port: "8787",
		},
		NATS: NATS{
			Subject: "specnotify.deliveries",
		},
		Tags: Tags{
			CacheMaxCost: 1024,
		},
	}
}
