package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Strob0t/specnotify/internal/adapter/nats"
	"github.com/Strob0t/specnotify/internal/adapter/otel"
	"github.com/Strob0t/specnotify/internal/adapter/ristretto"
	_ "github.com/Strob0t/specnotify/internal/adapter/slack" // registers the "slack" notifier
	"github.com/Strob0t/specnotify/internal/adapter/tagindex"
	"github.com/Strob0t/specnotify/internal/config"
	"github.com/Strob0t/specnotify/internal/logger"
	"github.com/Strob0t/specnotify/internal/port/directory"
	"github.com/Strob0t/specnotify/internal/port/lifecycle"
	"github.com/Strob0t/specnotify/internal/port/notifier"
	"github.com/Strob0t/specnotify/internal/service"
)

// app is the wired process: configuration, the dispatcher and its event source.
type app struct {
	cfg        *config.Config
	people     *service.DirectoryCache
	dispatcher *service.Dispatcher
	events     *lifecycle.Emitter
	closers    []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadConfig reads configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))
	return cfg, nil
}

// newDirectory builds the people directory behind mention resolution.
func newDirectory(cfg *config.Config) (notifier.Notifier, *service.DirectoryCache, error) {
	n, err := notifier.New(cfg.Slack.Provider, notifier.Settings{
		Token:     cfg.Slack.Token,
		APIURL:    cfg.Slack.APIURL,
		PageLimit: cfg.Slack.PageLimit,
		Timeout:   cfg.Slack.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("notifier: %w", err)
	}
	dir, ok := n.(directory.Directory)
	if !ok {
		return nil, nil, fmt.Errorf("notifier %q does not provide a people directory", n.Name())
	}
	if cfg.Slack.Token == "" {
		slog.Warn("slack token is not set, messages will not be sent")
	}
	return n, service.NewDirectoryCache(dir, service.WithFetchTimeout(cfg.Slack.Timeout)), nil
}

// newApp wires every component named in cfg.
func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, events: &lifecycle.Emitter{}}

	n, people, err := newDirectory(cfg)
	if err != nil {
		return nil, err
	}
	a.people = people

	var sinks []service.RecordSink
	if cfg.NATS.URL != "" {
		pub, err := nats.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		sinks = append(sinks, pub)
		slog.Info("publishing delivery records", "subject", cfg.NATS.Subject)
	}

	metrics, err := otel.NewMetrics()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	opts := []service.DispatcherOption{
		service.WithDeliveryLog(service.NewDeliveryLog(cfg.DeliveryLog.Path, sinks...)),
		service.WithMetrics(metrics),
	}

	if cfg.Tags.Index != "" {
		idx, err := tagindex.Load(cfg.Tags.Index)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("tag index: %w", err)
		}
		tags, err := ristretto.New(idx, cfg.Tags.CacheMaxCost)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("tag cache: %w", err)
		}
		a.closers = append(a.closers, tags.Close)
		opts = append(opts, service.WithTagExtractor(tags))
	}

	a.dispatcher = service.NewDispatcher(n, people, opts...)

	var errs []error
	for i, r := range cfg.Registrations {
		notifyCfg, cond, notifyOpts := r.Build()
		if err := a.dispatcher.Register(notifyCfg, cond, notifyOpts); err != nil {
			errs = append(errs, fmt.Errorf("registrations[%d]: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.Close()
		return nil, err
	}

	a.events.Subscribe(a.dispatcher)
	slog.Info("dispatcher ready", "registrations", a.dispatcher.Registrations())
	return a, nil
}
