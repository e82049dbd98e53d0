// Package service contains application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Strob0t/specnotify/internal/domain/notify"
	"github.com/Strob0t/specnotify/internal/logger"
	"github.com/Strob0t/specnotify/internal/port/lifecycle"
	"github.com/Strob0t/specnotify/internal/port/notifier"
	"github.com/Strob0t/specnotify/internal/port/tagger"
)

// State is the dispatcher's lifecycle position.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateAwaitingRun   State = "awaiting_run"
	StateEvaluating    State = "evaluating"
	StateIdle          State = "idle"
)

// Registration is one independently configured listener.
type Registration struct {
	Config     notify.Configuration
	Conditions notify.Conditions
	Options    notify.Options
}

// Dispatcher turns run lifecycle events into chat notifications for every
// registration, in registration order. Events are expected one at a time.
type Dispatcher struct {
	notifier notifier.Notifier
	people   *DirectoryCache
	tags     tagger.Extractor
	log      *DeliveryLog
	metrics  Metrics

	registrations []Registration
	run           notify.RunInfo
	runID         string
	state         State
}

var _ lifecycle.Listener = (*Dispatcher)(nil)

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTagExtractor enables tag-routed registrations.
func WithTagExtractor(e tagger.Extractor) DispatcherOption {
	return func(d *Dispatcher) { d.tags = e }
}

// WithDeliveryLog sets the log used by registrations that enable WriteLog.
func WithDeliveryLog(l *DeliveryLog) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics records delivery outcomes.
func WithMetrics(m Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a dispatcher. A nil notifier disables delivery
// while routing and condition checks still run.
func NewDispatcher(n notifier.Notifier, people *DirectoryCache, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier: n,
		people:   people,
		metrics:  nopMetrics{},
		state:    StateUninitialized,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Register adds a listener. It fails with notify.ErrConfiguration before
// anything is attached when the configuration is missing or unusable.
func (d *Dispatcher) Register(cfg notify.Configuration, cond notify.Conditions, opts notify.Options) error {
	if err := notify.Validate(cfg); err != nil {
		return err
	}
	if cfg.Kind() == notify.KindByTag && d.tags == nil {
		return fmt.Errorf("%w: tag routing needs a tag extractor", notify.ErrConfiguration)
	}

	if opts.WriteLog {
		if d.log == nil {
			return fmt.Errorf("%w: writeLog set but no delivery log", notify.ErrConfiguration)
		}
		if !d.log.Started() {
			if err := d.log.Start(); err != nil {
				return fmt.Errorf("start delivery log: %w", err)
			}
		}
	}

	d.registrations = append(d.registrations, Registration{
		Config:     cfg,
		Conditions: cond.WithDefaults(),
		Options:    opts,
	})
	if d.state == StateUninitialized {
		d.state = StateAwaitingRun
	}
	slog.Debug("registered notifications", "kind", cfg.Kind(), "write_log", opts.WriteLog)
	return nil
}

// Registrations returns the number of registered listeners.
func (d *Dispatcher) Registrations() int { return len(d.registrations) }

// State returns the current lifecycle state.
func (d *Dispatcher) State() State { return d.state }

// Run returns the run info captured at run start.
func (d *Dispatcher) Run() notify.RunInfo { return d.run }

// RunID returns the id minted at run start.
func (d *Dispatcher) RunID() string { return d.runID }

// tagResetter is implemented by extractors that cache per spec file; the
// cache is dropped at run start so edited specs are read again.
type tagResetter interface {
	Clear()
}

// RunStarted captures the run metadata, starts a fresh delivery log for the
// run and announces which registrations could fire.
func (d *Dispatcher) RunStarted(ctx context.Context, details lifecycle.RunDetails) {
	d.run = notify.RunInfo{
		RunDashboardURL:  details.RunURL,
		RunDashboardTags: details.Tag,
	}
	d.runID = uuid.NewString()
	if d.state == StateUninitialized {
		return
	}
	d.state = StateAwaitingRun
	log := logger.FromContext(logger.WithRunID(ctx, d.runID))

	if d.writesLog() {
		if err := d.log.Start(); err != nil {
			log.Error("could not reset the delivery log", "path", d.log.Path(), "error", err)
		}
	}
	if r, ok := d.tags.(tagResetter); ok {
		r.Clear()
	}

	log.Debug("run started",
		"recording", d.run.Recording(),
		"run_url", d.run.RunDashboardURL,
		"run_tags", d.run.RunDashboardTags,
	)
	for i, reg := range d.registrations {
		if notify.ShouldNotify(reg.Conditions, d.run) {
			log.Info("will notify on failed specs", "registration", i, "kind", reg.Config.Kind())
		}
	}
}

func (d *Dispatcher) writesLog() bool {
	if d.log == nil {
		return false
	}
	for _, reg := range d.registrations {
		if reg.Options.WriteLog {
			return true
		}
	}
	return false
}

// SpecFinished notifies every registration whose conditions pass about a
// failed spec. Nothing raised here reaches the caller.
func (d *Dispatcher) SpecFinished(ctx context.Context, spec lifecycle.Spec, results lifecycle.SpecResults) {
	ctx = logger.WithRunID(ctx, d.runID)
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("problem after spec", "spec", spec.Relative, "panic", r)
		}
	}()

	if !results.HasFailures() {
		log.Debug("no tests failed", "spec", spec.Relative)
		return
	}
	if d.state == StateUninitialized {
		return
	}

	d.state = StateEvaluating
	defer func() { d.state = StateIdle }()

	d.metrics.SpecFailed(ctx, spec.Relative)
	job := &specJob{spec: spec, results: results, failed: results.FailedTests()}

	for i, reg := range d.registrations {
		if err := d.handleRegistration(ctx, reg, job); err != nil {
			log.Error("notification failed",
				"registration", i,
				"spec", spec.Relative,
				"error", err,
			)
		}
	}
}

// specJob carries one failed spec through every registration. Effective
// tags are extracted at most once per spec.
type specJob struct {
	spec    lifecycle.Spec
	results lifecycle.SpecResults
	failed  []lifecycle.TestResult

	tags       tagger.Tags
	tagsLoaded bool
}

func (j *specJob) failedCount() int {
	if j.results.Stats.Failures > 0 {
		return j.results.Stats.Failures
	}
	return len(j.failed)
}

func (j *specJob) titles() []string {
	out := make([]string, len(j.failed))
	for i, t := range j.failed {
		out[i] = t.FullTitle()
	}
	return out
}

func (d *Dispatcher) handleRegistration(ctx context.Context, reg Registration, job *specJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if !notify.ShouldNotify(reg.Conditions, d.run) {
		logger.FromContext(ctx).Debug("conditions not met, skip notifications", "spec", job.spec.Relative)
		return nil
	}

	summary := notify.Summary{
		SpecPath:      job.spec.Relative,
		Failed:        job.failedCount(),
		SpecError:     job.results.Error,
		FailedTitles:  job.titles(),
		Run:           d.run,
		CustomMessage: reg.Options.CustomMessage,
	}

	byTag, ok := reg.Config.(notify.ByTag)
	if !ok {
		shorthand, found := notify.FindChannelToNotify(reg.Config, job.spec.Relative)
		if !found {
			logger.FromContext(ctx).Debug("no notification for spec", "spec", job.spec.Relative)
			return nil
		}
		return d.deliver(ctx, reg, shorthand, summary)
	}

	tags, err := d.effectiveTags(ctx, job)
	if err != nil {
		return err
	}
	var errs []error
	for _, test := range job.failed {
		for _, tag := range tags[test.FullTitle()] {
			shorthand, ok := byTag.TargetFor(tag)
			if !ok {
				continue
			}
			tagged := summary
			tagged.EffectiveTags = []string{tag}
			if err := d.deliver(ctx, reg, shorthand, tagged); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) effectiveTags(ctx context.Context, job *specJob) (tagger.Tags, error) {
	if job.tagsLoaded {
		return job.tags, nil
	}
	tags, err := d.tags.EffectiveTags(ctx, job.spec.Absolute)
	if err != nil {
		return nil, fmt.Errorf("effective tags for %s: %w", job.spec.Relative, err)
	}
	job.tags, job.tagsLoaded = tags, true
	return tags, nil
}

func (d *Dispatcher) deliver(ctx context.Context, reg Registration, shorthand string, summary notify.Summary) error {
	log := logger.FromContext(ctx)
	target := notify.ParseShorthand(shorthand)
	if target.Channel == "" {
		log.Warn("no channel in notification target", "target", shorthand)
		return nil
	}
	log.Info("need to notify channel", "channel", target.Channel, "spec", summary.SpecPath)

	found := []string{}
	if len(target.People) > 0 && d.people != nil {
		summary.MentionIDs, found = d.people.ResolveAll(ctx, target.People)
	}

	sent := d.send(ctx, notifier.Message{Channel: target.Channel, Text: notify.Compose(summary)})
	if sent {
		d.metrics.DeliverySent(ctx, target.Channel)
	} else {
		d.metrics.DeliveryFailed(ctx, target.Channel)
	}

	if !reg.Options.WriteLog {
		return nil
	}
	rec := notify.DeliveryRecord{
		Channel:          target.Channel,
		People:           target.People,
		FoundPeople:      found,
		Sent:             sent,
		RunDashboardURL:  d.run.RunDashboardURL,
		RunDashboardTags: d.run.RunDashboardTags,
		CustomMessage:    reg.Options.CustomMessage,
	}
	if err := d.log.Append(ctx, d.runID, rec); err != nil {
		return fmt.Errorf("append delivery record: %w", err)
	}
	return nil
}

// send posts once. Failures are logged and reported as false.
func (d *Dispatcher) send(ctx context.Context, msg notifier.Message) bool {
	log := logger.FromContext(ctx)
	if d.notifier == nil {
		log.Debug("delivery disabled", "channel", msg.Channel)
		return false
	}
	res, err := d.notifier.Send(ctx, msg)
	switch {
	case errors.Is(err, notifier.ErrNotConfigured):
		log.Debug("delivery disabled, missing access token", "channel", msg.Channel)
		return false
	case err != nil:
		log.Error("could not post the test results", "channel", msg.Channel, "error", fmt.Errorf("%w: %w", notify.ErrDelivery, err))
		return false
	case !res.OK:
		log.Error("could not post the test results", "channel", msg.Channel, "error", res.Error)
		return false
	}
	log.Info("posted spec message", "channel", msg.Channel, "spec_message_bytes", len(msg.Text))
	return true
}
