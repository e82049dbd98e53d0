package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Strob0t/specnotify/internal/domain/notify"
	"github.com/Strob0t/specnotify/internal/port/directory"
	"github.com/Strob0t/specnotify/internal/port/lifecycle"
	"github.com/Strob0t/specnotify/internal/port/notifier"
	"github.com/Strob0t/specnotify/internal/port/tagger"
)

// mockNotifier implements notifier.Notifier for testing.
type mockNotifier struct {
	sent    []notifier.Message
	sendErr error
	reject  string
	panicOn string
}

func (m *mockNotifier) Name() string { return "mock" }

func (m *mockNotifier) Send(_ context.Context, msg notifier.Message) (notifier.Result, error) {
	if msg.Channel == m.panicOn {
		panic("boom")
	}
	if m.sendErr != nil {
		return notifier.Result{}, m.sendErr
	}
	if m.reject != "" {
		return notifier.Result{OK: false, Error: m.reject}, nil
	}
	m.sent = append(m.sent, msg)
	return notifier.Result{OK: true}, nil
}

func (m *mockNotifier) channels() []string {
	out := []string{}
	for _, msg := range m.sent {
		out = append(out, msg.Channel)
	}
	return out
}

type countingMetrics struct {
	specs, sent, failed int
}

func (c *countingMetrics) SpecFailed(context.Context, string)     { c.specs++ }
func (c *countingMetrics) DeliverySent(context.Context, string)   { c.sent++ }
func (c *countingMetrics) DeliveryFailed(context.Context, string) { c.failed++ }

const dashboardURL = "https://dashboard.example/projects/p/runs/42"

var (
	writeLog = notify.Options{WriteLog: true}

	failedLogin = lifecycle.SpecResults{
		Stats: lifecycle.Stats{Failures: 1},
		Tests: []lifecycle.TestResult{
			{Title: []string{"login", "works"}, State: lifecycle.StatePassed},
			{Title: []string{"login", "fails"}, State: lifecycle.StateFailed},
		},
	}
)

type fixture struct {
	notifier *mockNotifier
	log      *DeliveryLog
	metrics  *countingMetrics
	d        *Dispatcher
}

func newFixture(t *testing.T, opts ...DispatcherOption) *fixture {
	t.Helper()
	f := &fixture{
		notifier: &mockNotifier{},
		log:      NewDeliveryLog(filepath.Join(t.TempDir(), "slack-notified.json")),
		metrics:  &countingMetrics{},
	}
	people := NewDirectoryCache(singlePage(
		directory.Person{Handle: "alice", ID: "U1"},
		directory.Person{Handle: "bob", ID: "U2"},
	))
	opts = append([]DispatcherOption{WithDeliveryLog(f.log), WithMetrics(f.metrics)}, opts...)
	f.d = NewDispatcher(f.notifier, people, opts...)
	return f
}

func (f *fixture) register(t *testing.T, cfg notify.Configuration, cond notify.Conditions, opts notify.Options) {
	t.Helper()
	if err := f.d.Register(cfg, cond, opts); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func spec(rel string) lifecycle.Spec {
	return lifecycle.Spec{Relative: rel, Absolute: "/repo/" + rel}
}

func TestDispatcher_NotRecordingSkips(t *testing.T) {
	f := newFixture(t)
	f.register(t, notify.Uniform{Target: "#notify @alice"}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{})
	f.d.SpecFinished(ctx, spec("cypress/e2e/a.cy.js"), failedLogin)

	if len(f.notifier.sent) != 0 {
		t.Fatalf("expected no delivery, got %v", f.notifier.channels())
	}
	if got := readLog(t, f.log.Path()); len(got) != 0 {
		t.Fatalf("expected empty delivery log, got %+v", got)
	}
}

func TestDispatcher_RecordingDelivers(t *testing.T) {
	f := newFixture(t)
	f.register(t, notify.Uniform{Target: "#notify @alice"}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("cypress/e2e/a.cy.js"), failedLogin)

	want := []notify.DeliveryRecord{{
		Channel:         "#notify",
		People:          []string{"@alice"},
		FoundPeople:     []string{"@alice"},
		Sent:            true,
		RunDashboardURL: dashboardURL,
	}}
	if diff := cmp.Diff(want, readLog(t, f.log.Path())); diff != "" {
		t.Errorf("delivery log mismatch (-want +got):\n%s", diff)
	}

	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(f.notifier.sent))
	}
	text := f.notifier.sent[0].Text
	for _, part := range []string{
		"1 test failed in spec *cypress/e2e/a.cy.js*",
		"• login / fails",
		dashboardURL + notify.FailedViewQuery,
		"<@U1>",
	} {
		if !strings.Contains(text, part) {
			t.Errorf("message %q missing %q", text, part)
		}
	}
	if f.metrics.specs != 1 || f.metrics.sent != 1 || f.metrics.failed != 0 {
		t.Fatalf("unexpected metrics %+v", f.metrics)
	}
}

func TestDispatcher_GlobRoute(t *testing.T) {
	f := newFixture(t)
	f.register(t, notify.ByPath{Routes: []notify.Route{
		{Pattern: "other.cy.js", Target: "#other"},
		{Pattern: "**/sub/*.cy.js", Target: "#match"},
	}}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("cypress/e2e/sub/a.cy.js"), failedLogin)
	f.d.SpecFinished(ctx, spec("cypress/e2e/unrouted.cy.js"), failedLogin)

	if diff := cmp.Diff([]string{"#match"}, f.notifier.channels()); diff != "" {
		t.Errorf("channels mismatch (-want +got):\n%s", diff)
	}
	recs := f.log.Records()
	if len(recs) != 1 || recs[0].Channel != "#match" {
		t.Fatalf("unexpected records %+v", recs)
	}
	if recs[0].People == nil || recs[0].FoundPeople == nil {
		t.Fatal("people lists must be empty, not null")
	}
}

func TestDispatcher_TagRoute(t *testing.T) {
	extracted := 0
	tags := tagger.ExtractorFunc(func(_ context.Context, path string) (tagger.Tags, error) {
		extracted++
		if path != "/repo/cypress/e2e/a.cy.js" {
			t.Errorf("unexpected spec path %q", path)
		}
		return tagger.Tags{
			"login / fails": {"@auth"},
			"cart / fails":  {"@ui"},
		}, nil
	})
	f := newFixture(t, WithTagExtractor(tags))
	byTag := notify.ByTag{TestTags: map[string]string{"@auth": "#sec-room"}}
	f.register(t, byTag, notify.Conditions{}, writeLog)
	f.register(t, byTag, notify.Conditions{}, notify.Options{})
	ctx := context.Background()

	results := lifecycle.SpecResults{
		Stats: lifecycle.Stats{Failures: 2},
		Tests: []lifecycle.TestResult{
			{Title: []string{"login", "fails"}, State: lifecycle.StateFailed},
			{Title: []string{"cart", "fails"}, State: lifecycle.StateFailed},
			{Title: []string{"search", "fails"}, State: lifecycle.StateFailed},
		},
	}
	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("cypress/e2e/a.cy.js"), results)

	if diff := cmp.Diff([]string{"#sec-room", "#sec-room"}, f.notifier.channels()); diff != "" {
		t.Errorf("channels mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(f.notifier.sent[0].Text, "Test tags: *@auth*") {
		t.Errorf("message should name the firing tag: %q", f.notifier.sent[0].Text)
	}
	if strings.Contains(f.notifier.sent[0].Text, "@ui") {
		t.Errorf("message should not name unrouted tags: %q", f.notifier.sent[0].Text)
	}
	if recs := f.log.Records(); len(recs) != 1 || recs[0].Channel != "#sec-room" {
		t.Fatalf("unexpected records %+v", recs)
	}
	if extracted != 1 {
		t.Fatalf("expected tags extracted once per spec, got %d", extracted)
	}
}

func TestDispatcher_TagRouteWithoutMatchingTag(t *testing.T) {
	tags := tagger.ExtractorFunc(func(context.Context, string) (tagger.Tags, error) {
		return tagger.Tags{"cart / fails": {"@ui"}}, nil
	})
	f := newFixture(t, WithTagExtractor(tags))
	f.register(t, notify.ByTag{TestTags: map[string]string{"@auth": "#sec-room"}}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("cypress/e2e/a.cy.js"), lifecycle.SpecResults{
		Stats: lifecycle.Stats{Failures: 1},
		Tests: []lifecycle.TestResult{{Title: []string{"cart", "fails"}, State: lifecycle.StateFailed}},
	})

	if len(f.notifier.sent) != 0 {
		t.Fatalf("expected no delivery, got %v", f.notifier.channels())
	}
}

func TestDispatcher_RegistrationOrder(t *testing.T) {
	f := newFixture(t)
	f.register(t, notify.Uniform{Target: "#first"}, notify.Conditions{}, writeLog)
	f.register(t, notify.Uniform{Target: "#second @bob"}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("a.cy.js"), failedLogin)

	var got []string
	for _, r := range readLog(t, f.log.Path()) {
		got = append(got, r.Channel)
	}
	if diff := cmp.Diff([]string{"#first", "#second"}, got); diff != "" {
		t.Errorf("record order mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcher_Conditions(t *testing.T) {
	tests := []struct {
		name string
		cond notify.Conditions
		run  lifecycle.RunDetails
		want int
	}{
		{"tag match", notify.Conditions{WhenRecordingDashboardTag: []string{"nightly"}},
			lifecycle.RunDetails{RunURL: dashboardURL, Tag: []string{"smoke", "nightly"}}, 1},
		{"tag miss", notify.Conditions{WhenRecordingDashboardTag: []string{"nightly"}},
			lifecycle.RunDetails{RunURL: dashboardURL, Tag: []string{"smoke"}}, 0},
		{"opt out while not recording", notify.Conditions{WhenRecordingOnDashboard: notify.Bool(false)},
			lifecycle.RunDetails{}, 1},
		{"predicate", notify.Conditions{WhenISaySo: func(r notify.RunInfo) bool { return !r.Recording() }},
			lifecycle.RunDetails{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.register(t, notify.Uniform{Target: "#c"}, tt.cond, notify.Options{})
			ctx := context.Background()
			f.d.RunStarted(ctx, tt.run)
			f.d.SpecFinished(ctx, spec("a.cy.js"), failedLogin)
			if len(f.notifier.sent) != tt.want {
				t.Fatalf("expected %d deliveries, got %d", tt.want, len(f.notifier.sent))
			}
		})
	}
}

func TestDispatcher_PassingSpecIgnored(t *testing.T) {
	f := newFixture(t)
	f.register(t, notify.Uniform{Target: "#c"}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("a.cy.js"), lifecycle.SpecResults{
		Tests: []lifecycle.TestResult{{Title: []string{"ok"}, State: lifecycle.StatePassed}},
	})

	if len(f.notifier.sent) != 0 || f.metrics.specs != 0 {
		t.Fatalf("passing spec must not notify, sent %d", len(f.notifier.sent))
	}
}

func TestDispatcher_RegisterRejects(t *testing.T) {
	tests := []struct {
		name string
		d    *Dispatcher
		cfg  notify.Configuration
		opts notify.Options
	}{
		{"missing configuration", NewDispatcher(nil, nil), nil, notify.Options{}},
		{"empty target", NewDispatcher(nil, nil), notify.Uniform{Target: " "}, notify.Options{}},
		{"tags without extractor", NewDispatcher(nil, nil),
			notify.ByTag{TestTags: map[string]string{"@a": "#a"}}, notify.Options{}},
		{"log without delivery log", NewDispatcher(nil, nil), notify.Uniform{Target: "#a"}, writeLog},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Register(tt.cfg, notify.Conditions{}, tt.opts)
			if !errors.Is(err, notify.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			if tt.d.Registrations() != 0 {
				t.Fatal("rejected registration must not attach")
			}
			if tt.d.State() != StateUninitialized {
				t.Fatalf("expected %s, got %s", StateUninitialized, tt.d.State())
			}
		})
	}
}

func TestDispatcher_CrashIsolation(t *testing.T) {
	f := newFixture(t)
	f.notifier.panicOn = "#boom"
	f.register(t, notify.Uniform{Target: "#boom"}, notify.Conditions{}, writeLog)
	f.register(t, notify.Uniform{Target: "#fine"}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("a.cy.js"), failedLogin)
	f.d.SpecFinished(ctx, spec("b.cy.js"), failedLogin)

	if diff := cmp.Diff([]string{"#fine", "#fine"}, f.notifier.channels()); diff != "" {
		t.Errorf("channels mismatch (-want +got):\n%s", diff)
	}
	if f.d.State() != StateIdle {
		t.Fatalf("expected %s, got %s", StateIdle, f.d.State())
	}
}

func TestDispatcher_NotSent(t *testing.T) {
	tests := []struct {
		name string
		n    *mockNotifier
	}{
		{"missing token", &mockNotifier{sendErr: notifier.ErrNotConfigured}},
		{"transport error", &mockNotifier{sendErr: errors.New("connection refused")}},
		{"rejected", &mockNotifier{reject: "channel_not_found"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.d.notifier = tt.n
			f.register(t, notify.Uniform{Target: "#c @alice @ghost"}, notify.Conditions{}, writeLog)
			ctx := context.Background()

			f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL, Tag: []string{"nightly"}})
			f.d.SpecFinished(ctx, spec("a.cy.js"), failedLogin)

			want := []notify.DeliveryRecord{{
				Channel:          "#c",
				People:           []string{"@alice", "@ghost"},
				FoundPeople:      []string{"@alice"},
				Sent:             false,
				RunDashboardURL:  dashboardURL,
				RunDashboardTags: []string{"nightly"},
			}}
			if diff := cmp.Diff(want, readLog(t, f.log.Path())); diff != "" {
				t.Errorf("delivery log mismatch (-want +got):\n%s", diff)
			}
			if f.metrics.failed != 1 {
				t.Fatalf("expected 1 failed delivery, got %d", f.metrics.failed)
			}
		})
	}
}

func TestDispatcher_CustomMessage(t *testing.T) {
	f := newFixture(t)
	opts := notify.Options{WriteLog: true, CustomMessage: "ping the on-call"}
	f.register(t, notify.Uniform{Target: "#c"}, notify.Conditions{}, opts)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("a.cy.js"), failedLogin)

	if len(f.notifier.sent) != 1 || !strings.HasSuffix(f.notifier.sent[0].Text, "\nping the on-call") {
		t.Fatalf("custom message not appended: %+v", f.notifier.sent)
	}
	if recs := f.log.Records(); len(recs) != 1 || recs[0].CustomMessage != "ping the on-call" {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestDispatcher_States(t *testing.T) {
	f := newFixture(t)
	if f.d.State() != StateUninitialized {
		t.Fatalf("expected %s, got %s", StateUninitialized, f.d.State())
	}
	f.register(t, notify.Uniform{Target: "#c"}, notify.Conditions{}, notify.Options{})
	if f.d.State() != StateAwaitingRun {
		t.Fatalf("expected %s, got %s", StateAwaitingRun, f.d.State())
	}

	ctx := context.Background()
	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	if f.d.RunID() == "" {
		t.Fatal("expected a run id after run start")
	}
	if f.d.Run().RunDashboardURL != dashboardURL {
		t.Fatalf("run info not captured: %+v", f.d.Run())
	}

	f.d.SpecFinished(ctx, spec("a.cy.js"), failedLogin)
	if f.d.State() != StateIdle {
		t.Fatalf("expected %s, got %s", StateIdle, f.d.State())
	}
}

func TestDispatcher_TagRouteNoDeduplication(t *testing.T) {
	tags := tagger.ExtractorFunc(func(context.Context, string) (tagger.Tags, error) {
		return tagger.Tags{
			"login / fails": {"@auth", "@ui"},
			"cart / fails":  {"@auth"},
		}, nil
	})
	f := newFixture(t, WithTagExtractor(tags))
	f.register(t, notify.ByTag{TestTags: map[string]string{"@auth": "#sec", "@ui": "#ui"}}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("cypress/e2e/a.cy.js"), lifecycle.SpecResults{
		Stats: lifecycle.Stats{Failures: 2},
		Tests: []lifecycle.TestResult{
			{Title: []string{"login", "fails"}, State: lifecycle.StateFailed},
			{Title: []string{"cart", "fails"}, State: lifecycle.StateFailed},
		},
	})

	wantChannels := []string{"#sec", "#ui", "#sec"}
	if diff := cmp.Diff(wantChannels, f.notifier.channels()); diff != "" {
		t.Errorf("channels mismatch (-want +got):\n%s", diff)
	}

	var want []notify.DeliveryRecord
	for _, ch := range wantChannels {
		want = append(want, notify.DeliveryRecord{
			Channel:         ch,
			People:          []string{},
			FoundPeople:     []string{},
			Sent:            true,
			RunDashboardURL: dashboardURL,
		})
	}
	if diff := cmp.Diff(want, readLog(t, f.log.Path())); diff != "" {
		t.Errorf("delivery log mismatch (-want +got):\n%s", diff)
	}

	for i, tag := range []string{"@auth", "@ui", "@auth"} {
		if !strings.Contains(f.notifier.sent[i].Text, "Test tags: *"+tag+"*") {
			t.Errorf("message %d should name %s: %q", i, tag, f.notifier.sent[i].Text)
		}
	}
}

func TestDispatcher_LogRestartsPerRun(t *testing.T) {
	f := newFixture(t)
	f.register(t, notify.Uniform{Target: "#c"}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	for _, url := range []string{"https://dash/runs/a", "https://dash/runs/b"} {
		f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: url})
		f.d.SpecFinished(ctx, spec("a.cy.js"), failedLogin)
	}

	want := []notify.DeliveryRecord{{
		Channel:         "#c",
		People:          []string{},
		FoundPeople:     []string{},
		Sent:            true,
		RunDashboardURL: "https://dash/runs/b",
	}}
	if diff := cmp.Diff(want, readLog(t, f.log.Path())); diff != "" {
		t.Errorf("delivery log mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, f.log.Records()); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}

	// a clean third run leaves an empty document
	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: "https://dash/runs/c"})
	if got := readLog(t, f.log.Path()); len(got) != 0 {
		t.Fatalf("expected empty log for the new run, got %+v", got)
	}
}

func TestDispatcher_RunStartWithoutLogRegistrations(t *testing.T) {
	f := newFixture(t)
	f.register(t, notify.Uniform{Target: "#c"}, notify.Conditions{}, notify.Options{})

	f.d.RunStarted(context.Background(), lifecycle.RunDetails{RunURL: dashboardURL})

	if f.log.Started() {
		t.Fatal("log must stay untouched when no registration writes it")
	}
}

// clearingExtractor records cache resets.
type clearingExtractor struct {
	clears int
}

func (c *clearingExtractor) EffectiveTags(context.Context, string) (tagger.Tags, error) {
	return tagger.Tags{}, nil
}

func (c *clearingExtractor) Clear() { c.clears++ }

func TestDispatcher_RunStartClearsTagCache(t *testing.T) {
	tags := &clearingExtractor{}
	f := newFixture(t, WithTagExtractor(tags))
	f.register(t, notify.ByTag{TestTags: map[string]string{"@auth": "#sec"}}, notify.Conditions{}, notify.Options{})
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{})
	f.d.RunStarted(ctx, lifecycle.RunDetails{})

	if tags.clears != 2 {
		t.Fatalf("expected a clear per run, got %d", tags.clears)
	}
}

func TestDispatcher_CrashedSpec(t *testing.T) {
	f := newFixture(t)
	f.register(t, notify.Uniform{Target: "#c"}, notify.Conditions{}, writeLog)
	ctx := context.Background()

	f.d.RunStarted(ctx, lifecycle.RunDetails{RunURL: dashboardURL})
	f.d.SpecFinished(ctx, spec("a.cy.js"), lifecycle.SpecResults{Error: "Cannot find module './support'"})

	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(f.notifier.sent))
	}
	text := f.notifier.sent[0].Text
	if !strings.HasPrefix(text, "🚨 Spec *a.cy.js* crashed\nError: Cannot find module './support'") {
		t.Fatalf("unexpected crash message %q", text)
	}
	if strings.Contains(text, "0 tests failed") {
		t.Fatalf("crash must not report zero failures: %q", text)
	}
}
