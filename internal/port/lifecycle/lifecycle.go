// Package lifecycle defines the test-run events the dispatcher reacts to.
package lifecycle

import (
	"context"
	"strings"
	"sync"
)

// TitleSeparator joins nested test title segments into a full title.
const TitleSeparator = " / "

// RunDetails is delivered once when a run starts.
type RunDetails struct {
	RunURL string   `json:"runUrl,omitempty"`
	Tag    []string `json:"tag,omitempty"`
}

// Spec identifies a finished spec file.
type Spec struct {
	Relative string `json:"relative"`
	Absolute string `json:"absolute"`
}

// Stats are the counts reported for a spec.
type Stats struct {
	Failures int `json:"failures"`
}

// State values a test can finish in.
const (
	StatePassed  = "passed"
	StateFailed  = "failed"
	StatePending = "pending"
	StateSkipped = "skipped"
)

// TestResult is one test of a spec.
type TestResult struct {
	Title []string `json:"title"`
	State string   `json:"state"`
}

// FullTitle joins the nested title segments.
func (t TestResult) FullTitle() string {
	return strings.Join(t.Title, TitleSeparator)
}

// Failed reports whether the test failed.
func (t TestResult) Failed() bool { return t.State == StateFailed }

// SpecResults is delivered once per spec.
type SpecResults struct {
	Error string       `json:"error,omitempty"`
	Stats Stats        `json:"stats"`
	Tests []TestResult `json:"tests"`
}

// HasFailures reports whether the spec crashed or any test failed.
func (r SpecResults) HasFailures() bool {
	return r.Error != "" || r.Stats.Failures > 0
}

// FailedTests returns the failed tests in reported order.
func (r SpecResults) FailedTests() []TestResult {
	var out []TestResult
	for _, t := range r.Tests {
		if t.Failed() {
			out = append(out, t)
		}
	}
	return out
}

// Listener reacts to run lifecycle events.
type Listener interface {
	RunStarted(ctx context.Context, details RunDetails)
	SpecFinished(ctx context.Context, spec Spec, results SpecResults)
}

// SpecEvent pairs a finished spec with its results.
type SpecEvent struct {
	Spec    Spec        `json:"spec"`
	Results SpecResults `json:"results"`
}

// Recording is a captured run: its start details and every finished spec in order.
type Recording struct {
	Run   RunDetails  `json:"run"`
	Specs []SpecEvent `json:"specs"`
}

// Emitter fans one event out to every subscribed listener, in subscription order.
// Events are delivered one at a time; a second event waits until every
// listener has returned from the first.
type Emitter struct {
	mu        sync.Mutex
	listeners []Listener
}

// Subscribe adds a listener.
func (e *Emitter) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// EmitRunStarted delivers a run-start event.
func (e *Emitter) EmitRunStarted(ctx context.Context, details RunDetails) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range e.listeners {
		l.RunStarted(ctx, details)
	}
}

// EmitSpecFinished delivers a spec-finished event.
func (e *Emitter) EmitSpecFinished(ctx context.Context, spec Spec, results SpecResults) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range e.listeners {
		l.SpecFinished(ctx, spec, results)
	}
}

// Replay emits a recorded run: the run start, then each spec in order.
func (e *Emitter) Replay(ctx context.Context, rec Recording) {
	e.EmitRunStarted(ctx, rec.Run)
	for _, ev := range rec.Specs {
		e.EmitSpecFinished(ctx, ev.Spec, ev.Results)
	}
}
