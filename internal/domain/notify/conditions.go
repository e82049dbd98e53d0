package notify

import "slices"

// RunInfo describes the current run. It is captured once at run start.
type RunInfo struct {
	RunDashboardURL  string   `json:"runDashboardUrl,omitempty"`
	RunDashboardTags []string `json:"runDashboardTags,omitempty"`
}

// Recording reports whether the run is attached to a dashboard.
func (r RunInfo) Recording() bool { return r.RunDashboardURL != "" }

// Predicate is a caller-supplied decision over the run.
type Predicate func(RunInfo) bool

// Conditions gate whether a registration notifies for the current run.
// WhenISaySo, if set, replaces every other field.
type Conditions struct {
	// WhenRecordingOnDashboard defaults to true when nil.
	WhenRecordingOnDashboard *bool
	// WhenRecordingDashboardTag requires at least one shared run tag.
	WhenRecordingDashboardTag []string
	WhenISaySo                Predicate
}

// Bool returns a pointer to b, for WhenRecordingOnDashboard literals.
func Bool(b bool) *bool { return &b }

// WithDefaults returns a copy with the recording requirement filled in.
// Applying it twice yields the same value.
func (c Conditions) WithDefaults() Conditions {
	out := c
	if out.WhenRecordingOnDashboard == nil {
		out.WhenRecordingOnDashboard = Bool(true)
	}
	if out.WhenRecordingDashboardTag != nil {
		out.WhenRecordingDashboardTag = slices.Clone(out.WhenRecordingDashboardTag)
	}
	return out
}

// ShouldNotify evaluates the conditions against the run. It does not mutate c.
func ShouldNotify(c Conditions, run RunInfo) bool {
	if c.WhenISaySo != nil {
		return c.WhenISaySo(run)
	}

	whenRecording := true
	if c.WhenRecordingOnDashboard != nil {
		whenRecording = *c.WhenRecordingOnDashboard
	}

	if !whenRecording {
		// explicit opt-out while recording
		return !run.Recording()
	}

	if !run.Recording() {
		return false
	}
	if len(c.WhenRecordingDashboardTag) > 0 {
		if len(run.RunDashboardTags) == 0 {
			return false
		}
		return slices.ContainsFunc(c.WhenRecordingDashboardTag, func(tag string) bool {
			return slices.Contains(run.RunDashboardTags, tag)
		})
	}
	return true
}
