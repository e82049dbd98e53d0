package notify

import (
	"fmt"
	"strings"
)

// FailedViewQuery narrows a dashboard run page to its failures.
const FailedViewQuery = "/overview?reviewViewBy=FAILED"

// Summary is everything a failure message is built from.
type Summary struct {
	SpecPath      string
	Failed        int
	FailedTitles  []string
	// SpecError is the runner's error for a spec that crashed.
	SpecError     string
	Run           RunInfo
	EffectiveTags []string
	// MentionIDs are resolved directory ids, in requested order.
	MentionIDs    []string
	CustomMessage string
}

// MentionToken renders a directory id as a chat mention.
func MentionToken(id string) string { return "<@" + id + ">" }

// Compose builds the message text. Empty sections are left out.
func Compose(s Summary) string {
	var b strings.Builder
	if s.Failed == 0 && s.SpecError != "" {
		fmt.Fprintf(&b, "🚨 Spec *%s* crashed", s.SpecPath)
	} else {
		fmt.Fprintf(&b, "🚨 %d %s failed in spec *%s*", s.Failed, pluralTests(s.Failed), s.SpecPath)
	}
	if s.SpecError != "" {
		b.WriteString("\nError: ")
		b.WriteString(s.SpecError)
	}

	for _, title := range s.FailedTitles {
		b.WriteString("\n• ")
		b.WriteString(title)
	}
	if s.Run.RunDashboardURL != "" {
		b.WriteString("\nDashboard URL: ")
		b.WriteString(s.Run.RunDashboardURL + FailedViewQuery)
	}
	if len(s.Run.RunDashboardTags) > 0 {
		b.WriteString("\nRun tags: ")
		b.WriteString(emphasize(s.Run.RunDashboardTags))
	}
	if len(s.EffectiveTags) > 0 {
		b.WriteString("\nTest tags: ")
		b.WriteString(emphasize(s.EffectiveTags))
	}
	if len(s.MentionIDs) > 0 {
		tokens := make([]string, len(s.MentionIDs))
		for i, id := range s.MentionIDs {
			tokens[i] = MentionToken(id)
		}
		b.WriteString("\nPlease investigate the failures ")
		b.WriteString(strings.Join(tokens, ", "))
	}
	if s.CustomMessage != "" {
		b.WriteString("\n")
		b.WriteString(s.CustomMessage)
	}
	return b.String()
}

func pluralTests(n int) string {
	if n == 1 {
		return "test"
	}
	return "tests"
}

func emphasize(items []string) string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = "*" + s + "*"
	}
	return strings.Join(out, ", ")
}
