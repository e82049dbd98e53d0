package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/specnotify/internal/domain/notify"
)

// testTagsKey marks a tag-routed notify mapping.
const testTagsKey = "testTags"

// Registration is one configured listener as written in YAML.
type Registration struct {
	Notify     Notify         `yaml:"notify"`
	Conditions Conditions     `yaml:"conditions"`
	Options    notify.Options `yaml:"options"`
}

// Conditions mirror notify.Conditions minus the code-only predicate.
type Conditions struct {
	WhenRecordingOnDashboard  *bool      `yaml:"whenRecordingOnDashboard"`
	WhenRecordingDashboardTag StringList `yaml:"whenRecordingDashboardTag"`
}

// Notify decodes the three notify shapes:
//
//	notify: "#channel @person"             # uniform
//	notify: {"spec-a.cy.js": "#a"}         # by path, in file order
//	notify: {testTags: {"@auth": "#sec"}}  # by tag
type Notify struct {
	notify.Configuration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Notify) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return fmt.Errorf("%w: line %d: notify is empty", notify.ErrConfiguration, node.Line)
		}
		n.Configuration = notify.Uniform{Target: node.Value}
		return nil
	case yaml.MappingNode:
		if len(node.Content) == 2 && node.Content[0].Value == testTagsKey {
			tags, err := decodeTagTargets(node.Content[1])
			if err != nil {
				return err
			}
			n.Configuration = notify.ByTag{TestTags: tags}
			return nil
		}
		routes, err := decodeRoutes(node)
		if err != nil {
			return err
		}
		n.Configuration = notify.ByPath{Routes: routes}
		return nil
	default:
		return fmt.Errorf("%w: line %d: notify must be a string or a mapping", notify.ErrConfiguration, node.Line)
	}
}

func decodeRoutes(node *yaml.Node) ([]notify.Route, error) {
	routes := make([]notify.Route, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		target, err := shorthand(val)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %w", notify.ErrConfiguration, key.Value, err)
		}
		routes = append(routes, notify.Route{Pattern: key.Value, Target: target})
	}
	return routes, nil
}

func decodeTagTargets(node *yaml.Node) (map[string]string, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: testTags must be a mapping", notify.ErrConfiguration, node.Line)
	}
	tags := make(map[string]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		target, err := shorthand(val)
		if err != nil {
			return nil, fmt.Errorf("%w: tag %q: %w", notify.ErrConfiguration, key.Value, err)
		}
		tags[key.Value] = target
	}
	return tags, nil
}

func shorthand(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return "", fmt.Errorf("%w: line %d: expected a string", notify.ErrInvalidShorthand, node.Line)
	}
	return node.Value, nil
}

// StringList accepts either a single string or a sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// Build converts the YAML registration into dispatcher arguments.
func (r Registration) Build() (notify.Configuration, notify.Conditions, notify.Options) {
	cond := notify.Conditions{
		WhenRecordingOnDashboard:  r.Conditions.WhenRecordingOnDashboard,
		WhenRecordingDashboardTag: []string(r.Conditions.WhenRecordingDashboardTag),
	}
	return r.Notify.Configuration, cond, r.Options
}
