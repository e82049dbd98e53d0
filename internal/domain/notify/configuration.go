package notify

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind names the shape of a Configuration.
type Kind string

const (
	KindUniform Kind = "uniform"
	KindByPath  Kind = "by_path"
	KindByTag   Kind = "by_tag"
)

// Configuration decides where failures of a spec are reported. It is one of
// Uniform, ByPath or ByTag; the shape is fixed once registered.
type Configuration interface {
	Kind() Kind
	validate() error
}

// Uniform sends every failing spec to the same shorthand target.
type Uniform struct {
	Target string
}

func (Uniform) Kind() Kind { return KindUniform }

func (u Uniform) validate() error {
	if strings.TrimSpace(u.Target) == "" {
		return fmt.Errorf("%w: empty target", ErrConfiguration)
	}
	return nil
}

// Route maps a spec path suffix or glob pattern to a shorthand target.
type Route struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Target  string `json:"target" yaml:"target"`
}

// Matches reports whether the relative spec path ends with the pattern or
// the pattern, read as a glob, matches the path.
func (r Route) Matches(specPath string) bool {
	if strings.HasSuffix(specPath, r.Pattern) {
		return true
	}
	ok, err := doublestar.Match(r.Pattern, specPath)
	return err == nil && ok
}

// ByPath routes by spec path. Routes are tried in order; the first match wins.
type ByPath struct {
	Routes []Route
}

func (ByPath) Kind() Kind { return KindByPath }

func (b ByPath) validate() error {
	if len(b.Routes) == 0 {
		return fmt.Errorf("%w: no path routes", ErrConfiguration)
	}
	for _, r := range b.Routes {
		if r.Pattern == "" {
			return fmt.Errorf("%w: empty path pattern", ErrConfiguration)
		}
	}
	return nil
}

// ByTag routes each failed test by its effective tags.
type ByTag struct {
	TestTags map[string]string
}

func (ByTag) Kind() Kind { return KindByTag }

func (b ByTag) validate() error {
	if len(b.TestTags) == 0 {
		return fmt.Errorf("%w: no test tags", ErrConfiguration)
	}
	return nil
}

// TargetFor returns the shorthand configured for an effective tag.
func (b ByTag) TargetFor(tag string) (string, bool) {
	t, ok := b.TestTags[tag]
	return t, ok
}

// Validate checks that a configuration is present and usable.
func Validate(cfg Configuration) error {
	if cfg == nil {
		return fmt.Errorf("%w: missing", ErrConfiguration)
	}
	return cfg.validate()
}

// FindChannelToNotify returns the shorthand to act on for a failed spec.
// ByTag configurations are resolved per test by the dispatcher and always
// yield false here.
func FindChannelToNotify(cfg Configuration, specRelativePath string) (string, bool) {
	switch c := cfg.(type) {
	case Uniform:
		return c.Target, true
	case ByPath:
		for _, r := range c.Routes {
			if r.Matches(specRelativePath) {
				return r.Target, true
			}
		}
	}
	return "", false
}
