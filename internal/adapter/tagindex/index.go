// Package tagindex serves effective test tags from a pre-computed index
// file, keyed by spec path then by full test title.
package tagindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/specnotify/internal/port/tagger"
)

// Index is a loaded tag index. It is read-only after Load.
type Index struct {
	specs map[string]tagger.Tags
}

var _ tagger.Extractor = (*Index)(nil)

// Load reads a YAML or JSON index of the form
//
//	cypress/e2e/auth.cy.js:
//	  "auth / logs in": ["@auth", "@smoke"]
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from config
	if err != nil {
		return nil, fmt.Errorf("read tag index %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes index data.
func Parse(data []byte) (*Index, error) {
	specs := map[string]tagger.Tags{}
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse tag index: %w", err)
	}
	normalized := make(map[string]tagger.Tags, len(specs))
	for p, tags := range specs {
		normalized[filepath.ToSlash(p)] = tags
	}
	return &Index{specs: normalized}, nil
}

// EffectiveTags looks the spec up by exact path, then by the longest
// indexed path that the spec path ends with. Unknown specs have no tags.
func (x *Index) EffectiveTags(_ context.Context, specAbsolutePath string) (tagger.Tags, error) {
	p := filepath.ToSlash(specAbsolutePath)
	if tags, ok := x.specs[p]; ok {
		return tags, nil
	}

	best := ""
	for key := range x.specs {
		if (strings.HasSuffix(p, "/"+key) || p == key) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return tagger.Tags{}, nil
	}
	return x.specs[best], nil
}
