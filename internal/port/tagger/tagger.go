// Package tagger defines the effective-tag extraction port.
package tagger

import "context"

// Tags maps a test's full title to its effective tags.
type Tags map[string][]string

// Extractor computes effective tags for every test in a spec file.
type Extractor interface {
	EffectiveTags(ctx context.Context, specAbsolutePath string) (Tags, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, specAbsolutePath string) (Tags, error)

// EffectiveTags calls f.
func (f ExtractorFunc) EffectiveTags(ctx context.Context, specAbsolutePath string) (Tags, error) {
	return f(ctx, specAbsolutePath)
}
