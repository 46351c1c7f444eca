// Package nsfilter matches db.collection namespaces against glob patterns.
package nsfilter

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/indexscout/index-scout/internal/pkg/errors"
)

// Filter decides which namespaces enter the analysis pipeline. Patterns use
// glob syntax with '.' as separator: "db.collection", "db.*", "*.collection".
// A bare "*" (or an empty pattern list) passes everything.
type Filter struct {
	matchAll bool
	globs    []glob.Glob
}

// New compiles the pattern list. An empty list matches all namespaces.
func New(patterns []string) (*Filter, error) {
	f := &Filter{}
	if len(patterns) == 0 {
		f.matchAll = true
		return f, nil
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "*" {
			f.matchAll = true
			continue
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, errors.Wrap(errors.CodeValidation, fmt.Sprintf("invalid namespace pattern %q", pattern), err)
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

// Match reports whether the namespace passes the filter.
func (f *Filter) Match(ns string) bool {
	if f.matchAll {
		return true
	}
	for _, g := range f.globs {
		if g.Match(ns) {
			return true
		}
	}
	return false
}
