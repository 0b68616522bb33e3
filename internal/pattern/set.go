package pattern

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
	log "github.com/sirupsen/logrus"
)

// Set is an ordered, deduplicated mapping of pattern to enabled flag.
//
// A Set is built with Add and must not be modified once it has been handed
// to other goroutines; reloads produce a new Set instead.
type Set struct {
	keys    []string
	enabled map[string]bool

	once  sync.Once
	globs Globs

	foldOnce  sync.Once
	foldGlobs Globs
}

var emptySet = NewSet()

// EmptySet returns the shared empty set.
func EmptySet() *Set {
	return emptySet
}

// NewSet returns an empty set ready for Add.
func NewSet() *Set {
	return &Set{enabled: make(map[string]bool)}
}

// Add inserts pattern with the given flag. Adding a pattern that is already
// present is a no-op.
func (s *Set) Add(pattern string, enabled bool) {
	if pattern == "" {
		return
	}
	if _, ok := s.enabled[pattern]; ok {
		return
	}
	s.keys = append(s.keys, pattern)
	s.enabled[pattern] = enabled
}

// Len returns the number of distinct patterns.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Contains reports whether pattern is present and enabled.
func (s *Set) Contains(pattern string) bool {
	return s != nil && s.enabled[pattern]
}

// Enabled returns the enabled patterns in insertion order.
func (s *Set) Enabled() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		if s.enabled[k] {
			out = append(out, k)
		}
	}
	return out
}

// Map returns a copy of the pattern to flag mapping.
func (s *Set) Map() map[string]bool {
	out := make(map[string]bool, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.enabled {
		out[k] = v
	}
	return out
}

// MatchPath tests a slash-separated, root-relative path and each of its
// parent directories against the enabled patterns. It returns the first
// pattern that matched.
func (s *Set) MatchPath(rel string) (string, bool) {
	if s.Len() == 0 {
		return "", false
	}
	s.once.Do(func() {
		s.globs = CompileLenient(s.Enabled())
	})
	return s.globs.MatchPath(rel)
}

// MatchPathFold is MatchPath for case-insensitive hosts: patterns are
// lower-cased before compiling and rel is expected to be lower-cased
// already.
func (s *Set) MatchPathFold(rel string) (string, bool) {
	if s.Len() == 0 {
		return "", false
	}
	s.foldOnce.Do(func() {
		enabled := s.Enabled()
		for i, p := range enabled {
			enabled[i] = strings.ToLower(p)
		}
		s.foldGlobs = CompileLenient(enabled)
	})
	return s.foldGlobs.MatchPath(rel)
}

// Compiled is a glob compiled with '/' as the separator.
type Compiled struct {
	Pattern string
	glob    glob.Glob
}

// Globs is a list of compiled patterns, OR'd together.
type Globs []Compiled

// Compile compiles every pattern and fails on the first invalid one.
func Compile(patterns []string) (Globs, error) {
	out := make(Globs, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, Compiled{Pattern: p, glob: g})
	}
	return out, nil
}

// CompileLenient compiles every pattern, skipping the ones that do not
// compile.
func CompileLenient(patterns []string) Globs {
	out := make(Globs, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			log.Debugf("Skipping invalid pattern %q: %v", p, err)
			continue
		}
		out = append(out, Compiled{Pattern: p, glob: g})
	}
	return out
}

// Match tests a single subject string.
func (gs Globs) Match(subject string) (string, bool) {
	for _, c := range gs {
		if c.glob.Match(subject) {
			return c.Pattern, true
		}
	}
	return "", false
}

// MatchPath tests rel and every parent directory of rel. Each candidate is
// tried both rooted ("/a/b") and bare ("a/b"), so root-anchored patterns and
// "**/" patterns match at the top level as well as below it.
func (gs Globs) MatchPath(rel string) (string, bool) {
	if len(gs) == 0 {
		return "", false
	}
	rel = strings.Trim(rel, "/")
	if rel == "" || rel == "." {
		return "", false
	}
	for i := 0; i <= len(rel); i++ {
		if i < len(rel) && rel[i] != '/' {
			continue
		}
		prefix := rel[:i]
		if p, ok := gs.Match("/" + prefix); ok {
			return p, true
		}
		if p, ok := gs.Match(prefix); ok {
			return p, true
		}
	}
	return "", false
}
