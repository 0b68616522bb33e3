package globber

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/mahyarmirrashed/ctxignore/internal/pattern"
)

// Build combines the enabled patterns of set with extra, already formatted
// patterns. Zero patterns give "", one is returned as is, more are wrapped
// in braces and joined with commas.
//
// Patterns are inserted verbatim. A pattern that itself contains braces or
// commas is not escaped.
func Build(set *pattern.Set, extra ...string) string {
	patterns := set.Enabled()
	seen := lo.Associate(patterns, func(p string) (string, bool) { return p, true })
	for _, p := range extra {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		patterns = append(patterns, p)
	}
	return Join(patterns)
}

// Join formats an already collected pattern list.
func Join(patterns []string) string {
	switch len(patterns) {
	case 0:
		return ""
	case 1:
		return patterns[0]
	default:
		return "{" + strings.Join(patterns, ",") + "}"
	}
}

// Split reverses Join. A brace-free glob with no top-level comma is
// returned as a single pattern. Unbalanced braces, or a bare comma list
// without the enclosing braces, yield nil. Only top-level commas separate
// patterns, and blank entries are dropped.
func Split(glob string) []string {
	glob = strings.TrimSpace(glob)
	if glob == "" || !balanced(glob) {
		return nil
	}
	if !strings.HasPrefix(glob, "{") || closingBrace(glob) != len(glob)-1 {
		if len(splitTopLevel(glob)) > 1 {
			return nil
		}
		return []string{glob}
	}
	return splitTopLevel(glob[1 : len(glob)-1])
}

// splitTopLevel splits s on commas that are not nested inside braces.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) {
			switch s[i] {
			case '{':
				depth++
				continue
			case '}':
				depth--
				continue
			case ',':
				if depth > 0 {
					continue
				}
			default:
				continue
			}
		}
		if p := strings.TrimSpace(s[start:i]); p != "" {
			out = append(out, p)
		}
		start = i + 1
	}
	return out
}

// closingBrace returns the index of the brace closing the one at s[0].
func closingBrace(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func balanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// EnabledKeys returns the sorted keys of an editor-style exclude map whose
// value is true.
func EnabledKeys(m map[string]bool) []string {
	keys := lo.Keys(lo.PickBy(m, func(_ string, enabled bool) bool { return enabled }))
	sort.Strings(keys)
	return keys
}
