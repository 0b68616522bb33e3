package pattern

import "strings"

// anyDepth is prepended to patterns that are not anchored to the root.
const anyDepth = "**/"

// Normalize converts one ignore-file line into a glob pattern. The second
// return value is false when the line contributes nothing: blank lines,
// comments and negations.
//
// Negated lines are dropped rather than honored, so a path matched by an
// earlier pattern can never be re-included.
func Normalize(line string) (string, bool) {
	if strings.HasPrefix(strings.TrimSpace(line), "!") {
		return "", false
	}

	s := strings.TrimSpace(stripComment(line))
	if s == "" {
		return "", false
	}

	// "*,js" is almost always a typo for "*.js".
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ",", ".")
	}

	s = strings.TrimRight(s, "/")
	if s == "" {
		return "", false
	}

	if !strings.HasPrefix(s, "/") && !strings.HasPrefix(s, anyDepth) {
		s = anyDepth + s
	}
	return s, true
}

// stripComment cuts the line at the first '#' not preceded by a backslash.
func stripComment(line string) string {
	escaped := false
	for i := 0; i < len(line); i++ {
		switch {
		case escaped:
			escaped = false
		case line[i] == '\\':
			escaped = true
		case line[i] == '#':
			return line[:i]
		}
	}
	return line
}
