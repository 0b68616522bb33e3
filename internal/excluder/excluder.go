package excluder

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/mahyarmirrashed/ctxignore/internal/pattern"
	"github.com/mahyarmirrashed/ctxignore/internal/workspace"
)

// Result is the outcome of an exclusion query.
type Result int

const (
	NotIgnored Result = iota
	// IgnoredLocal means the workspace ignore file or a configured
	// exclude pattern matched.
	IgnoredLocal
	// IgnoredRemote is reserved for server-side policy. Nothing in this
	// package produces it.
	IgnoredRemote
)

func (r Result) String() string {
	switch r {
	case NotIgnored:
		return "not-ignored"
	case IgnoredLocal:
		return "ignored-local"
	case IgnoredRemote:
		return "ignored-remote"
	default:
		return "unknown"
	}
}

// Ignored reports whether r withholds the path.
func (r Result) Ignored() bool {
	return r != NotIgnored
}

// Decision is a Result plus what produced it.
type Decision struct {
	Result  Result
	Pattern string
	Root    workspace.Root
}

// Target is what a PatternGetter found for a queried path.
type Target struct {
	// Root owns the path, or is NoWorkspace.
	Root workspace.Root
	// Subject is the slash-separated path relative to Root, or the located
	// absolute path when no root owns it.
	Subject string
	// Patterns are the ignore-file patterns of Root.
	Patterns *pattern.Set
}

// PatternGetter supplies the ignore-file patterns in effect for a path.
type PatternGetter interface {
	// ExcludePatterns locates path, which may be absolute, a file URI or
	// workspace relative. ok is false when no workspace root owns it.
	ExcludePatterns(ctx context.Context, path string) (t Target, ok bool)
}

// Excluder matches paths against static exclude globs and the ignore-file
// patterns provided by an injected PatternGetter.
type Excluder struct {
	host   workspace.Host
	static pattern.Globs

	mu     sync.RWMutex
	getter PatternGetter
}

// New creates an Excluder from a list of glob patterns that always apply.
// Patterns use '/' as the path separator.
func New(patterns []string, host workspace.Host) (*Excluder, error) {
	folded := make([]string, len(patterns))
	for i, p := range patterns {
		folded[i] = p
		if host.CaseInsensitive {
			folded[i] = strings.ToLower(p)
		}
	}
	globs, err := pattern.Compile(folded)
	if err != nil {
		return nil, err
	}
	return &Excluder{host: host, static: globs}, nil
}

// Init installs the pattern getter. Until it is called every path, including
// those a static pattern would match, is reported as NotIgnored.
func (e *Excluder) Init(getter PatternGetter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.getter = getter
}

// Reset removes the pattern getter.
func (e *Excluder) Reset() {
	e.Init(nil)
}

// Initialized reports whether a pattern getter is installed.
func (e *Excluder) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.getter != nil
}

// IsExcluded reports whether path must be withheld from context.
func (e *Excluder) IsExcluded(ctx context.Context, path string) Result {
	return e.Explain(ctx, path).Result
}

// Explain is IsExcluded plus the pattern that matched.
func (e *Excluder) Explain(ctx context.Context, path string) Decision {
	e.mu.RLock()
	getter := e.getter
	e.mu.RUnlock()

	if getter == nil {
		return Decision{Result: NotIgnored}
	}

	t, _ := getter.ExcludePatterns(ctx, path)
	root, set, rel := t.Root, t.Patterns, t.Subject
	if rel == "" && root.IsZero() {
		// Outside every root only static patterns apply.
		rel = path
	}
	rel = e.host.Normalize(rel)

	if p, ok := e.static.MatchPath(rel); ok {
		log.Debugf("Excluded %s by %s", path, p)
		return Decision{Result: IgnoredLocal, Pattern: p, Root: root}
	}

	match := set.MatchPath
	if e.host.CaseInsensitive {
		match = set.MatchPathFold
	}
	if p, ok := match(rel); ok {
		log.Debugf("Excluded %s by %s", path, p)
		return Decision{Result: IgnoredLocal, Pattern: p, Root: root}
	}
	return Decision{Result: NotIgnored, Root: root}
}
