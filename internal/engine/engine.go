// Package engine owns the exclusion cache and decider for a set of
// workspace roots and exposes the queries the rest of the program uses.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/mahyarmirrashed/ctxignore/internal/cache"
	"github.com/mahyarmirrashed/ctxignore/internal/config"
	"github.com/mahyarmirrashed/ctxignore/internal/excluder"
	"github.com/mahyarmirrashed/ctxignore/internal/globber"
	"github.com/mahyarmirrashed/ctxignore/internal/loader"
	"github.com/mahyarmirrashed/ctxignore/internal/pattern"
	"github.com/mahyarmirrashed/ctxignore/internal/search"
	"github.com/mahyarmirrashed/ctxignore/internal/utils"
	"github.com/mahyarmirrashed/ctxignore/internal/watch"
	"github.com/mahyarmirrashed/ctxignore/internal/workspace"
)

// VSCodeExclude keeps editor settings out of bulk file listings.
const VSCodeExclude = "**/.vscode/**"

// Option overrides a collaborator of the engine.
type Option func(*options)

type options struct {
	reader   loader.Reader
	watcher  cache.Watcher
	notifier utils.Notifier
}

// WithReader replaces the filesystem reader.
func WithReader(r loader.Reader) Option {
	return func(o *options) { o.reader = r }
}

// WithWatcher replaces the ignore-file watcher. A nil watcher disables live
// invalidation.
func WithWatcher(w cache.Watcher) Option {
	return func(o *options) { o.watcher = w }
}

// WithNotifier replaces the exclusion notifier.
func WithNotifier(n utils.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// Engine ties the cache, the decider and the workspace roots together.
type Engine struct {
	cfg      *config.Config
	resolver *workspace.Resolver
	cache    *cache.Cache
	excluder *excluder.Excluder
	notifier utils.Notifier
}

// New builds an engine for cfg and initializes its decider.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	o := options{
		reader:   loader.OSReader{},
		watcher:  watch.FSWatcher{Debounce: cfg.Debounce},
		notifier: utils.DesktopNotifier{Enabled: cfg.Notifications},
	}
	for _, opt := range opts {
		opt(&o)
	}

	roots := make([]string, len(cfg.Roots))
	for i, r := range cfg.Roots {
		roots[i] = utils.ExpandTilde(r)
	}

	ex, err := excluder.New(cfg.Exclude, workspace.Host{CaseInsensitive: cfg.CaseInsensitive})
	if err != nil {
		return nil, fmt.Errorf("failed to compile exclude patterns: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		resolver: workspace.NewResolver(roots...),
		cache:    cache.New(o.reader, o.watcher, cache.WithReadTimeout(cfg.ReadTimeout)),
		excluder: ex,
		notifier: o.notifier,
	}
	e.excluder.Init(e)
	return e, nil
}

// Roots returns the workspace roots, deepest first.
func (e *Engine) Roots() []workspace.Root {
	return e.resolver.Roots()
}

// ExcludePatterns implements excluder.PatternGetter.
func (e *Engine) ExcludePatterns(ctx context.Context, path string) (excluder.Target, bool) {
	root, abs, ok := e.resolver.Locate(path)
	if !ok {
		return excluder.Target{Root: workspace.NoWorkspace, Subject: abs}, false
	}
	rel, _ := root.Rel(abs)
	return excluder.Target{Root: root, Subject: rel, Patterns: e.cache.GetOrLoad(ctx, root)}, true
}

// RemoveRoot closes the workspace root at path: it stops being resolved and
// its cached patterns and watcher are dropped. It reports whether the root
// was configured.
func (e *Engine) RemoveRoot(path string) bool {
	root, ok := e.resolver.Remove(utils.ExpandTilde(path))
	if !ok {
		return false
	}
	e.cache.Forget(root)
	log.Infof("Removed workspace root %s", root)
	return true
}

// Patterns returns the ignore-file patterns in effect for root.
func (e *Engine) Patterns(ctx context.Context, root workspace.Root) *pattern.Set {
	return e.cache.GetOrLoad(ctx, root)
}

// ExcludeGlob returns the exclude glob built from root's ignore file.
func (e *Engine) ExcludeGlob(ctx context.Context, root workspace.Root) string {
	return globber.Build(e.cache.GetOrLoad(ctx, root))
}

// WorkspaceExcludeGlob merges the exclude globs of every root with the
// editor exclude settings and VSCodeExclude.
func (e *Engine) WorkspaceExcludeGlob(ctx context.Context) string {
	var patterns []string
	for _, root := range e.resolver.Roots() {
		patterns = append(patterns, globber.Split(e.ExcludeGlob(ctx, root))...)
	}
	patterns = append(patterns, globber.EnabledKeys(e.cfg.FilesExclude)...)
	patterns = append(patterns, globber.EnabledKeys(e.cfg.SearchExclude)...)
	patterns = append(patterns, e.cfg.Exclude...)
	patterns = append(patterns, VSCodeExclude)
	return globber.Build(nil, patterns...)
}

// IsExcluded reports whether path must be withheld from context.
func (e *Engine) IsExcluded(ctx context.Context, path string) excluder.Result {
	return e.excluder.IsExcluded(ctx, path)
}

// Explain is IsExcluded plus the pattern responsible.
func (e *Engine) Explain(ctx context.Context, path string) excluder.Decision {
	return e.excluder.Explain(ctx, path)
}

// IsExcludedWithNotification is IsExcluded that also notifies the user when
// the path is withheld.
func (e *Engine) IsExcludedWithNotification(ctx context.Context, path, feature string) excluder.Result {
	res := e.excluder.IsExcluded(ctx, path)
	if res.Ignored() {
		e.notifier.Excluded(feature, path, res.String())
	}
	return res
}

// FindFiles lists the non-excluded files of every root as absolute paths.
func (e *Engine) FindFiles(ctx context.Context) ([]string, error) {
	exclude := e.WorkspaceExcludeGlob(ctx)
	log.Debugf("Searching with exclude glob %q", exclude)

	var out []string
	for _, root := range e.resolver.Roots() {
		files, err := search.Find(ctx, root.Path, search.Options{
			Include:        e.cfg.Include,
			Exclude:        exclude,
			UseIgnoreFiles: e.cfg.UseIgnoreFiles,
		})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", root, err)
		}
		for _, f := range files {
			abs := filepath.Join(root.Path, filepath.FromSlash(f))
			// Nested roots are listed by the deeper root only.
			if owner, ok := e.resolver.Resolve(abs); ok && owner != root {
				continue
			}
			out = append(out, abs)
		}
	}
	return out, nil
}

// Refresh reloads every root's ignore file.
func (e *Engine) Refresh(ctx context.Context) {
	for _, root := range e.resolver.Roots() {
		e.cache.Refresh(ctx, root)
	}
}

// ClearCache drops every cached pattern set and disposes the watchers.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// Close releases the watchers and detaches the decider, which then treats
// every path as not excluded.
func (e *Engine) Close() error {
	e.excluder.Reset()
	return e.cache.Close()
}
