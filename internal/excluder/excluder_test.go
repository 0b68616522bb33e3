package excluder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahyarmirrashed/ctxignore/internal/loader"
	"github.com/mahyarmirrashed/ctxignore/internal/pattern"
	"github.com/mahyarmirrashed/ctxignore/internal/workspace"
)

// staticGetter serves one pattern set for every path under root.
type staticGetter struct {
	root workspace.Root
	set  *pattern.Set
}

func (g staticGetter) ExcludePatterns(_ context.Context, path string) (Target, bool) {
	abs, _ := filepath.Abs(path)
	rel, ok := g.root.Rel(abs)
	if !ok {
		return Target{Root: workspace.NoWorkspace, Subject: abs}, false
	}
	return Target{Root: g.root, Subject: rel, Patterns: g.set}, true
}

func newGetter(t *testing.T, content string) (staticGetter, string) {
	t.Helper()
	dir := t.TempDir()
	return staticGetter{root: workspace.Root{Path: dir}, set: loader.Parse([]byte(content))}, dir
}

func TestUninitializedFailsOpen(t *testing.T) {
	ex, err := New(nil, workspace.Host{})
	require.NoError(t, err)
	assert.False(t, ex.Initialized())

	assert.Equal(t, NotIgnored, ex.IsExcluded(context.Background(), "node_modules/react/index.js"))
	assert.Equal(t, NotIgnored, ex.IsExcluded(context.Background(), "/etc/passwd"))
}

func TestIsExcluded(t *testing.T) {
	getter, dir := newGetter(t, "node_modules\n*.log\n/secrets\ndist/\n!keep.log")
	ex, err := New(nil, workspace.Host{})
	require.NoError(t, err)
	ex.Init(getter)
	require.True(t, ex.Initialized())

	tests := []struct {
		rel  string
		want Result
	}{
		{"node_modules", IgnoredLocal},
		{"web/node_modules/react/index.js", IgnoredLocal},
		{"debug.log", IgnoredLocal},
		// Negation is not honored: keep.log is still excluded by *.log.
		{"keep.log", IgnoredLocal},
		{"secrets/prod.env", IgnoredLocal},
		{"config/secrets/prod.env", NotIgnored},
		{"dist/bundle.js", IgnoredLocal},
		{"src/main.go", NotIgnored},
		{"README.md", NotIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			path := filepath.Join(dir, filepath.FromSlash(tt.rel))
			assert.Equal(t, tt.want, ex.IsExcluded(context.Background(), path))
		})
	}
}

func TestExplain(t *testing.T) {
	getter, dir := newGetter(t, "node_modules\n*.log")
	ex, err := New(nil, workspace.Host{})
	require.NoError(t, err)
	ex.Init(getter)

	d := ex.Explain(context.Background(), filepath.Join(dir, "logs", "app.log"))
	assert.Equal(t, IgnoredLocal, d.Result)
	assert.Equal(t, "**/*.log", d.Pattern)
	assert.Equal(t, dir, d.Root.Path)

	d = ex.Explain(context.Background(), filepath.Join(dir, "main.go"))
	assert.Equal(t, NotIgnored, d.Result)
	assert.Empty(t, d.Pattern)
}

func TestStaticPatterns(t *testing.T) {
	getter, dir := newGetter(t, "")
	ex, err := New([]string{"**/.vscode/**", "**/*.pem"}, workspace.Host{})
	require.NoError(t, err)

	// Nothing is excluded before initialization, static patterns included.
	assert.Equal(t, NotIgnored, ex.IsExcluded(context.Background(), filepath.Join(dir, "certs", "ca.pem")))

	ex.Init(getter)
	assert.Equal(t, IgnoredLocal, ex.IsExcluded(context.Background(), filepath.Join(dir, "certs", "ca.pem")))
	assert.Equal(t, IgnoredLocal, ex.IsExcluded(context.Background(), filepath.Join(dir, ".vscode", "settings.json")))
	assert.Equal(t, NotIgnored, ex.IsExcluded(context.Background(), filepath.Join(dir, "main.go")))

	// Outside every root the path is matched as given.
	assert.Equal(t, IgnoredLocal, ex.IsExcluded(context.Background(), "/tmp/other/key.pem"))
}

func TestInvalidStaticPattern(t *testing.T) {
	_, err := New([]string{"[unterminated"}, workspace.Host{})
	assert.Error(t, err)
}

func TestCaseInsensitiveHost(t *testing.T) {
	getter, dir := newGetter(t, "Node_Modules\n*.LOG")
	ex, err := New([]string{"**/*.PEM"}, workspace.Host{CaseInsensitive: true})
	require.NoError(t, err)
	ex.Init(getter)

	assert.Equal(t, IgnoredLocal, ex.IsExcluded(context.Background(), filepath.Join(dir, "node_modules", "x.js")))
	assert.Equal(t, IgnoredLocal, ex.IsExcluded(context.Background(), filepath.Join(dir, "App.Log")))
	assert.Equal(t, IgnoredLocal, ex.IsExcluded(context.Background(), filepath.Join(dir, "key.pem")))

	sensitive, err := New(nil, workspace.Host{})
	require.NoError(t, err)
	sensitive.Init(getter)
	assert.Equal(t, NotIgnored, sensitive.IsExcluded(context.Background(), filepath.Join(dir, "App.Log")))
}

func TestResetReturnsToFailOpen(t *testing.T) {
	getter, dir := newGetter(t, "*.log")
	ex, err := New(nil, workspace.Host{})
	require.NoError(t, err)

	ex.Init(getter)
	path := filepath.Join(dir, "debug.log")
	require.Equal(t, IgnoredLocal, ex.IsExcluded(context.Background(), path))

	ex.Reset()
	assert.Equal(t, NotIgnored, ex.IsExcluded(context.Background(), path))
}

func TestEmptySetFailsOpen(t *testing.T) {
	dir := t.TempDir()
	ex, err := New(nil, workspace.Host{})
	require.NoError(t, err)
	ex.Init(staticGetter{root: workspace.Root{Path: dir}, set: pattern.EmptySet()})

	for _, rel := range []string{"a", "node_modules/x", ".env", "deep/er/file.log"} {
		assert.Equal(t, NotIgnored, ex.IsExcluded(context.Background(), filepath.Join(dir, rel)))
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "not-ignored", NotIgnored.String())
	assert.Equal(t, "ignored-local", IgnoredLocal.String())
	assert.Equal(t, "ignored-remote", IgnoredRemote.String())
	assert.False(t, NotIgnored.Ignored())
	assert.True(t, IgnoredLocal.Ignored())
	assert.True(t, IgnoredRemote.Ignored())
}
