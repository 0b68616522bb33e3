package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahyarmirrashed/ctxignore/internal/config"
	"github.com/mahyarmirrashed/ctxignore/internal/engine"
	"github.com/mahyarmirrashed/ctxignore/internal/loader"
)

type recordingNotifier struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNotifier) Excluded(_, path, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, filepath.Base(path))
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func setup(t *testing.T) (string, *config.Config, *engine.Engine, *recordingNotifier) {
	t.Helper()
	root := t.TempDir()
	path := loader.IgnoreFilePath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("*.pem\n"), 0o644))

	cfg := config.Default()
	cfg.Roots = []string{root}
	n := &recordingNotifier{}
	eng, err := engine.New(cfg, engine.WithWatcher(nil), engine.WithNotifier(n))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return root, cfg, eng, n
}

func TestProcessFile(t *testing.T) {
	root, _, eng, n := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "key.pem"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("x"), 0o644))

	ctx := context.Background()
	assert.True(t, processFile(ctx, eng, filepath.Join(root, "key.pem")))
	assert.False(t, processFile(ctx, eng, filepath.Join(root, "main.go")))
	assert.False(t, processFile(ctx, eng, filepath.Join(root, "missing.pem")))
	assert.Equal(t, []string{"key.pem"}, n.seen())
}

func TestRunDaemonReportsNewExcludedFiles(t *testing.T) {
	root, cfg, eng, n := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunDaemon(ctx, cfg, eng) }()

	// Give the watcher time to register before creating files.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "server.pem"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		for _, p := range n.seen() {
			if p == "server.pem" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotContains(t, n.seen(), "main.go")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
