package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahyarmirrashed/ctxignore/internal/cache"
	"github.com/mahyarmirrashed/ctxignore/internal/loader"
)

// waitFor returns the first event with op, failing the test after a timeout.
func waitFor(t *testing.T, events <-chan cache.Event, op cache.Op) cache.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Op == op {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", op)
			return cache.Event{}
		}
	}
}

func TestWatchReportsFileLifecycle(t *testing.T) {
	root := t.TempDir()
	path := loader.IgnoreFilePath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	events := make(chan cache.Event, 16)
	w, err := FSWatcher{}.Watch(path, "key", events)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("node_modules\n"), 0o644))
	ev := waitFor(t, events, cache.OpCreate)
	assert.Equal(t, "key", ev.Key)
	assert.Equal(t, filepath.Clean(path), ev.Path)

	require.NoError(t, os.WriteFile(path, []byte("dist\n"), 0o644))
	waitFor(t, events, cache.OpChange)

	require.NoError(t, os.Remove(path))
	waitFor(t, events, cache.OpDelete)
}

func TestWatchIgnoresSiblings(t *testing.T) {
	root := t.TempDir()
	path := loader.IgnoreFilePath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	events := make(chan cache.Event, 16)
	w, err := FSWatcher{}.Watch(path, "key", events)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other"), []byte("x"), 0o644))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchWaitsForMissingDirectory(t *testing.T) {
	root := t.TempDir()
	path := loader.IgnoreFilePath(root)

	events := make(chan cache.Event, 16)
	w, err := FSWatcher{}.Watch(path, "key", events)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("*.pem\n"), 0o644))

	waitFor(t, events, cache.OpCreate)
}

func TestWatchDebounce(t *testing.T) {
	root := t.TempDir()
	path := loader.IgnoreFilePath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	events := make(chan cache.Event, 16)
	w, err := FSWatcher{Debounce: 100 * time.Millisecond}.Watch(path, "key", events)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("b\n"), 0o644))
	}
	waitFor(t, events, cache.OpChange)

	select {
	case ev := <-events:
		t.Fatalf("burst was not coalesced, got extra %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatchMissingRootFails(t *testing.T) {
	path := loader.IgnoreFilePath(filepath.Join(t.TempDir(), "gone", "deeper"))
	_, err := FSWatcher{}.Watch(path, "key", make(chan cache.Event))
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w, err := FSWatcher{}.Watch(loader.IgnoreFilePath(root), "key", make(chan cache.Event))
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
