// Package cache memoizes one ignore-file pattern set per workspace root and
// keeps it current through filesystem change notifications.
package cache

import (
	"context"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/mahyarmirrashed/ctxignore/internal/loader"
	"github.com/mahyarmirrashed/ctxignore/internal/pattern"
	"github.com/mahyarmirrashed/ctxignore/internal/workspace"
)

// Op is the kind of change reported for an ignore file.
type Op int

const (
	OpChange Op = iota
	OpCreate
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpChange:
		return "change"
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event reports a change to the ignore file watched under Key.
type Event struct {
	Key  string
	Path string
	Op   Op
}

// Watcher registers change notifications for a single file. Events for the
// file must be sent on sink tagged with key until the returned Closer is
// closed.
type Watcher interface {
	Watch(path, key string, sink chan<- Event) (io.Closer, error)
}

// Option configures a Cache.
type Option func(*Cache)

// WithReadTimeout bounds each ignore-file read. A read that times out is
// treated like a missing file.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.readTimeout = d
	}
}

// Cache holds the most recently loaded pattern set for each workspace root.
// Sets are replaced wholesale on reload and never modified in place.
type Cache struct {
	reader      loader.Reader
	watcher     Watcher
	readTimeout time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*pattern.Set
	roots   map[string]workspace.Root

	// watchMu serializes watcher registration and disposal.
	watchMu  sync.Mutex
	watchers map[string]io.Closer

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a cache and starts its reload loop. A nil watcher disables
// live invalidation.
func New(reader loader.Reader, watcher Watcher, opts ...Option) *Cache {
	c := &Cache{
		reader:   reader,
		watcher:  watcher,
		entries:  make(map[string]*pattern.Set),
		roots:    make(map[string]workspace.Root),
		watchers: make(map[string]io.Closer),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go c.run()
	return c
}

// GetOrLoad returns the pattern set for root, loading the ignore file and
// registering a watcher on the first call. Concurrent misses for the same
// root share a single load.
func (c *Cache) GetOrLoad(ctx context.Context, root workspace.Root) *pattern.Set {
	if root.IsZero() {
		return pattern.EmptySet()
	}
	key := root.Key()
	if set, ok := c.lookup(key); ok {
		return set
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		if set, ok := c.lookup(key); ok {
			return set, nil
		}

		c.mu.Lock()
		c.roots[key] = root
		c.mu.Unlock()

		// Watch before reading so a change racing the first read is not lost.
		c.watch(root)
		set := c.load(ctx, root)

		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.roots[key]; !ok {
			// Cleared while loading.
			return set, nil
		}
		if existing, ok := c.entries[key]; ok {
			return existing, nil
		}
		c.entries[key] = set
		return set, nil
	})
	return v.(*pattern.Set)
}

// Refresh reloads the ignore file for root and replaces the cached set. It
// also retries watcher registration if none is held for root.
func (c *Cache) Refresh(ctx context.Context, root workspace.Root) *pattern.Set {
	if root.IsZero() {
		return pattern.EmptySet()
	}
	key := root.Key()

	c.mu.Lock()
	c.roots[key] = root
	c.mu.Unlock()

	c.watch(root)
	set := c.load(ctx, root)
	c.store(key, set)
	return set
}

// Forget drops the entry for root and disposes its watcher.
func (c *Cache) Forget(root workspace.Root) {
	key := root.Key()

	c.mu.Lock()
	delete(c.entries, key)
	delete(c.roots, key)
	c.mu.Unlock()

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if w, ok := c.watchers[key]; ok {
		closeWatcher(key, w)
		delete(c.watchers, key)
	}
}

// Clear drops every entry and disposes every watcher.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*pattern.Set)
	c.roots = make(map[string]workspace.Root)
	c.mu.Unlock()

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for key, w := range c.watchers {
		closeWatcher(key, w)
	}
	c.watchers = make(map[string]io.Closer)
}

// Close clears the cache and stops the reload loop. It is safe to call more
// than once.
func (c *Cache) Close() error {
	c.Clear()
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
	return nil
}

// Len returns the number of cached workspace roots.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Watching reports whether a watcher is registered for root.
func (c *Cache) Watching(root workspace.Root) bool {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	_, ok := c.watchers[root.Key()]
	return ok
}

func (c *Cache) lookup(key string) (*pattern.Set, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.entries[key]
	return set, ok
}

// store publishes set for key, unless the key was dropped meanwhile.
func (c *Cache) store(key string, set *pattern.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.roots[key]; !ok {
		return
	}
	c.entries[key] = set
}

func (c *Cache) load(ctx context.Context, root workspace.Root) *pattern.Set {
	// One caller giving up must not leave an empty set cached for everyone.
	ctx = context.WithoutCancel(ctx)
	if c.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readTimeout)
		defer cancel()
	}
	return loader.Load(ctx, c.reader, loader.IgnoreFilePath(root.Path))
}

func (c *Cache) watch(root workspace.Root) {
	if c.watcher == nil {
		return
	}
	key := root.Key()

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if _, ok := c.watchers[key]; ok {
		return
	}
	c.mu.RLock()
	_, known := c.roots[key]
	c.mu.RUnlock()
	if !known {
		return
	}

	path := loader.IgnoreFilePath(root.Path)
	w, err := c.watcher.Watch(path, key, c.events)
	if err != nil {
		log.Warnf("Could not watch %s, changes will not be picked up: %v", path, err)
		return
	}
	c.watchers[key] = w
}

func (c *Cache) run() {
	defer c.wg.Done()
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.done:
			return
		}
	}
}

func (c *Cache) handle(ev Event) {
	c.mu.RLock()
	root, ok := c.roots[ev.Key]
	c.mu.RUnlock()
	if !ok {
		log.Debugf("Dropping %s event for forgotten root %s", ev.Op, ev.Key)
		return
	}

	log.Debugf("Ignore file %s: %s", ev.Op, ev.Path)
	if ev.Op == OpDelete {
		c.store(ev.Key, pattern.EmptySet())
		return
	}
	c.store(ev.Key, c.load(context.Background(), root))
}

func closeWatcher(key string, w io.Closer) {
	if err := w.Close(); err != nil {
		log.Warnf("Error closing watcher for %s: %v", key, err)
	}
}
