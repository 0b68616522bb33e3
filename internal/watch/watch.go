package watch

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/mahyarmirrashed/ctxignore/internal/cache"
)

// FSWatcher implements cache.Watcher on top of fsnotify.
type FSWatcher struct {
	// Debounce coalesces bursts of events for the same file. Zero delivers
	// every event.
	Debounce time.Duration
}

// Watch starts watching path. Editors usually save by writing a temporary
// file and renaming it over the original, so the containing directory is
// watched rather than the file itself. When that directory does not exist
// yet, its parent is watched until it appears.
func (w FSWatcher) Watch(path, key string, sink chan<- cache.Event) (io.Closer, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fh := &fileWatch{
		path:     filepath.Clean(path),
		dir:      filepath.Dir(filepath.Clean(path)),
		key:      key,
		sink:     sink,
		debounce: w.Debounce,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	if err := fh.addNearest(); err != nil {
		fw.Close()
		return nil, err
	}

	fh.wg.Add(1)
	go fh.loop()
	return fh, nil
}

type fileWatch struct {
	path     string
	dir      string
	key      string
	sink     chan<- cache.Event
	debounce time.Duration

	watcher *fsnotify.Watcher
	// watchingDir is false while only the parent of dir is watched.
	watchingDir bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	timer   *time.Timer
	pending cache.Op
}

func (f *fileWatch) addNearest() error {
	if err := f.watcher.Add(f.dir); err == nil {
		f.watchingDir = true
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return f.watcher.Add(filepath.Dir(f.dir))
}

func (f *fileWatch) loop() {
	defer f.wg.Done()

	var fire <-chan time.Time
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			op, ok := f.translate(ev)
			if !ok {
				continue
			}
			if f.debounce <= 0 {
				f.send(op)
				continue
			}
			f.pending = op
			if f.timer == nil {
				f.timer = time.NewTimer(f.debounce)
			} else {
				if !f.timer.Stop() {
					select {
					case <-f.timer.C:
					default:
					}
				}
				f.timer.Reset(f.debounce)
			}
			fire = f.timer.C
		case <-fire:
			fire = nil
			f.send(f.pending)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("Watcher error for %s: %v", f.path, err)
		case <-f.done:
			return
		}
	}
}

// translate maps a raw fsnotify event to an ignore-file operation. It also
// switches from the parent to the ignore-file directory once it appears.
func (f *fileWatch) translate(ev fsnotify.Event) (cache.Op, bool) {
	name := filepath.Clean(ev.Name)

	if !f.watchingDir {
		if name != f.dir || !ev.Has(fsnotify.Create) {
			return 0, false
		}
		if err := f.watcher.Add(f.dir); err != nil {
			log.Debugf("Could not watch %s: %v", f.dir, err)
			return 0, false
		}
		f.watchingDir = true
		_ = f.watcher.Remove(filepath.Dir(f.dir))
		// The file may have been created along with its directory.
		if _, err := os.Stat(f.path); err == nil {
			return cache.OpCreate, true
		}
		return 0, false
	}

	if name == f.dir && (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) {
		// The whole directory went away; wait for it to come back.
		if err := f.watcher.Add(filepath.Dir(f.dir)); err != nil {
			log.Debugf("Could not watch %s: %v", filepath.Dir(f.dir), err)
		}
		f.watchingDir = false
		return cache.OpDelete, true
	}
	if name != f.path {
		return 0, false
	}
	switch {
	case ev.Has(fsnotify.Create):
		return cache.OpCreate, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return cache.OpDelete, true
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Chmod):
		return cache.OpChange, true
	}
	return 0, false
}

func (f *fileWatch) send(op cache.Op) {
	select {
	case f.sink <- cache.Event{Key: f.key, Path: f.path, Op: op}:
	case <-f.done:
	}
}

// Close stops the watcher. It is safe to call more than once.
func (f *fileWatch) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.watcher.Close()
		f.wg.Wait()
		if f.timer != nil {
			f.timer.Stop()
		}
	})
	return err
}
