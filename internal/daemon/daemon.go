package daemon

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/farmergreg/rfsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/fsnotify.v1"

	"github.com/mahyarmirrashed/ctxignore/internal/config"
	"github.com/mahyarmirrashed/ctxignore/internal/engine"
)

// Feature names the daemon in exclusion notifications.
const Feature = "watch"

// RunDaemon watches every workspace root and reports newly created files
// that are excluded from context. It blocks until a signal arrives or ctx is
// canceled.
func RunDaemon(ctx context.Context, cfg *config.Config, eng *engine.Engine) error {
	watcher, err := rfsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range eng.Roots() {
		if err := watcher.AddRecursive(root.Path); err != nil {
			return err
		}
		log.Infof("Watching %s", root.Path)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	// Initial scan
	log.Info("Starting initial scan...")
	if err := initialScan(ctx, eng); err != nil {
		return err
	}
	log.Info("Initial scan complete.")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				// Delay addresses editors that create then fill files.
				if cfg.Delay > 0 {
					time.Sleep(cfg.Delay)
				}
				processFile(ctx, eng, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("error:", err)
		case sig := <-signals:
			log.Infof("Received signal: %s, shutting down...", sig)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// processFile notifies when a new file is excluded. Returns true if it was.
func processFile(ctx context.Context, eng *engine.Engine, fullPath string) bool {
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return false
	}
	if !eng.IsExcludedWithNotification(ctx, fullPath, Feature).Ignored() {
		log.Debugf("Allowed: %s", filepath.ToSlash(fullPath))
		return false
	}
	return true
}

// initialScan reports how many files of the workspace are usable as context.
func initialScan(ctx context.Context, eng *engine.Engine) error {
	files, err := eng.FindFiles(ctx)
	if err != nil {
		return err
	}
	log.Infof("%d files available as context", len(files))
	return nil
}
