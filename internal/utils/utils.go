package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/beeep"
	log "github.com/sirupsen/logrus"
)

// ExpandTilde will resolve to the correct location on disk.
func ExpandTilde(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Notifier tells the user that a path was withheld from context.
type Notifier interface {
	Excluded(feature, path, reason string)
}

// LogNotifier reports exclusions through the logger.
type LogNotifier struct{}

func (LogNotifier) Excluded(feature, path, reason string) {
	log.Infof("%s: %s is excluded from context (%s)", feature, path, reason)
}

// DesktopNotifier sends a desktop notification for each exclusion and logs
// it as well.
type DesktopNotifier struct {
	Enabled bool
}

func (n DesktopNotifier) Excluded(feature, path, reason string) {
	LogNotifier{}.Excluded(feature, path, reason)
	SendNotification(n.Enabled, "ctxignore", fmt.Sprintf("%s: %s is excluded from context", feature, filepath.Base(path)))
}

func SendNotification(enabled bool, title string, message string) {
	if enabled {
		if err := beeep.Notify(title, message, ""); err != nil {
			log.Warnf("Notification failed: %v", err)
		}
	}
}
