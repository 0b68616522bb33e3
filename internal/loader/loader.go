package loader

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mahyarmirrashed/ctxignore/internal/pattern"
)

// IgnoreFile is the location of the ignore file relative to a workspace root.
const IgnoreFile = ".sourcegraph/ignore"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader reads a whole resource.
type Reader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// OSReader reads from the local filesystem.
type OSReader struct{}

func (OSReader) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// IgnoreFilePath returns the ignore file location for a workspace root.
func IgnoreFilePath(root string) string {
	return filepath.Join(root, filepath.FromSlash(IgnoreFile))
}

// Load reads and parses the ignore file at path. A missing or unreadable
// file yields an empty set; Load never fails.
func Load(ctx context.Context, r Reader, path string) *pattern.Set {
	data, err := r.ReadFile(ctx, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Debugf("Could not read ignore file %s: %v", path, err)
		}
		return pattern.NewSet()
	}

	set := Parse(data)
	log.Debugf("Loaded %d patterns from %s", set.Len(), path)
	return set
}

// Parse normalizes every line of content into a new set.
func Parse(content []byte) *pattern.Set {
	set := pattern.NewSet()
	for _, line := range strings.Split(normalizeContent(content), "\n") {
		if p, ok := pattern.Normalize(line); ok {
			set.Add(p, true)
		}
	}
	return set
}

// normalizeContent strips a UTF-8 byte order mark and turns CRLF line
// endings into LF.
func normalizeContent(content []byte) string {
	content = bytes.TrimPrefix(content, utf8BOM)
	if bytes.Contains(content, []byte("\r\n")) {
		content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	}
	return string(content)
}
