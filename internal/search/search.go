package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	gitignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"

	"github.com/mahyarmirrashed/ctxignore/internal/globber"
	"github.com/mahyarmirrashed/ctxignore/internal/pattern"
)

// DefaultInclude matches every file.
const DefaultInclude = "**/*"

// Options controls a search.
type Options struct {
	Include        string // doublestar pattern files must match; DefaultInclude when empty
	Exclude        string // brace-grouped exclude glob
	UseIgnoreFiles bool   // also honor the root .gitignore
}

// Find walks root and returns the slash-separated, root-relative paths of
// files that match Include and are not excluded. Excluded directories are
// not descended into.
func Find(ctx context.Context, root string, opts Options) ([]string, error) {
	include := opts.Include
	if include == "" {
		include = DefaultInclude
	}
	if !doublestar.ValidatePattern(include) {
		return nil, fmt.Errorf("invalid include pattern: %v", include)
	}

	excluded := compileExclude(opts.Exclude)
	if opts.UseIgnoreFiles {
		excluded = withGitignore(root, excluded)
	}

	var files []string
	err := fs.WalkDir(os.DirFS(root), ".", func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == "." {
				return err
			}
			log.Debugf("Skipping %s: %v", path, err)
			return nil
		}
		if path == "." {
			return nil
		}

		if excluded(path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ok, err := doublestar.Match(include, path)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// compileExclude compiles the whole glob at once. If that fails, the
// patterns are split apart and the valid ones kept.
func compileExclude(exclude string) func(string) bool {
	if exclude == "" {
		return func(string) bool { return false }
	}
	g, err := glob.Compile(exclude, '/')
	if err == nil {
		return func(rel string) bool {
			return g.Match("/"+rel) || g.Match(rel)
		}
	}
	log.Debugf("Exclude glob %q does not compile as a whole: %v", exclude, err)

	globs := pattern.CompileLenient(globber.Split(exclude))
	return func(rel string) bool {
		if _, ok := globs.Match("/" + rel); ok {
			return true
		}
		_, ok := globs.Match(rel)
		return ok
	}
}

func withGitignore(root string, next func(string) bool) func(string) bool {
	path := filepath.Join(root, ".gitignore")
	gi, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Debugf("Could not read %s: %v", path, err)
		}
		return next
	}
	return func(rel string) bool {
		return next(rel) || gi.MatchesPath(rel)
	}
}
