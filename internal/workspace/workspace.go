package workspace

import (
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// NoWorkspaceKey identifies paths that belong to no workspace root.
const NoWorkspaceKey = "no-workspace"

// Root is a workspace root directory.
type Root struct {
	Path string
}

// NoWorkspace is the root used for paths outside every workspace.
var NoWorkspace = Root{}

// IsZero reports whether r is the NoWorkspace sentinel.
func (r Root) IsZero() bool {
	return r.Path == ""
}

// Key returns a stable identifier for the root: its file URI, or
// NoWorkspaceKey for the sentinel.
func (r Root) Key() string {
	if r.IsZero() {
		return NoWorkspaceKey
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(r.Path)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String()
}

func (r Root) String() string {
	if r.IsZero() {
		return NoWorkspaceKey
	}
	return r.Path
}

// Rel returns path relative to the root, slash separated. ok is false when
// path lies outside the root.
func (r Root) Rel(path string) (string, bool) {
	if r.IsZero() {
		return "", false
	}
	rel, err := filepath.Rel(r.Path, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// PathFromURI returns the local path of a file URI. ok is false when s is
// not a file URI.
func PathFromURI(s string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(s), "file:") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	p := u.Path
	// file:///C:/x carries the drive letter after the leading slash.
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.Clean(filepath.FromSlash(p)), true
}

// Resolver maps paths to the deepest configured root that contains them.
// It is safe for concurrent use.
type Resolver struct {
	mu sync.RWMutex
	// roots is sorted deepest first, order keeps the configured order.
	roots []Root
	order []Root
}

// NewResolver cleans and absolutizes roots. Relative roots are resolved
// against the working directory.
func NewResolver(paths ...string) *Resolver {
	r := &Resolver{}
	seen := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs := absolute(p)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		r.order = append(r.order, Root{Path: abs})
	}
	r.sort()
	return r
}

func (r *Resolver) sort() {
	r.roots = append([]Root(nil), r.order...)
	// Deepest first so nested roots win.
	sort.SliceStable(r.roots, func(i, j int) bool {
		return len(r.roots[i].Path) > len(r.roots[j].Path)
	})
}

// Roots returns the configured roots, deepest first.
func (r *Resolver) Roots() []Root {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Root(nil), r.roots...)
}

// Remove drops the root at path and returns it. ok is false when no such
// root is configured.
func (r *Resolver) Remove(path string) (root Root, ok bool) {
	abs := absolute(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.order {
		if cur.Path == abs {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			r.sort()
			return cur, true
		}
	}
	return NoWorkspace, false
}

// Resolve returns the root owning path. Relative paths are resolved against
// the working directory.
func (r *Resolver) Resolve(path string) (Root, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return NoWorkspace, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(abs)
}

func (r *Resolver) resolve(abs string) (Root, bool) {
	for _, root := range r.roots {
		if _, ok := root.Rel(abs); ok {
			return root, true
		}
	}
	return NoWorkspace, false
}

// Locate turns a query into an absolute path and finds the root owning it.
// The query may be an absolute path, a file URI, or a path relative to a
// workspace root. A relative path is taken against the first configured
// root, unless there are several roots and its first segment names one of
// them, in which case that segment is dropped and the named root is used.
func (r *Resolver) Locate(query string) (Root, string, bool) {
	if p, ok := PathFromURI(query); ok {
		query = p
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if filepath.IsAbs(query) || len(r.order) == 0 {
		abs := absolute(query)
		root, ok := r.resolve(abs)
		return root, abs, ok
	}

	rel := filepath.Clean(query)
	base := r.order[0]
	if len(r.order) > 1 {
		first, rest, _ := strings.Cut(filepath.ToSlash(rel), "/")
		for _, root := range r.order {
			if filepath.Base(root.Path) == first {
				base, rel = root, filepath.FromSlash(rest)
				break
			}
		}
	}
	abs := filepath.Join(base.Path, rel)
	root, ok := r.resolve(abs)
	return root, abs, ok
}

func absolute(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Host describes how the host platform compares paths.
type Host struct {
	CaseInsensitive bool
}

// Normalize turns a relative path into a match subject: slash separated,
// cleaned, without a leading "./", and lower-cased on case-insensitive
// hosts.
func (h Host) Normalize(rel string) string {
	rel = filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	rel = strings.TrimPrefix(rel, "./")
	if rel == "." {
		rel = ""
	}
	if h.CaseInsensitive {
		rel = strings.ToLower(rel)
	}
	return rel
}
