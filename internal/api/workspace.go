package api

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// Workspace confines request paths to one directory tree
type Workspace struct {
	root string
}

// NewWorkspace resolves root to an absolute, symlink-free path
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &Workspace{root: resolved}, nil
}

// Root returns the resolved workspace directory
func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps a client path to a file inside the workspace. Relative paths
// are taken from the root; absolute paths must already point inside it.
// The path may not exist yet, in which case its nearest existing ancestor is
// checked for symlinks leading outside.
func (w *Workspace) Resolve(field, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidPath(field, p, "path is required")
	}
	if strings.ContainsRune(p, 0) {
		return "", invalidPath(field, p, "path contains a NUL byte")
	}

	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(w.root, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !w.contains(candidate) {
		return "", invalidPath(field, p, "path escapes the workspace")
	}
	if candidate == w.root {
		return "", invalidPath(field, p, "path names the workspace itself")
	}

	resolved, err := evalExisting(candidate)
	if err != nil {
		return "", invalidPath(field, p, err.Error())
	}
	if !w.contains(resolved) || resolved == w.root {
		return "", invalidPath(field, p, "path resolves outside the workspace")
	}
	return candidate, nil
}

func (w *Workspace) contains(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// maxLinkHops bounds symlink expansion in evalExisting
const maxLinkHops = 255

// evalExisting resolves path one component at a time. Every existing
// component is checked with Lstat and symlinks are expanded with Readlink,
// dangling ones included, so a link pointing at a file that does not exist
// yet still resolves to where a write would land. Components past the first
// missing one are appended lexically.
func evalExisting(path string) (string, error) {
	vol := filepath.VolumeName(path)
	resolved := vol + string(filepath.Separator)
	pending := splitPath(path[len(vol):])
	hops := 0

	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]
		switch name {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, name)
		info, err := os.Lstat(next)
		if errors.Is(err, fs.ErrNotExist) {
			return filepath.Join(append([]string{next}, pending...)...), nil
		}
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink == 0 {
			resolved = next
			continue
		}

		hops++
		if hops > maxLinkHops {
			return "", errors.New("too many levels of symbolic links")
		}
		target, err := os.Readlink(next)
		if err != nil {
			return "", err
		}
		if filepath.IsAbs(target) {
			tvol := filepath.VolumeName(target)
			resolved = tvol + string(filepath.Separator)
			target = target[len(tvol):]
		}
		pending = append(splitPath(target), pending...)
	}
	return resolved, nil
}

func splitPath(p string) []string {
	return strings.Split(filepath.ToSlash(p), "/")
}

func invalidPath(field, p, reason string) error {
	return domain.NewAppError(domain.ErrInvalidInput, "Invalid path", 400, map[string]any{
		"field":  field,
		"path":   p,
		"reason": reason,
	})
}
