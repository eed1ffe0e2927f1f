// Package storage loads whole files into documents and writes them back.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/source-patcher/internal/document"
	"github.com/freewebtopdf/source-patcher/internal/domain"
)

const defaultPerm os.FileMode = 0o644

// Options configures a FileStore
type Options struct {
	// MaxFileSize rejects larger sources; zero means unlimited
	MaxFileSize int64
	// Atomic selects temp file + fsync + rename over truncate-and-write
	Atomic bool
}

// FileStore reads and writes whole documents on the local filesystem
type FileStore struct {
	opts Options

	reads  atomic.Int64
	writes atomic.Int64
}

// NewFileStore creates a file store
func NewFileStore(opts Options) *FileStore {
	return &FileStore{opts: opts}
}

// Load reads path into memory. A missing or unreadable file is an IO_ERROR.
func (s *FileStore) Load(ctx context.Context, path string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrTimeout, "Load cancelled", 408, err, map[string]any{"path": path})
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.NewIOError("read", path, err)
	}
	if info.IsDir() {
		return nil, domain.NewIOError("read", path, fmt.Errorf("%s is a directory", path))
	}
	if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
		return nil, domain.NewAppError(domain.ErrTooLarge, fmt.Sprintf("%s exceeds the maximum file size", path), 413, map[string]any{
			"path":     path,
			"size":     info.Size(),
			"max_size": s.opts.MaxFileSize,
		})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewIOError("read", path, err)
	}
	s.reads.Add(1)

	log.Debug().Str("source", path).Int("bytes", len(data)).Msg("Document loaded")
	return document.Parse(path, data), nil
}

// Save writes the whole document to path. An existing destination keeps its
// mode; a new one takes the mode of the document's source file. A symlinked
// destination is written through to its target.
func (s *FileStore) Save(ctx context.Context, doc *document.Document, path string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewAppErrorWithCause(domain.ErrTimeout, "Save cancelled", 408, err, map[string]any{"path": path})
	}

	target, err := resolveTarget(path)
	if err != nil {
		return domain.NewIOError("write", path, err)
	}
	perm := permFor(target, doc.Path())
	data := doc.Bytes()

	if s.opts.Atomic {
		err = WriteFileAtomic(target, data, perm)
	} else {
		err = os.WriteFile(target, data, perm)
	}
	if err != nil {
		return domain.NewIOError("write", path, err)
	}
	s.writes.Add(1)

	log.Debug().Str("destination", target).Int("bytes", len(data)).Bool("atomic", s.opts.Atomic).Msg("Document saved")
	return nil
}

// GetStats returns read/write counters
func (s *FileStore) GetStats() map[string]any {
	return map[string]any{
		"reads":         s.reads.Load(),
		"writes":        s.writes.Load(),
		"atomic":        s.opts.Atomic,
		"max_file_size": s.opts.MaxFileSize,
	}
}

// resolveTarget follows a symlinked destination so a rename replaces the
// link target and not the link.
func resolveTarget(path string) (string, error) {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return path, nil
	}
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return path, nil
	}
	resolved, err := filepath.EvalSymlinks(path)
	if errors.Is(err, fs.ErrNotExist) {
		// dangling link: write where it points
		dest, readErr := os.Readlink(path)
		if readErr != nil {
			return "", readErr
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(path), dest)
		}
		return dest, nil
	}
	return resolved, err
}

func permFor(target, source string) os.FileMode {
	if info, err := os.Stat(target); err == nil {
		return info.Mode().Perm()
	}
	if source != "" {
		if info, err := os.Stat(source); err == nil {
			return info.Mode().Perm()
		}
	}
	return defaultPerm
}
