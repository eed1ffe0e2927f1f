// Package lock serialises load, transform, write runs per destination path.
// Paths are always locked in-process; an OS-level flock on "<path>.lock" can
// be added so separate processes exclude each other too.
package lock

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

var (
	// ErrLockTimeout is returned when acquiring a lock times out.
	ErrLockTimeout = fmt.Errorf("timeout acquiring lock")
	// ErrPathRequired is returned when a path is empty.
	ErrPathRequired = fmt.Errorf("path is required")
	// ErrNilHandle is returned when a nil handle is released.
	ErrNilHandle = fmt.Errorf("nil lock handle")
)

const (
	// shortPollInterval is the interval to sleep when polling for a file lock.
	shortPollInterval = 10 * time.Millisecond
	// DefaultTimeout applies when a manager is created without one.
	DefaultTimeout = 10 * time.Second
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Handle is a held lock on one path
type Handle struct {
	Path       string
	AcquiredAt time.Time

	entry    *entry
	flock    *flock.Flock
	released atomic.Bool
}

// Manager hands out per-path locks
type Manager struct {
	mu        sync.Mutex
	locks     map[string]*entry
	timeout   time.Duration
	fileLocks bool

	held     atomic.Int64
	timeouts atomic.Int64
}

// NewManager creates a lock manager. With fileLocks set every acquisition
// also takes a flock on a "<path>.lock" sidecar file.
func NewManager(timeout time.Duration, fileLocks bool) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		locks:     make(map[string]*entry),
		timeout:   timeout,
		fileLocks: fileLocks,
	}
}

// Acquire blocks until path is free, the timeout passes or ctx is done
func (m *Manager) Acquire(ctx context.Context, path string) (*Handle, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	key := canonical(path)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	e := m.ref(key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, e)
		return nil, m.timeoutErr(ctx.Err(), key)
	}

	h := &Handle{Path: key, AcquiredAt: time.Now(), entry: e}

	if m.fileLocks {
		fl := flock.New(key + ".lock")
		locked, err := fl.TryLockContext(ctx, shortPollInterval)
		if err != nil || !locked {
			<-e.sem
			m.unref(key, e)
			if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, m.timeoutErr(ctx.Err(), key)
			}
			return nil, fmt.Errorf("error acquiring file lock for %s: %w", key, err)
		}
		h.flock = fl
	}

	m.held.Add(1)
	return h, nil
}

// AcquireAll locks several paths in a stable order so two callers locking
// the same set cannot deadlock. Duplicate paths are locked once.
func (m *Manager) AcquireAll(ctx context.Context, paths ...string) ([]*Handle, error) {
	keys := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		k := canonical(p)
		if p == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	sort.Strings(keys)

	handles := make([]*Handle, 0, len(keys))
	for _, k := range keys {
		h, err := m.Acquire(ctx, k)
		if err != nil {
			m.ReleaseAll(handles)
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Release frees a held lock. Releasing twice is a no-op.
func (m *Manager) Release(h *Handle) error {
	if h == nil {
		return ErrNilHandle
	}
	if !h.released.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if h.flock != nil {
		err = h.flock.Unlock()
	}
	<-h.entry.sem
	m.unref(h.Path, h.entry)
	m.held.Add(-1)
	return err
}

// ReleaseAll releases handles in reverse acquisition order
func (m *Manager) ReleaseAll(handles []*Handle) {
	for i := len(handles) - 1; i >= 0; i-- {
		_ = m.Release(handles[i])
	}
}

// Held returns the number of locks currently held
func (m *Manager) Held() int {
	return int(m.held.Load())
}

// HealthCheck reports lock usage
func (m *Manager) HealthCheck(ctx context.Context) domain.HealthStatus {
	m.mu.Lock()
	tracked := len(m.locks)
	m.mu.Unlock()

	return domain.HealthStatus{
		Status: domain.HealthStatusHealthy,
		Details: map[string]any{
			"held":       m.held.Load(),
			"tracked":    tracked,
			"timeouts":   m.timeouts.Load(),
			"file_locks": m.fileLocks,
			"timeout":    m.timeout.String(),
		},
		Timestamp: time.Now(),
	}
}

func (m *Manager) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) unref(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 && m.locks[key] == e {
		delete(m.locks, key)
	}
}

func (m *Manager) timeoutErr(cause error, key string) error {
	if errors.Is(cause, context.Canceled) {
		return domain.NewAppErrorWithCause(domain.ErrTimeout, "lock acquisition cancelled", 408, cause, map[string]any{"path": key})
	}
	m.timeouts.Add(1)
	return domain.NewAppErrorWithCause(domain.ErrConflict, "timed out waiting for lock", 409, ErrLockTimeout, map[string]any{
		"path":    key,
		"timeout": m.timeout.String(),
	})
}

func canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
