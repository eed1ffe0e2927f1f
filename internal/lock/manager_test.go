package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

const testLockTimeout = 200 * time.Millisecond

func TestManager_AcquireRelease(t *testing.T) {
	m := NewManager(testLockTimeout, false)
	path := filepath.Join(t.TempDir(), "a.txt")

	h, err := m.Acquire(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Held())

	require.NoError(t, m.Release(h))
	assert.Equal(t, 0, m.Held())
	assert.NoError(t, m.Release(h), "second release is a no-op")
	assert.Equal(t, 0, m.Held())

	m.mu.Lock()
	assert.Empty(t, m.locks, "released entries are dropped")
	m.mu.Unlock()
}

func TestManager_Errors(t *testing.T) {
	m := NewManager(0, false)
	assert.Equal(t, DefaultTimeout, m.timeout)

	_, err := m.Acquire(context.Background(), "")
	assert.ErrorIs(t, err, ErrPathRequired)
	assert.ErrorIs(t, m.Release(nil), ErrNilHandle)
}

func TestManager_Timeout(t *testing.T) {
	m := NewManager(30*time.Millisecond, false)
	path := filepath.Join(t.TempDir(), "a.txt")

	h, err := m.Acquire(context.Background(), path)
	require.NoError(t, err)
	defer m.Release(h)

	_, err = m.Acquire(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockTimeout)

	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, domain.ErrConflict, appErr.Code)
}

func TestManager_Cancelled(t *testing.T) {
	m := NewManager(time.Second, false)
	path := filepath.Join(t.TempDir(), "a.txt")

	h, err := m.Acquire(context.Background(), path)
	require.NoError(t, err)
	defer m.Release(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Acquire(ctx, path)
	assert.True(t, domain.IsTimeout(err))
}

func TestManager_SamePathIsSerialised(t *testing.T) {
	m := NewManager(5*time.Second, false)
	path := filepath.Join(t.TempDir(), "a.txt")

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := m.Acquire(context.Background(), path)
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			for {
				cur := maxActive.Load()
				if n <= cur || maxActive.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			_ = m.Release(h)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, 0, m.Held())
}

func TestManager_DifferentPathsDoNotBlock(t *testing.T) {
	m := NewManager(testLockTimeout, false)
	dir := t.TempDir()

	a, err := m.Acquire(context.Background(), filepath.Join(dir, "a"))
	require.NoError(t, err)
	b, err := m.Acquire(context.Background(), filepath.Join(dir, "b"))
	require.NoError(t, err)

	assert.Equal(t, 2, m.Held())
	m.ReleaseAll([]*Handle{a, b})
	assert.Equal(t, 0, m.Held())
}

func TestManager_RelativeAndAbsoluteShareALock(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, filepath.Join(dir, "x.txt"))
	require.NoError(t, err)

	m := NewManager(30*time.Millisecond, false)
	h, err := m.Acquire(context.Background(), filepath.Join(dir, "x.txt"))
	require.NoError(t, err)
	defer m.Release(h)

	_, err = m.Acquire(context.Background(), rel)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestManager_AcquireAll(t *testing.T) {
	m := NewManager(testLockTimeout, false)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")

	handles, err := m.AcquireAll(context.Background(), b, a, b, "")
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.Equal(t, a, handles[0].Path)

	m.ReleaseAll(handles)
	assert.Equal(t, 0, m.Held())
}

func TestManager_FileLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	first := NewManager(testLockTimeout, true)
	second := NewManager(50*time.Millisecond, true)

	h, err := first.Acquire(context.Background(), path)
	require.NoError(t, err)
	assert.FileExists(t, path+".lock")

	_, err = second.Acquire(context.Background(), path)
	assert.ErrorIs(t, err, ErrLockTimeout, "a second manager must see the OS lock")

	require.NoError(t, first.Release(h))

	h2, err := second.Acquire(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, second.Release(h2))
}

func TestManager_HealthCheck(t *testing.T) {
	m := NewManager(testLockTimeout, false)
	status := m.HealthCheck(context.Background())
	assert.Equal(t, domain.HealthStatusHealthy, status.Status)
	assert.Equal(t, int64(0), status.Details["held"])
}
