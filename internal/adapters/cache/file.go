package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/ports"
)

// FileCache stores the snapshot as JSON next to a lock file so that
// concurrent processes never observe a half-written snapshot.
type FileCache struct {
	path string
	lock *flock.Flock
	now  func() time.Time
}

// NewFileCache creates a file cache at path.
func NewFileCache(path string) *FileCache {
	return &FileCache{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
}

// Save writes the snapshot atomically.
func (c *FileCache) Save(ctx context.Context, data state.Data) error {
	b, err := encode(data, c.now())
	if err != nil {
		return err
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}

	locked, err := c.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock snapshot file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock snapshot file: %w", ctx.Err())
	}
	defer c.lock.Unlock()

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the last saved snapshot.
func (c *FileCache) Load(ctx context.Context) (state.Data, time.Time, error) {
	if _, err := os.Stat(c.path); errors.Is(err, fs.ErrNotExist) {
		return state.Data{}, time.Time{}, ports.ErrCacheMiss
	}

	locked, err := c.lock.TryRLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return state.Data{}, time.Time{}, fmt.Errorf("lock snapshot file: %w", err)
	}
	if !locked {
		return state.Data{}, time.Time{}, fmt.Errorf("lock snapshot file: %w", ctx.Err())
	}
	defer c.lock.Unlock()

	b, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return state.Data{}, time.Time{}, ports.ErrCacheMiss
	}
	if err != nil {
		return state.Data{}, time.Time{}, fmt.Errorf("read snapshot: %w", err)
	}
	return decode(b)
}

// Close releases the lock file handle.
func (c *FileCache) Close() error {
	return c.lock.Close()
}
