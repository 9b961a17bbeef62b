package guard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// LockoutCache persists the locally known lockout expiry so the locked
// surface can respond instantly before the server round trip confirms it.
// The cached value is advisory; server state is always authoritative.
type LockoutCache struct {
	path string
}

type cachedLockout struct {
	LockoutUntil int64 `json:"lockout_until"` // epoch milliseconds
}

// NewLockoutCache creates a cache at the default per-user location
func NewLockoutCache() (*LockoutCache, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "expoboard", "lockout.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	return &LockoutCache{path: path}, nil
}

// NewLockoutCacheAt creates a cache at an explicit file path
func NewLockoutCacheAt(path string) *LockoutCache {
	return &LockoutCache{path: path}
}

// Set records the lockout expiry
func (c *LockoutCache) Set(until time.Time) error {
	data, err := json.Marshal(cachedLockout{LockoutUntil: until.UnixMilli()})
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Get returns the cached expiry. ok is false when nothing usable is cached;
// an expired value is still returned so callers can distinguish stale from
// absent.
func (c *LockoutCache) Get() (until time.Time, ok bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return time.Time{}, false
	}

	var cached cachedLockout
	if err := json.Unmarshal(data, &cached); err != nil || cached.LockoutUntil == 0 {
		return time.Time{}, false
	}

	return time.UnixMilli(cached.LockoutUntil), true
}

// Clear removes any cached expiry
func (c *LockoutCache) Clear() error {
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
