// Package cache implements RepoCache: a content-addressed, LRU-by-mtime
// on-disk cache for repodata files, safe for concurrent use by multiple
// cooperating processes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quay/zlog"
	"golang.org/x/sync/singleflight"
)

// DefaultExpiry is the default sweep expiry window (one week), overridable
// by the RPMDEPLINT_EXPIRY_SECONDS environment variable.
const DefaultExpiry = 7 * 24 * time.Hour

const expiryEnvVar = "RPMDEPLINT_EXPIRY_SECONDS"

var (
	lookupCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rpmdeplint",
			Subsystem: "cache",
			Name:      "lookup_total",
			Help:      "Total number of cache lookups, by result.",
		},
		[]string{"result"},
	)
	sweepCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rpmdeplint",
			Subsystem: "cache",
			Name:      "sweep_removed_total",
			Help:      "Total number of cache entries removed by sweep.",
		},
		nil,
	)
)

// Cache is a content-addressed cache rooted at Dir, keyed by checksum.
// Entries are laid out as Dir/<first-hex-char>/<rest-of-checksum>; an entry
// is immutable once inserted, and the cache has no other metadata — the
// entry *is* the payload.
type Cache struct {
	Dir    string
	Expiry time.Duration

	sf singleflight.Group
}

// Root computes the default cache root: $XDG_CACHE_HOME/rpmdeplint, falling
// back to ~/.cache/rpmdeplint.
func Root() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "rpmdeplint"), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("internal/cache: unable to determine home directory: %w", err)
		}
	}
	return filepath.Join(home, ".cache", "rpmdeplint"), nil
}

// ExpiryFromEnv returns the sweep expiry window, honoring
// RPMDEPLINT_EXPIRY_SECONDS when set. A value of "0" means "expire
// everything older than now" rather than "disabled" — see DESIGN.md for the
// rationale.
func ExpiryFromEnv() time.Duration {
	s := os.Getenv(expiryEnvVar)
	if s == "" {
		return DefaultExpiry
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return DefaultExpiry
	}
	return time.Duration(n) * time.Second
}

// New opens (without yet creating) a Cache rooted at dir with the given
// sweep expiry.
func New(dir string, expiry time.Duration) *Cache {
	return &Cache{Dir: dir, Expiry: expiry}
}

func (c *Cache) path(checksum string) (string, error) {
	if len(checksum) < 2 {
		return "", fmt.Errorf("internal/cache: malformed checksum %q", checksum)
	}
	return filepath.Join(c.Dir, checksum[:1], checksum[1:]), nil
}

// Lookup looks for a cache entry by checksum. On a hit, it touches the
// entry's mtime (advisory LRU bump) and returns an open, read-only stream.
// On a miss, it returns (nil, false, nil).
func (c *Cache) Lookup(ctx context.Context, checksum string) (io.ReadCloser, bool, error) {
	const op = "internal/cache/Cache.Lookup"
	ctx = zlog.ContextWithValues(ctx, "component", op)

	p, err := c.path(checksum)
	if err != nil {
		return nil, false, err
	}
	f, err := os.Open(p)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		lookupCounter.WithLabelValues("miss").Inc()
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	if err := os.Chtimes(p, now, now); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// The touch is advisory; a race with a concurrent sweep is
		// tolerated, anything else is worth a warning.
		zlog.Warn(ctx).Err(err).Msg("unable to touch cache entry mtime")
	}
	lookupCounter.WithLabelValues("hit").Inc()
	return f, true, nil
}

// Insert writes r into the cache under checksum via a sibling temp
// file+fsync+rename, so concurrent readers never observe a partial file. If
// the destination already exists, the temp file is discarded.
func (c *Cache) Insert(ctx context.Context, checksum string, r io.Reader) error {
	const op = "internal/cache/Cache.Insert"
	_, err, _ := c.sf.Do(checksum, func() (any, error) {
		return nil, c.insert(ctx, checksum, r)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Cache) insert(ctx context.Context, checksum string, r io.Reader) error {
	p, err := c.path(checksum)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if fi, statErr := os.Stat(dir); statErr == nil && !fi.IsDir() {
			return fmt.Errorf("cache directory path is a regular file: %s", dir)
		}
		return err
	}

	if fi, err := os.Stat(p); err == nil {
		if fi.IsDir() {
			// Legacy layout wrote a directory at this path; remove it and
			// fall through to a normal insert.
			if err := os.RemoveAll(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("unable to remove legacy cache directory %s: %w", p, err)
			}
		} else {
			// Already present; nothing to do.
			return nil
		}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanTmp := true
	defer func() {
		if cleanTmp {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache entry: %w", err)
	}

	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("renaming cache entry into place: %w", err)
	}
	cleanTmp = false
	return nil
}

// Sweep deletes any regular file under the cache whose mtime predates
// now-Expiry. It is invoked at the start of every repodata load, bounding
// cache size by time rather than volume. Sweep tolerates a concurrent
// insert/delete racing it: an ENOENT on removal is benign.
func (c *Cache) Sweep(ctx context.Context) error {
	const op = "internal/cache/Cache.Sweep"
	ctx = zlog.ContextWithValues(ctx, "component", op)

	cutoff := time.Now().Add(-c.Expiry)
	removed := 0
	err := filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing expired cache entry %s: %w", path, err)
		}
		removed++
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if removed > 0 {
		sweepCounter.WithLabelValues().Add(float64(removed))
		zlog.Debug(ctx).Int("removed", removed).Msg("swept expired cache entries")
	}
	return nil
}
