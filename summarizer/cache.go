package summarizer

import (
	"crypto/md5"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gnolang/summarizer/internal/verify"
)

const cacheFileName = "report_cache.gob"

// DefaultCacheMaxAge bounds the age of a reusable report.
const DefaultCacheMaxAge = 24 * time.Hour

type cacheEntry struct {
	Report    verify.Report
	CreatedAt time.Time
}

// Cache keeps the reports of earlier runs on disk, keyed by the digest of
// the configuration, the run options and the checked sources.
type Cache struct {
	CacheDir string
	entries  map[string]cacheEntry
	mutex    sync.Mutex
	maxAge   time.Duration
}

// OpenCache opens the cache stored in dir, creating dir if needed.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &Cache{
		CacheDir: dir,
		entries:  make(map[string]cacheEntry),
		maxAge:   DefaultCacheMaxAge,
	}
	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	return cache, nil
}

func (c *Cache) load() error {
	file, err := os.Open(filepath.Join(c.CacheDir, cacheFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&c.entries); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	return nil
}

func (c *Cache) save() error {
	file, err := os.Create(filepath.Join(c.CacheDir, cacheFileName))
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c.entries); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	return nil
}

// Set stores report under key. Reports with an UNKNOWN property are not
// stored: a later run with more time may resolve them.
func (c *Cache) Set(key string, report *verify.Report) error {
	for _, p := range report.Properties {
		if p.Status == verify.StatusUnknown {
			return nil
		}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = cacheEntry{Report: *report, CreatedAt: time.Now()}
	return c.save()
}

// Get returns the report stored under key, if it is recent enough.
func (c *Cache) Get(key string) (*verify.Report, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	if time.Since(entry.CreatedAt) > c.maxAge {
		delete(c.entries, key)
		return nil, false
	}

	report := entry.Report
	return &report, true
}

// SetMaxAge sets how long a stored report stays usable.
func (c *Cache) SetMaxAge(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = d
}

// InvalidateAll drops every stored report.
func (c *Cache) InvalidateAll() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]cacheEntry)
	return c.save()
}

// cacheKey digests everything a report depends on.
func cacheKey(cfg Config, opts Options, files []string) (string, error) {
	hash := md5.New()
	cfg.Jobs = 0
	cfg.CacheDir = ""
	cfg.CacheMaxAge = 0
	fmt.Fprintf(hash, "%+v\n%s\n%q\n", cfg, opts.Function, opts.Properties)
	for _, name := range files {
		if err := hashFile(hash, name); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

func hashFile(w io.Writer, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(w, "%s\n", filename)
	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to calculate hash: %w", err)
	}
	return nil
}
