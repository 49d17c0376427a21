package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache stores rendered public post responses on disk, one file per slug.
type Cache struct {
	dir    string
	maxAge time.Duration
}

func New(dir string, maxAge time.Duration) *Cache {
	return &Cache{dir: dir, maxAge: maxAge}
}

// Path returns the cache file path for a post slug
func (c *Cache) Path(slug string) string {
	shortHash := generateHash(slug)[:16]
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", slug, shortHash))
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

func (c *Cache) Write(slug string, body []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(c.Path(slug), body, 0644)
}

// Read returns the cached body if it exists and is younger than maxAge.
func (c *Cache) Read(slug string) ([]byte, bool) {
	path := c.Path(slug)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		return nil, false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return content, true
}

// Clear removes the entries for the given slugs.
func (c *Cache) Clear(slugs ...string) error {
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		if err := os.Remove(c.Path(slug)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ClearAll removes every cached entry.
func (c *Cache) ClearAll() error {
	return os.RemoveAll(c.dir)
}

// ClearOld removes cache files older than maxAge.
func (c *Cache) ClearOld() error {
	return filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if time.Since(info.ModTime()) > c.maxAge {
			os.Remove(path)
		}
		return nil
	})
}
