// Package cache persists resolved artwork URLs keyed by album id.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	appDirName    = "navicord"
	cacheFileName = "images.json"
)

// entry is the current on-disk format. Legacy files hold bare URL strings,
// which are loaded with legacy set and discarded on first read.
// TTL is in seconds; a missing ttl uses the store default and 0 never expires.
type entry struct {
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	TTL       *int64    `json:"ttl,omitempty"`
	legacy    bool
}

// Store is a JSON file backed key-value cache of artwork URLs.
// An empty URL is a valid value: it records that nothing was found.
type Store struct {
	logger *zap.Logger
	path   string
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	loaded  bool
	entries map[string]entry
}

// NewStore creates a store backed by path. Entries without their own expiry
// are treated as absent once older than ttl; a zero ttl keeps them forever. Pass an empty path
// to use the default XDG cache location.
func NewStore(logger *zap.Logger, path string, ttl time.Duration) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{
		logger:  logger,
		path:    path,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Path returns the cache file location
func (s *Store) Path() string {
	return s.path
}

// Get returns the cached URL for key. Legacy and expired entries are removed
// and reported as absent.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}

	if e.legacy || s.expiredLocked(e) {
		delete(s.entries, key)
		if err := s.saveLocked(); err != nil {
			s.logger.Warn("Failed to persist artwork cache", zap.Error(err))
		}
		s.logger.Debug("Dropped stale artwork cache entry",
			zap.String("key", key),
			zap.Bool("legacy", e.legacy))
		return "", false
	}

	return e.URL, true
}

// Set stores url under key with the store default expiry and writes the file atomically
func (s *Store) Set(key, url string) error {
	return s.put(key, entry{URL: url})
}

// SetTTL stores url under key with its own expiry; a zero ttl never expires
func (s *Store) SetTTL(key, url string, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return s.put(key, entry{URL: url, TTL: &seconds})
}

func (s *Store) put(key string, e entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()
	e.CreatedAt = s.now().UTC()
	s.entries[key] = e
	return s.saveLocked()
}

// Delete removes key; deleting a missing key is not an error
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.saveLocked()
}

func (s *Store) expiredLocked(e entry) bool {
	ttl := s.ttl
	if e.TTL != nil {
		ttl = time.Duration(*e.TTL) * time.Second
	}
	return ttl > 0 && s.now().Sub(e.CreatedAt) >= ttl
}

// loadLocked reads the file once. A missing or corrupt file starts an empty cache.
func (s *Store) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to read artwork cache, starting empty",
				zap.String("path", s.path),
				zap.Error(err))
		}
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("Artwork cache is corrupt, starting empty",
			zap.String("path", s.path),
			zap.Error(err))
		return
	}

	for key, value := range raw {
		var url string
		if err := json.Unmarshal(value, &url); err == nil {
			s.entries[key] = entry{URL: url, legacy: true}
			continue
		}

		var e entry
		if err := json.Unmarshal(value, &e); err != nil {
			s.logger.Debug("Skipping unreadable artwork cache entry", zap.String("key", key))
			continue
		}
		s.entries[key] = e
	}

	s.logger.Debug("Artwork cache loaded",
		zap.String("path", s.path),
		zap.Int("entries", len(s.entries)))
}

// saveLocked writes all entries using a temp-file-then-rename pattern.
// Legacy entries are written back in their original form until read.
func (s *Store) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	out := make(map[string]any, len(s.entries))
	for key, e := range s.entries {
		if e.legacy {
			out[key] = e.URL
			continue
		}
		out[key] = e
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".images-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	committed = true

	return nil
}

// DefaultPath returns ~/.cache/navicord/images.json, respecting XDG_CACHE_HOME
func DefaultPath() string {
	if base := os.Getenv("XDG_CACHE_HOME"); base != "" {
		return filepath.Join(base, appDirName, cacheFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", appDirName, cacheFileName)
}
