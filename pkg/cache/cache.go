// Package cache stores model analyses in a bbolt file so an unchanged issue
// is not sent to the model twice.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/germanamz/relnotes/pkg/analysis"
)

var bucket = []byte("analyses")

type entry struct {
	Analysis analysis.Analysis `json:"analysis"`
	StoredAt time.Time         `json:"stored_at"`
}

// Cache is a bbolt backed analysis cache. Entries older than the TTL are
// treated as missing; a zero TTL keeps entries forever.
type Cache struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (or creates) the cache file at path.
func Open(path string, ttl time.Duration) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: create bucket: %w", err)
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// SetNowFunc overrides the time source (for testing).
func (c *Cache) SetNowFunc(fn func() time.Time) { c.now = fn }

// Key derives the cache key for an issue. Any change to the model, the
// prompt content or the completion parameters produces a new key.
func Key(issueKey, model, prompt string, params map[string]any) string {
	// encoding/json sorts map keys, so equal params encode equally.
	p, _ := json.Marshal(params)
	sum := sha256.Sum256([]byte(model + "\x00" + prompt + "\x00" + string(p)))

	return issueKey + ":" + hex.EncodeToString(sum[:12])
}

// Get returns the cached analysis for key.
func (c *Cache) Get(key string) (analysis.Analysis, bool, error) {
	var (
		e     entry
		found bool
	)

	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}

		found = true

		return json.Unmarshal(raw, &e)
	})
	if err != nil {
		return analysis.Analysis{}, false, fmt.Errorf("cache: get %s: %w", key, err)
	}

	if !found || (c.ttl > 0 && c.now().Sub(e.StoredAt) > c.ttl) {
		return analysis.Analysis{}, false, nil
	}

	return e.Analysis, true, nil
}

// Put stores a under key.
func (c *Cache) Put(key string, a analysis.Analysis) error {
	raw, err := json.Marshal(entry{Analysis: a, StoredAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}

	return nil
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	n := 0
	_ = c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucket).Stats().KeyN
		return nil
	})

	return n
}

// Close releases the file lock.
func (c *Cache) Close() error { return c.db.Close() }
