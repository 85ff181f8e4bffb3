package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Bucket names
var (
	bucketSession     = []byte("session")
	bucketPreferences = []byte("preferences")
	bucketQueryCache  = []byte("query_cache")
)

const (
	keyToken      = "token"
	keyOAuthState = "oauth_state"
)

// Store implements domain.SessionStore and the query cache backend using BoltDB.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

// New opens the store under baseDir, namespaced by server URL so switching
// backends never leaks a token to the wrong server. An empty baseDir gives a
// memory-only store.
func New(baseDir, serverURL string) (*Store, error) {
	if baseDir == "" {
		// Memory-only mode (no persistence)
		return &Store{cache: make(map[string][]byte)}, nil
	}

	dir := baseDir
	if serverURL != "" {
		dir = filepath.Join(baseDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "leadops.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSession, bucketPreferences, bucketQueryCache} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, cache: make(map[string][]byte)}, nil
}

// NewMemory returns a store with no persistence, used as the fake backing store in tests.
func NewMemory() *Store {
	s, _ := New("", "")
	return s
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *Store) get(bucket []byte, key string) ([]byte, bool) {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return data, true
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return nil, false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return data, true
}

func (s *Store) set(bucket []byte, key string, data []byte) error {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *Store) delete(bucket []byte, key string) error {
	s.mu.Lock()
	delete(s.cache, string(bucket)+":"+key)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucket); b != nil {
			return b.Delete([]byte(key))
		}
		return nil
	})
}

func (s *Store) deletePrefix(bucket []byte, prefix string) error {
	s.mu.Lock()
	cachePrefix := string(bucket) + ":" + prefix
	for k := range s.cache {
		if strings.HasPrefix(k, cachePrefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		// Collect first; deleting while iterating skips keys in bolt.
		var keys [][]byte
		c := b.Cursor()
		prefixBytes := []byte(prefix)
		for k, _ := c.Seek(prefixBytes); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// === Session ===

// Token returns the bearer token, if logged in.
func (s *Store) Token() (string, bool) {
	data, ok := s.get(bucketSession, keyToken)
	if !ok || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (s *Store) SaveToken(token string) error {
	return s.set(bucketSession, keyToken, []byte(token))
}

func (s *Store) ClearToken() error {
	return s.delete(bucketSession, keyToken)
}

func (s *Store) OAuthState() (string, bool) {
	data, ok := s.get(bucketSession, keyOAuthState)
	if !ok || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (s *Store) SaveOAuthState(state string) error {
	return s.set(bucketSession, keyOAuthState, []byte(state))
}

func (s *Store) ClearOAuthState() error {
	return s.delete(bucketSession, keyOAuthState)
}

// === Preferences ===

func (s *Store) Preference(key string) (string, bool) {
	data, ok := s.get(bucketPreferences, key)
	if !ok {
		return "", false
	}
	return string(data), true
}

// SavePreference writes one preference synchronously.
func (s *Store) SavePreference(key, value string) error {
	return s.set(bucketPreferences, key, []byte(value))
}

// === Query cache ===

func (s *Store) LoadEntry(key string) (domain.CacheEntry, bool) {
	data, ok := s.get(bucketQueryCache, key)
	if !ok {
		return domain.CacheEntry{}, false
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.CacheEntry{}, false
	}
	return entry, true
}

func (s *Store) SaveEntry(entry domain.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.set(bucketQueryCache, entry.Key, data)
}

func (s *Store) DeleteEntries(prefix string) error {
	return s.deletePrefix(bucketQueryCache, prefix)
}

func (s *Store) ClearEntries() error {
	return s.deletePrefix(bucketQueryCache, "")
}

// Compile-time interface check
var _ domain.SessionStore = (*Store)(nil)
