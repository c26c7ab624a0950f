package database

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Database represents an in-memory database instance
type Database struct {
	name        string
	config      *Config
	collections map[string]*Collection
	logger      *zap.Logger
	closed      atomic.Bool
	mu          sync.RWMutex
}

// Config holds database configuration
type Config struct {
	Name      string
	CacheSize int           // Cached query results per collection, 0 disables the cache
	CacheTTL  time.Duration // Lifetime of a cached result, 0 = no expiry
	Logger    *zap.Logger   // Optional, defaults to a no-op logger
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Name:      "default",
		CacheSize: 1000,
		CacheTTL:  5 * time.Minute,
	}
}

// Open creates a database
func Open(config *Config) (*Database, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.CacheSize < 0 {
		return nil, fmt.Errorf("cache size must be non-negative, got %d", config.CacheSize)
	}
	if config.CacheTTL < 0 {
		return nil, fmt.Errorf("cache ttl must be non-negative, got %s", config.CacheTTL)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := config.Name
	if name == "" {
		name = "default"
	}

	db := &Database{
		name:        name,
		config:      config,
		collections: make(map[string]*Collection),
		logger:      logger.With(zap.String("database", name)),
	}
	db.logger.Debug("database opened", zap.Int("cacheSize", config.CacheSize))
	return db, nil
}

// Name returns the database name
func (db *Database) Name() string {
	return db.name
}

// Collection returns a collection, creating it if it doesn't exist
func (db *Database) Collection(name string) (*Collection, error) {
	if db.closed.Load() {
		return nil, ErrStoreUnavailable
	}
	if name == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if coll, exists := db.collections[name]; exists {
		return coll, nil
	}

	coll := newCollection(name, db)
	db.collections[name] = coll
	return coll, nil
}

// DropCollection drops a collection
func (db *Database) DropCollection(name string) error {
	if db.closed.Load() {
		return ErrStoreUnavailable
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.collections[name]; !exists {
		return fmt.Errorf("collection %s does not exist", name)
	}
	delete(db.collections, name)
	return nil
}

// ListCollections returns collection names in sorted order
func (db *Database) ListCollections() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes the database. Every later operation, including reads from
// cursors that have not run yet, fails with ErrStoreUnavailable.
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("database already closed")
	}
	db.logger.Debug("database closed")
	return nil
}

// IsClosed reports whether Close has been called
func (db *Database) IsClosed() bool {
	return db.closed.Load()
}

// Stats returns database statistics
func (db *Database) Stats() map[string]interface{} {
	db.mu.RLock()
	defer db.mu.RUnlock()

	collStats := make(map[string]interface{}, len(db.collections))
	for name, coll := range db.collections {
		collStats[name] = coll.Stats()
	}

	return map[string]interface{}{
		"name":        db.name,
		"collections": len(db.collections),
		"closed":      db.closed.Load(),
		"stats":       collStats,
	}
}
