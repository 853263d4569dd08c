// Package store is the JSON document store behind the catalog.
//
// A DB is a directory holding one JSON file per collection. Collections
// are loaded lazily on first use, kept in memory, and written back
// atomically (temp file + rename) under a cross-process file lock after
// every mutation. The store assigns numeric ids and enforces that every
// record has a non-empty key unique within its collection.
package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

var collectionNameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// DB is a directory of collections.
type DB struct {
	dir         string
	fs          FileSystem
	lockFactory FileLockFactory
	timeFunc    func() time.Time
	logger      *slog.Logger

	mu          sync.Mutex
	collections map[string]*Collection
}

// Option configures a DB
type Option func(*DB)

// WithFileSystem sets a custom FileSystem implementation
func WithFileSystem(fs FileSystem) Option {
	return func(db *DB) { db.fs = fs }
}

// WithFileLockFactory sets a custom FileLockFactory implementation
func WithFileLockFactory(factory FileLockFactory) Option {
	return func(db *DB) { db.lockFactory = factory }
}

// WithTimeFunc sets the clock used for metadata timestamps
func WithTimeFunc(fn func() time.Time) Option {
	return func(db *DB) { db.timeFunc = fn }
}

// WithLogger sets the logger used for write operations
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// Open prepares the store rooted at dir, creating the directory if needed.
// No collection file is read until the collection is first used.
func Open(dir string, opts ...Option) (*DB, error) {
	db := &DB{
		dir:         dir,
		timeFunc:    time.Now,
		collections: make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.fs == nil {
		db.fs = OSFileSystem{}
	}
	if db.lockFactory == nil {
		db.lockFactory = FlockFactory{}
	}
	if db.logger == nil {
		db.logger = slog.Default()
	}

	if err := db.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return db, nil
}

// Dir returns the data directory
func (db *DB) Dir() string { return db.dir }

// Collection returns the named collection, loading it on first access.
func (db *DB) Collection(name string) (*Collection, error) {
	if !collectionNameRe.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if c, ok := db.collections[name]; ok {
		return c, nil
	}

	path := filepath.Join(db.dir, name+".json")
	c := &Collection{
		name: name,
		path: path,
		db:   db,
		lock: db.lockFactory.New(path + ".lock"),
	}
	if err := withFileLock(c.lock, c.load); err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	db.collections[name] = c
	return c, nil
}

// Loaded lists the names of collections opened so far, sorted
func (db *DB) Loaded() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases the DB. Collections hold no open file handles between
// operations, so this only drops the in-memory cache.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.collections = make(map[string]*Collection)
	return nil
}
