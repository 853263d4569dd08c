package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const formatVersion = "1.0"

// Metadata describes a collection file
type Metadata struct {
	UUID       string    `json:"uuid"`
	Collection string    `json:"collection"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// collectionData is the on-disk layout of a collection file
type collectionData struct {
	Metadata Metadata `json:"metadata"`
	NextID   int64    `json:"next_id"`
	Records  []Record `json:"records"`
}

// Collection is the set of records of one record type.
type Collection struct {
	name string
	path string
	db   *DB
	lock FileLock

	mu   sync.RWMutex
	data collectionData
}

// Name returns the collection name
func (c *Collection) Name() string { return c.name }

// Metadata returns the collection file metadata
func (c *Collection) Metadata() Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Metadata
}

// load reads the collection file; the caller holds the file lock.
func (c *Collection) load() error {
	now := c.db.timeFunc()
	c.data = collectionData{
		Metadata: Metadata{
			UUID:       uuid.New().String(),
			Collection: c.name,
			Version:    formatVersion,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		NextID: 1,
	}

	if _, err := c.db.fs.Stat(c.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	raw, err := c.db.fs.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data collectionData
	if err := dec.Decode(&data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	for i, r := range data.Records {
		data.Records[i] = normalizeRecord(r)
	}
	for _, r := range data.Records {
		if r.ID() >= data.NextID {
			data.NextID = r.ID() + 1
		}
	}
	if data.NextID < 1 {
		data.NextID = 1
	}
	c.data = data
	return nil
}

// save writes the collection file; the caller holds the file lock.
func (c *Collection) save() error {
	c.data.Metadata.UpdatedAt = c.db.timeFunc()

	raw, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmpFile := c.path + ".tmp"
	if err := c.db.fs.WriteFile(tmpFile, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := c.db.fs.Rename(tmpFile, c.path); err != nil {
		_ = c.db.fs.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// mutate applies fn to the in-memory data and persists it. If persisting
// fails the in-memory state is rolled back.
func (c *Collection) mutate(op string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	backup := collectionData{
		Metadata: c.data.Metadata,
		NextID:   c.data.NextID,
		Records:  append([]Record(nil), c.data.Records...),
	}
	if err := fn(); err != nil {
		c.data = backup
		return err
	}
	if err := withFileLock(c.lock, c.save); err != nil {
		c.data = backup
		c.db.logger.Warn("collection save failed", "collection", c.name, "operation", op, "error", err)
		return fmt.Errorf("failed to save %s: %w", c.name, err)
	}
	c.db.logger.Debug("collection saved", "collection", c.name, "operation", op, "records", len(c.data.Records))
	return nil
}

// All returns copies of every record in insertion order
func (c *Collection) All() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Record, len(c.data.Records))
	for i, r := range c.data.Records {
		out[i] = r.Clone()
	}
	return out
}

// Find returns the records matching p
func (c *Collection) Find(p Predicate) ([]Record, error) {
	if p == nil {
		p = All
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Record
	for _, r := range c.data.Records {
		if p.Match(r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// FindOneBy returns the first record matching p, or ErrNotFound
func (c *Collection) FindOneBy(p Predicate) (Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.data.Records {
		if p.Match(r) {
			return r.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", c.name, ErrNotFound)
}

// FindByID returns the record with the given id, or ErrNotFound
func (c *Collection) FindByID(id int64) (Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(id); i >= 0 {
		return c.data.Records[i].Clone(), nil
	}
	return nil, fmt.Errorf("%s id %d: %w", c.name, id, ErrNotFound)
}

// FindByKey returns the record with the given key, or ErrNotFound
func (c *Collection) FindByKey(key string) (Record, error) {
	r, err := c.FindOneBy(Cond("key", OpEqual, key))
	if err != nil {
		return nil, fmt.Errorf("%s key %q: %w", c.name, key, ErrNotFound)
	}
	return r, nil
}

// Insert stores a new record and returns it with its assigned id. An id
// already present on r is kept if it is free.
func (c *Collection) Insert(r Record) (Record, error) {
	var stored Record
	err := c.mutate("insert", func() error {
		var err error
		stored, err = c.insertLocked(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// UpdateOrInsert replaces the record with r's id, or inserts r when it has
// no id or its id is unknown.
func (c *Collection) UpdateOrInsert(r Record) (Record, error) {
	var stored Record
	err := c.mutate("upsert", func() error {
		id := r.ID()
		i := c.indexOf(id)
		if id <= 0 || i < 0 {
			var err error
			stored, err = c.insertLocked(r)
			return err
		}
		rec := normalizeRecord(r)
		rec["id"] = id
		if err := c.checkKey(rec, id); err != nil {
			return err
		}
		c.data.Records[i] = rec
		stored = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// DeleteByID removes a record; it reports false when no record had the id.
func (c *Collection) DeleteByID(id int64) (bool, error) {
	c.mu.RLock()
	found := c.indexOf(id) >= 0
	c.mu.RUnlock()
	if !found {
		return false, nil
	}

	err := c.mutate("delete", func() error {
		i := c.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%s id %d: %w", c.name, id, ErrNotFound)
		}
		c.data.Records = append(c.data.Records[:i:i], c.data.Records[i+1:]...)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Query starts a query over this collection
func (c *Collection) Query() *Query {
	return &Query{coll: c}
}

func (c *Collection) insertLocked(r Record) (Record, error) {
	rec := normalizeRecord(r)
	id := rec.ID()
	if id <= 0 || c.indexOf(id) >= 0 {
		id = c.data.NextID
	}
	rec["id"] = id
	if err := c.checkKey(rec, id); err != nil {
		return nil, err
	}
	if id >= c.data.NextID {
		c.data.NextID = id + 1
	}
	c.data.Records = append(c.data.Records, rec)
	return rec, nil
}

func (c *Collection) checkKey(r Record, id int64) error {
	key := r.Key()
	if key == "" {
		return &ConflictError{Collection: c.name, Field: "key", Value: r["key"], Reason: "must not be empty"}
	}
	for _, other := range c.data.Records {
		if other.Key() == key && other.ID() != id {
			return &ConflictError{Collection: c.name, Field: "key", Value: key, Reason: "already exists"}
		}
	}
	return nil
}

func (c *Collection) indexOf(id int64) int {
	if id <= 0 {
		return -1
	}
	for i, r := range c.data.Records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
