// Package schema maps declarative record type definitions onto store
// queries. A Schema owns the editable fields of a collection, the query
// fields available for output, the filters usable in expressions and the
// references it holds to other collections.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

var (
	// ErrUnknownTable is returned for collection names without a schema
	ErrUnknownTable = errors.New("unknown table")
)

// UnknownFieldError names a field that is not defined on a table
type UnknownFieldError struct {
	Table string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q on %s", e.Field, e.Table)
}

// InvalidFilterError lists every filter argument that could not be used
type InvalidFilterError struct {
	Table string
	Args  []string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter arguments for %s: %s", e.Table, strings.Join(e.Args, ", "))
}

// BuildFunc declares the fields, query fields and filters of a schema
type BuildFunc func(s *Schema)

// Registry constructs schemas lazily from their builders and keeps them
// for the lifetime of the process. Builders run outside the registry lock
// and may look up other schemas, but not their own.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

type entry struct {
	build  BuildFunc
	once   sync.Once
	built  atomic.Bool
	schema *Schema
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a builder for the collection name. Registering a name
// twice replaces the builder as long as the schema was not built yet.
func (r *Registry) Register(name string, build BuildFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.entries[name]
	if !ok {
		r.order = append(r.order, name)
	} else if old.built.Load() {
		return
	}
	r.entries[name] = &entry{build: build}
}

// Names returns the registered collection names in registration order
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Get returns the schema of a collection, building it on first use.
func (r *Registry) Get(name string) (*Schema, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	var known []string
	if !ok {
		known = append(known, r.order...)
	}
	r.mu.Unlock()

	if !ok {
		sort.Strings(known)
		return nil, fmt.Errorf("%w %q (known tables: %s)", ErrUnknownTable, name, strings.Join(known, ", "))
	}
	e.once.Do(func() {
		s := newSchema(name)
		e.build(s)
		e.schema = s
		e.built.Store(true)
	})
	return e.schema, nil
}

// Env carries what query preparation needs at call time
type Env struct {
	DB       *store.DB
	Registry *Registry
}

// Schema is a shortcut for e.Registry.Get
func (e Env) Schema(name string) (*Schema, error) {
	return e.Registry.Get(name)
}

// Collection opens the store collection for a registered table
func (e Env) Collection(name string) (*store.Collection, error) {
	if _, err := e.Registry.Get(name); err != nil {
		return nil, err
	}
	return e.DB.Collection(name)
}
