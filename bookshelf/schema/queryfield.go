package schema

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

// QueryField describes how one output value of a listing is obtained.
// Prepare adds the joins and computed columns producing the value under
// alias to an in-flight query.
type QueryField interface {
	Label() string
	Prepare(env Env, q *store.Query, alias string) error
}

// Real selects a stored value. Format, when set, turns the raw value into
// its display form.
type Real struct {
	Path   string
	Title  string
	Format func(any) any
}

func (f *Real) Label() string { return f.Title }

func (f *Real) Prepare(_ Env, q *store.Query, alias string) error {
	path, format := f.Path, f.Format
	q.Compute(alias, func(r store.Record) (any, error) {
		v := r.Lookup(path)
		if format != nil {
			return format(v), nil
		}
		return v, nil
	})
	return nil
}

// Virtual concatenates other stored fields of the same record, skipping
// empty ones.
type Virtual struct {
	Fields    []string
	Separator string
	Title     string
}

func (f *Virtual) Label() string { return f.Title }

func (f *Virtual) Prepare(_ Env, q *store.Query, alias string) error {
	fields, sep := f.Fields, f.Separator
	q.Compute(alias, func(r store.Record) (any, error) {
		parts := make([]string, 0, len(fields))
		for _, name := range fields {
			if s := field.ToString(r.Lookup(name)); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return nil, nil
		}
		return strings.Join(parts, sep), nil
	})
	return nil
}

// Joined follows a forward reference and projects a query field of the
// target records. Target empty means the target's display field. Multi
// references join their values with "; ".
type Joined struct {
	Field      string
	Collection string
	Target     string
	Multi      bool
	Title      string
}

func (f *Joined) Label() string { return f.Title }

func (f *Joined) Prepare(env Env, q *store.Query, alias string) error {
	target, err := env.Schema(f.Collection)
	if err != nil {
		return err
	}
	targetField := f.Target
	if targetField == "" {
		targetField = target.DisplayField()
	}
	foreign, err := target.QueryField(env, targetField)
	if err != nil {
		return err
	}

	var values map[int64]any
	load := func() error {
		if values != nil {
			return nil
		}
		coll, err := env.Collection(f.Collection)
		if err != nil {
			return err
		}
		fq := coll.Query()
		if err := foreign.Prepare(env, fq, "value"); err != nil {
			return err
		}
		records, err := fq.Run()
		if err != nil {
			return err
		}
		values = make(map[int64]any, len(records))
		for _, r := range records {
			values[r.ID()] = r["value"]
		}
		return nil
	}

	joinAlias := "@join_" + alias
	local := f.Field
	q.Join(func(r store.Record) ([]store.Record, error) {
		if err := load(); err != nil {
			return nil, err
		}
		var joined []store.Record
		for _, item := range store.AsList(r[local]) {
			id, ok := store.AsInt(item)
			if !ok {
				continue
			}
			if v, found := values[id]; found {
				joined = append(joined, store.Record{"id": id, "value": v})
			}
		}
		return joined, nil
	}, joinAlias)

	multi := f.Multi
	q.Compute(alias, func(r store.Record) (any, error) {
		joined, _ := r[joinAlias].([]store.Record)
		if !multi {
			if len(joined) == 0 {
				return nil, nil
			}
			return joined[0]["value"], nil
		}
		parts := make([]string, 0, len(joined))
		for _, j := range joined {
			if s := field.ToString(j["value"]); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return nil, nil
		}
		return strings.Join(parts, "; "), nil
	})
	q.Except(joinAlias)
	return nil
}

// ReduceFunc collapses joined records into one value
type ReduceFunc func(records []store.Record) any

// Count reduces to the number of records
func Count(records []store.Record) any { return int64(len(records)) }

// References follows references pointing at the record from another
// collection and reduces them to one value, such as the number of books
// naming a person.
type References struct {
	Fetch  FetchFunc
	Reduce ReduceFunc
	Title  string
}

func (f *References) Label() string { return f.Title }

func (f *References) Prepare(env Env, q *store.Query, alias string) error {
	if f.Fetch == nil {
		return fmt.Errorf("query field %s has no fetch function", alias)
	}
	joinAlias := "@refs_" + alias
	fetch := f.Fetch
	q.Join(func(r store.Record) ([]store.Record, error) {
		return fetch(env, r)
	}, joinAlias)

	reduce := f.Reduce
	if reduce == nil {
		reduce = Count
	}
	q.Compute(alias, func(r store.Record) (any, error) {
		joined, _ := r[joinAlias].([]store.Record)
		return reduce(joined), nil
	})
	q.Except(joinAlias)
	return nil
}

// Alternatives takes the first non-empty value among several query
// fields of Table, e.g. the original language of a book, else its
// language.
type Alternatives struct {
	Table string
	Names []string
	Title string
}

func (f *Alternatives) Label() string { return f.Title }

func (f *Alternatives) Prepare(env Env, q *store.Query, alias string) error {
	s, err := env.Schema(f.Table)
	if err != nil {
		return err
	}
	hidden := make([]string, len(f.Names))
	for i, name := range f.Names {
		qf, err := s.QueryField(env, name)
		if err != nil {
			return err
		}
		hidden[i] = fmt.Sprintf("@alt_%s_%d", alias, i)
		if err := qf.Prepare(env, q, hidden[i]); err != nil {
			return err
		}
	}
	q.Compute(alias, func(r store.Record) (any, error) {
		for _, h := range hidden {
			if v := r[h]; field.ToString(v) != "" {
				return v, nil
			}
		}
		return nil, nil
	})
	q.Except(hidden...)
	return nil
}

// AddAlternatives registers an Alternatives query field over names of s
func (s *Schema) AddAlternatives(name, title string, names ...string) {
	s.AddQueryField(name, &Alternatives{Table: s.name, Names: names, Title: title})
}
