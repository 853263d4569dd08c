package store

import (
	"fmt"
	"sort"
)

// JoinFunc fetches the records related to r. The result is attached to r
// under the join alias.
type JoinFunc func(r Record) ([]Record, error)

// ComputeFunc derives a value from a record after joins have run.
type ComputeFunc func(r Record) (any, error)

// Order sorts query results by one field
type Order struct {
	Field string
	Desc  bool
}

type join struct {
	alias string
	fetch JoinFunc
}

type compute struct {
	alias string
	fn    ComputeFunc
}

// Query is an in-flight query over one collection. Stages run in a fixed
// order: where, join, compute, having, order, offset/limit, projection.
type Query struct {
	coll     *Collection
	selects  []string
	where    []Predicate
	joins    []join
	computes []compute
	having   []Predicate
	orders   []Order
	except   []string
	limit    int
	offset   int
}

// Collection returns the queried collection
func (q *Query) Collection() *Collection { return q.coll }

// Select restricts the output to the given stored fields. Computed
// aliases are always part of the output.
func (q *Query) Select(fields ...string) *Query {
	for _, f := range fields {
		if !contains(q.selects, f) {
			q.selects = append(q.selects, f)
		}
	}
	return q
}

// Where filters stored records before joins run
func (q *Query) Where(preds ...Predicate) *Query {
	q.where = append(q.where, preds...)
	return q
}

// Join attaches related records under alias. Joining the same alias twice
// is a no-op.
func (q *Query) Join(fetch JoinFunc, alias string) *Query {
	if q.HasJoin(alias) {
		return q
	}
	q.joins = append(q.joins, join{alias: alias, fetch: fetch})
	return q
}

// HasJoin reports whether alias is already joined
func (q *Query) HasJoin(alias string) bool {
	for _, j := range q.joins {
		if j.alias == alias {
			return true
		}
	}
	return false
}

// Compute adds a derived column. Later computes can read earlier ones,
// except where the alias names a stored field: those keep reading the
// stored value.
func (q *Query) Compute(alias string, fn ComputeFunc) *Query {
	for i, c := range q.computes {
		if c.alias == alias {
			q.computes[i].fn = fn
			return q
		}
	}
	q.computes = append(q.computes, compute{alias: alias, fn: fn})
	return q
}

// HasCompute reports whether alias is already computed
func (q *Query) HasCompute(alias string) bool {
	for _, c := range q.computes {
		if c.alias == alias {
			return true
		}
	}
	return false
}

// Having filters records after joins and computes ran
func (q *Query) Having(preds ...Predicate) *Query {
	q.having = append(q.having, preds...)
	return q
}

// OrderBy appends sort keys
func (q *Query) OrderBy(orders ...Order) *Query {
	q.orders = append(q.orders, orders...)
	return q
}

// Except removes fields from the output
func (q *Query) Except(fields ...string) *Query {
	q.except = append(q.except, fields...)
	return q
}

// Limit caps the number of results; 0 means no limit
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n results
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Run executes the query
func (q *Query) Run() ([]Record, error) {
	records, err := q.coll.Find(And(q.where...))
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		for _, j := range q.joins {
			joined, err := j.fetch(r)
			if err != nil {
				return nil, fmt.Errorf("join %s on %s: %w", j.alias, q.coll.name, err)
			}
			r[j.alias] = joined
		}
		if err := q.compute(r); err != nil {
			return nil, err
		}
	}

	if len(q.having) > 0 {
		having := And(q.having...)
		filtered := records[:0]
		for _, r := range records {
			if having.Match(r) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if len(q.orders) > 0 {
		sort.SliceStable(records, func(i, j int) bool {
			for _, o := range q.orders {
				c := CompareOrder(records[i].Lookup(o.Field), records[j].Lookup(o.Field))
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.offset > 0 {
		if q.offset >= len(records) {
			records = nil
		} else {
			records = records[q.offset:]
		}
	}
	if q.limit > 0 && len(records) > q.limit {
		records = records[:q.limit]
	}

	return q.project(records), nil
}

// compute runs every compute of one record. Computes read the stored and
// joined values unchanged; a computed alias is visible to later computes
// only where it does not shadow one of them. Results land on r at the end.
func (q *Query) compute(r Record) error {
	if len(q.computes) == 0 {
		return nil
	}
	view := make(Record, len(r)+len(q.computes))
	for k, v := range r {
		view[k] = v
	}
	results := make([]any, len(q.computes))
	for i, c := range q.computes {
		v, err := c.fn(view)
		if err != nil {
			return fmt.Errorf("compute %s on %s: %w", c.alias, q.coll.name, err)
		}
		results[i] = v
		if _, stored := r[c.alias]; !stored {
			view[c.alias] = v
		}
	}
	for i, c := range q.computes {
		r[c.alias] = results[i]
	}
	return nil
}

// First runs the query and returns its first result, or ErrNotFound
func (q *Query) First() (Record, error) {
	records, err := q.Limit(1).Run()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", q.coll.name, ErrNotFound)
	}
	return records[0], nil
}

func (q *Query) project(records []Record) []Record {
	if len(q.selects) == 0 && len(q.except) == 0 {
		return records
	}
	for i, r := range records {
		if len(q.selects) > 0 {
			out := make(Record, len(q.selects)+len(q.computes))
			for _, f := range q.selects {
				if v, ok := r[f]; ok {
					out[f] = v
				}
			}
			for _, c := range q.computes {
				out[c.alias] = r[c.alias]
			}
			r = out
		}
		for _, f := range q.except {
			delete(r, f)
		}
		records[i] = r
	}
	return records
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
