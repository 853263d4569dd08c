package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

// Operator is a filter expression operator
type Operator string

const (
	OpEqual     Operator = "="
	OpNotEqual  Operator = "!="
	OpLike      Operator = "~"
	OpNotLike   Operator = "!~"
	OpGreater   Operator = ">"
	OpLess      Operator = "<"
	OpGreaterEq Operator = ">="
	OpLessEq    Operator = "<="
	// OpIn tests membership in a comma-separated list. "?" is accepted as
	// an alias when parsing.
	OpIn Operator = "#"
)

// Operators lists every filter operator
var Operators = []Operator{OpEqual, OpNotEqual, OpLike, OpNotLike, OpGreater, OpLess, OpGreaterEq, OpLessEq, OpIn}

// Comparisons lists the operators meaningful for ordered values
var Comparisons = []Operator{OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEq, OpLessEq, OpIn}

// Text lists the operators meaningful for free text
var Text = []Operator{OpEqual, OpNotEqual, OpLike, OpNotLike, OpIn}

var expressionRe = regexp.MustCompile(`^([a-z0-9.-]+)(!=|!~|>=|<=|=|~|>|<|#|\?)(.*)$`)

// Expression is one parsed filter argument
type Expression struct {
	Field string
	Op    Operator
	Value string
	Raw   string
}

func (e Expression) String() string { return e.Raw }

// ParseExpression splits "<field><op><value>"
func ParseExpression(raw string) (Expression, error) {
	m := expressionRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Expression{}, fmt.Errorf("malformed filter %q", raw)
	}
	op := Operator(m[2])
	if op == "?" {
		op = OpIn
	}
	return Expression{Field: m[1], Op: op, Value: m[3], Raw: raw}, nil
}

// storeCondition translates an operator and raw value into a store
// condition on path.
func storeCondition(path string, op Operator, value string) store.Predicate {
	switch op {
	case OpEqual:
		if value == "" {
			return store.Cond(path, store.OpIsNull, nil)
		}
		return store.Cond(path, store.OpEqual, value)
	case OpNotEqual:
		if value == "" {
			return store.Cond(path, store.OpNotNull, nil)
		}
		return store.Cond(path, store.OpNotEqual, value)
	case OpLike:
		return store.Cond(path, store.OpLike, likeValue(value))
	case OpNotLike:
		return store.Cond(path, store.OpNotLike, likeValue(value))
	case OpGreater:
		return store.Cond(path, store.OpGreater, value)
	case OpLess:
		return store.Cond(path, store.OpLess, value)
	case OpGreaterEq:
		return store.Cond(path, store.OpGreaterEq, value)
	case OpLessEq:
		return store.Cond(path, store.OpLessEq, value)
	case OpIn:
		return store.Cond(path, store.OpIn, splitList(value))
	}
	return store.MatchFunc(func(store.Record) bool { return false })
}

// likeValue turns text without wildcards into a substring pattern
func likeValue(value string) string {
	if strings.ContainsAny(value, "*%") {
		return value
	}
	return "%" + value + "%"
}

func splitList(value string) []any {
	var out []any
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hiddenAlias(prefix, name string) string {
	return prefix + strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// Filter adds the predicate of one expression to a query
type Filter interface {
	Apply(env Env, s *Schema, q *store.Query, e Expression) error
}

// FieldFilter compares the value of the query field named like the
// expression. Stored fields are compared raw before joins run; computed
// ones after.
type FieldFilter struct{}

func (FieldFilter) Apply(env Env, s *Schema, q *store.Query, e Expression) error {
	qf, err := s.QueryField(env, e.Field)
	if err != nil {
		return err
	}
	if stored, ok := qf.(*Real); ok {
		q.Where(storeCondition(stored.Path, e.Op, e.Value))
		return nil
	}
	alias := hiddenAlias("@filter_", e.Field)
	if !q.HasCompute(alias) {
		if err := qf.Prepare(env, q, alias); err != nil {
			return err
		}
	}
	q.Having(storeCondition(alias, e.Op, e.Value))
	q.Except(alias)
	return nil
}

// ReferenceFilter matches a reference field either against ids typed
// directly ("author=3", "author#3,4", keys are accepted too) or against
// the target records matching a sub-filter ("author.lastname~love").
// "author=" matches records without any author.
type ReferenceFilter struct{}

func (ReferenceFilter) Apply(env Env, s *Schema, q *store.Query, e Expression) error {
	head, rest, dotted := strings.Cut(e.Field, ".")
	ref, ok := s.reference(head)
	if !ok {
		return &UnknownFieldError{Table: s.name, Field: e.Field}
	}
	target, err := env.Schema(ref.Target)
	if err != nil {
		return err
	}
	coll, err := env.Collection(ref.Target)
	if err != nil {
		return err
	}

	if !dotted && e.Value == "" && (e.Op == OpEqual || e.Op == OpNotEqual) {
		q.Where(storeCondition(head, e.Op, ""))
		return nil
	}

	var ids []any
	negate := false
	if dotted {
		sub := Expression{Field: rest, Op: e.Op, Value: e.Value, Raw: e.Raw}
		f, ok := target.filter(env, rest, e.Op)
		if !ok {
			return &InvalidFilterError{Table: s.name, Args: []string{e.Raw}}
		}
		fq := coll.Query().Select("id")
		if err := f.Apply(env, target, fq, sub); err != nil {
			return err
		}
		matches, err := fq.Run()
		if err != nil {
			return err
		}
		for _, r := range matches {
			ids = append(ids, r.ID())
		}
	} else {
		negate = e.Op == OpNotEqual
		for _, part := range splitList(e.Value) {
			text := part.(string)
			if id, isInt := store.AsInt(text); isInt {
				ids = append(ids, id)
				continue
			}
			r, err := coll.FindByKey(text)
			if err != nil {
				return fmt.Errorf("filter %s: %w", e.Raw, err)
			}
			ids = append(ids, r.ID())
		}
	}

	var pred store.Predicate = store.Cond(head, store.OpIn, ids)
	if len(ids) == 0 {
		pred = store.MatchFunc(func(store.Record) bool { return false })
	}
	if negate {
		pred = store.Not(pred)
	}
	q.Where(pred)
	return nil
}

// JoinFilter scans records fetched from another collection and matches
// when any of them has Field satisfying the expression.
type JoinFilter struct {
	Fetch FetchFunc
	Field string
}

func (f JoinFilter) Apply(env Env, _ *Schema, q *store.Query, e Expression) error {
	alias := hiddenAlias("@joinfilter_", e.Field)
	fetch := f.Fetch
	q.Join(func(r store.Record) ([]store.Record, error) { return fetch(env, r) }, alias)

	cond := storeCondition(f.Field, e.Op, e.Value)
	q.Having(store.MatchFunc(func(r store.Record) bool {
		joined, _ := r[alias].([]store.Record)
		for _, j := range joined {
			if cond.Match(j) {
				return true
			}
		}
		return false
	}))
	q.Except(alias)
	return nil
}

// ReduceFilter reduces the fetched records to one value, such as their
// count, and compares it with the expression value.
type ReduceFilter struct {
	Fetch  FetchFunc
	Reduce ReduceFunc
}

func (f ReduceFilter) Apply(env Env, _ *Schema, q *store.Query, e Expression) error {
	alias := hiddenAlias("@reduce_", e.Field)
	joinAlias := alias + "_join"
	fetch := f.Fetch
	reduce := f.Reduce
	if reduce == nil {
		reduce = Count
	}
	q.Join(func(r store.Record) ([]store.Record, error) { return fetch(env, r) }, joinAlias)
	q.Compute(alias, func(r store.Record) (any, error) {
		joined, _ := r[joinAlias].([]store.Record)
		return reduce(joined), nil
	})
	q.Having(storeCondition(alias, e.Op, e.Value))
	q.Except(alias, joinAlias)
	return nil
}

// filter finds the filter for a field and operator. Dotted names are
// handled by a reference filter on their first segment when the target
// schema supports the rest.
func (s *Schema) filter(env Env, name string, op Operator) (Filter, bool) {
	if f, ok := s.filters[name][op]; ok {
		return f, true
	}
	head, rest, dotted := strings.Cut(name, ".")
	if !dotted {
		return nil, false
	}
	byOp, ok := s.filters[head]
	if !ok {
		return nil, false
	}
	hasReferenceFilter := false
	for _, f := range byOp {
		if _, isRef := f.(ReferenceFilter); isRef {
			hasReferenceFilter = true
			break
		}
	}
	if !hasReferenceFilter {
		return nil, false
	}
	ref, ok := s.reference(head)
	if !ok {
		return nil, false
	}
	target, err := env.Schema(ref.Target)
	if err != nil {
		return nil, false
	}
	if _, ok := target.filter(env, rest, op); !ok {
		return nil, false
	}
	return ReferenceFilter{}, true
}

// ParseFilters parses and checks every argument before anything runs.
// All unusable arguments are reported together.
func ParseFilters(env Env, s *Schema, args []string) ([]Expression, error) {
	var exprs []Expression
	var invalid []string
	for _, arg := range args {
		e, err := ParseExpression(arg)
		if err != nil {
			invalid = append(invalid, arg)
			continue
		}
		if _, ok := s.filter(env, e.Field, e.Op); !ok {
			invalid = append(invalid, arg)
			continue
		}
		exprs = append(exprs, e)
	}
	if len(invalid) > 0 {
		return nil, &InvalidFilterError{Table: s.name, Args: invalid}
	}
	return exprs, nil
}

// ApplyFilters adds parsed expressions to q
func ApplyFilters(env Env, s *Schema, q *store.Query, exprs []Expression) error {
	for _, e := range exprs {
		f, ok := s.filter(env, e.Field, e.Op)
		if !ok {
			return &InvalidFilterError{Table: s.name, Args: []string{e.Raw}}
		}
		if err := f.Apply(env, s, q, e); err != nil {
			return fmt.Errorf("filter %s: %w", e.Raw, err)
		}
	}
	return nil
}
