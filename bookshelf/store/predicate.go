package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Operator is a comparison understood by Compare and Cond.
type Operator string

const (
	OpEqual     Operator = "="
	OpNotEqual  Operator = "!="
	OpLess      Operator = "<"
	OpGreater   Operator = ">"
	OpLessEq    Operator = "<="
	OpGreaterEq Operator = ">="
	// OpLike is a case-insensitive pattern match; % and * match any run
	// of characters, _ matches one character.
	OpLike    Operator = "like"
	OpNotLike Operator = "not like"
	// OpIn matches when the value equals one element of a list.
	OpIn    Operator = "in"
	OpNotIn Operator = "not in"
	// OpContains matches a list value holding the expected element.
	OpContains Operator = "contains"
	OpIsNull   Operator = "is null"
	OpNotNull  Operator = "is not null"
)

// Predicate decides whether a record belongs to a result set.
type Predicate interface {
	Match(r Record) bool
}

// Condition compares the value at Field with Value.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Cond builds a Condition
func Cond(field string, op Operator, value any) Condition {
	return Condition{Field: field, Operator: op, Value: value}
}

// Match implements Predicate
func (c Condition) Match(r Record) bool {
	return Compare(r.Lookup(c.Field), c.Operator, c.Value)
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

type andPredicate []Predicate

func (a andPredicate) Match(r Record) bool {
	for _, p := range a {
		if !p.Match(r) {
			return false
		}
	}
	return true
}

type orPredicate []Predicate

func (o orPredicate) Match(r Record) bool {
	for _, p := range o {
		if p.Match(r) {
			return true
		}
	}
	return false
}

type notPredicate struct{ p Predicate }

func (n notPredicate) Match(r Record) bool { return !n.p.Match(r) }

// MatchFunc adapts a function to a Predicate
type MatchFunc func(r Record) bool

// Match implements Predicate
func (f MatchFunc) Match(r Record) bool { return f(r) }

// And matches when all predicates match; an empty And matches everything.
func And(preds ...Predicate) Predicate { return andPredicate(preds) }

// Or matches when any predicate matches; an empty Or matches nothing.
func Or(preds ...Predicate) Predicate { return orPredicate(preds) }

// Not inverts a predicate
func Not(p Predicate) Predicate { return notPredicate{p} }

// All matches every record
var All Predicate = andPredicate(nil)

// Compare applies op to an actual value taken from a record and an
// expected value. List values match when any element matches; negated
// operators require that no element matches.
func Compare(actual any, op Operator, expected any) bool {
	actual = Normalize(actual)
	expected = Normalize(expected)

	switch op {
	case OpIsNull:
		return isEmpty(actual)
	case OpNotNull:
		return !isEmpty(actual)
	case OpNotEqual:
		return !Compare(actual, OpEqual, expected)
	case OpNotLike:
		return !Compare(actual, OpLike, expected)
	case OpNotIn:
		return !Compare(actual, OpIn, expected)
	case OpContains:
		for _, item := range AsList(actual) {
			if equalValues(item, expected) {
				return true
			}
		}
		return false
	}

	if list, ok := actual.([]any); ok {
		for _, item := range list {
			if Compare(item, op, expected) {
				return true
			}
		}
		return false
	}

	switch op {
	case OpEqual:
		return equalValues(actual, expected)
	case OpIn:
		for _, candidate := range AsList(expected) {
			if equalValues(actual, candidate) {
				return true
			}
		}
		return false
	case OpLike:
		if actual == nil {
			return false
		}
		return likePattern(fmt.Sprint(expected)).MatchString(fmt.Sprint(actual))
	case OpLess, OpGreater, OpLessEq, OpGreaterEq:
		if actual == nil || expected == nil {
			return false
		}
		c := CompareOrder(actual, expected)
		switch op {
		case OpLess:
			return c < 0
		case OpGreater:
			return c > 0
		case OpLessEq:
			return c <= 0
		default:
			return c >= 0
		}
	}
	return false
}

// CompareOrder orders two values: nil sorts first, numbers compare
// numerically, everything else case-insensitively as text.
func CompareOrder(a, b any) int {
	a, b = Normalize(a), Normalize(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(strings.ToLower(toText(a)), strings.ToLower(toText(b)))
}

func equalValues(a, b any) bool {
	if isEmpty(a) || isEmpty(b) {
		return isEmpty(a) && isEmpty(b)
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	as, bs := toText(a), toText(b)
	if isBoolText(as) && isBoolText(bs) {
		return strings.EqualFold(as, bs)
	}
	return as == bs
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func isBoolText(s string) bool {
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

var (
	likeMu    sync.Mutex
	likeCache = map[string]*regexp.Regexp{}
)

func likePattern(pattern string) *regexp.Regexp {
	likeMu.Lock()
	defer likeMu.Unlock()

	if re, ok := likeCache[pattern]; ok {
		return re
	}
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%', '*':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re := regexp.MustCompile(b.String())
	likeCache[pattern] = re
	return re
}
