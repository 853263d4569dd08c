// Package validation holds the composable value validators used by the
// catalog's input fields.
//
// Every validator lets empty input (nil, "", empty list) pass through
// unchanged unless it was built as required; type-specific rules only run
// on non-empty input.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/internal/isbn"
	"github.com/arthur-debert/bookshelf/internal/keys"
)

// Validator checks a candidate value and returns its normalized form.
type Validator interface {
	Validate(v any) (any, error)
}

// ValidationError is a user input failing a rule. Prompts show Message and
// ask again.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalid creates a ValidationError
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// TypeError is returned when a validator receives a value of a type it
// cannot interpret at all. It is a programming error, not user input.
type TypeError struct {
	Value    any
	Expected string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("unexpected %T value %v, expected %s", e.Value, e.Value, e.Expected)
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEmpty reports whether v counts as empty: nil, blank string, empty
// list or empty map.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// emptyRule applies the cross-cutting empty handling. done is true when
// the caller must return (out, err) without running its own rule.
func emptyRule(required bool, v any) (out any, done bool, err error) {
	if !IsEmpty(v) {
		return nil, false, nil
	}
	if required {
		return nil, true, Invalid("a value is required")
	}
	return v, true, nil
}

// Func adapts a function to a Validator
type Func func(v any) (any, error)

// Validate implements Validator
func (f Func) Validate(v any) (any, error) { return f(v) }

// NotEmpty rejects empty values and passes everything else unchanged.
func NotEmpty() Validator {
	return Func(func(v any) (any, error) {
		if out, done, err := emptyRule(true, v); done {
			return out, err
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s), nil
		}
		return v, nil
	})
}

// Required rejects empty input before delegating to v.
func Required(v Validator) Validator {
	if v == nil {
		return NotEmpty()
	}
	return Chain(NotEmpty(), v)
}

// Chain runs validators in order, feeding each the previous output. It
// stops at the first failure.
func Chain(validators ...Validator) Validator {
	return Func(func(v any) (any, error) {
		var err error
		for _, validator := range validators {
			if validator == nil {
				continue
			}
			if v, err = validator.Validate(v); err != nil {
				return nil, err
			}
		}
		return v, nil
	})
}

// IntegerValidator parses integers and checks optional bounds.
type IntegerValidator struct {
	Min, Max *int64
	Required bool
}

// Integer builds an unbounded IntegerValidator
func Integer() *IntegerValidator { return &IntegerValidator{} }

// Between sets both bounds
func (iv *IntegerValidator) Between(min, max int64) *IntegerValidator {
	iv.Min, iv.Max = &min, &max
	return iv
}

// AtLeast sets the lower bound
func (iv *IntegerValidator) AtLeast(min int64) *IntegerValidator {
	iv.Min = &min
	return iv
}

// Require disallows empty input
func (iv *IntegerValidator) Require() *IntegerValidator {
	iv.Required = true
	return iv
}

// Validate implements Validator
func (iv *IntegerValidator) Validate(v any) (any, error) {
	if out, done, err := emptyRule(iv.Required, v); done {
		return out, err
	}

	var n int64
	switch t := v.(type) {
	case bool:
		return nil, &TypeError{Value: v, Expected: "integer"}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil, Invalid("%q is not an integer", t)
		}
		n = parsed
	default:
		parsed, ok := store.AsInt(v)
		if !ok {
			return nil, &TypeError{Value: v, Expected: "integer"}
		}
		n = parsed
	}

	if iv.Min != nil && n < *iv.Min {
		return nil, Invalid("%d is less than %d", n, *iv.Min)
	}
	if iv.Max != nil && n > *iv.Max {
		return nil, Invalid("%d is greater than %d", n, *iv.Max)
	}
	return n, nil
}

var looseDateRe = regexp.MustCompile(`^(\d{4})(?:-(\d{1,2})(?:-(\d{1,2}))?)?$`)

// LooseDateValidator accepts YYYY, YYYY-MM and YYYY-MM-DD and normalizes
// to YYYY-MM-DD, using 00 for unknown month or day.
type LooseDateValidator struct {
	Required bool
}

// LooseDate builds a LooseDateValidator
func LooseDate() *LooseDateValidator { return &LooseDateValidator{} }

// Validate implements Validator
func (lv *LooseDateValidator) Validate(v any) (any, error) {
	if out, done, err := emptyRule(lv.Required, v); done {
		return out, err
	}
	s, ok := v.(string)
	if !ok {
		if n, isInt := store.AsInt(v); isInt {
			s = strconv.FormatInt(n, 10)
		} else {
			return nil, &TypeError{Value: v, Expected: "date string"}
		}
	}

	m := looseDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, Invalid("%q is not a date (YYYY, YYYY-MM or YYYY-MM-DD)", s)
	}
	year, _ := strconv.Atoi(m[1])
	month, day := 0, 0
	if m[2] != "" {
		month, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		day, _ = strconv.Atoi(m[3])
	}

	if month > 12 {
		return nil, Invalid("%q has an invalid month", s)
	}
	if day > 0 {
		if month == 0 {
			return nil, Invalid("%q has a day but no month", s)
		}
		if !isValidDate(year, month, day) {
			return nil, Invalid("%q is not a calendar date", s)
		}
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

func isValidDate(year, month, day int) bool {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

// IsbnValidator checks ISBN checksums and returns the hyphenated form.
type IsbnValidator struct {
	format   func(string) (string, error)
	name     string
	Required bool
}

// Isbn10 accepts only ISBN-10 numbers
func Isbn10() *IsbnValidator { return &IsbnValidator{format: isbn.Format10, name: "ISBN-10"} }

// Isbn13 accepts only ISBN-13 numbers
func Isbn13() *IsbnValidator { return &IsbnValidator{format: isbn.Format13, name: "ISBN-13"} }

// Isbn accepts either form
func Isbn() *IsbnValidator { return &IsbnValidator{format: isbn.Format, name: "ISBN"} }

// Validate implements Validator
func (iv *IsbnValidator) Validate(v any) (any, error) {
	if out, done, err := emptyRule(iv.Required, v); done {
		return out, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, &TypeError{Value: v, Expected: "string"}
	}
	formatted, err := iv.format(s)
	if err != nil {
		return nil, Invalid("%q is not a valid %s: %v", s, iv.name, err)
	}
	return formatted, nil
}

// KeyIndex finds records by key. *store.Collection implements it.
type KeyIndex interface {
	FindByKey(key string) (store.Record, error)
}

// NewKeyValidator normalizes a key and rejects keys already used by
// another record. Keys are always required.
type NewKeyValidator struct {
	Index    KeyIndex
	ExceptID int64
}

// NewKey builds a NewKeyValidator; exceptID is the record being edited,
// 0 for new records.
func NewKey(index KeyIndex, exceptID int64) *NewKeyValidator {
	return &NewKeyValidator{Index: index, ExceptID: exceptID}
}

// Validate implements Validator
func (kv *NewKeyValidator) Validate(v any) (any, error) {
	if out, done, err := emptyRule(true, v); done {
		return out, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, &TypeError{Value: v, Expected: "string"}
	}
	key := keys.Create(s)
	if key == "" {
		return nil, Invalid("%q does not contain any letters or digits", s)
	}

	existing, err := kv.Index.FindByKey(key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return key, nil
	case err != nil:
		return nil, err
	case kv.ExceptID != 0 && existing.ID() == kv.ExceptID:
		return key, nil
	}
	return nil, Invalid("key %q is already used", key)
}

// OptionValidator maps an index typed by the user onto a fixed option list.
type OptionValidator struct {
	Options  []any
	Required bool
}

// Option builds an OptionValidator
func Option(options ...any) *OptionValidator { return &OptionValidator{Options: options} }

// Validate implements Validator
func (ov *OptionValidator) Validate(v any) (any, error) {
	if out, done, err := emptyRule(ov.Required, v); done {
		return out, err
	}
	var idx int64
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil, Invalid("%q is not an option number", t)
		}
		idx = n
	default:
		n, ok := store.AsInt(v)
		if !ok {
			return nil, &TypeError{Value: v, Expected: "option index"}
		}
		idx = n
	}
	if idx < 0 || idx >= int64(len(ov.Options)) {
		return nil, Invalid("%d is not between 0 and %d", idx, len(ov.Options)-1)
	}
	return ov.Options[idx], nil
}

// PatternValidator requires string input to match a regular expression.
type PatternValidator struct {
	Pattern  *regexp.Regexp
	Message  string
	Required bool
}

// Pattern builds a PatternValidator
func Pattern(expr, message string) *PatternValidator {
	return &PatternValidator{Pattern: regexp.MustCompile(expr), Message: message}
}

// Validate implements Validator
func (pv *PatternValidator) Validate(v any) (any, error) {
	if out, done, err := emptyRule(pv.Required, v); done {
		return out, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, &TypeError{Value: v, Expected: "string"}
	}
	s = strings.TrimSpace(s)
	if !pv.Pattern.MatchString(s) {
		return nil, Invalid("%q %s", s, pv.Message)
	}
	return s, nil
}
