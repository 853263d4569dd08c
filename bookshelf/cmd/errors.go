package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/bookshelf/bookshelf/dialog"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

// CLIError represents a user-friendly CLI error with context and suggestions
type CLIError struct {
	Operation   string   // the command that failed, e.g. "list books"
	Cause       string   // what went wrong
	Details     string   // technical details
	Suggestions []string // hints for the user
	Underlying  error
}

func (e *CLIError) Error() string {
	var msg strings.Builder
	if e.Operation != "" {
		fmt.Fprintf(&msg, "failed to %s", e.Operation)
	} else {
		msg.WriteString("operation failed")
	}
	if e.Cause != "" {
		fmt.Fprintf(&msg, ": %s", e.Cause)
	}
	if e.Details != "" {
		fmt.Fprintf(&msg, " (%s)", e.Details)
	}
	if len(e.Suggestions) > 0 {
		msg.WriteString("\n\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			fmt.Fprintf(&msg, "\n  %d. %s", i+1, suggestion)
		}
	}
	return msg.String()
}

// Unwrap returns the underlying error for error chain compatibility
func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// NewConfigError creates an error for configuration issues
func NewConfigError(operation, issue string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("configuration error: %s", issue),
		Suggestions: suggestions,
	}
}

// NewStoreError creates an error for store-related issues
func NewStoreError(operation string, underlying error, suggestions ...string) *CLIError {
	cause := "store operation failed"
	details := ""
	if underlying != nil {
		details = underlying.Error()
		errStr := strings.ToLower(details)
		switch {
		case strings.Contains(errStr, "permission denied"):
			cause = "insufficient permissions to access the data directory"
		case strings.Contains(errStr, "failed to acquire lock"), strings.Contains(errStr, "deadline exceeded"):
			cause = "the data directory is locked by another process"
		case strings.Contains(errStr, "failed to parse json"):
			cause = "a collection file is corrupt"
		}
	}
	return &CLIError{
		Operation:   operation,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
		Underlying:  underlying,
	}
}

// WrapError converts library errors into a CLIError for operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Operation == "" {
			cliErr.Operation = operation
		}
		return cliErr
	}

	out := &CLIError{Operation: operation, Cause: err.Error(), Underlying: err}
	var (
		filterErr     *schema.InvalidFilterError
		fieldErr      *schema.UnknownFieldError
		unresolvedErr *dialog.UnresolvedError
		conflictErr   *store.ConflictError
	)
	switch {
	case errors.As(err, &filterErr):
		out.Suggestions = []string{
			"Use the form <field><operator><value>, e.g. published>=1900 or author.name~eco",
			fmt.Sprintf("Run 'bookshelf desc %s' to see the filters and their operators", filterErr.Table),
		}
	case errors.As(err, &fieldErr):
		out.Suggestions = []string{fmt.Sprintf("Run 'bookshelf desc %s' to see the available fields", fieldErr.Table)}
	case errors.Is(err, schema.ErrUnknownTable):
		out.Suggestions = []string{"Run 'bookshelf desc' to list the tables"}
	case errors.As(err, &unresolvedErr):
		out.Suggestions = []string{fmt.Sprintf("Run 'bookshelf ls %s' to see the existing keys", unresolvedErr.Table)}
	case errors.Is(err, store.ErrNotFound):
		out.Cause = "record not found"
		out.Details = err.Error()
		out.Suggestions = []string{"Records can be named by key or by numeric id"}
	case errors.Is(err, dialog.ErrReferenced):
		out.Suggestions = []string{
			"Use --derefer-records to remove the references first",
			"Use --delete-records to delete the referring records too",
		}
	case errors.As(err, &conflictErr):
		out.Cause = "the record conflicts with an existing one"
		out.Details = err.Error()
	case errors.Is(err, dialog.ErrInputClosed):
		out.Cause = "input ended before the dialog finished"
		out.Suggestions = []string{"Nothing was saved after the last confirmed write"}
	default:
		return NewStoreError(operation, err)
	}
	return out
}
