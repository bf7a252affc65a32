// Package errors provides the application's error handling: standard library
// compatible wrapping plus an enhanced error type that carries component,
// category, and context metadata for operational visibility.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Category classifies an error for reporting and metrics.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryDatabase   Category = "database"
	CategoryNetwork    Category = "network"
	CategoryProcess    Category = "process"
	CategoryTimeout    Category = "timeout"
	CategoryDispatch   Category = "dispatch"
)

// Standard library pass-throughs so callers import a single errors package.

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error with the given text.
func New(text string) error { return errors.New(text) }

// Unwrap returns the result of calling Unwrap on err.
func Unwrap(err error) error { return errors.Unwrap(err) }

// EnhancedError attaches component/category/context metadata to an error.
type EnhancedError struct {
	Err       error
	component string
	category  Category
	context   map[string]any
}

func (e *EnhancedError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.component != "" || e.category != "" || len(e.context) > 0 {
		b.WriteString(" [")
		parts := make([]string, 0, len(e.context)+2)
		if e.component != "" {
			parts = append(parts, "component="+e.component)
		}
		if e.category != "" {
			parts = append(parts, "category="+string(e.category))
		}
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.context[k]))
		}
		b.WriteString(strings.Join(parts, " "))
		b.WriteString("]")
	}
	return b.String()
}

func (e *EnhancedError) Unwrap() error { return e.Err }

// GetComponent returns the component that produced the error.
func (e *EnhancedError) GetComponent() string { return e.component }

// GetCategory returns the error's category.
func (e *EnhancedError) GetCategory() Category { return e.category }

// GetContext returns a context value by key.
func (e *EnhancedError) GetContext(key string) (any, bool) {
	v, ok := e.context[key]
	return v, ok
}

// GetCategory returns the category of the nearest EnhancedError in err's
// tree, or the empty category when there is none.
func GetCategory(err error) Category {
	var enhanced *EnhancedError
	if errors.As(err, &enhanced) {
		return enhanced.category
	}
	return ""
}

// Builder assembles an EnhancedError fluently.
type Builder struct {
	err *EnhancedError
}

// Newf starts building an enhanced error from a formatted message.
func Newf(format string, args ...any) *Builder {
	return &Builder{err: &EnhancedError{
		Err:     fmt.Errorf(format, args...),
		context: make(map[string]any),
	}}
}

// Wrap starts building an enhanced error around an existing error.
func Wrap(err error) *Builder {
	return &Builder{err: &EnhancedError{
		Err:     err,
		context: make(map[string]any),
	}}
}

// Component records which subsystem produced the error.
func (b *Builder) Component(name string) *Builder {
	b.err.component = name
	return b
}

// Category classifies the error.
func (b *Builder) Category(c Category) *Builder {
	b.err.category = c
	return b
}

// Context attaches a key/value pair.
func (b *Builder) Context(key string, value any) *Builder {
	b.err.context[key] = value
	return b
}

// Build finalizes the error.
func (b *Builder) Build() error { return b.err }
