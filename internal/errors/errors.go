package errors

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Error types for the mapping merge and remap pipeline
type ErrorType string

const (
	// Mapping errors
	ErrorTypeFormat     ErrorType = "format"
	ErrorTypeMissing    ErrorType = "missing_mapping"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeDescriptor ErrorType = "descriptor"

	// Binary structure errors
	ErrorTypeClassFormat ErrorType = "class_format"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// SymbolKind names the kind of mapping element an error refers to
type SymbolKind string

const (
	KindClass  SymbolKind = "class"
	KindField  SymbolKind = "field"
	KindMethod SymbolKind = "method"
)

// FormatError reports a mapping source whose namespace layout is not the expected one
type FormatError struct {
	Type      ErrorType
	Source    string
	Expected  []string
	Actual    []string
	Timestamp time.Time
}

// NewFormatError creates a new format error for the given mapping source
func NewFormatError(source string, expected, actual []string) *FormatError {
	return &FormatError{
		Type:      ErrorTypeFormat,
		Source:    source,
		Expected:  expected,
		Actual:    actual,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *FormatError) Error() string {
	return fmt.Sprintf("mapping file %s does not have the expected namespaces: expected [%s], got [%s]",
		e.Source, strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
}

// MissingMappingError reports a class or member absent from a reference tree in strict mode
type MissingMappingError struct {
	Type        ErrorType
	Kind        SymbolKind
	Owner       string
	Name        string
	Descriptor  string
	Source      string
	Suggestions []string
	Timestamp   time.Time
}

// NewMissingMappingError creates a new missing-mapping error
func NewMissingMappingError(kind SymbolKind, owner, name, desc string) *MissingMappingError {
	return &MissingMappingError{
		Type:       ErrorTypeMissing,
		Kind:       kind,
		Owner:      owner,
		Name:       name,
		Descriptor: desc,
		Timestamp:  time.Now(),
	}
}

// WithSource records which mapping source lacked the symbol
func (e *MissingMappingError) WithSource(source string) *MissingMappingError {
	e.Source = source
	return e
}

// WithSuggestions attaches close names found in the reference tree
func (e *MissingMappingError) WithSuggestions(names []string) *MissingMappingError {
	e.Suggestions = names
	return e
}

// Symbol returns the fully qualified identity of the missing symbol
func (e *MissingMappingError) Symbol() string {
	switch e.Kind {
	case KindClass:
		return e.Name
	default:
		return e.Owner + "." + e.Name + e.Descriptor
	}
}

// Error implements the error interface
func (e *MissingMappingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s is missing", e.Kind, e.Symbol())
	if e.Source != "" {
		fmt.Fprintf(&b, " from %s", e.Source)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

// ConflictError collects every unresolved merge conflict so they are reported together
type ConflictError struct {
	Type      ErrorType
	Conflicts []string
	Timestamp time.Time
}

// NewConflictError creates a conflict error; messages are sorted for stable output
func NewConflictError(conflicts []string) *ConflictError {
	sorted := append([]string(nil), conflicts...)
	sort.Strings(sorted)
	return &ConflictError{
		Type:      ErrorTypeConflict,
		Conflicts: sorted,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		return "unresolved mapping conflict: " + e.Conflicts[0]
	}
	return fmt.Sprintf("%d unresolved mapping conflicts:\n%s", len(e.Conflicts), strings.Join(e.Conflicts, "\n"))
}

// ParseError represents a mapping file syntax error
type ParseError struct {
	Type       ErrorType
	FilePath   string
	Line       int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(path string, line int, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		FilePath:   path,
		Line:       line,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.FilePath == "" {
		return fmt.Sprintf("parse error at line %d: %v", e.Line, e.Underlying)
	}
	return fmt.Sprintf("parse error at %s:%d: %v", e.FilePath, e.Line, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// ClassFormatError reports a compiled class that cannot be parsed or rewritten
type ClassFormatError struct {
	Type       ErrorType
	Entry      string
	Offset     int
	Underlying error
	Timestamp  time.Time
}

// NewClassFormatError creates a new class format error
func NewClassFormatError(entry string, offset int, err error) *ClassFormatError {
	return &ClassFormatError{
		Type:       ErrorTypeClassFormat,
		Entry:      entry,
		Offset:     offset,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithEntry sets the archive entry name once it is known
func (e *ClassFormatError) WithEntry(entry string) *ClassFormatError {
	e.Entry = entry
	return e
}

// Error implements the error interface
func (e *ClassFormatError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("malformed class %s at offset %d: %v", e.Entry, e.Offset, e.Underlying)
	}
	return fmt.Sprintf("malformed class at offset %d: %v", e.Offset, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ClassFormatError) Unwrap() error {
	return e.Underlying
}

// DescriptorError reports malformed descriptor or signature syntax
type DescriptorError struct {
	Type       ErrorType
	Descriptor string
	Position   int
	Reason     string
	Timestamp  time.Time
}

// NewDescriptorError creates a new descriptor error
func NewDescriptorError(desc string, pos int, reason string) *DescriptorError {
	return &DescriptorError{
		Type:       ErrorTypeDescriptor,
		Descriptor: desc,
		Position:   pos,
		Reason:     reason,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *DescriptorError) Error() string {
	return fmt.Sprintf("malformed descriptor %q at %d: %s", e.Descriptor, e.Position, e.Reason)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
