package errors

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatError(t *testing.T) {
	err := NewFormatError("mappings/base.tiny", []string{"official", "intermediary", "named"}, []string{"official", "named"})

	if err.Type != ErrorTypeFormat {
		t.Errorf("Expected Type to be ErrorTypeFormat, got %v", err.Type)
	}

	expectedMsg := "mapping file mappings/base.tiny does not have the expected namespaces: expected [official, intermediary, named], got [official, named]"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestMissingMappingError(t *testing.T) {
	err := NewMissingMappingError(KindClass, "", "a/b/C", "").
		WithSource("base.tiny").
		WithSuggestions([]string{"a/b/D"})

	if err.Symbol() != "a/b/C" {
		t.Errorf("Expected symbol a/b/C, got %s", err.Symbol())
	}

	expectedMsg := "class a/b/C is missing from base.tiny (did you mean a/b/D?)"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	method := NewMissingMappingError(KindMethod, "a/b/C", "m", "()V")
	if method.Error() != "method a/b/C.m()V is missing" {
		t.Errorf("Unexpected method message %q", method.Error())
	}
}

func TestConflictErrorSortsMessages(t *testing.T) {
	err := NewConflictError([]string{"zeta", "alpha", "mid"})

	if len(err.Conflicts) != 3 {
		t.Fatalf("Expected 3 conflicts, got %d", len(err.Conflicts))
	}
	if err.Conflicts[0] != "alpha" || err.Conflicts[2] != "zeta" {
		t.Errorf("Expected sorted conflicts, got %v", err.Conflicts)
	}
	if !strings.HasPrefix(err.Error(), "3 unresolved mapping conflicts:") {
		t.Errorf("Unexpected message %q", err.Error())
	}

	single := NewConflictError([]string{"only"})
	if single.Error() != "unresolved mapping conflict: only" {
		t.Errorf("Unexpected message %q", single.Error())
	}
}

func TestParseError(t *testing.T) {
	underlying := errors.New("unexpected token")
	err := NewParseError("/path/to/joined.tsrg", 10, underlying)

	if err.Line != 10 {
		t.Errorf("Expected Line 10, got %d", err.Line)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "parse error at /path/to/joined.tsrg:10: unexpected token"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestClassFormatError(t *testing.T) {
	underlying := errors.New("bad magic")
	err := NewClassFormatError("", 0, underlying).WithEntry("a/B.class")

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "malformed class a/B.class at offset 0: bad magic"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestDescriptorError(t *testing.T) {
	err := NewDescriptorError("(La/B", 5, "unterminated class name")

	expectedMsg := `malformed descriptor "(La/B" at 5: unterminated class name`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("invalid value")
	err := NewConfigError("field_name", "invalid_value", underlying)

	if err.Field != "field_name" {
		t.Errorf("Expected Field to be 'field_name', got %s", err.Field)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := `config error for field field_name (value invalid_value): invalid value`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")
	err3 := errors.New("error 3")

	multiErr := NewMultiError([]error{err1, err2, err3})

	if len(multiErr.Errors) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(multiErr.Errors))
	}

	if !strings.HasPrefix(multiErr.Error(), "3 errors: ") {
		t.Errorf("Expected message to start with '3 errors: ', got %q", multiErr.Error())
	}

	singleErr := NewMultiError([]error{err1})
	if singleErr.Error() != "error 1" {
		t.Errorf("Expected 'error 1', got %q", singleErr.Error())
	}

	emptyErr := NewMultiError([]error{})
	if emptyErr.Error() != "no errors" {
		t.Errorf("Expected 'no errors', got %q", emptyErr.Error())
	}
	if emptyErr.ErrorOrNil() != nil {
		t.Errorf("Expected ErrorOrNil to be nil for empty multi-error")
	}

	nilFiltered := NewMultiError([]error{err1, nil, err2, nil})
	if len(nilFiltered.Errors) != 2 {
		t.Errorf("Expected 2 errors after filtering nil, got %d", len(nilFiltered.Errors))
	}

	if !errors.Is(multiErr, err2) {
		t.Errorf("Expected multi-error to match a wrapped error")
	}
}

func TestTimestamp(t *testing.T) {
	err := NewClassFormatError("a.class", 0, errors.New("test"))
	if err.Timestamp.IsZero() {
		t.Errorf("Expected non-zero timestamp")
	}

	now := time.Now()
	if err.Timestamp.After(now) || now.Sub(err.Timestamp) > time.Second {
		t.Errorf("Timestamp seems incorrect: %v", err.Timestamp)
	}
}

func BenchmarkMissingMappingError(b *testing.B) {
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		err := NewMissingMappingError(KindMethod, "a/b/C", "m", "()V").WithSource("base.tiny")
		_ = err.Error()
	}
}
