// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "parse pack rules"},
			expected: "failed to parse pack rules",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "prepare output directory",
				Resource:  "target",
			},
			expected: "failed to prepare output directory: target",
		},
		{
			name: "operation with cause",
			err: &ActionableError{
				Operation: "load configuration",
				Cause:     errors.New("syntax error at line 5"),
			},
			expected: "failed to load configuration: syntax error at line 5",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "write archive",
				Resource:  "target/App-1.0.sln",
				Cause:     errors.New("no space left on device"),
			},
			expected: "failed to write archive: target/App-1.0.sln: no space left on device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	err := &ActionableError{Operation: "read source", Cause: fs.ErrNotExist}

	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is should see the cause")
	}
	if (&ActionableError{Operation: "x"}).Unwrap() != nil {
		t.Error("Unwrap() without cause should be nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	inner := errors.New("permission denied")
	err := &ActionableError{
		Operation:   "prepare output directory",
		Resource:    "target",
		Suggestions: []string{"Check directory permissions", "Use --output-dir"},
		Cause:       fmt.Errorf("remove target/old.sln: %w", inner),
	}

	t.Run("non-verbose", func(t *testing.T) {
		got := err.Format(false)
		if !strings.HasPrefix(got, err.Error()) {
			t.Errorf("Format(false) should start with Error(), got %q", got)
		}
		if !strings.Contains(got, "• Check directory permissions") || !strings.Contains(got, "• Use --output-dir") {
			t.Errorf("Format(false) should list suggestions, got %q", got)
		}
		if strings.Contains(got, "Error chain") {
			t.Error("Format(false) should not include the error chain")
		}
	})

	t.Run("verbose", func(t *testing.T) {
		got := err.Format(true)
		if !strings.Contains(got, "Error chain:") {
			t.Fatalf("Format(true) should include the error chain, got %q", got)
		}
		if !strings.Contains(got, "1. remove target/old.sln: permission denied") {
			t.Errorf("missing first chain link in %q", got)
		}
		if !strings.Contains(got, "2. permission denied") {
			t.Errorf("missing second chain link in %q", got)
		}
	})
}

func TestErrorContext_BuildError(t *testing.T) {
	cause := errors.New("boom")
	ctx := NewErrorContext().
		WithOperation("register artifact").
		WithResource("s3://builds").
		WithSuggestion("Check credentials").
		WithSuggestion("Use --registry none").
		Wrap(cause)

	err := ctx.BuildError()
	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("BuildError() = %T, want *ActionableError", err)
	}
	if ae.Operation != "register artifact" || ae.Resource != "s3://builds" {
		t.Errorf("unexpected context: %+v", ae)
	}
	if len(ae.Suggestions) != 2 {
		t.Errorf("Suggestions = %v, want 2", ae.Suggestions)
	}
	if !errors.Is(err, cause) {
		t.Error("built error should wrap the cause")
	}

	// Later builder calls do not leak into an error already built.
	ctx.WithSuggestion("Retry")
	if len(ae.Suggestions) != 2 {
		t.Errorf("built error changed after reuse: %v", ae.Suggestions)
	}
}

func TestErrorContext_BuildErrorWithoutOperation(t *testing.T) {
	if err := NewErrorContext().WithResource("x").BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil interface", err)
	}
}
