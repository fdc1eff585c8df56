package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := (&DomainError{
		Category: ErrCatGroup,
		Code:     "CODE",
		Message:  "message",
	}).WithCause(cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be unwrapped")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}

	match := &DomainError{Category: ErrCatGroup, Code: "CODE"}
	if !errors.Is(err, match) {
		t.Fatalf("expected errors.Is to match category and code")
	}
	if errors.Is(err, &DomainError{Category: ErrCatRelease, Code: "CODE"}) {
		t.Fatalf("expected category mismatch to fail")
	}
}

func TestDomainError_ErrorString(t *testing.T) {
	err := ErrRelease(CodeReleaseFailed, "leave rejected")
	if got, want := err.Error(), "[release] RELEASE_FAILED: leave rejected"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	err.WithCause(errors.New("connection refused"))
	if got, want := err.Error(), "[release] RELEASE_FAILED: leave rejected (connection refused)"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := &DomainError{Category: ErrCatExecution, Code: "X", Message: "msg"}
	err.WithDetail("k", "v")
	if err.Details == nil || err.Details["k"] != "v" {
		t.Fatalf("expected details to be set")
	}
}

func TestErrorFactories_Categories(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want ErrorCategory
	}{
		{"validation", ErrValidation("C", "m"), ErrCatValidation},
		{"group", ErrGroup("C", "m"), ErrCatGroup},
		{"release", ErrRelease("C", "m"), ErrCatRelease},
		{"execution", ErrExecution("C", "m"), ErrCatExecution},
		{"timeout", ErrTimeout("m"), ErrCatTimeout},
		{"conflict", ErrConflict("C", "m"), ErrCatConflict},
		{"not found", ErrNotFound("job", "abc"), ErrCatNotFound},
		{"network", ErrNetwork("m"), ErrCatNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Category != tt.want {
				t.Errorf("category = %s, want %s", tt.err.Category, tt.want)
			}
		})
	}
}

func TestGetCategory(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrGroup(CodeInvalidRank, "bad rank"))
	if got := GetCategory(wrapped); got != ErrCatGroup {
		t.Fatalf("GetCategory(wrapped) = %s, want %s", got, ErrCatGroup)
	}
	if got := GetCategory(errors.New("plain")); got != ErrCatInternal {
		t.Fatalf("GetCategory(plain) = %s, want %s", got, ErrCatInternal)
	}
	if !IsCategory(errors.Join(errors.New("x"), ErrRelease(CodeReleaseFailed, "m")), ErrCatRelease) {
		t.Fatalf("expected joined error to carry release category")
	}
}
