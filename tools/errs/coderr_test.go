package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeErrorIsMatchesAcrossWrappers(t *testing.T) {
	err := ErrForbidden.WrapMsg("only the sender may edit", "id", "m1")
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("wrapped error should match its category")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("wrapped error must not match another category")
	}

	// another layer of fmt wrapping still matches
	outer := fmt.Errorf("pipeline: %w", err)
	if !errors.Is(outer, ErrForbidden) {
		t.Fatal("fmt-wrapped error should still match")
	}
}

func TestWithDetailDoesNotMutate(t *testing.T) {
	d := ErrNotFound.WithDetail("message m1")
	if ErrNotFound.Detail != "" {
		t.Fatal("predefined errors must stay pristine")
	}
	if d.Detail != "message m1" {
		t.Fatalf("unexpected detail: %q", d.Detail)
	}
	if !errors.Is(d, ErrNotFound) {
		t.Fatal("detailed copy should match its category")
	}
}

func TestCodeExtraction(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"wrapped code error", ErrNotAuthorized.WrapMsg("join refused"), CodeNotAuthorized},
		{"bare code error", ErrTokenExpired, CodeTokenExpired},
		{"plain error", errors.New("boom"), CodeInternal},
		{"double wrapped", WrapMsg(ErrInvalidState.Wrap(), "outer"), CodeInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Fatalf("Code() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	e := NewCodeError(1234, "things broke").WithDetail("badly")
	want := "1234 things broke badly"
	if e.Error() != want {
		t.Fatalf("Error() = %q, want %q", e.Error(), want)
	}
}
