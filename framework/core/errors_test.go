package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestFrameworkError_IsMatchesByCode(t *testing.T) {
	err := NewError(CodeNotFound, "item 7 not found")

	if !errors.Is(err, ErrNotFound) {
		t.Error("Expected errors.Is to match ErrNotFound by code")
	}
	if errors.Is(err, ErrInvalidArgument) {
		t.Error("Expected errors.Is not to match a different code")
	}
}

func TestFrameworkError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("catalog: %w", Errorf(CodeInvalidArgument, "price %s is negative", "-1"))

	if !errors.Is(err, ErrInvalidArgument) {
		t.Error("Expected wrapped error to match ErrInvalidArgument")
	}
	if got := CodeOf(err); got != CodeInvalidArgument {
		t.Errorf("Expected code %s, got %s", CodeInvalidArgument, got)
	}
}

func TestFrameworkError_ErrorString(t *testing.T) {
	plain := NewError(CodeEmptyCart, "cart is empty")
	if plain.Error() != "[EMPTY_CART] cart is empty" {
		t.Errorf("Unexpected message: %s", plain.Error())
	}

	cause := errors.New("connection reset")
	wrapped := Wrap(cause, CodeStorage, "failed to load item")
	if wrapped.Error() != "[STORAGE_FAILURE] failed to load item: connection reset" {
		t.Errorf("Unexpected message: %s", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Expected Unwrap to expose the cause")
	}
	if wrapped.StackTrace == "" {
		t.Error("Expected stack trace to be captured")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, CodeStorage, "noop") != nil {
		t.Error("Expected Wrap(nil) to return nil")
	}
}

func TestCodeOf_Uncoded(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != "" {
		t.Errorf("Expected empty code, got %s", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("Expected empty code for nil, got %s", got)
	}
}

func TestFrameworkError_WithContext(t *testing.T) {
	err := NewError(CodeNotFound, "order not found").WithContext("set status")
	if err.Message != "set status: order not found" {
		t.Errorf("Unexpected message: %s", err.Message)
	}
	if !IsCode(err, CodeNotFound) {
		t.Error("Expected code to be preserved")
	}
}
