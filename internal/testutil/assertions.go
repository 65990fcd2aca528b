package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "papertrade/internal/errors"
)

// AssertAppError fails unless err wraps an *AppError carrying code.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected %s, got nil", code)
	case !errors.As(err, &appErr):
		t.Fatalf("expected %s, got %T: %v", code, err, err)
	case appErr.Code != code:
		t.Errorf("expected %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertMoney compares by value, so "10" matches "10.00".
func AssertMoney(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(Money(want)) {
		t.Errorf("%s: expected %s, got %s", label, want, got.String())
	}
}
