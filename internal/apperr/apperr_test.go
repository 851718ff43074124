package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	err := Conflict("trip already taken")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict to match ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict must not match ErrNotFound")
	}
	if err.Error() != "trip already taken" {
		t.Fatalf("unexpected reason: %q", err.Error())
	}
}

func TestIsThroughWrap(t *testing.T) {
	err := fmt.Errorf("accept: %w", Forbidden("driver already responded"))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("wrapped forbidden should match")
	}
	if KindOf(err) != KindForbidden {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no kind")
	}
}
