package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewValidationErrorSummarizesFirstField(t *testing.T) {
	err := NewValidationError("Skills.Graph.Sync", map[string][]string{
		"skills.1.name": {"is required"},
		"skills.0.id":   {"is required"},
	})
	aggErr, ok := As(err)
	if !ok {
		t.Fatalf("expected aggregate error, got=%T", err)
	}
	if aggErr.Code != CodeValidation {
		t.Fatalf("code: want=%s got=%s", CodeValidation, aggErr.Code)
	}
	if aggErr.Message != "skills.0.id: is required (and 1 more)" {
		t.Fatalf("message: got=%q", aggErr.Message)
	}
	if NewValidationError("op", nil) != nil {
		t.Fatalf("empty fields should produce nil error")
	}
}

func TestIsCodeSeesThroughWrapping(t *testing.T) {
	base := NewInvariantError("Skills.Graph.Connect", "cycle", "would cycle", nil)
	wrapped := fmt.Errorf("service: %w", base)
	if !IsCode(wrapped, CodeInvariantViolation) {
		t.Fatalf("IsCode: want invariant violation through wrap")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatalf("CodeOf plain error should be empty")
	}
	if got := base.Error(); got != "Skills.Graph.Connect: would cycle (invariant_violation)" {
		t.Fatalf("Error(): got=%q", got)
	}
}
