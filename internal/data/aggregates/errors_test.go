package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"gorm.io/gorm"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("stale"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}

func TestMapError_StoreFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"pg foreign key", &pgconn.PgError{Code: "23503"}, domainagg.CodePreconditionFailed},
		{"pg serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), domainagg.CodeRetryable},
		{"gorm duplicate", gorm.ErrDuplicatedKey, domainagg.CodeConflict},
		{"sqlite unique", errors.New("UNIQUE constraint failed: skills.id"), domainagg.CodeConflict},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed"), domainagg.CodePreconditionFailed},
		{"sqlite busy", errors.New("database is locked"), domainagg.CodeRetryable},
		{"deadline", context.DeadlineExceeded, domainagg.CodeRetryable},
		{"other", errors.New("boom"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		if got := domainagg.CodeOf(MapError("op", tc.err)); got != tc.want {
			t.Fatalf("%s: want=%s got=%s", tc.name, tc.want, got)
		}
	}
}

func TestCodeFromMessage(t *testing.T) {
	cases := map[string]domainagg.ErrorCode{
		"UNIQUE constraint failed: skills.id":  domainagg.CodeConflict,
		"FOREIGN KEY constraint failed":        domainagg.CodePreconditionFailed,
		"database is locked (5) (SQLITE_BUSY)": domainagg.CodeRetryable,
		"disk I/O error":                       domainagg.CodeInternal,
	}
	for msg, want := range cases {
		if got := codeFromMessage(errors.New(msg)); got != want {
			t.Fatalf("codeFromMessage(%q): want=%s got=%s", msg, want, got)
		}
	}
}
