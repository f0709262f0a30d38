package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// CASGuard provides optimistic/concurrency guard helpers for aggregate writes.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByVersion updates the row keyed by keyColumn=key only while its version
// still equals expectedVersion.
func (g CASGuard) UpdateByVersion(dbc dbctx.Context, table, keyColumn, key string, expectedVersion int64, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	keyColumn = strings.TrimSpace(keyColumn)
	if table == "" || keyColumn == "" || strings.TrimSpace(key) == "" {
		return false, ValidationError("table, key column and key are required for UpdateByVersion")
	}
	if expectedVersion < 0 {
		return false, ValidationError("expectedVersion must be >= 0")
	}
	res := db.Table(table).
		Where(keyColumn+" = ? AND version = ?", key, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// BumpGraphVersion advances a course head from current to current+1 and returns the new version.
func (g CASGuard) BumpGraphVersion(dbc dbctx.Context, courseID string, current int64) (int64, error) {
	next := current + 1
	ok, err := g.UpdateByVersion(dbc, "skill_graph_heads", "course_id", courseID, current, map[string]any{
		"version":    next,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return current, err
	}
	if err := RequireCASSuccess(ok, "skill graph head changed concurrently"); err != nil {
		return current, err
	}
	return next, nil
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

// RequireVersionMatch validates version equality for optimistic locking flows.
func RequireVersionMatch(current, expected int64) error {
	if expected < 0 {
		return ValidationError("expected version must be >= 0")
	}
	if current != expected {
		return ConflictError("version mismatch")
	}
	return nil
}
