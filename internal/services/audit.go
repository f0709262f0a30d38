package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/skillgraph-backend/internal/data/repos"
	types "github.com/yungbote/skillgraph-backend/internal/domain"
	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
	"github.com/yungbote/skillgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

const (
	auditModelSkill      = "skill"
	auditModelSkillGraph = "skill_graph"

	redacted = "[REDACTED]"
)

type FieldChange struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// AuditEntry is one committed mutation as handed to an AuditSink.
type AuditEntry struct {
	CourseID  string                 `json:"course_id"`
	Operation skills.AuditOperation  `json:"operation"`
	ModelType string                 `json:"model_type"`
	ModelID   string                 `json:"model_id"`
	ActorID   string                 `json:"actor_id"`
	RequestID string                 `json:"request_id,omitempty"`
	Changes   map[string]FieldChange `json:"changes"`
	At        time.Time              `json:"at"`
}

type AuditSink interface {
	Record(ctx context.Context, entries []AuditEntry) error
}

// ---- sinks ----

type logAuditSink struct {
	log *logger.Logger
}

func NewLogAuditSink(baseLog *logger.Logger) AuditSink {
	return &logAuditSink{log: baseLog.With("sink", "AuditLog")}
}

func (s *logAuditSink) Record(ctx context.Context, entries []AuditEntry) error {
	for _, e := range entries {
		s.log.Info("audit",
			"course_id", e.CourseID,
			"operation", string(e.Operation),
			"model_type", e.ModelType,
			"model_id", e.ModelID,
			"actor_id", e.ActorID,
			"request_id", e.RequestID,
			"fields", changedFields(e.Changes),
		)
	}
	return nil
}

type gormAuditSink struct {
	repo repos.SkillAuditLogRepo
}

func NewGormAuditSink(repo repos.SkillAuditLogRepo) AuditSink {
	return &gormAuditSink{repo: repo}
}

func (s *gormAuditSink) Record(ctx context.Context, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*types.SkillAuditLog, 0, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e.Changes)
		if err != nil {
			return fmt.Errorf("marshal audit changes: %w", err)
		}
		rows = append(rows, &types.SkillAuditLog{
			CourseID:  e.CourseID,
			Operation: e.Operation,
			ModelType: e.ModelType,
			ModelID:   e.ModelID,
			ActorID:   e.ActorID,
			RequestID: e.RequestID,
			Changes:   datatypes.JSON(raw),
			CreatedAt: e.At,
		})
	}
	return s.repo.Create(dbctx.Context{Ctx: ctx}, rows)
}

type multiAuditSink []AuditSink

// NewMultiAuditSink records to every sink and joins their errors.
func NewMultiAuditSink(sinks ...AuditSink) AuditSink {
	out := make(multiAuditSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiAuditSink) Record(ctx context.Context, entries []AuditEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, entries); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ---- entry building ----

// BuildAuditEntries turns committed skill changes into audit entries with
// per-field before/after values and sensitive keys redacted.
func BuildAuditEntries(ctx context.Context, courseID, actorID string, changes []domainagg.SkillChange) []AuditEntry {
	requestID := ctxutil.RequestID(ctx)
	now := time.Now().UTC()
	out := make([]AuditEntry, 0, len(changes))
	for _, ch := range changes {
		diff := DiffNodes(ch.Before, ch.After)
		if len(diff) == 0 && ch.Operation == skills.AuditUpdate {
			continue
		}
		out = append(out, AuditEntry{
			CourseID:  courseID,
			Operation: ch.Operation,
			ModelType: auditModelSkill,
			ModelID:   ch.SkillID,
			ActorID:   actorID,
			RequestID: requestID,
			Changes:   diff,
			At:        now,
		})
	}
	return out
}

func syncSummaryEntry(ctx context.Context, courseID, actorID string, version int64, counts domainagg.SyncCounts) AuditEntry {
	requestID := ctxutil.RequestID(ctx)
	return AuditEntry{
		CourseID:  courseID,
		Operation: skills.AuditSync,
		ModelType: auditModelSkillGraph,
		ModelID:   courseID,
		ActorID:   actorID,
		RequestID: requestID,
		Changes: map[string]FieldChange{
			"version": {Before: version - 1, After: version},
			"counts":  {After: counts},
		},
		At: time.Now().UTC(),
	}
}

// DiffNodes compares two node snapshots field by field through their JSON form.
// Prerequisites are compared as sorted lists.
func DiffNodes(before, after *skillgraph.Node) map[string]FieldChange {
	b := nodeFields(before)
	a := nodeFields(after)
	out := map[string]FieldChange{}
	for k, v := range a {
		if prev, ok := b[k]; !ok || !reflect.DeepEqual(prev, v) {
			out[k] = FieldChange{Before: redactValue(k, b[k]), After: redactValue(k, v)}
		}
	}
	for k, prev := range b {
		if _, ok := a[k]; !ok {
			out[k] = FieldChange{Before: redactValue(k, prev)}
		}
	}
	return out
}

func nodeFields(n *skillgraph.Node) map[string]any {
	if n == nil {
		return map[string]any{}
	}
	c := n.Clone()
	sort.Strings(c.Prerequisites)
	raw, err := json.Marshal(c)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	delete(out, "id")
	return out
}

func redactValue(key string, v any) any {
	if logger.IsSensitiveKey(key) {
		return redacted
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = redactValue(k, item)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, redactValue("", item))
		}
		return out
	default:
		return v
	}
}

func changedFields(changes map[string]FieldChange) []string {
	out := make([]string, 0, len(changes))
	for k := range changes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
