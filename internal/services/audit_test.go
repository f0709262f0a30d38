package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yungbote/skillgraph-backend/internal/data/repos"
	"github.com/yungbote/skillgraph-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
	"github.com/yungbote/skillgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

func TestDiffNodesReportsChangedFieldsOnly(t *testing.T) {
	before := skillgraph.Node{ID: "s1", Name: "A", XPReward: 100, Prerequisites: []string{"b", "a"}}
	after := skillgraph.Node{ID: "s1", Name: "B", XPReward: 100, Prerequisites: []string{"a", "b"}}
	diff := DiffNodes(&before, &after)
	if len(diff) != 1 {
		t.Fatalf("diff: want only name got=%v", diff)
	}
	if diff["name"].Before != "A" || diff["name"].After != "B" {
		t.Fatalf("name change: got=%+v", diff["name"])
	}

	created := DiffNodes(nil, &after)
	if _, ok := created["xp_reward"]; !ok {
		t.Fatalf("create diff must list every field: got=%v", created)
	}
	if _, ok := created["id"]; ok {
		t.Fatalf("id is the model id, not a change")
	}
}

func TestDiffNodesRedactsSensitiveContent(t *testing.T) {
	after := skillgraph.Node{ID: "s1", Content: json.RawMessage(`{"api_key":"k","nested":{"password_confirmation":"p","ok":"v"}}`)}
	diff := DiffNodes(nil, &after)
	content, ok := diff["content"].After.(map[string]any)
	if !ok {
		t.Fatalf("content: want map got=%T", diff["content"].After)
	}
	if content["api_key"] != redacted {
		t.Fatalf("api_key: want redacted got=%v", content["api_key"])
	}
	nested := content["nested"].(map[string]any)
	if nested["password_confirmation"] != redacted || nested["ok"] != "v" {
		t.Fatalf("nested: got=%v", nested)
	}
}

func TestBuildAuditEntriesCarriesRequestID(t *testing.T) {
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{RequestID: "req-1"})
	n := skillgraph.Node{ID: "s1", Name: "A"}
	same := n
	entries := BuildAuditEntries(ctx, "c1", "u1", []domainagg.SkillChange{
		{Operation: skills.AuditCreate, SkillID: "s1", After: &n},
		{Operation: skills.AuditUpdate, SkillID: "s1", Before: &n, After: &same},
	})
	if len(entries) != 1 {
		t.Fatalf("entries: want=1 (empty update dropped) got=%d", len(entries))
	}
	if entries[0].RequestID != "req-1" || entries[0].ModelType != auditModelSkill {
		t.Fatalf("entry: got=%+v", entries[0])
	}
}

type failingSink struct{}

func (failingSink) Record(context.Context, []AuditEntry) error { return errors.New("down") }

func TestMultiAuditSinkWritesRows(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewSkillAuditLogRepo(db, log)
	course := testutil.CourseID(t)

	sink := NewMultiAuditSink(NewLogAuditSink(log), NewGormAuditSink(repo), nil)
	n := skillgraph.Node{ID: "s1", Name: "A"}
	entries := BuildAuditEntries(context.Background(), course, "u1", []domainagg.SkillChange{{Operation: skills.AuditCreate, SkillID: "s1", After: &n}})
	if err := sink.Record(context.Background(), entries); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rows, err := repo.ListByCourse(dbctx.Context{Ctx: context.Background()}, course, 10)
	if err != nil {
		t.Fatalf("ListByCourse: %v", err)
	}
	if len(rows) != 1 || rows[0].Operation != skills.AuditCreate || rows[0].ModelID != "s1" {
		t.Fatalf("rows: got=%+v", rows)
	}
	var changes map[string]FieldChange
	if err := json.Unmarshal(rows[0].Changes, &changes); err != nil {
		t.Fatalf("changes json: %v", err)
	}
	if changes["name"].After != "A" {
		t.Fatalf("stored name change: got=%+v", changes["name"])
	}

	if err := NewMultiAuditSink(failingSink{}, NewLogAuditSink(log)).Record(context.Background(), entries); err == nil {
		t.Fatalf("failing sink: want error")
	}
}
