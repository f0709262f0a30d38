package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillgraph-backend/internal/clients/skillapi"
	"github.com/yungbote/skillgraph-backend/internal/data/db"
	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/editor"
	"github.com/yungbote/skillgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/realtime"
)

const e2eCourse = "course-e2e"

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := defaultConfig()
	cfg.DB = db.Config{Driver: db.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "e2e.db")}
	cfg.MetricsEnabled = false
	a, err := NewWithConfig(context.Background(), logger.NewNop(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestEditorSessionAgainstRunningAPI(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Clients.Bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	watcher := a.SSEHub.NewSSEClient("watcher")
	a.SSEHub.AddChannel(watcher, realtime.CourseChannel(e2eCourse))
	defer a.SSEHub.CloseClient(watcher)

	srv := httptest.NewServer(a.Server.Engine)
	defer srv.Close()

	token, err := a.Services.Auth.IssueToken(ctxutil.Actor{UserID: "teacher-1", CourseIDs: []string{e2eCourse}}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	client, err := skillapi.New(a.Log, skillapi.Config{BaseURL: srv.URL, Token: token})
	if err != nil {
		t.Fatalf("skillapi.New: %v", err)
	}
	session := editor.NewSession(a.Log, client, e2eCourse, editor.SessionOptions{HistoryCapacity: a.Cfg.HistoryCapacity})
	if err := session.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	basics, _ := session.CreateSkill(ctx, "")
	loops, _ := session.CreateSkill(ctx, "")
	if err := session.Connect(ctx, loops.ID, basics.ID); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	session.BeginDrag()
	_ = session.Drag(basics.ID, 10.2, 20.7)
	session.EndDrag(ctx)
	session.Wait()
	if st := session.Status(); st.LastErr != nil {
		t.Fatalf("session error: %v", st.LastErr)
	}

	snap, err := client.LoadGraph(ctx, e2eCourse)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if len(snap.Nodes) != 2 {
		t.Fatalf("server nodes: want=2 got=%d", len(snap.Nodes))
	}
	for _, n := range snap.Nodes {
		switch n.ID {
		case basics.ID:
			if n.Name != "New Skill" || n.PositionX != 10 || n.PositionY != 21 {
				t.Fatalf("basics: got=%+v", n)
			}
		case loops.ID:
			if n.Name != "New Skill 2" || !n.HasPrerequisite(basics.ID) {
				t.Fatalf("loops: got=%+v", n)
			}
		default:
			t.Fatalf("unexpected node %q", n.ID)
		}
	}

	// The analyzer answers locally; nothing reaches the server.
	err = session.Connect(ctx, basics.ID, loops.ID)
	if aggErr, ok := domainagg.As(err); !ok || aggErr.Reason != "cycle" {
		t.Fatalf("cycle: got=%v", err)
	}

	if !session.Undo(ctx) {
		t.Fatalf("undo drag: want=true")
	}
	session.Wait()
	snap, _ = client.LoadGraph(ctx, e2eCourse)
	for _, n := range snap.Nodes {
		if n.ID == basics.ID && (n.PositionX != basics.PositionX || n.PositionY != basics.PositionY) {
			t.Fatalf("undo must restore spawn position: want=(%d,%d) got=(%d,%d)", basics.PositionX, basics.PositionY, n.PositionX, n.PositionY)
		}
	}

	seen := map[realtime.SSEEvent]int{}
	for len(watcher.Outbound) > 0 {
		msg := <-watcher.Outbound
		seen[msg.Event]++
	}
	if seen[realtime.SSEEventSkillGraphSynced] != 3 || seen[realtime.SSEEventPrerequisiteAdded] != 1 || seen[realtime.SSEEventSkillPositionUpdated] != 1 {
		t.Fatalf("events: got=%v", seen)
	}

	entries, err := a.Services.SkillGraph.AuditTrail(ctxutil.WithActor(ctx, &ctxutil.Actor{UserID: "teacher-1", CourseIDs: []string{e2eCourse}}), e2eCourse, 100)
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("audit table must record committed changes")
	}
}

func TestReloadAfterRemoteDelete(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	srv := httptest.NewServer(a.Server.Engine)
	defer srv.Close()

	token, _ := a.Services.Auth.IssueToken(ctxutil.Actor{UserID: "teacher-1", CourseIDs: []string{e2eCourse}}, time.Hour)
	client, _ := skillapi.New(a.Log, skillapi.Config{BaseURL: srv.URL, Token: token})

	first := editor.NewSession(a.Log, client, e2eCourse, editor.SessionOptions{})
	second := editor.NewSession(a.Log, client, e2eCourse, editor.SessionOptions{})
	if err := first.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	n, _ := first.CreateSkill(ctx, "Shared")
	first.Wait()
	if err := second.Open(ctx); err != nil {
		t.Fatalf("Open second: %v", err)
	}
	if !second.Graph().Has(n.ID) {
		t.Fatalf("second session must see the shared skill")
	}

	if _, err := first.DeleteSkill(ctx, n.ID); err != nil {
		t.Fatalf("DeleteSkill: %v", err)
	}
	first.Wait()

	name := "Renamed"
	if err := second.UpdateAttributes(ctx, n.ID, domainagg.SkillPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateAttributes: %v", err)
	}
	second.Wait()
	if domainagg.CodeOf(second.Status().LastErr) != domainagg.CodeNotFound {
		t.Fatalf("last error: want not_found got=%v", second.Status().LastErr)
	}
	if second.Graph().Has(n.ID) {
		t.Fatalf("not_found must reload the working copy")
	}
}
