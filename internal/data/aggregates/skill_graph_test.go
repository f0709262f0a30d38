package aggregates_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/skillgraph-backend/internal/data/aggregates"
	aggtestutil "github.com/yungbote/skillgraph-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/skillgraph-backend/internal/data/repos"
	"github.com/yungbote/skillgraph-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

func newTestSkillGraph(t *testing.T) (domainagg.SkillGraphAggregate, *gorm.DB, *aggtestutil.HooksRecorder) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	hooks := &aggtestutil.HooksRecorder{}
	agg := aggregates.NewSkillGraphAggregate(aggregates.SkillGraphAggregateDeps{
		Base:    aggregates.BaseDeps{DB: db, Log: log, Hooks: hooks},
		Skills:  repos.NewSkillRepo(db, log),
		Prereqs: repos.NewSkillPrerequisiteRepo(db, log),
		Heads:   repos.NewSkillGraphHeadRepo(db, log),
	})
	return agg, db, hooks
}

func node(id string, prereqs ...string) domainagg.SkillNodeInput {
	return domainagg.SkillNodeInput{ID: id, Name: "Skill " + id, PositionX: 10, PositionY: 20, Prerequisites: prereqs}
}

// diamond: d needs b and c, both of which need a.
func diamond(prefix string) []domainagg.SkillNodeInput {
	return []domainagg.SkillNodeInput{
		node(prefix + "a"),
		node(prefix+"b", prefix+"a"),
		node(prefix+"c", prefix+"a"),
		node(prefix+"d", prefix+"b", prefix+"c"),
	}
}

func prereqsOf(nodes []skillgraph.Node) map[string][]string {
	out := map[string][]string{}
	for _, n := range nodes {
		ps := append([]string{}, n.Prerequisites...)
		sort.Strings(ps)
		out[n.ID] = ps
	}
	return out
}

func sameShape(a, b []skillgraph.Node) bool {
	pa, pb := prereqsOf(a), prereqsOf(b)
	if len(pa) != len(pb) {
		return false
	}
	for id, ps := range pa {
		qs, ok := pb[id]
		if !ok || strings.Join(ps, ",") != strings.Join(qs, ",") {
			return false
		}
	}
	return true
}

func TestSyncCreatesGraphAndIsIdempotent(t *testing.T) {
	agg, _, hooks := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)

	first, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: diamond(course)})
	if err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	if first.Counts.Created != 4 || first.Counts.EdgesAdded != 4 {
		t.Fatalf("first counts: got=%+v", first.Counts)
	}
	if first.Version != 1 {
		t.Fatalf("first version: want=1 got=%d", first.Version)
	}
	if len(first.Changes) != 4 {
		t.Fatalf("first changes: want=4 got=%d", len(first.Changes))
	}

	second, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: diamond(course)})
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if second.Counts.Total() != 0 {
		t.Fatalf("second counts: want none got=%+v", second.Counts)
	}
	if second.Version != first.Version {
		t.Fatalf("second version: want=%d got=%d", first.Version, second.Version)
	}
	if !sameShape(first.Skills, second.Skills) {
		t.Fatalf("sync not idempotent:\nfirst=%v\nsecond=%v", prereqsOf(first.Skills), prereqsOf(second.Skills))
	}
	if len(hooks.Operations) != 2 || hooks.Operations[1].Status != "success" {
		t.Fatalf("hook operations: got=%+v", hooks.Operations)
	}
}

func countEdges(t *testing.T, db *gorm.DB, skillID string) int64 {
	t.Helper()
	var n int64
	if err := db.Table("skill_prerequisites").Where("skill_id = ?", skillID).Count(&n).Error; err != nil {
		t.Fatalf("count edges of %s: %v", skillID, err)
	}
	return n
}

func TestSyncOmissionDeletesAndResendRestores(t *testing.T) {
	agg, db, _ := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)
	a, b := course+"a", course+"b"

	if _, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: []domainagg.SkillNodeInput{node(a), node(b, a)}}); err != nil {
		t.Fatalf("seed Sync: %v", err)
	}
	dropped, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: []domainagg.SkillNodeInput{node(a)}})
	if err != nil {
		t.Fatalf("drop Sync: %v", err)
	}
	if dropped.Counts.Deleted != 1 || len(dropped.Skills) != 1 {
		t.Fatalf("drop: counts=%+v skills=%d", dropped.Counts, len(dropped.Skills))
	}
	if got := countEdges(t, db, b); got != 1 {
		t.Fatalf("edges of tombstoned b: want=1 got=%d", got)
	}

	restored, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: []domainagg.SkillNodeInput{node(a), node(b, a)}})
	if err != nil {
		t.Fatalf("restore Sync: %v", err)
	}
	if restored.Counts.Restored != 1 || restored.Counts.Created != 0 {
		t.Fatalf("restore counts: got=%+v", restored.Counts)
	}
	if got := prereqsOf(restored.Skills)[b]; len(got) != 1 || got[0] != a {
		t.Fatalf("restored prerequisites of b: got=%v", got)
	}
	if restored.Counts.EdgesAdded != 0 {
		t.Fatalf("restore must reuse the kept edge: counts=%+v", restored.Counts)
	}
}

func TestSyncKeepsEdgesToTombstonedPrerequisite(t *testing.T) {
	agg, db, _ := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)
	a, b := course+"a", course+"b"

	if _, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: []domainagg.SkillNodeInput{node(a), node(b, a)}}); err != nil {
		t.Fatalf("seed Sync: %v", err)
	}
	dropped, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: []domainagg.SkillNodeInput{node(b)}})
	if err != nil {
		t.Fatalf("drop Sync: %v", err)
	}
	if got := prereqsOf(dropped.Skills)[b]; len(got) != 0 {
		t.Fatalf("live prerequisites of b: want none got=%v", got)
	}
	if dropped.Counts.EdgesRemoved != 0 || countEdges(t, db, b) != 1 {
		t.Fatalf("edge b<-a must stay stored: counts=%+v", dropped.Counts)
	}

	// Restoring a without listing it under b drops the edge for good.
	restored, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: []domainagg.SkillNodeInput{node(a), node(b)}})
	if err != nil {
		t.Fatalf("restore Sync: %v", err)
	}
	if restored.Counts.EdgesRemoved != 1 || countEdges(t, db, b) != 0 {
		t.Fatalf("restore without edge: counts=%+v", restored.Counts)
	}
}

func TestSyncRejectsCycleWithoutEffect(t *testing.T) {
	agg, _, hooks := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)

	seed, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: diamond(course)})
	if err != nil {
		t.Fatalf("seed Sync: %v", err)
	}

	cyclic := diamond(course)
	cyclic[0].Prerequisites = []string{course + "d"}
	_, err = agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: cyclic})
	aggErr, ok := domainagg.As(err)
	if !ok || aggErr.Code != domainagg.CodeInvariantViolation || aggErr.Reason != "cycle" {
		t.Fatalf("cyclic Sync: want invariant_violation/cycle got=%v", err)
	}
	if aggErr.Message != skillgraph.ErrCircularDependency.Error() {
		t.Fatalf("cyclic message: got=%q", aggErr.Message)
	}

	again, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: diamond(course)})
	if err != nil {
		t.Fatalf("follow-up Sync: %v", err)
	}
	if again.Counts.Total() != 0 || again.Version != seed.Version {
		t.Fatalf("rejected sync left effects: counts=%+v version=%d", again.Counts, again.Version)
	}
	last := hooks.Operations[1]
	if last.Status != string(domainagg.CodeInvariantViolation) {
		t.Fatalf("hook status: want=%s got=%s", domainagg.CodeInvariantViolation, last.Status)
	}
}

func TestSyncValidatesPayload(t *testing.T) {
	agg, _, _ := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)

	bad := []domainagg.SkillNodeInput{
		{ID: course + "a", Name: "", Category: "lecture"},
		node(course+"b", course+"ghost", course+"b"),
		node(course + "a"),
		{ID: "bad id!", Name: "x"},
	}
	_, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: bad})
	aggErr, ok := domainagg.As(err)
	if !ok || aggErr.Code != domainagg.CodeValidation {
		t.Fatalf("Sync: want validation got=%v", err)
	}
	for _, key := range []string{
		"skills.0.name",
		"skills.0.category",
		"skills.1.prerequisites.0",
		"skills.1.prerequisites.1",
		"skills.2.id",
		"skills.3.id",
	} {
		if len(aggErr.Fields[key]) == 0 {
			t.Fatalf("missing field error %q in %v", key, aggErr.Fields)
		}
	}
}

func TestSyncRejectsSkillOwnedByAnotherCourse(t *testing.T) {
	agg, _, _ := newTestSkillGraph(t)
	ctx := context.Background()
	courseA, courseB := testutil.CourseID(t), testutil.CourseID(t)
	shared := courseA + "x"

	if _, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: courseA, Skills: []domainagg.SkillNodeInput{node(shared)}}); err != nil {
		t.Fatalf("seed Sync: %v", err)
	}
	_, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: courseB, Skills: []domainagg.SkillNodeInput{node(shared)}})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("cross-course Sync: want conflict got=%v", err)
	}
}

func TestSyncBaseVersionMismatchConflicts(t *testing.T) {
	agg, _, hooks := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)

	res, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: diamond(course)})
	if err != nil {
		t.Fatalf("seed Sync: %v", err)
	}
	stale := res.Version - 1
	_, err = agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, BaseVersion: &stale, Skills: diamond(course)[:1]})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("stale Sync: want conflict got=%v", err)
	}
	if len(hooks.Conflicts) != 1 {
		t.Fatalf("conflict hooks: got=%v", hooks.Conflicts)
	}
	current := res.Version
	if _, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, BaseVersion: &current, Skills: diamond(course)}); err != nil {
		t.Fatalf("current Sync: %v", err)
	}
}

func TestConnectRejections(t *testing.T) {
	agg, _, hooks := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)
	if _, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: diamond(course)}); err != nil {
		t.Fatalf("seed Sync: %v", err)
	}
	a, b, d := course+"a", course+"b", course+"d"

	cases := []struct {
		name   string
		skill  string
		prereq string
		code   domainagg.ErrorCode
		reason string
	}{
		{"self", a, a, domainagg.CodeInvariantViolation, "self_reference"},
		{"duplicate", b, a, domainagg.CodeInvariantViolation, "duplicate"},
		{"cycle", a, d, domainagg.CodeInvariantViolation, "cycle"},
		{"missing dependent", course + "zz", a, domainagg.CodeNotFound, ""},
		{"missing prerequisite", a, course + "zz", domainagg.CodeNotFound, ""},
	}
	for _, tc := range cases {
		_, err := agg.Connect(ctx, domainagg.ConnectSkillsInput{CourseID: course, SkillID: tc.skill, PrerequisiteID: tc.prereq})
		aggErr, ok := domainagg.As(err)
		if !ok || aggErr.Code != tc.code || aggErr.Reason != tc.reason {
			t.Fatalf("%s: want=%s/%s got=%v", tc.name, tc.code, tc.reason, err)
		}
	}
	if len(hooks.Rejections) != 3 {
		t.Fatalf("rejection hooks: want=3 got=%+v", hooks.Rejections)
	}
	for _, r := range hooks.Rejections {
		if !agg.Contract().AllowsRejection(r.Reason) {
			t.Fatalf("reason %q is not declared by the contract", r.Reason)
		}
	}

	res, err := agg.Connect(ctx, domainagg.ConnectSkillsInput{CourseID: course, SkillID: d, PrerequisiteID: a})
	if err != nil {
		t.Fatalf("Connect d<-a: %v", err)
	}
	if !res.Changed || res.Change == nil || len(res.Change.After.Prerequisites) != 3 {
		t.Fatalf("Connect result: got=%+v", res)
	}
}

func TestConcurrentOpposingConnectsAdmitExactlyOne(t *testing.T) {
	agg, _, _ := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)
	x, y := course+"x", course+"y"
	if _, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: []domainagg.SkillNodeInput{node(x), node(y)}}); err != nil {
		t.Fatalf("seed Sync: %v", err)
	}

	errs := make([]error, 2)
	var g errgroup.Group
	g.Go(func() error {
		_, errs[0] = agg.Connect(ctx, domainagg.ConnectSkillsInput{CourseID: course, SkillID: x, PrerequisiteID: y})
		return nil
	})
	g.Go(func() error {
		_, errs[1] = agg.Connect(ctx, domainagg.ConnectSkillsInput{CourseID: course, SkillID: y, PrerequisiteID: x})
		return nil
	})
	_ = g.Wait()

	succeeded, cycles := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if aggErr, ok := domainagg.As(err); ok && aggErr.Reason == "cycle" {
			cycles++
			continue
		}
		t.Fatalf("unexpected connect error: %v", err)
	}
	if succeeded != 1 || cycles != 1 {
		t.Fatalf("concurrent connects: want 1 success + 1 cycle got success=%d cycle=%d", succeeded, cycles)
	}
}

func TestDisconnect(t *testing.T) {
	agg, _, _ := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)
	seed, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: diamond(course)})
	if err != nil {
		t.Fatalf("seed Sync: %v", err)
	}

	res, err := agg.Disconnect(ctx, domainagg.ConnectSkillsInput{CourseID: course, SkillID: course + "d", PrerequisiteID: course + "b"})
	if err != nil || !res.Changed || res.Version != seed.Version+1 {
		t.Fatalf("Disconnect: err=%v res=%+v", err, res)
	}
	if got := res.Change.After.Prerequisites; len(got) != 1 || got[0] != course+"c" {
		t.Fatalf("Disconnect after: got=%v", got)
	}

	again, err := agg.Disconnect(ctx, domainagg.ConnectSkillsInput{CourseID: course, SkillID: course + "d", PrerequisiteID: course + "b"})
	if err != nil || again.Changed || again.Version != res.Version {
		t.Fatalf("Disconnect missing edge: err=%v res=%+v", err, again)
	}

	_, err = agg.Disconnect(ctx, domainagg.ConnectSkillsInput{CourseID: course, SkillID: course + "zz", PrerequisiteID: course + "a"})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("Disconnect unknown dependent: want not_found got=%v", err)
	}
}

func TestUpdatePositionAndAttributes(t *testing.T) {
	agg, _, _ := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)
	a := course + "a"
	desc := "intro"
	seedNode := node(a)
	seedNode.Description = &desc
	if _, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: []domainagg.SkillNodeInput{seedNode}}); err != nil {
		t.Fatalf("seed Sync: %v", err)
	}

	off, err := agg.UpdatePosition(ctx, domainagg.UpdatePositionInput{CourseID: course, SkillID: a, PositionX: -50, PositionY: 10001})
	if err != nil || off.Skill.PositionX != -50 || off.Skill.PositionY != 10001 {
		t.Fatalf("UpdatePosition off canvas: err=%v skill=%+v", err, off.Skill)
	}
	pos, err := agg.UpdatePosition(ctx, domainagg.UpdatePositionInput{CourseID: course, SkillID: a, PositionX: 300, PositionY: 250})
	if err != nil || pos.Skill.PositionX != 300 || pos.Skill.PositionY != 250 {
		t.Fatalf("UpdatePosition: err=%v skill=%+v", err, pos.Skill)
	}
	_, err = agg.UpdatePosition(ctx, domainagg.UpdatePositionInput{CourseID: course, SkillID: course + "zz", PositionX: 1, PositionY: 1})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("UpdatePosition missing: want not_found got=%v", err)
	}

	long := strings.Repeat("n", 151)
	_, err = agg.UpdateAttributes(ctx, domainagg.UpdateSkillInput{CourseID: course, SkillID: a, Patch: domainagg.SkillPatch{Name: &long}})
	if aggErr, ok := domainagg.As(err); !ok || len(aggErr.Fields["name"]) == 0 {
		t.Fatalf("UpdateAttributes long name: got=%v", err)
	}
	negative := -1
	_, err = agg.UpdateAttributes(ctx, domainagg.UpdateSkillInput{CourseID: course, SkillID: a, Patch: domainagg.SkillPatch{PositionX: &negative}})
	if aggErr, ok := domainagg.As(err); !ok || len(aggErr.Fields["position_x"]) == 0 {
		t.Fatalf("UpdateAttributes position out of range: got=%v", err)
	}

	name := "Variables"
	xp := 250
	upd, err := agg.UpdateAttributes(ctx, domainagg.UpdateSkillInput{CourseID: course, SkillID: a, Patch: domainagg.SkillPatch{
		Name:        &name,
		XPReward:    &xp,
		Description: domainagg.OptionalString{Set: true},
	}})
	if err != nil {
		t.Fatalf("UpdateAttributes: %v", err)
	}
	if upd.Skill.Name != name || upd.Skill.XPReward != 250 || upd.Skill.Description != nil || upd.Skill.PositionX != 300 {
		t.Fatalf("UpdateAttributes result: got=%+v", upd.Skill)
	}
	if upd.Change == nil || upd.Change.Before.Description == nil || *upd.Change.Before.Description != desc {
		t.Fatalf("UpdateAttributes before: got=%+v", upd.Change)
	}
}

func TestCreateAndDeleteSkill(t *testing.T) {
	agg, db, _ := newTestSkillGraph(t)
	ctx := context.Background()
	course := testutil.CourseID(t)
	if _, err := agg.Sync(ctx, domainagg.SyncSkillGraphInput{CourseID: course, Skills: diamond(course)}); err != nil {
		t.Fatalf("seed Sync: %v", err)
	}

	created, err := agg.CreateSkill(ctx, domainagg.CreateSkillInput{CourseID: course, Skill: domainagg.SkillNodeInput{
		Name:          "Recursion",
		PositionX:     250,
		PositionY:     300,
		Prerequisites: []string{course + "d"},
	}})
	if err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}
	if created.Skill.ID == "" || created.Skill.Category != "theory" || created.Skill.XPReward != 100 {
		t.Fatalf("CreateSkill defaults: got=%+v", created.Skill)
	}
	_, err = agg.CreateSkill(ctx, domainagg.CreateSkillInput{CourseID: course, Skill: domainagg.SkillNodeInput{ID: course + "a", Name: "dup"}})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("CreateSkill existing id: want conflict got=%v", err)
	}

	del, err := agg.DeleteSkill(ctx, domainagg.DeleteSkillInput{CourseID: course, SkillID: course + "a"})
	if err != nil {
		t.Fatalf("DeleteSkill: %v", err)
	}
	if del.Dependents != 4 {
		t.Fatalf("DeleteSkill dependents: want=4 got=%d", del.Dependents)
	}
	if got := countEdges(t, db, course+"b"); got != 1 {
		t.Fatalf("edge b<-a must survive DeleteSkill(a): got=%d", got)
	}
	_, err = agg.DeleteSkill(ctx, domainagg.DeleteSkillInput{CourseID: course, SkillID: course + "a"})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("DeleteSkill twice: want not_found got=%v", err)
	}
}

func TestSyncRollsBackWhenRunnerFails(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	hooks := &aggtestutil.HooksRecorder{}
	runner := &aggtestutil.InjectedTxRunner{FailBeforeBody: errors.New("lock timeout")}
	agg := aggregates.NewSkillGraphAggregate(aggregates.SkillGraphAggregateDeps{
		Base:    aggregates.BaseDeps{DB: db, Log: log, Hooks: hooks, Runner: runner},
		Skills:  repos.NewSkillRepo(db, log),
		Prereqs: repos.NewSkillPrerequisiteRepo(db, log),
		Heads:   repos.NewSkillGraphHeadRepo(db, log),
	})

	_, err := agg.Sync(context.Background(), domainagg.SyncSkillGraphInput{CourseID: testutil.CourseID(t), Skills: diamond("r")})
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("Sync with failing runner: want retryable got=%v", err)
	}
	if runner.RollbackCalls != 1 || runner.CommitCalls != 0 {
		t.Fatalf("runner counters: rollback=%d commit=%d", runner.RollbackCalls, runner.CommitCalls)
	}
	if len(hooks.Retries) != 1 {
		t.Fatalf("retry hooks: got=%v", hooks.Retries)
	}
}
