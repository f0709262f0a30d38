package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/skillgraph-backend/internal/data/repos"
	types "github.com/yungbote/skillgraph-backend/internal/domain"
	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/observability"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

const (
	MsgPrerequisiteAdded   = "Prerequisite added successfully."
	MsgPrerequisiteRemoved = "Prerequisite removed successfully."
	MsgPositionUpdated     = "Position updated successfully."
	MsgSkillUpdated        = "Skill updated successfully."
	MsgSkillCreated        = "Skill created successfully."
	MsgSkillDeleted        = "Skill deleted successfully."
	MsgGraphSynced         = "Skill graph saved successfully."
)

type GraphSnapshot struct {
	CourseID string            `json:"course_id"`
	Version  int64             `json:"version"`
	Skills   []skillgraph.Node `json:"skills"`
}

type ImpactResult struct {
	SkillID    string   `json:"skill_id"`
	Dependents []string `json:"dependents"`
}

type ReadinessResult struct {
	SkillID string   `json:"skill_id"`
	Ready   bool     `json:"ready"`
	Missing []string `json:"missing"`
}

// SkillGraphService gates, sanitizes and fans out every course graph operation.
// Structural rules live in the aggregate; this layer runs audit, realtime and
// projection side effects after a commit.
type SkillGraphService interface {
	LoadGraph(ctx context.Context, courseID string) (GraphSnapshot, error)
	Sync(ctx context.Context, courseID string, baseVersion *int64, nodes []domainagg.SkillNodeInput) (domainagg.SyncSkillGraphResult, error)

	CreateSkill(ctx context.Context, courseID string, in domainagg.SkillNodeInput) (domainagg.SkillMutationResult, error)
	UpdateAttributes(ctx context.Context, courseID, skillID string, patch domainagg.SkillPatch) (domainagg.SkillMutationResult, error)
	UpdatePosition(ctx context.Context, courseID, skillID string, x, y int) (domainagg.SkillMutationResult, error)
	DeleteSkill(ctx context.Context, courseID, skillID string) (domainagg.DeleteSkillResult, error)

	Connect(ctx context.Context, courseID, skillID, prerequisiteID string) (domainagg.EdgeMutationResult, error)
	Disconnect(ctx context.Context, courseID, skillID, prerequisiteID string) (domainagg.EdgeMutationResult, error)

	Impact(ctx context.Context, courseID, skillID string) (ImpactResult, error)
	ValidTargets(ctx context.Context, courseID, skillID string) ([]string, error)
	Readiness(ctx context.Context, courseID, skillID string, mastered []string) (ReadinessResult, error)
	AuditTrail(ctx context.Context, courseID string, limit int) ([]*types.SkillAuditLog, error)
}

type SkillGraphServiceDeps struct {
	Aggregate  domainagg.SkillGraphAggregate
	Skills     repos.SkillRepo
	Prereqs    repos.SkillPrerequisiteRepo
	Heads      repos.SkillGraphHeadRepo
	AuditLogs  repos.SkillAuditLogRepo
	Authorizer GraphAuthorizer
	Sanitizer  Sanitizer
	Audit      AuditSink
	Notifier   GraphNotifier
	Projector  GraphProjector
}

type skillGraphService struct {
	log  *logger.Logger
	deps SkillGraphServiceDeps
}

func NewSkillGraphService(baseLog *logger.Logger, deps SkillGraphServiceDeps) SkillGraphService {
	if deps.Authorizer == nil {
		deps.Authorizer = NewCourseAuthorizer()
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = NewSanitizer()
	}
	return &skillGraphService{
		log:  baseLog.With("service", "SkillGraphService"),
		deps: deps,
	}
}

func (s *skillGraphService) LoadGraph(ctx context.Context, courseID string) (GraphSnapshot, error) {
	ctx, span := observability.StartSpan(ctx, "skillgraph.load", attribute.String("course_id", courseID))
	defer span.End()

	out := GraphSnapshot{CourseID: courseID, Skills: []skillgraph.Node{}}
	if _, err := s.deps.Authorizer.AuthorizeGraphRead(ctx, courseID); err != nil {
		return out, err
	}
	g, version, err := s.readGraph(ctx, courseID)
	if err != nil {
		return out, err
	}
	out.Version = version
	out.Skills = g.Nodes()
	return out, nil
}

func (s *skillGraphService) Sync(ctx context.Context, courseID string, baseVersion *int64, nodes []domainagg.SkillNodeInput) (domainagg.SyncSkillGraphResult, error) {
	ctx, span := observability.StartSpan(ctx, "skillgraph.sync",
		attribute.String("course_id", courseID),
		attribute.Int("skills", len(nodes)),
	)
	defer span.End()

	actor, err := s.deps.Authorizer.AuthorizeGraphWrite(ctx, courseID)
	if err != nil {
		return domainagg.SyncSkillGraphResult{CourseID: courseID}, err
	}
	clean := make([]domainagg.SkillNodeInput, 0, len(nodes))
	for _, n := range nodes {
		clean = append(clean, s.deps.Sanitizer.Node(n))
	}
	res, err := s.deps.Aggregate.Sync(ctx, domainagg.SyncSkillGraphInput{
		CourseID:    courseID,
		ActorID:     actor.UserID,
		BaseVersion: baseVersion,
		Skills:      clean,
	})
	if err != nil {
		return res, err
	}

	if res.Counts.Total() == 0 {
		return res, nil
	}
	entries := BuildAuditEntries(ctx, courseID, actor.UserID, res.Changes)
	entries = append(entries, syncSummaryEntry(ctx, courseID, actor.UserID, res.Version, res.Counts))
	s.record(ctx, entries)
	s.notify(func(n GraphNotifier) { n.GraphSynced(ctx, res) })
	s.projectNodes(ctx, courseID, res.Version, res.Skills)
	return res, nil
}

func (s *skillGraphService) CreateSkill(ctx context.Context, courseID string, in domainagg.SkillNodeInput) (domainagg.SkillMutationResult, error) {
	ctx, span := observability.StartSpan(ctx, "skillgraph.create_skill", attribute.String("course_id", courseID))
	defer span.End()

	actor, err := s.deps.Authorizer.AuthorizeGraphWrite(ctx, courseID)
	if err != nil {
		return domainagg.SkillMutationResult{CourseID: courseID}, err
	}
	node := s.deps.Sanitizer.Node(in)
	if node.Name == "" {
		names, err := s.deps.Skills.ListNamesByCourse(dbctx.Context{Ctx: ctx}, courseID)
		if err != nil {
			return domainagg.SkillMutationResult{CourseID: courseID}, domainagg.Wrap(domainagg.CodeInternal, "Learning.SkillGraph.CreateSkill", err)
		}
		node.Name = skillgraph.NextDefaultName(names)
		if node.Description == nil {
			d := skillgraph.DefaultDescription(node.Name)
			node.Description = &d
		}
	}
	res, err := s.deps.Aggregate.CreateSkill(ctx, domainagg.CreateSkillInput{CourseID: courseID, ActorID: actor.UserID, Skill: node})
	if err != nil {
		return res, err
	}
	s.afterSkillChange(ctx, courseID, actor.UserID, res.Version, res.Change)
	s.notify(func(n GraphNotifier) { n.SkillCreated(ctx, courseID, res.Version, res.Skill) })
	return res, nil
}

func (s *skillGraphService) UpdateAttributes(ctx context.Context, courseID, skillID string, patch domainagg.SkillPatch) (domainagg.SkillMutationResult, error) {
	ctx, span := observability.StartSpan(ctx, "skillgraph.update_attributes",
		attribute.String("course_id", courseID),
		attribute.String("skill_id", skillID),
	)
	defer span.End()

	actor, err := s.deps.Authorizer.AuthorizeGraphWrite(ctx, courseID)
	if err != nil {
		return domainagg.SkillMutationResult{CourseID: courseID}, err
	}
	res, err := s.deps.Aggregate.UpdateAttributes(ctx, domainagg.UpdateSkillInput{
		CourseID: courseID,
		ActorID:  actor.UserID,
		SkillID:  strings.TrimSpace(skillID),
		Patch:    s.deps.Sanitizer.Patch(patch),
	})
	if err != nil {
		return res, err
	}
	s.afterSkillChange(ctx, courseID, actor.UserID, res.Version, res.Change)
	s.notify(func(n GraphNotifier) { n.SkillUpdated(ctx, courseID, res.Version, res.Skill) })
	return res, nil
}

func (s *skillGraphService) UpdatePosition(ctx context.Context, courseID, skillID string, x, y int) (domainagg.SkillMutationResult, error) {
	actor, err := s.deps.Authorizer.AuthorizeGraphWrite(ctx, courseID)
	if err != nil {
		return domainagg.SkillMutationResult{CourseID: courseID}, err
	}
	res, err := s.deps.Aggregate.UpdatePosition(ctx, domainagg.UpdatePositionInput{
		CourseID:  courseID,
		ActorID:   actor.UserID,
		SkillID:   strings.TrimSpace(skillID),
		PositionX: x,
		PositionY: y,
	})
	if err != nil {
		return res, err
	}
	// Drags produce many writes; they are notified but neither audited nor projected.
	s.notify(func(n GraphNotifier) { n.SkillPositionUpdated(ctx, courseID, res.Version, res.Skill) })
	return res, nil
}

func (s *skillGraphService) DeleteSkill(ctx context.Context, courseID, skillID string) (domainagg.DeleteSkillResult, error) {
	ctx, span := observability.StartSpan(ctx, "skillgraph.delete_skill",
		attribute.String("course_id", courseID),
		attribute.String("skill_id", skillID),
	)
	defer span.End()

	actor, err := s.deps.Authorizer.AuthorizeGraphWrite(ctx, courseID)
	if err != nil {
		return domainagg.DeleteSkillResult{CourseID: courseID}, err
	}
	res, err := s.deps.Aggregate.DeleteSkill(ctx, domainagg.DeleteSkillInput{
		CourseID: courseID,
		ActorID:  actor.UserID,
		SkillID:  strings.TrimSpace(skillID),
	})
	if err != nil {
		return res, err
	}
	if res.Dependents > 0 {
		s.log.Info("deleted skill had dependents", "course_id", courseID, "skill_id", res.SkillID, "dependents", res.Dependents)
	}
	s.afterSkillChange(ctx, courseID, actor.UserID, res.Version, res.Change)
	s.notify(func(n GraphNotifier) { n.SkillDeleted(ctx, courseID, res.Version, res.SkillID) })
	return res, nil
}

func (s *skillGraphService) Connect(ctx context.Context, courseID, skillID, prerequisiteID string) (domainagg.EdgeMutationResult, error) {
	ctx, span := observability.StartSpan(ctx, "skillgraph.connect",
		attribute.String("course_id", courseID),
		attribute.String("skill_id", skillID),
		attribute.String("prerequisite_id", prerequisiteID),
	)
	defer span.End()

	actor, err := s.deps.Authorizer.AuthorizeGraphWrite(ctx, courseID)
	if err != nil {
		return domainagg.EdgeMutationResult{CourseID: courseID}, err
	}
	res, err := s.deps.Aggregate.Connect(ctx, domainagg.ConnectSkillsInput{
		CourseID:       courseID,
		ActorID:        actor.UserID,
		SkillID:        strings.TrimSpace(skillID),
		PrerequisiteID: strings.TrimSpace(prerequisiteID),
	})
	if err != nil {
		return res, err
	}
	s.afterSkillChange(ctx, courseID, actor.UserID, res.Version, res.Change)
	s.notify(func(n GraphNotifier) { n.PrerequisiteAdded(ctx, res) })
	return res, nil
}

func (s *skillGraphService) Disconnect(ctx context.Context, courseID, skillID, prerequisiteID string) (domainagg.EdgeMutationResult, error) {
	ctx, span := observability.StartSpan(ctx, "skillgraph.disconnect",
		attribute.String("course_id", courseID),
		attribute.String("skill_id", skillID),
		attribute.String("prerequisite_id", prerequisiteID),
	)
	defer span.End()

	actor, err := s.deps.Authorizer.AuthorizeGraphWrite(ctx, courseID)
	if err != nil {
		return domainagg.EdgeMutationResult{CourseID: courseID}, err
	}
	res, err := s.deps.Aggregate.Disconnect(ctx, domainagg.ConnectSkillsInput{
		CourseID:       courseID,
		ActorID:        actor.UserID,
		SkillID:        strings.TrimSpace(skillID),
		PrerequisiteID: strings.TrimSpace(prerequisiteID),
	})
	if err != nil {
		return res, err
	}
	if !res.Changed {
		return res, nil
	}
	s.afterSkillChange(ctx, courseID, actor.UserID, res.Version, res.Change)
	s.notify(func(n GraphNotifier) { n.PrerequisiteRemoved(ctx, res) })
	return res, nil
}

func (s *skillGraphService) Impact(ctx context.Context, courseID, skillID string) (ImpactResult, error) {
	out := ImpactResult{SkillID: skillID, Dependents: []string{}}
	g, err := s.authorizedGraph(ctx, "Learning.SkillGraph.Impact", courseID, skillID)
	if err != nil {
		return out, err
	}
	out.Dependents = g.Descendants(skillID).Sorted()
	return out, nil
}

func (s *skillGraphService) ValidTargets(ctx context.Context, courseID, skillID string) ([]string, error) {
	g, err := s.authorizedGraph(ctx, "Learning.SkillGraph.ValidTargets", courseID, skillID)
	if err != nil {
		return []string{}, err
	}
	return g.ValidConnectionTargets(skillID).Sorted(), nil
}

func (s *skillGraphService) Readiness(ctx context.Context, courseID, skillID string, mastered []string) (ReadinessResult, error) {
	out := ReadinessResult{SkillID: skillID, Missing: []string{}}
	g, err := s.authorizedGraph(ctx, "Learning.SkillGraph.Readiness", courseID, skillID)
	if err != nil {
		return out, err
	}
	have := skillgraph.NewSet(mastered...)
	out.Ready = g.PrerequisitesMet(skillID, have)
	n, _ := g.Node(skillID)
	for _, p := range n.Prerequisites {
		if g.Has(p) && !have.Has(p) {
			out.Missing = append(out.Missing, p)
		}
	}
	return out, nil
}

func (s *skillGraphService) AuditTrail(ctx context.Context, courseID string, limit int) ([]*types.SkillAuditLog, error) {
	if _, err := s.deps.Authorizer.AuthorizeGraphRead(ctx, courseID); err != nil {
		return nil, err
	}
	if s.deps.AuditLogs == nil {
		return []*types.SkillAuditLog{}, nil
	}
	rows, err := s.deps.AuditLogs.ListByCourse(dbctx.Context{Ctx: ctx}, courseID, limit)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "Learning.SkillGraph.AuditTrail", err)
	}
	return rows, nil
}

// ---- helpers ----

func (s *skillGraphService) authorizedGraph(ctx context.Context, op, courseID, skillID string) (*skillgraph.Graph, error) {
	if _, err := s.deps.Authorizer.AuthorizeGraphRead(ctx, courseID); err != nil {
		return nil, err
	}
	g, _, err := s.readGraph(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !g.Has(skillID) {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "skill "+skillID+" not found", nil)
	}
	return g, nil
}

func (s *skillGraphService) readGraph(ctx context.Context, courseID string) (*skillgraph.Graph, int64, error) {
	const op = "Learning.SkillGraph.Load"
	if strings.TrimSpace(courseID) == "" {
		return nil, 0, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.deps.Skills.ListByCourse(dbc, courseID)
	if err != nil {
		return nil, 0, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	edges, err := s.deps.Prereqs.ListLiveByCourse(dbc, courseID)
	if err != nil {
		return nil, 0, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	head, err := s.deps.Heads.Get(dbc, courseID)
	if err != nil {
		return nil, 0, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return skillgraph.FromModels(rows, edges), head.Version, nil
}

func (s *skillGraphService) afterSkillChange(ctx context.Context, courseID, actorID string, version int64, change *domainagg.SkillChange) {
	if change == nil {
		return
	}
	s.record(ctx, BuildAuditEntries(ctx, courseID, actorID, []domainagg.SkillChange{*change}))
	s.projectCourse(ctx, courseID, version)
}

// record never fails the request: the mutation is already committed.
func (s *skillGraphService) record(ctx context.Context, entries []AuditEntry) {
	if s.deps.Audit == nil || len(entries) == 0 {
		return
	}
	if err := s.deps.Audit.Record(context.WithoutCancel(ctx), entries); err != nil {
		s.log.Warn("audit record failed", "error", err, "entries", len(entries))
	}
}

func (s *skillGraphService) notify(fn func(n GraphNotifier)) {
	if s.deps.Notifier != nil {
		fn(s.deps.Notifier)
	}
}

func (s *skillGraphService) projectCourse(ctx context.Context, courseID string, version int64) {
	if s.deps.Projector == nil {
		return
	}
	g, _, err := s.readGraph(ctx, courseID)
	if err != nil {
		s.log.Warn("graph projection skipped", "course_id", courseID, "error", err)
		return
	}
	s.projectNodes(ctx, courseID, version, g.Nodes())
}

func (s *skillGraphService) projectNodes(ctx context.Context, courseID string, version int64, nodes []skillgraph.Node) {
	if s.deps.Projector == nil {
		return
	}
	if err := s.deps.Projector.ReplaceCourseGraph(context.WithoutCancel(ctx), courseID, version, nodes); err != nil {
		s.log.Warn("graph projection failed", "course_id", courseID, "version", version, "error", err)
	}
}
