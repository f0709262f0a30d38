package services

import (
	"context"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/realtime"
	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

// GraphNotifier pushes committed graph changes to the course channel.
type GraphNotifier interface {
	GraphSynced(ctx context.Context, res domainagg.SyncSkillGraphResult)
	SkillCreated(ctx context.Context, courseID string, version int64, skill skillgraph.Node)
	SkillUpdated(ctx context.Context, courseID string, version int64, skill skillgraph.Node)
	SkillPositionUpdated(ctx context.Context, courseID string, version int64, skill skillgraph.Node)
	SkillDeleted(ctx context.Context, courseID string, version int64, skillID string)
	PrerequisiteAdded(ctx context.Context, res domainagg.EdgeMutationResult)
	PrerequisiteRemoved(ctx context.Context, res domainagg.EdgeMutationResult)
}

type graphNotifier struct {
	emit SSEEmitter
}

func NewGraphNotifier(emit SSEEmitter) GraphNotifier {
	return &graphNotifier{emit: emit}
}

func (n *graphNotifier) send(ctx context.Context, courseID string, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil {
		return
	}
	channel := realtime.CourseChannel(courseID)
	if channel == "" {
		return
	}
	n.emit.Emit(ctx, realtime.SSEMessage{Channel: channel, Event: event, Data: data})
}

func (n *graphNotifier) GraphSynced(ctx context.Context, res domainagg.SyncSkillGraphResult) {
	n.send(ctx, res.CourseID, realtime.SSEEventSkillGraphSynced, map[string]any{
		"course_id": res.CourseID,
		"version":   res.Version,
		"counts":    res.Counts,
	})
}

func (n *graphNotifier) SkillCreated(ctx context.Context, courseID string, version int64, skill skillgraph.Node) {
	n.send(ctx, courseID, realtime.SSEEventSkillCreated, map[string]any{"version": version, "skill": skill})
}

func (n *graphNotifier) SkillUpdated(ctx context.Context, courseID string, version int64, skill skillgraph.Node) {
	n.send(ctx, courseID, realtime.SSEEventSkillUpdated, map[string]any{"version": version, "skill": skill})
}

func (n *graphNotifier) SkillPositionUpdated(ctx context.Context, courseID string, version int64, skill skillgraph.Node) {
	n.send(ctx, courseID, realtime.SSEEventSkillPositionUpdated, map[string]any{
		"version":    version,
		"skill_id":   skill.ID,
		"position_x": skill.PositionX,
		"position_y": skill.PositionY,
	})
}

func (n *graphNotifier) SkillDeleted(ctx context.Context, courseID string, version int64, skillID string) {
	n.send(ctx, courseID, realtime.SSEEventSkillDeleted, map[string]any{"version": version, "skill_id": skillID})
}

func (n *graphNotifier) PrerequisiteAdded(ctx context.Context, res domainagg.EdgeMutationResult) {
	n.send(ctx, res.CourseID, realtime.SSEEventPrerequisiteAdded, edgeEventData(res))
}

func (n *graphNotifier) PrerequisiteRemoved(ctx context.Context, res domainagg.EdgeMutationResult) {
	n.send(ctx, res.CourseID, realtime.SSEEventPrerequisiteRemoved, edgeEventData(res))
}

func edgeEventData(res domainagg.EdgeMutationResult) map[string]any {
	return map[string]any{
		"version":         res.Version,
		"skill_id":        res.SkillID,
		"prerequisite_id": res.PrerequisiteID,
	}
}
