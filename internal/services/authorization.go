package services

import (
	"context"
	"strings"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/platform/ctxutil"
)

// GraphAuthorizer decides whether the request actor may change a course graph.
type GraphAuthorizer interface {
	AuthorizeGraphWrite(ctx context.Context, courseID string) (*ctxutil.Actor, error)
	AuthorizeGraphRead(ctx context.Context, courseID string) (*ctxutil.Actor, error)
}

type courseAuthorizer struct{}

// NewCourseAuthorizer allows admins and the teachers of a course.
func NewCourseAuthorizer() GraphAuthorizer { return courseAuthorizer{} }

func (courseAuthorizer) AuthorizeGraphWrite(ctx context.Context, courseID string) (*ctxutil.Actor, error) {
	const op = "Learning.SkillGraph.Authorize"
	actor := ctxutil.GetActor(ctx)
	if actor == nil || strings.TrimSpace(actor.UserID) == "" {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "not authenticated", nil)
	}
	if actor.IsAdmin || actor.Teaches(courseID) {
		return actor, nil
	}
	return nil, domainagg.NewError(domainagg.CodeForbidden, op, "not allowed to edit this course", nil)
}

// Reads share the write rule: the graph is only visible to its editors.
func (a courseAuthorizer) AuthorizeGraphRead(ctx context.Context, courseID string) (*ctxutil.Actor, error) {
	return a.AuthorizeGraphWrite(ctx, courseID)
}
