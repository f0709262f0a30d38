package ctxutil

import (
	"context"
	"strings"
)

type actorKey struct{}

// Actor is the authenticated principal behind a request.
type Actor struct {
	UserID    string
	IsAdmin   bool
	CourseIDs []string
}

func (a *Actor) Teaches(courseID string) bool {
	if a == nil {
		return false
	}
	courseID = strings.TrimSpace(courseID)
	for _, id := range a.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func GetActor(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	if a, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return a
	}
	return nil
}
