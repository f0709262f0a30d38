package services

import (
	"context"
	"testing"
	"time"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	auth := NewAuthService(logger.NewNop(), "secret-key")
	token, err := auth.IssueToken(ctxutil.Actor{UserID: "u1", CourseIDs: []string{"c1"}}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	ctx, err := auth.SetContextFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	actor := ctxutil.GetActor(ctx)
	if actor == nil || actor.UserID != "u1" || !actor.Teaches("c1") || actor.IsAdmin {
		t.Fatalf("actor: got=%+v", actor)
	}
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	auth := NewAuthService(logger.NewNop(), "secret-key")
	other := NewAuthService(logger.NewNop(), "other-key")
	foreign, err := other.IssueToken(ctxutil.Actor{UserID: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	defaulted, err := auth.IssueToken(ctxutil.Actor{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	cases := map[string]string{
		"empty":   "",
		"garbage": "not-a-token",
		"foreign": foreign,
	}
	for name, token := range cases {
		if _, err := auth.SetContextFromToken(context.Background(), token); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}
	// A non-positive ttl falls back to an hour, so this token is still valid.
	if _, err := auth.SetContextFromToken(context.Background(), defaulted); err != nil {
		t.Fatalf("default ttl token: %v", err)
	}
}

func TestCourseAuthorizer(t *testing.T) {
	authz := NewCourseAuthorizer()
	teacher := ctxutil.WithActor(context.Background(), &ctxutil.Actor{UserID: "t", CourseIDs: []string{"c1"}})
	admin := ctxutil.WithActor(context.Background(), &ctxutil.Actor{UserID: "a", IsAdmin: true})

	if _, err := authz.AuthorizeGraphWrite(teacher, "c1"); err != nil {
		t.Fatalf("teacher own course: %v", err)
	}
	if _, err := authz.AuthorizeGraphWrite(teacher, "c2"); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("teacher other course: want forbidden got=%v", err)
	}
	if _, err := authz.AuthorizeGraphWrite(admin, "c2"); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if _, err := authz.AuthorizeGraphRead(context.Background(), "c1"); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("anonymous: want forbidden got=%v", err)
	}
}
