package testutil

import (
	"context"
	"testing"
	"time"

	types "github.com/yungbote/skillgraph-backend/internal/domain"
	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
	"gorm.io/gorm"
)

func SeedSkill(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID, id, name string) *types.Skill {
	tb.Helper()
	now := time.Now().UTC()
	s := &types.Skill{
		ID:         id,
		CourseID:   courseID,
		Name:       name,
		Category:   skills.CategoryTheory,
		Difficulty: skills.DifficultyBeginner,
		XPReward:   skills.DefaultXPReward,
		PositionX:  100,
		PositionY:  100,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed skill: %v", err)
	}
	return s
}

// SeedEdge records that prerequisiteID must be mastered before skillID.
func SeedEdge(tb testing.TB, ctx context.Context, tx *gorm.DB, skillID, prerequisiteID string) *types.SkillPrerequisite {
	tb.Helper()
	e := &types.SkillPrerequisite{
		SkillID:             skillID,
		PrerequisiteSkillID: prerequisiteID,
		CreatedAt:           time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed edge: %v", err)
	}
	return e
}

func PtrString(v string) *string { return &v }
