package skills

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/skillgraph-backend/internal/domain"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

type SkillGraphHeadRepo interface {
	Get(dbc dbctx.Context, courseID string) (*types.SkillGraphHead, error)
	// LockByCourse creates the head row when missing and takes a row lock on it.
	LockByCourse(dbc dbctx.Context, courseID string) (*types.SkillGraphHead, error)
}

type skillGraphHeadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillGraphHeadRepo(db *gorm.DB, baseLog *logger.Logger) SkillGraphHeadRepo {
	return &skillGraphHeadRepo{db: db, log: baseLog.With("repo", "SkillGraphHeadRepo")}
}

func (r *skillGraphHeadRepo) Get(dbc dbctx.Context, courseID string) (*types.SkillGraphHead, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.SkillGraphHead
	if err := t.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &types.SkillGraphHead{CourseID: courseID}, nil
	}
	return rows[0], nil
}

func (r *skillGraphHeadRepo) LockByCourse(dbc dbctx.Context, courseID string) (*types.SkillGraphHead, error) {
	if courseID == "" {
		return nil, fmt.Errorf("missing course_id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByCourse required dbc.Tx")
	}
	seed := &types.SkillGraphHead{CourseID: courseID, Version: 0, UpdatedAt: time.Now().UTC()}
	if err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "course_id"}}, DoNothing: true}).
		Create(seed).Error; err != nil {
		return nil, err
	}
	var out types.SkillGraphHead
	if err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("course_id = ?", courseID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
