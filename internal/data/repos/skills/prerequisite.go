package skills

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/skillgraph-backend/internal/domain"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

type SkillPrerequisiteRepo interface {
	// CreateIgnoreDuplicates inserts edges, skipping pairs that already exist.
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.SkillPrerequisite) (int, error)

	// ListLiveByCourse returns edges whose endpoints are both live skills of the course.
	ListLiveByCourse(dbc dbctx.Context, courseID string) ([]*types.SkillPrerequisite, error)
	// ListLiveBySkillIDs returns the edges of skillIDs whose prerequisite is
	// live. Edges pointing at a tombstoned skill stay stored but are not listed.
	ListLiveBySkillIDs(dbc dbctx.Context, skillIDs []string) ([]*types.SkillPrerequisite, error)
	Exists(dbc dbctx.Context, skillID, prerequisiteID string) (bool, error)

	DeletePairs(dbc dbctx.Context, skillID string, prerequisiteIDs []string) (int, error)
}

type skillPrerequisiteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillPrerequisiteRepo(db *gorm.DB, baseLog *logger.Logger) SkillPrerequisiteRepo {
	return &skillPrerequisiteRepo{db: db, log: baseLog.With("repo", "SkillPrerequisiteRepo")}
}

func (r *skillPrerequisiteRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.SkillPrerequisite) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "skill_id"}, {Name: "prerequisite_skill_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *skillPrerequisiteRepo) ListLiveByCourse(dbc dbctx.Context, courseID string) ([]*types.SkillPrerequisite, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.SkillPrerequisite
	err := t.WithContext(dbc.Ctx).
		Table("skill_prerequisites AS sp").
		Select("sp.skill_id, sp.prerequisite_skill_id, sp.created_at").
		Joins("JOIN skills AS d ON d.id = sp.skill_id AND d.deleted_at IS NULL").
		Joins("JOIN skills AS p ON p.id = sp.prerequisite_skill_id AND p.deleted_at IS NULL").
		Where("d.course_id = ? AND p.course_id = ?", courseID, courseID).
		Order("sp.created_at ASC, sp.prerequisite_skill_id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillPrerequisiteRepo) ListLiveBySkillIDs(dbc dbctx.Context, skillIDs []string) ([]*types.SkillPrerequisite, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.SkillPrerequisite
	if len(skillIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Table("skill_prerequisites AS sp").
		Select("sp.skill_id, sp.prerequisite_skill_id, sp.created_at").
		Joins("JOIN skills AS p ON p.id = sp.prerequisite_skill_id AND p.deleted_at IS NULL").
		Where("sp.skill_id IN ?", skillIDs).
		Order("sp.created_at ASC, sp.prerequisite_skill_id ASC").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillPrerequisiteRepo) Exists(dbc dbctx.Context, skillID, prerequisiteID string) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.SkillPrerequisite{}).
		Where("skill_id = ? AND prerequisite_skill_id = ?", skillID, prerequisiteID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *skillPrerequisiteRepo) DeletePairs(dbc dbctx.Context, skillID string, prerequisiteIDs []string) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(prerequisiteIDs) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Where("skill_id = ? AND prerequisite_skill_id IN ?", skillID, prerequisiteIDs).
		Delete(&types.SkillPrerequisite{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}
