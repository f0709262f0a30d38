package skills

import (
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/skillgraph-backend/internal/domain"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

type SkillRepo interface {
	Create(dbc dbctx.Context, rows []*types.Skill) ([]*types.Skill, error)

	GetByID(dbc dbctx.Context, courseID, id string) (*types.Skill, error)
	ListByCourse(dbc dbctx.Context, courseID string) ([]*types.Skill, error)
	// GetByIDsUnscoped looks across every course and includes tombstoned rows.
	GetByIDsUnscoped(dbc dbctx.Context, ids []string) ([]*types.Skill, error)
	ListNamesByCourse(dbc dbctx.Context, courseID string) ([]string, error)

	// Overwrite writes every column of row, clearing deleted_at.
	Overwrite(dbc dbctx.Context, row *types.Skill) error
	UpdateFields(dbc dbctx.Context, courseID, id string, updates map[string]any) (int64, error)

	SoftDeleteByIDs(dbc dbctx.Context, courseID string, ids []string) error
	// SoftDeleteExcept tombstones every live skill of the course not listed in keep
	// and returns the rows it tombstoned.
	SoftDeleteExcept(dbc dbctx.Context, courseID string, keep []string) ([]*types.Skill, error)
}

type skillRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillRepo(db *gorm.DB, baseLog *logger.Logger) SkillRepo {
	return &skillRepo{db: db, log: baseLog.With("repo", "SkillRepo")}
}

func (r *skillRepo) Create(dbc dbctx.Context, rows []*types.Skill) ([]*types.Skill, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Skill{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *skillRepo) GetByID(dbc dbctx.Context, courseID, id string) (*types.Skill, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.Skill
	if err := t.WithContext(dbc.Ctx).
		Where("course_id = ? AND id = ?", courseID, id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *skillRepo) ListByCourse(dbc dbctx.Context, courseID string) ([]*types.Skill, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Skill
	if err := t.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillRepo) GetByIDsUnscoped(dbc dbctx.Context, ids []string) ([]*types.Skill, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Skill
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Unscoped().Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillRepo) ListNamesByCourse(dbc dbctx.Context, courseID string) ([]string, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []string
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Skill{}).
		Where("course_id = ?", courseID).
		Pluck("name", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillRepo) Overwrite(dbc dbctx.Context, row *types.Skill) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	row.DeletedAt = gorm.DeletedAt{}
	return t.WithContext(dbc.Ctx).Unscoped().Save(row).Error
}

func (r *skillRepo) UpdateFields(dbc dbctx.Context, courseID, id string, updates map[string]any) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) == 0 {
		return 0, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.Skill{}).
		Where("course_id = ? AND id = ?", courseID, id).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *skillRepo) SoftDeleteByIDs(dbc dbctx.Context, courseID string, ids []string) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Where("course_id = ? AND id IN ?", courseID, ids).
		Delete(&types.Skill{}).Error
}

func (r *skillRepo) SoftDeleteExcept(dbc dbctx.Context, courseID string, keep []string) ([]*types.Skill, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Where("course_id = ?", courseID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	var doomed []*types.Skill
	if err := q.Find(&doomed).Error; err != nil {
		return nil, err
	}
	if len(doomed) == 0 {
		return doomed, nil
	}
	ids := make([]string, 0, len(doomed))
	for _, s := range doomed {
		ids = append(ids, s.ID)
	}
	if err := r.SoftDeleteByIDs(dbc, courseID, ids); err != nil {
		return nil, err
	}
	return doomed, nil
}
