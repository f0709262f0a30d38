package skills

import (
	"gorm.io/gorm"

	types "github.com/yungbote/skillgraph-backend/internal/domain"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

type SkillAuditLogRepo interface {
	Create(dbc dbctx.Context, rows []*types.SkillAuditLog) error
	ListByCourse(dbc dbctx.Context, courseID string, limit int) ([]*types.SkillAuditLog, error)
}

type skillAuditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) SkillAuditLogRepo {
	return &skillAuditLogRepo{db: db, log: baseLog.With("repo", "SkillAuditLogRepo")}
}

func (r *skillAuditLogRepo) Create(dbc dbctx.Context, rows []*types.SkillAuditLog) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *skillAuditLogRepo) ListByCourse(dbc dbctx.Context, courseID string, limit int) ([]*types.SkillAuditLog, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*types.SkillAuditLog
	if err := t.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
