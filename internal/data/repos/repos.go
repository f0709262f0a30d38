package repos

import (
	"github.com/yungbote/skillgraph-backend/internal/data/repos/skills"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type SkillRepo = skills.SkillRepo
type SkillPrerequisiteRepo = skills.SkillPrerequisiteRepo
type SkillGraphHeadRepo = skills.SkillGraphHeadRepo
type SkillAuditLogRepo = skills.SkillAuditLogRepo

func NewSkillRepo(db *gorm.DB, log *logger.Logger) SkillRepo {
	return skills.NewSkillRepo(db, log)
}

func NewSkillPrerequisiteRepo(db *gorm.DB, log *logger.Logger) SkillPrerequisiteRepo {
	return skills.NewSkillPrerequisiteRepo(db, log)
}

func NewSkillGraphHeadRepo(db *gorm.DB, log *logger.Logger) SkillGraphHeadRepo {
	return skills.NewSkillGraphHeadRepo(db, log)
}

func NewSkillAuditLogRepo(db *gorm.DB, log *logger.Logger) SkillAuditLogRepo {
	return skills.NewSkillAuditLogRepo(db, log)
}
