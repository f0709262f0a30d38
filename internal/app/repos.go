package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/skillgraph-backend/internal/data/repos"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

type Repos struct {
	Skill             repos.SkillRepo
	SkillPrerequisite repos.SkillPrerequisiteRepo
	SkillGraphHead    repos.SkillGraphHeadRepo
	SkillAuditLog     repos.SkillAuditLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Skill:             repos.NewSkillRepo(db, log),
		SkillPrerequisite: repos.NewSkillPrerequisiteRepo(db, log),
		SkillGraphHead:    repos.NewSkillGraphHeadRepo(db, log),
		SkillAuditLog:     repos.NewSkillAuditLogRepo(db, log),
	}
}
