package domain

import "github.com/yungbote/skillgraph-backend/internal/domain/skills"

type (
	Skill             = skills.Skill
	SkillPrerequisite = skills.SkillPrerequisite
	SkillGraphHead    = skills.SkillGraphHead
	SkillAuditLog     = skills.AuditLog
	SkillCategory     = skills.Category
	SkillDifficulty   = skills.Difficulty
	AuditOperation    = skills.AuditOperation
)
