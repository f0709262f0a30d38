package skills

// Models lists every table owned by the graph engine, in migration order.
func Models() []any {
	return []any{
		&Skill{},
		&SkillPrerequisite{},
		&SkillGraphHead{},
		&AuditLog{},
	}
}
