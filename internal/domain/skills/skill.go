package skills

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Category string

const (
	CategoryTheory   Category = "theory"
	CategoryPractice Category = "practice"
	CategoryReview   Category = "review"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTheory, CategoryPractice, CategoryReview:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

const (
	DefaultXPReward = 100

	MaxIDLength = 64
)

// Skill is a node of a course's prerequisite graph. IDs are globally unique and
// may be minted by the editing client, so they are stored as opaque strings.
type Skill struct {
	ID                  string         `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	CourseID            string         `gorm:"column:course_id;type:varchar(64);not null;index:idx_skill_course" json:"course_id"`
	Name                string         `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description         *string        `gorm:"column:description;type:text" json:"description"`
	Category            Category       `gorm:"column:category;type:varchar(20);not null;default:theory" json:"category"`
	Content             datatypes.JSON `gorm:"column:content" json:"content,omitempty"`
	Difficulty          Difficulty     `gorm:"column:difficulty;type:varchar(20);not null;default:beginner" json:"difficulty"`
	XPReward            int            `gorm:"column:xp_reward;not null;default:100" json:"xp_reward"`
	RemedialMaterialURL *string        `gorm:"column:remedial_material_url;type:varchar(500)" json:"remedial_material_url"`
	PositionX           int            `gorm:"column:position_x;not null;default:0" json:"position_x"`
	PositionY           int            `gorm:"column:position_y;not null;default:0" json:"position_y"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Skill) TableName() string { return "skills" }

// BeforeSave writes an absent payload as the JSON literal null, so the column never holds SQL NULL.
func (s *Skill) BeforeSave(tx *gorm.DB) error {
	if len(s.Content) == 0 {
		s.Content = datatypes.JSON("null")
	}
	return nil
}

// SkillPrerequisite is a directed edge: PrerequisiteSkillID must be mastered before SkillID.
type SkillPrerequisite struct {
	SkillID             string    `gorm:"column:skill_id;type:varchar(64);primaryKey" json:"skill_id"`
	PrerequisiteSkillID string    `gorm:"column:prerequisite_skill_id;type:varchar(64);primaryKey;index" json:"prerequisite_skill_id"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
}

func (SkillPrerequisite) TableName() string { return "skill_prerequisites" }

// SkillGraphHead is the per-course row writers lock before touching a graph.
type SkillGraphHead struct {
	CourseID  string    `gorm:"column:course_id;type:varchar(64);primaryKey" json:"course_id"`
	Version   int64     `gorm:"column:version;not null;default:0" json:"version"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SkillGraphHead) TableName() string { return "skill_graph_heads" }
