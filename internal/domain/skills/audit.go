package skills

import (
	"time"

	"gorm.io/datatypes"
)

type AuditOperation string

const (
	AuditCreate     AuditOperation = "create"
	AuditUpdate     AuditOperation = "update"
	AuditDelete     AuditOperation = "delete"
	AuditRestore    AuditOperation = "restore"
	AuditConnect    AuditOperation = "connect"
	AuditDisconnect AuditOperation = "disconnect"
	AuditSync       AuditOperation = "sync"
)

// AuditLog is one committed graph mutation. Changes holds {field: {before, after}}
// with sensitive keys already redacted.
type AuditLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID  string         `gorm:"column:course_id;type:varchar(64);not null;index" json:"course_id"`
	Operation AuditOperation `gorm:"column:operation;type:varchar(20);not null" json:"operation"`
	ModelType string         `gorm:"column:model_type;type:varchar(64);not null" json:"model_type"`
	ModelID   string         `gorm:"column:model_id;type:varchar(140);not null;index" json:"model_id"`
	ActorID   string         `gorm:"column:actor_id;type:varchar(64)" json:"actor_id"`
	RequestID string         `gorm:"column:request_id;type:varchar(64)" json:"request_id,omitempty"`
	Changes   datatypes.JSON `gorm:"column:changes" json:"changes"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "skill_audit_logs" }
