package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/skillgraph-backend/internal/domain/skills"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(skills.Models()...); err != nil {
		return fmt.Errorf("automigrate skill graph tables: %w", err)
	}
	return nil
}
