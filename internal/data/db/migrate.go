package db

import (
	types "github.com/yungbote/capacity-checker/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Registry
		&types.ComponentRecord{},
		&types.UnitRegistryEntry{},

		// Batch job progress
		&types.RebuildCheckpoint{},
	)
}

func (s *Service) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}
