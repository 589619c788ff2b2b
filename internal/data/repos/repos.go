package repos

import (
	"github.com/yungbote/capacity-checker/internal/data/repos/checkpoints"
	"github.com/yungbote/capacity-checker/internal/data/repos/components"
	"github.com/yungbote/capacity-checker/internal/data/repos/units"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
	"gorm.io/gorm"
)

type ComponentRepo = components.ComponentRepo
type UnitRepo = units.UnitRepo
type CheckpointRepo = checkpoints.CheckpointRepo

func NewComponentRepo(db *gorm.DB, baseLog *logger.Logger) ComponentRepo {
	return components.NewComponentRepo(db, baseLog)
}
func NewUnitRepo(db *gorm.DB, baseLog *logger.Logger) UnitRepo {
	return units.NewUnitRepo(db, baseLog)
}
func NewCheckpointRepo(db *gorm.DB, baseLog *logger.Logger) CheckpointRepo {
	return checkpoints.NewCheckpointRepo(db, baseLog)
}
