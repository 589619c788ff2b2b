package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/capacity-checker/internal/data/repos"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

type Repos struct {
	Components  repos.ComponentRepo
	Units       repos.UnitRepo
	Checkpoints repos.CheckpointRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Components:  repos.NewComponentRepo(db, log),
		Units:       repos.NewUnitRepo(db, log),
		Checkpoints: repos.NewCheckpointRepo(db, log),
	}
}
