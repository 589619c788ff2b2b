package units

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

type UnitRepo interface {
	Upsert(dbc dbctx.Context, entries []*types.UnitRegistryEntry) (int, error)
	GetByUnitKey(dbc dbctx.Context, unitKey string) (*types.UnitRegistryEntry, error)
	List(dbc dbctx.Context, offset, limit int) ([]*types.UnitRegistryEntry, error)
	Count(dbc dbctx.Context) (int64, error)
}

type unitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUnitRepo(db *gorm.DB, baseLog *logger.Logger) UnitRepo {
	return &unitRepo{
		db:  db,
		log: baseLog.With("repo", "UnitRepo"),
	}
}

func (r *unitRepo) Upsert(dbc dbctx.Context, entries []*types.UnitRegistryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	err := dbc.Conn(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unit_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"unit_id", "organization_name", "auction_name", "delivery_year", "raw", "updated_at"}),
	}).Create(&entries).Error
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (r *unitRepo) GetByUnitKey(dbc dbctx.Context, unitKey string) (*types.UnitRegistryEntry, error) {
	if unitKey == "" {
		return nil, nil
	}
	var out []*types.UnitRegistryEntry
	if err := dbc.Conn(r.db).
		Where("unit_key = ?", unitKey).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *unitRepo) List(dbc dbctx.Context, offset, limit int) ([]*types.UnitRegistryEntry, error) {
	out := []*types.UnitRegistryEntry{}
	q := dbc.Conn(r.db).Order("unit_key ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *unitRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.Conn(r.db).Model(&types.UnitRegistryEntry{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
