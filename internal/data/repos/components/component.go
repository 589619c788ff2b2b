package components

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

const (
	SortDeliveryYearDesc = "delivery_year_desc"
	SortDeliveryYearAsc  = "delivery_year_asc"
	SortLocation         = "location"
)

// organizationExpr resolves a component's owner: its own company name, else the unit registry's.
const organizationExpr = "COALESCE(NULLIF(TRIM(c.company_name), ''), u.organization_name)"

type ComponentRepo interface {
	UpsertMany(dbc dbctx.Context, recs []*types.ComponentRecord) (int, error)
	ListByUnitKey(dbc dbctx.Context, unitKey string) ([]*types.ComponentRecord, error)
	Search(dbc dbctx.Context, crit SearchCriteria) ([]*types.ComponentRecord, int64, error)

	CompanyNames(dbc dbctx.Context, offset, limit int) ([]string, error)
	CompanyRows(dbc dbctx.Context, names []string) ([]CompanyRow, error)

	DistinctLocations(dbc dbctx.Context, minCount, offset, limit int) ([]LocationCount, error)
	OutwardCodesByLocationPrefix(dbc dbctx.Context, prefix string, limit int) ([]string, error)
	OutwardCodesByLocationSubstring(dbc dbctx.Context, term string, limit int) ([]string, error)

	ListMissingDerated(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*types.ComponentRecord, error)
	UpdateDerated(dbc dbctx.Context, id uuid.UUID, value *float64) error
}

// SearchCriteria is the consolidated broad-search predicate. Terms, OutwardCodes and BoostUnitKeys
// are OR-ed; filters are AND-ed on top. ExactUnitKey replaces the OR group entirely.
type SearchCriteria struct {
	Terms         []string
	OutwardCodes  []string
	BoostUnitKeys []string
	ExactUnitKey  string

	Technology   string
	DeliveryYear string
	AuctionName  string
	Status       string

	Sort   string
	Offset int
	Limit  int
}

type CompanyRow struct {
	Organization string
	ComponentID  uuid.UUID
	UnitID       string
	UnitKey      string
	DeliveryYear string
	AuctionName  string
}

type LocationCount struct {
	Location string
	Count    int
}

type componentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComponentRepo(db *gorm.DB, baseLog *logger.Logger) ComponentRepo {
	return &componentRepo{
		db:  db,
		log: baseLog.With("repo", "ComponentRepo"),
	}
}

func (r *componentRepo) UpsertMany(dbc dbctx.Context, recs []*types.ComponentRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	transaction := dbc.Conn(r.db)
	err := transaction.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "component_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"unit_id", "unit_key", "location", "outward_code", "description", "technology",
			"company_name", "auction_name", "delivery_year", "status", "type",
			"derated_capacity_mw", "extras", "updated_at",
		}),
	}).Create(&recs).Error
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (r *componentRepo) ListByUnitKey(dbc dbctx.Context, unitKey string) ([]*types.ComponentRecord, error) {
	out := []*types.ComponentRecord{}
	if unitKey == "" {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("unit_key = ?", unitKey).
		Order("delivery_year DESC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *componentRepo) Search(dbc dbctx.Context, crit SearchCriteria) ([]*types.ComponentRecord, int64, error) {
	out := []*types.ComponentRecord{}
	where, args, ok := buildSearchPredicate(crit)
	if !ok {
		return out, 0, nil
	}

	var total int64
	if err := dbc.Conn(r.db).
		Model(&types.ComponentRecord{}).
		Where(where, args...).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return out, 0, nil
	}

	q := dbc.Conn(r.db).Where(where, args...)
	switch crit.Sort {
	case SortDeliveryYearAsc:
		q = q.Order("delivery_year ASC")
	case SortLocation:
		q = q.Order("location ASC")
	default:
		q = q.Order("delivery_year DESC")
	}
	q = q.Order("id ASC")
	if crit.Limit > 0 {
		q = q.Limit(crit.Limit)
	}
	if crit.Offset > 0 {
		q = q.Offset(crit.Offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildSearchPredicate(crit SearchCriteria) (string, []interface{}, bool) {
	var (
		anyOf []string
		args  []interface{}
	)
	if crit.ExactUnitKey != "" {
		anyOf = append(anyOf, "unit_key = ?")
		args = append(args, crit.ExactUnitKey)
	} else {
		for _, term := range crit.Terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			like := "%" + escapeLike(term) + "%"
			anyOf = append(anyOf, "(LOWER(company_name) LIKE ? ESCAPE '\\' OR LOWER(location) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\' OR LOWER(unit_id) LIKE ? ESCAPE '\\')")
			args = append(args, like, like, like, like)
		}
		if len(crit.OutwardCodes) > 0 {
			anyOf = append(anyOf, "outward_code IN ?")
			args = append(args, crit.OutwardCodes)
		}
		if len(crit.BoostUnitKeys) > 0 {
			anyOf = append(anyOf, "unit_key IN ?")
			args = append(args, crit.BoostUnitKeys)
		}
	}
	if len(anyOf) == 0 {
		return "", nil, false
	}
	where := "(" + strings.Join(anyOf, " OR ") + ")"

	filters := []struct{ col, val string }{
		{"technology", crit.Technology},
		{"delivery_year", crit.DeliveryYear},
		{"auction_name", crit.AuctionName},
		{"status", crit.Status},
	}
	for _, f := range filters {
		v := strings.TrimSpace(f.val)
		if v == "" {
			continue
		}
		where += " AND LOWER(" + f.col + ") = ?"
		args = append(args, strings.ToLower(v))
	}
	return where, args, true
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *componentRepo) CompanyNames(dbc dbctx.Context, offset, limit int) ([]string, error) {
	var rows []struct{ Organization string }
	q := dbc.Conn(r.db).
		Table("components AS c").
		Select("DISTINCT " + organizationExpr + " AS organization").
		Joins("LEFT JOIN unit_registry_entries AS u ON u.unit_key = c.unit_key").
		Where(organizationExpr + " IS NOT NULL").
		Order("organization ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Organization)
	}
	return out, nil
}

func (r *componentRepo) CompanyRows(dbc dbctx.Context, names []string) ([]CompanyRow, error) {
	out := []CompanyRow{}
	if len(names) == 0 {
		return out, nil
	}
	err := dbc.Conn(r.db).
		Table("components AS c").
		Select(organizationExpr+" AS organization, c.id AS component_id, c.unit_id AS unit_id, c.unit_key AS unit_key, c.delivery_year AS delivery_year, c.auction_name AS auction_name").
		Joins("LEFT JOIN unit_registry_entries AS u ON u.unit_key = c.unit_key").
		Where(organizationExpr+" IN ?", names).
		Order("organization ASC").
		Order("c.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *componentRepo) DistinctLocations(dbc dbctx.Context, minCount, offset, limit int) ([]LocationCount, error) {
	if minCount < 1 {
		minCount = 1
	}
	out := []LocationCount{}
	q := dbc.Conn(r.db).
		Model(&types.ComponentRecord{}).
		Select("location, COUNT(*) AS count").
		Where("location IS NOT NULL AND location <> ''").
		Group("location").
		Having("COUNT(*) >= ?", minCount).
		Order("location ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *componentRepo) OutwardCodesByLocationPrefix(dbc dbctx.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []string{}, nil
	}
	return r.outwardCodes(dbc, escapeLike(prefix)+"%", limit)
}

func (r *componentRepo) OutwardCodesByLocationSubstring(dbc dbctx.Context, term string, limit int) ([]string, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []string{}, nil
	}
	return r.outwardCodes(dbc, "%"+escapeLike(term)+"%", limit)
}

func (r *componentRepo) outwardCodes(dbc dbctx.Context, pattern string, limit int) ([]string, error) {
	var rows []struct{ OutwardCode string }
	q := dbc.Conn(r.db).
		Model(&types.ComponentRecord{}).
		Select("DISTINCT outward_code AS outward_code").
		Where("LOWER(location) LIKE ? ESCAPE '\\'", pattern).
		Where("outward_code IS NOT NULL AND outward_code <> ''").
		Order("outward_code ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, strings.ToUpper(row.OutwardCode))
	}
	return out, nil
}

func (r *componentRepo) ListMissingDerated(dbc dbctx.Context, afterID uuid.UUID, limit int) ([]*types.ComponentRecord, error) {
	out := []*types.ComponentRecord{}
	q := dbc.Conn(r.db).
		Where("derated_capacity_mw IS NULL").
		Where("extras IS NOT NULL")
	if afterID != uuid.Nil {
		q = q.Where("id > ?", afterID)
	}
	q = q.Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *componentRepo) UpdateDerated(dbc dbctx.Context, id uuid.UUID, value *float64) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.Conn(r.db).
		Model(&types.ComponentRecord{}).
		Where("id = ?", id).
		Update("derated_capacity_mw", value).Error
}
