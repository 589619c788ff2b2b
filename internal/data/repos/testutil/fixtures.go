package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/normalization"
)

// ComponentFixture describes a component row; empty fields get plausible defaults.
type ComponentFixture struct {
	ComponentID  string
	UnitID       string
	CompanyName  string
	Location     string
	Description  string
	Technology   string
	AuctionName  string
	DeliveryYear string
	Status       string
	Extras       map[string]interface{}
}

func (f ComponentFixture) Record() *types.ComponentRecord {
	if f.DeliveryYear == "" {
		f.DeliveryYear = "2024"
	}
	if f.AuctionName == "" {
		f.AuctionName = "T-4 " + f.DeliveryYear
	}
	if f.ComponentID == "" {
		f.ComponentID = f.UnitID + "-" + normalization.Key(f.Location) + "-" + f.DeliveryYear
	}
	return &types.ComponentRecord{
		ComponentID:  f.ComponentID,
		UnitID:       f.UnitID,
		UnitKey:      normalization.Key(f.UnitID),
		Location:     f.Location,
		OutwardCode:  normalization.OutwardCode(f.Location),
		Description:  f.Description,
		Technology:   f.Technology,
		CompanyName:  f.CompanyName,
		AuctionName:  f.AuctionName,
		DeliveryYear: f.DeliveryYear,
		Status:       f.Status,
		Extras:       f.Extras,
	}
}

func SeedComponents(tb testing.TB, ctx context.Context, tx *gorm.DB, fixtures ...ComponentFixture) []*types.ComponentRecord {
	tb.Helper()
	out := make([]*types.ComponentRecord, 0, len(fixtures))
	for _, f := range fixtures {
		rec := f.Record()
		if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
			tb.Fatalf("seed component %s: %v", rec.ComponentID, err)
		}
		out = append(out, rec)
	}
	return out
}

func SeedUnit(tb testing.TB, ctx context.Context, tx *gorm.DB, unitID, organization string) *types.UnitRegistryEntry {
	tb.Helper()
	u := &types.UnitRegistryEntry{
		UnitID:           unitID,
		UnitKey:          normalization.Key(unitID),
		OrganizationName: organization,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed unit %s: %v", unitID, err)
	}
	return u
}
