package capacity

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ComponentRecord is one registered capacity component as stored relationally.
// Well-known source fields are columns; anything else the source sends lands in Extras.
type ComponentRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ComponentID string    `gorm:"column:component_id;not null;uniqueIndex" json:"component_id"`
	UnitID      string    `gorm:"column:unit_id;not null" json:"unit_id"`
	UnitKey     string    `gorm:"column:unit_key;not null;index" json:"unit_key"`

	Location     string `gorm:"column:location" json:"location"`
	OutwardCode  string `gorm:"column:outward_code;index" json:"outward_code,omitempty"`
	Description  string `gorm:"column:description" json:"description"`
	Technology   string `gorm:"column:technology;index" json:"technology"`
	CompanyName  string `gorm:"column:company_name;index" json:"company_name"`
	AuctionName  string `gorm:"column:auction_name;index" json:"auction_name"`
	DeliveryYear string `gorm:"column:delivery_year;index" json:"delivery_year"`
	Status       string `gorm:"column:status" json:"status"`
	Type         string `gorm:"column:type" json:"type"`

	DeratedCapacityMW *float64 `gorm:"column:derated_capacity_mw" json:"derated_capacity_mw,omitempty"`

	Extras datatypes.JSONMap `gorm:"column:extras" json:"extras,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ComponentRecord) TableName() string { return "components" }

func (c *ComponentRecord) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ExtraString returns a source field that has no dedicated column.
func (c ComponentRecord) ExtraString(field string) string {
	if c.Extras == nil {
		return ""
	}
	switch v := c.Extras[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// DeratedCapacity reports the parsed de-rated capacity when known.
func (c ComponentRecord) DeratedCapacity() (float64, bool) {
	if c.DeratedCapacityMW == nil {
		return 0, false
	}
	return *c.DeratedCapacityMW, true
}

// UnitRegistryEntry maps a unit identifier to its owning organization.
type UnitRegistryEntry struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UnitKey          string            `gorm:"column:unit_key;not null;uniqueIndex" json:"unit_key"`
	UnitID           string            `gorm:"column:unit_id;not null" json:"unit_id"`
	OrganizationName string            `gorm:"column:organization_name;index" json:"organization_name"`
	AuctionName      string            `gorm:"column:auction_name" json:"auction_name,omitempty"`
	DeliveryYear     string            `gorm:"column:delivery_year" json:"delivery_year,omitempty"`
	Raw              datatypes.JSONMap `gorm:"column:raw" json:"raw,omitempty"`
	CreatedAt        time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null" json:"updated_at"`
}

func (UnitRegistryEntry) TableName() string { return "unit_registry_entries" }

func (u *UnitRegistryEntry) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
