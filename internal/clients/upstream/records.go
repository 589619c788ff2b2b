package upstream

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/normalization"
	errs "github.com/yungbote/capacity-checker/internal/pkg/errors"
)

// Source column titles.
const (
	FieldRecordID     = "_id"
	FieldUnitID       = "CMU ID"
	FieldLocation     = "Location and Post Code"
	FieldDescription  = "Description of CMU Components"
	FieldTechnology   = "Generating Technology Class"
	FieldAuctionName  = "Auction Name"
	FieldDeliveryYear = "Delivery Year"
	FieldStatus       = "Status"
	FieldType         = "Type"
	FieldCompanyName  = "Company Name"
	FieldApplicant    = "Name of Applicant"
	FieldParent       = "Parent Company"
	FieldDerated      = "De-Rated Capacity"
)

var componentColumns = map[string]bool{
	FieldRecordID: true, FieldUnitID: true, FieldLocation: true, FieldDescription: true,
	FieldTechnology: true, FieldAuctionName: true, FieldDeliveryYear: true, FieldStatus: true,
	FieldType: true, FieldCompanyName: true,
}

// String renders a record field as trimmed text; numbers keep their shortest form and
// "nan"/"None" placeholders read as empty.
func (r Record) String(field string) string {
	var s string
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(v)
	default:
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return ""
	}
	return s
}

// ParseComponent maps a datastore row onto a ComponentRecord. Unknown columns go to Extras.
func ParseComponent(r Record) (*types.ComponentRecord, error) {
	unitID := r.String(FieldUnitID)
	if unitID == "" {
		return nil, errs.Malformed(r.String(FieldRecordID), "missing "+FieldUnitID)
	}
	rec := &types.ComponentRecord{
		ComponentID:  r.String(FieldRecordID),
		UnitID:       unitID,
		UnitKey:      normalization.Key(unitID),
		Location:     r.String(FieldLocation),
		Description:  r.String(FieldDescription),
		Technology:   r.String(FieldTechnology),
		CompanyName:  r.String(FieldCompanyName),
		AuctionName:  r.String(FieldAuctionName),
		DeliveryYear: r.String(FieldDeliveryYear),
		Status:       r.String(FieldStatus),
		Type:         r.String(FieldType),
	}
	rec.OutwardCode = normalization.OutwardCode(rec.Location)
	if rec.ComponentID == "" {
		rec.ComponentID = syntheticID(rec)
	}
	extras := map[string]interface{}{}
	for k, v := range r {
		if componentColumns[k] || v == nil {
			continue
		}
		extras[k] = v
	}
	if len(extras) > 0 {
		rec.Extras = extras
	}
	rec.DeratedCapacityMW = ParseCapacity(r[FieldDerated])
	return rec, nil
}

// ParseComponents maps rows to records, dropping malformed rows and repeated component ids.
// The first row for an id wins. The second result counts the malformed rows.
func ParseComponents(rows []Record) ([]*types.ComponentRecord, int) {
	out := make([]*types.ComponentRecord, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	bad := 0
	for _, row := range rows {
		rec, err := ParseComponent(row)
		if err != nil {
			bad++
			continue
		}
		if seen[rec.ComponentID] {
			continue
		}
		seen[rec.ComponentID] = true
		out = append(out, rec)
	}
	return out, bad
}

// ParseUnit maps a unit register row; the owner is the applicant, else the parent company.
func ParseUnit(r Record) (*types.UnitRegistryEntry, error) {
	unitID := r.String(FieldUnitID)
	if unitID == "" {
		return nil, errs.Malformed(r.String(FieldRecordID), "missing "+FieldUnitID)
	}
	org := r.String(FieldApplicant)
	if org == "" {
		org = r.String(FieldParent)
	}
	raw := map[string]interface{}{}
	for k, v := range r {
		raw[k] = v
	}
	return &types.UnitRegistryEntry{
		UnitID:           unitID,
		UnitKey:          normalization.Key(unitID),
		OrganizationName: org,
		AuctionName:      r.String(FieldAuctionName),
		DeliveryYear:     r.String(FieldDeliveryYear),
		Raw:              raw,
	}, nil
}

// ParseCapacity reads a capacity figure in MW from a number or text like "12.5" or "1,200 MW".
func ParseCapacity(v interface{}) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		s = strings.TrimSuffix(s, "mw")
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" || s == "nan" || s == "none" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func syntheticID(rec *types.ComponentRecord) string {
	h := sha1.Sum([]byte(strings.Join([]string{
		rec.UnitKey, rec.Location, rec.Description, rec.DeliveryYear, rec.AuctionName,
	}, "|")))
	return "syn-" + hex.EncodeToString(h[:8])
}
