package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate types reported by the retail prices API
const (
	TypeConsumption = "Consumption"
	TypeReservation = "Reservation"
	TypeDevTest     = "DevTestConsumption"
)

// Term labels used by reservations and savings plans
const (
	TermOneYear    = "1 Year"
	TermThreeYears = "3 Years"
)

// Record is one retail price row as stored in azure_rates
type Record struct {
	CurrencyCode         *string             `json:"currency_code"`
	TierMinimumUnits     decimal.NullDecimal `json:"tier_minimum_units"`
	ReservationTerm      *string             `json:"reservation_term"`
	RetailPrice          decimal.NullDecimal `json:"retail_price"`
	UnitPrice            decimal.NullDecimal `json:"unit_price"`
	ARMRegionName        *string             `json:"arm_region_name"`
	Location             *string             `json:"location"`
	EffectiveStartDate   *time.Time          `json:"effective_start_date"`
	MeterID              *string             `json:"meter_id"`
	MeterName            *string             `json:"meter_name"`
	ProductID            *string             `json:"product_id"`
	SkuID                *string             `json:"sku_id"`
	ProductName          *string             `json:"product_name"`
	SkuName              *string             `json:"sku_name"`
	ServiceName          *string             `json:"service_name"`
	ServiceID            *string             `json:"service_id"`
	ServiceFamily        *string             `json:"service_family"`
	UnitOfMeasure        *string             `json:"unit_of_measure"`
	Type                 *string             `json:"type"`
	IsPrimaryMeterRegion *bool               `json:"is_primary_meter_region"`
	ARMSkuName           *string             `json:"arm_sku_name"`

	// The first savings plan entry of an item lands in the 3-year slot and
	// the second in the 1-year slot.
	SavingsPlan3Y SavingsPlanSlot `json:"savings_plan_3y"`
	SavingsPlan1Y SavingsPlanSlot `json:"savings_plan_1y"`

	RunTimestamp time.Time `json:"run_timestamp"`
}

// SavingsPlanSlot is one positional savings plan entry
type SavingsPlanSlot struct {
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	RetailPrice decimal.NullDecimal `json:"retail_price"`
	Term        *string             `json:"term"`
}

// Columns lists the azure_rates columns in Args order
var Columns = []string{
	"currency_code",
	"tier_minimum_units",
	"reservation_term",
	"retail_price",
	"unit_price",
	"arm_region_name",
	"location",
	"effective_start_date",
	"meter_id",
	"meter_name",
	"product_id",
	"sku_id",
	"product_name",
	"sku_name",
	"service_name",
	"service_id",
	"service_family",
	"unit_of_measure",
	"type",
	"is_primary_meter_region",
	"arm_sku_name",
	"savings_plan_unit_price_3y",
	"savings_plan_retail_price_3y",
	"savings_plan_term_3y",
	"savings_plan_unit_price_1y",
	"savings_plan_retail_price_1y",
	"savings_plan_term_1y",
	"run_timestamp",
}

// Args returns the record's values in Columns order
func (r *Record) Args() []any {
	return []any{
		str(r.CurrencyCode),
		r.TierMinimumUnits,
		str(r.ReservationTerm),
		r.RetailPrice,
		r.UnitPrice,
		str(r.ARMRegionName),
		str(r.Location),
		timestamp(r.EffectiveStartDate),
		str(r.MeterID),
		str(r.MeterName),
		str(r.ProductID),
		str(r.SkuID),
		str(r.ProductName),
		str(r.SkuName),
		str(r.ServiceName),
		str(r.ServiceID),
		str(r.ServiceFamily),
		str(r.UnitOfMeasure),
		str(r.Type),
		boolean(r.IsPrimaryMeterRegion),
		str(r.ARMSkuName),
		r.SavingsPlan3Y.UnitPrice,
		r.SavingsPlan3Y.RetailPrice,
		str(r.SavingsPlan3Y.Term),
		r.SavingsPlan1Y.UnitPrice,
		r.SavingsPlan1Y.RetailPrice,
		str(r.SavingsPlan1Y.Term),
		r.RunTimestamp.UTC(),
	}
}

// Value returns the string behind p, or "" when p is nil
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func str(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolean(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func timestamp(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
