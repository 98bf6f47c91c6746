package retailprices

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
)

// Page is one response of the retail prices API
type Page struct {
	BillingCurrency    string `json:"BillingCurrency"`
	CustomerEntityID   string `json:"CustomerEntityId"`
	CustomerEntityType string `json:"CustomerEntityType"`
	Items              []Item `json:"Items"`
	NextPageLink       string `json:"NextPageLink"`
	Count              int    `json:"Count"`
}

// Item is one price entry. Optional fields are pointers so that absent and
// null values are stored as NULL.
type Item struct {
	CurrencyCode         *string             `json:"currencyCode"`
	TierMinimumUnits     decimal.NullDecimal `json:"tierMinimumUnits"`
	ReservationTerm      *string             `json:"reservationTerm"`
	RetailPrice          decimal.NullDecimal `json:"retailPrice"`
	UnitPrice            decimal.NullDecimal `json:"unitPrice"`
	ArmRegionName        *string             `json:"armRegionName"`
	Location             *string             `json:"location"`
	EffectiveStartDate   *string             `json:"effectiveStartDate"`
	MeterID              *string             `json:"meterId"`
	MeterName            *string             `json:"meterName"`
	ProductID            *string             `json:"productId"`
	SkuID                *string             `json:"skuId"`
	ProductName          *string             `json:"productName"`
	SkuName              *string             `json:"skuName"`
	ServiceName          *string             `json:"serviceName"`
	ServiceID            *string             `json:"serviceId"`
	ServiceFamily        *string             `json:"serviceFamily"`
	UnitOfMeasure        *string             `json:"unitOfMeasure"`
	Type                 *string             `json:"type"`
	IsPrimaryMeterRegion *bool               `json:"isPrimaryMeterRegion"`
	ArmSkuName           *string             `json:"armSkuName"`
	SavingsPlan          []SavingsPlan       `json:"savingsPlan"`
}

// SavingsPlan is one savings plan price attached to a consumption item
type SavingsPlan struct {
	UnitPrice   decimal.NullDecimal `json:"unitPrice"`
	RetailPrice decimal.NullDecimal `json:"retailPrice"`
	Term        *string             `json:"term"`
}

// ToRecord converts an item to the stored rate shape. Savings plans are
// positional: the first entry fills the 3-year slot, the second the 1-year
// slot, whatever their terms say.
func (it Item) ToRecord(runAt time.Time) rates.Record {
	rec := rates.Record{
		CurrencyCode:         it.CurrencyCode,
		TierMinimumUnits:     it.TierMinimumUnits,
		ReservationTerm:      it.ReservationTerm,
		RetailPrice:          it.RetailPrice,
		UnitPrice:            it.UnitPrice,
		ARMRegionName:        it.ArmRegionName,
		Location:             it.Location,
		EffectiveStartDate:   parseTime(it.EffectiveStartDate),
		MeterID:              it.MeterID,
		MeterName:            it.MeterName,
		ProductID:            it.ProductID,
		SkuID:                it.SkuID,
		ProductName:          it.ProductName,
		SkuName:              it.SkuName,
		ServiceName:          it.ServiceName,
		ServiceID:            it.ServiceID,
		ServiceFamily:        it.ServiceFamily,
		UnitOfMeasure:        it.UnitOfMeasure,
		Type:                 it.Type,
		IsPrimaryMeterRegion: it.IsPrimaryMeterRegion,
		ARMSkuName:           it.ArmSkuName,
		RunTimestamp:         runAt.UTC(),
	}
	if len(it.SavingsPlan) > 0 {
		rec.SavingsPlan3Y = slot(it.SavingsPlan[0])
	}
	if len(it.SavingsPlan) > 1 {
		rec.SavingsPlan1Y = slot(it.SavingsPlan[1])
	}
	return rec
}

func slot(sp SavingsPlan) rates.SavingsPlanSlot {
	return rates.SavingsPlanSlot{UnitPrice: sp.UnitPrice, RetailPrice: sp.RetailPrice, Term: sp.Term}
}

func parseTime(s *string) *time.Time {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
