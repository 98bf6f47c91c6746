package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// OS is the operating system a price applies to
type OS string

const (
	OSLinux   OS = "linux"
	OSWindows OS = "windows"
)

// Plan is a pricing model
type Plan string

const (
	PlanOnDemand      Plan = "on_demand"
	PlanSavings1Y     Plan = "savings_1y"
	PlanSavings3Y     Plan = "savings_3y"
	PlanReservation1Y Plan = "reservation_1y"
	PlanReservation3Y Plan = "reservation_3y"
	PlanSpot          Plan = "spot"
)

// PriceColumn is one of the twelve OS × plan price columns of vm_pricing
type PriceColumn struct {
	Name string `json:"name"`
	OS   OS     `json:"os"`
	Plan Plan   `json:"plan"`
}

// PriceColumns lists the price columns in table order
var PriceColumns = []PriceColumn{
	{"linux_on_demand_cost", OSLinux, PlanOnDemand},
	{"linux_savings_price_1_year", OSLinux, PlanSavings1Y},
	{"linux_savings_price_3_years", OSLinux, PlanSavings3Y},
	{"linux_reservation_1_year", OSLinux, PlanReservation1Y},
	{"linux_reservation_3_years", OSLinux, PlanReservation3Y},
	{"linux_spot_cost", OSLinux, PlanSpot},
	{"windows_on_demand_cost", OSWindows, PlanOnDemand},
	{"windows_savings_price_1_year", OSWindows, PlanSavings1Y},
	{"windows_savings_price_3_years", OSWindows, PlanSavings3Y},
	{"windows_reservation_1_year", OSWindows, PlanReservation1Y},
	{"windows_reservation_3_years", OSWindows, PlanReservation3Y},
	{"windows_spot_cost", OSWindows, PlanSpot},
}

// KeyColumns are the vm_pricing columns preceding the price columns
var KeyColumns = []string{"name", "location", "instance_memory", "vcpus", "gpus"}

// Columns returns every vm_pricing column in table order
func Columns() []string {
	cols := make([]string, 0, len(KeyColumns)+len(PriceColumns))
	cols = append(cols, KeyColumns...)
	for _, c := range PriceColumns {
		cols = append(cols, c.Name)
	}
	return cols
}

// VirtualMachine is the slice of the VM inventory the pricing join needs
type VirtualMachine struct {
	Name     string
	Location string
	MemoryGB decimal.NullDecimal
	VCPUs    *int64
	GPUs     *int64
}

// Row is one vm_pricing row keyed by (name, location)
type Row struct {
	Name           string              `json:"name"`
	Location       string              `json:"location"`
	InstanceMemory decimal.NullDecimal `json:"instance_memory"`
	VCPUs          *int64              `json:"vcpus"`
	GPUs           *int64              `json:"gpus"`

	LinuxOnDemand        decimal.NullDecimal `json:"linux_on_demand_cost"`
	LinuxSavings1Y       decimal.NullDecimal `json:"linux_savings_price_1_year"`
	LinuxSavings3Y       decimal.NullDecimal `json:"linux_savings_price_3_years"`
	LinuxReservation1Y   decimal.NullDecimal `json:"linux_reservation_1_year"`
	LinuxReservation3Y   decimal.NullDecimal `json:"linux_reservation_3_years"`
	LinuxSpot            decimal.NullDecimal `json:"linux_spot_cost"`
	WindowsOnDemand      decimal.NullDecimal `json:"windows_on_demand_cost"`
	WindowsSavings1Y     decimal.NullDecimal `json:"windows_savings_price_1_year"`
	WindowsSavings3Y     decimal.NullDecimal `json:"windows_savings_price_3_years"`
	WindowsReservation1Y decimal.NullDecimal `json:"windows_reservation_1_year"`
	WindowsReservation3Y decimal.NullDecimal `json:"windows_reservation_3_years"`
	WindowsSpot          decimal.NullDecimal `json:"windows_spot_cost"`
}

// Price returns a pointer to the price field for PriceColumns[i]
func (r *Row) Price(i int) *decimal.NullDecimal {
	switch i {
	case 0:
		return &r.LinuxOnDemand
	case 1:
		return &r.LinuxSavings1Y
	case 2:
		return &r.LinuxSavings3Y
	case 3:
		return &r.LinuxReservation1Y
	case 4:
		return &r.LinuxReservation3Y
	case 5:
		return &r.LinuxSpot
	case 6:
		return &r.WindowsOnDemand
	case 7:
		return &r.WindowsSavings1Y
	case 8:
		return &r.WindowsSavings3Y
	case 9:
		return &r.WindowsReservation1Y
	case 10:
		return &r.WindowsReservation3Y
	case 11:
		return &r.WindowsSpot
	}
	panic("pricing: price column index out of range")
}

// Args returns the row's values in Columns order
func (r *Row) Args() []any {
	args := make([]any, 0, len(KeyColumns)+len(PriceColumns))
	args = append(args, r.Name, r.Location, r.InstanceMemory, nullInt(r.VCPUs), nullInt(r.GPUs))
	for i := range PriceColumns {
		args = append(args, *r.Price(i))
	}
	return args
}

// ScanTargets returns pointers in Columns order for sql.Rows.Scan
func (r *Row) ScanTargets() []any {
	targets := []any{&r.Name, &r.Location, &r.InstanceMemory, &r.VCPUs, &r.GPUs}
	for i := range PriceColumns {
		targets = append(targets, r.Price(i))
	}
	return targets
}

// HistoryEntry is a vm_pricing row as captured by one run
type HistoryEntry struct {
	Row
	RunTimestamp time.Time `json:"run_timestamp"`
}

// Filter contains vm_pricing query options
type Filter struct {
	Name     string
	Location string
	Limit    int
	Offset   int
}

// HistoryFilter contains vm_pricing_history query options
type HistoryFilter struct {
	Name     string
	Location string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
