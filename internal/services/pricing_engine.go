package services

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/pkg/metrics"
)

// Hours used to turn an up-front reservation price into an hourly rate
var (
	hoursPerYear       = decimal.NewFromInt(8760)
	hoursPerThreeYears = decimal.NewFromInt(3 * 8760)
)

// PricingEngine derives vm_pricing from the VM inventory and the rate table
type PricingEngine struct {
	inventory pricing.InventoryReader
	rates     pricing.RateReader
	repo      pricing.Repository
	logger    *logger.Logger
}

// NewPricingEngine creates a new pricing engine
func NewPricingEngine(inventory pricing.InventoryReader, rateReader pricing.RateReader, repo pricing.Repository, log *logger.Logger) *PricingEngine {
	return &PricingEngine{
		inventory: inventory,
		rates:     rateReader,
		repo:      repo,
		logger:    log.WithComponent("pricing_engine"),
	}
}

// Derive recomputes every pricing row and replaces vm_pricing with the result
func (e *PricingEngine) Derive(ctx context.Context) (int, error) {
	vms, err := e.inventory.VirtualMachines(ctx)
	if err != nil {
		return 0, apperrors.JoinCompute("failed to load virtual machine inventory", err)
	}
	recs, err := e.rates.MatchingRates(ctx)
	if err != nil {
		return 0, apperrors.JoinCompute("failed to load rates", err)
	}

	rows := e.Compute(vms, recs)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := e.repo.Replace(ctx, rows); err != nil {
		return 0, apperrors.JoinCompute("failed to store vm pricing", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"virtual_machines": len(vms),
		"rates":            len(recs),
		"rows":             len(rows),
	}).Info("VM pricing derived")
	return len(rows), nil
}

type priceKey struct {
	name     string
	location string
}

// Compute produces one row per distinct inventory key. Each price column is
// the maximum of the rates satisfying its predicate, or NULL without a match.
func (e *PricingEngine) Compute(vms []pricing.VirtualMachine, recs []rates.Record) []pricing.Row {
	candidates := make(map[priceKey][][]decimal.Decimal)
	for i := range recs {
		rec := &recs[i]
		key := priceKey{name: rates.Value(rec.ARMSkuName), location: rates.Value(rec.ARMRegionName)}
		for _, m := range classify(rec) {
			cols, ok := candidates[key]
			if !ok {
				cols = make([][]decimal.Decimal, len(pricing.PriceColumns))
				candidates[key] = cols
			}
			cols[m.column] = append(cols[m.column], m.price)
		}
	}

	seen := make(map[priceKey]bool, len(vms))
	rows := make([]pricing.Row, 0, len(vms))
	for _, vm := range vms {
		key := priceKey{name: vm.Name, location: vm.Location}
		if seen[key] {
			continue
		}
		seen[key] = true

		row := pricing.Row{
			Name:           vm.Name,
			Location:       vm.Location,
			InstanceMemory: vm.MemoryGB,
			VCPUs:          vm.VCPUs,
			GPUs:           vm.GPUs,
		}
		for col, prices := range candidates[key] {
			if len(prices) == 0 {
				continue
			}
			if len(prices) > 1 {
				e.logger.WithFields(map[string]interface{}{
					"name":       vm.Name,
					"location":   vm.Location,
					"column":     pricing.PriceColumns[col].Name,
					"candidates": len(prices),
				}).Warn("Multiple rates match one price column, taking the maximum")
				metrics.RecordAmbiguousMatch(pricing.PriceColumns[col].Name)
			}
			*row.Price(col) = decimal.NewNullDecimal(decimal.Max(prices[0], prices[1:]...))
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Location != rows[j].Location {
			return rows[i].Location < rows[j].Location
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

type match struct {
	column int
	price  decimal.Decimal
}

// classify returns the price columns a rate record feeds, with the price it
// contributes to each
func classify(rec *rates.Record) []match {
	product := rates.Value(rec.ProductName)
	var os pricing.OS
	switch {
	case strings.HasSuffix(product, "Series"), strings.HasSuffix(product, "Basic"):
		os = pricing.OSLinux
	case strings.HasSuffix(product, "Windows"):
		os = pricing.OSWindows
	default:
		return nil
	}

	var out []match
	add := func(plan pricing.Plan, price decimal.NullDecimal) {
		if !price.Valid {
			return
		}
		out = append(out, match{column: columnIndex(os, plan), price: price.Decimal})
	}

	switch rates.Value(rec.Type) {
	case rates.TypeConsumption:
		// a rate without a sku name is neither on-demand nor spot
		if rec.SkuName != nil {
			skuName := *rec.SkuName
			tokens := tokenCount(skuName)
			spot := strings.HasSuffix(skuName, "Spot")

			if tokens == 1 || (tokens == 2 && !spot) {
				add(pricing.PlanOnDemand, rec.UnitPrice)
			}
			if spot || tokens == 3 {
				add(pricing.PlanSpot, rec.UnitPrice)
			}
		}
		if rates.Value(rec.SavingsPlan1Y.Term) == rates.TermOneYear {
			add(pricing.PlanSavings1Y, rec.SavingsPlan1Y.UnitPrice)
		}
		if rates.Value(rec.SavingsPlan3Y.Term) == rates.TermThreeYears {
			add(pricing.PlanSavings3Y, rec.SavingsPlan3Y.UnitPrice)
		}
	case rates.TypeReservation:
		if !rec.UnitPrice.Valid {
			return nil
		}
		switch rates.Value(rec.ReservationTerm) {
		case rates.TermOneYear:
			add(pricing.PlanReservation1Y, decimal.NewNullDecimal(rec.UnitPrice.Decimal.Div(hoursPerYear)))
		case rates.TermThreeYears:
			add(pricing.PlanReservation3Y, decimal.NewNullDecimal(rec.UnitPrice.Decimal.Div(hoursPerThreeYears)))
		}
	}
	return out
}

var whitespace = regexp.MustCompile(`\s+`)

// tokenCount splits on whitespace runs keeping empty edge tokens, so "" is
// one token and " D2 v3" is three
func tokenCount(s string) int {
	return len(whitespace.Split(s, -1))
}

func columnIndex(os pricing.OS, plan pricing.Plan) int {
	for i, c := range pricing.PriceColumns {
		if c.OS == os && c.Plan == plan {
			return i
		}
	}
	panic("services: no price column for " + string(os) + "/" + string(plan))
}
