package function

import (
	"cmp"
	"math"
	"slices"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

const partsType = "TMHNA_PartsInventory"

// EOQ assumptions when a part has no planned economic order quantity.
const (
	orderingCost    = 50.0
	holdingCostRate = 0.25
)

var stockedPartStatus = map[string]bool{"Active": true, "New": true}

type atRiskPart struct {
	inst       storage.Instance
	daysSupply float64
	orderQty   float64
}

// identifyAtRiskParts flags stocked parts whose days of supply fall below
// the threshold and sizes a replenishment order for each: the economic order
// quantity, or more when that would not restore threshold plus safety stock.
func identifyAtRiskParts(r storage.Reader, in Inputs) (map[string]any, error) {
	const fn = "identifyAtRiskParts"
	threshold := in.Float("threshold_days_supply")
	if threshold <= 0 {
		return nil, invalid(fn, "threshold_days_supply", "must be greater than 0")
	}
	includeOnOrder := in.Bool("include_on_order")

	var (
		risky       []atRiskPart
		valueAtRisk float64
	)
	for _, p := range all(r, partsType, func(i storage.Instance) bool {
		return stockedPartStatus[i.Str("status")]
	}) {
		dailyDemand := p.Number("annual_demand_units") / 365
		if dailyDemand <= 0 {
			continue
		}
		supply := p.Number("quantity_available")
		if includeOnOrder {
			supply += p.Number("quantity_on_order")
		}
		daysSupply := supply / dailyDemand
		if daysSupply >= threshold {
			continue
		}

		eoq := p.Number("economic_order_quantity")
		if eoq <= 0 {
			if holding := p.Number("unit_cost_usd") * holdingCostRate; holding > 0 {
				eoq = math.Sqrt(2 * p.Number("annual_demand_units") * orderingCost / holding)
			}
		}
		need := threshold*dailyDemand + p.Number("safety_stock") - supply
		qty := math.Ceil(math.Max(eoq, need))

		valueAtRisk += (threshold*dailyDemand - supply) * p.Number("unit_cost_usd")
		risky = append(risky, atRiskPart{inst: p, daysSupply: daysSupply, orderQty: qty})
	}
	slices.SortStableFunc(risky, func(a, b atRiskPart) int {
		return cmp.Or(cmp.Compare(a.daysSupply, b.daysSupply), cmp.Compare(a.inst.ID, b.inst.ID))
	})

	parts := make([]any, 0, len(risky))
	orders := make([]any, 0, len(risky))
	for _, p := range risky {
		parts = append(parts, map[string]any{
			"sku_id":                 p.inst.Str("sku_id"),
			"part_description":       p.inst.Str("part_description"),
			"distribution_center_id": p.inst.Str("distribution_center_id"),
			"days_supply":            round(p.daysSupply, 1),
			"recommended_order_qty":  p.orderQty,
		})
		orders = append(orders, map[string]any{
			"sku_id":         p.inst.Str("sku_id"),
			"supplier_id":    p.inst.Str("supplier_id"),
			"quantity":       p.orderQty,
			"estimated_cost": round(p.orderQty*p.inst.Number("unit_cost_usd"), 2),
		})
	}

	return map[string]any{
		"at_risk_parts":       parts,
		"total_value_at_risk": round(valueAtRisk, 2),
		"recommended_orders":  orders,
	}, nil
}
