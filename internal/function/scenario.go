package function

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

const (
	dealerType  = "TMHNA_Dealer"
	backlogType = "TMHNA_BacklogOrder"

	// defaultUnitPrice values a unit when no backlog order prices the plant.
	defaultUnitPrice     = 28000
	overtimeCostPerUnit  = 350
	drawdownCostPerUnit  = 120
	expediteCostPerUnit  = 250
	recoveryCostPerDay   = 5000
	alternateSourcingFee = 0.08
)

var scenarioFactor = map[string]float64{
	"Plant Shutdown":       1.0,
	"Supplier Disruption":  0.6,
	"Demand Surge":         0.25,
	"Transportation Delay": 0.3,
	"Quality Issue":        0.4,
}

var severityFactor = map[string]float64{"Full": 1.0, "Partial": 0.5}

// propagation lists the relationships a disruption travels along, in the
// direction it travels.
var propagation = []struct {
	from, link, to string
}{
	{supplierType, "supplies_to", plantType},
	{supplierType, "supplies", partsType},
	{dcType, "supplies_parts_to", dealerType},
	{dcType, "stocks", partsType},
}

type impacted struct {
	inst  storage.Instance
	depth int
}

// runScenarioSimulation walks the supply network breadth first from the
// affected entities and turns the reached plants, DCs and dealers into a
// daily unit shortfall. Entities further from the disruption feel half the
// effect of the previous hop.
func runScenarioSimulation(r storage.Reader, in Inputs) (map[string]any, error) {
	const fn = "runScenarioSimulation"
	scenario := in.Str("scenario_type")
	severity := in.Str("severity")
	days := in.Int("duration_days")
	if days < 1 {
		return nil, invalid(fn, "duration_days", "must be at least 1")
	}
	affected := in.Strings("affected_entity_ids")
	if len(affected) == 0 {
		return nil, invalid(fn, "affected_entity_ids", "at least one entity is required")
	}

	reached := make(map[storage.Key]impacted)
	var queue []storage.Key
	visit := func(inst storage.Instance, depth int) {
		if _, seen := reached[inst.Key()]; seen {
			return
		}
		reached[inst.Key()] = impacted{inst: inst, depth: depth}
		queue = append(queue, inst.Key())
	}
	for _, id := range affected {
		roots := resolveEntity(r, id)
		if len(roots) == 0 {
			return nil, invalid(fn, "affected_entity_ids", "unknown entity '%s'", id)
		}
		for _, inst := range roots {
			visit(inst, 0)
		}
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		depth := reached[k].depth
		for _, p := range propagation {
			if p.from != k.Type {
				continue
			}
			ids, err := r.Neighbors(p.link, k.ID, storage.Outgoing)
			if err != nil {
				continue
			}
			for _, id := range ids {
				if inst, err := r.Get(p.to, id); err == nil {
					visit(inst, depth+1)
				}
			}
		}
	}

	keys := slices.SortedFunc(maps.Keys(reached), func(a, b storage.Key) int {
		return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.ID, b.ID))
	})

	factor := scenarioFactor[scenario] * severityFactor[severity]
	var (
		daily, spare, finishedGoods float64
		impactedPlants              = make(map[string]bool)
		impactedDealers             []string
		hasAlternates               bool
	)
	for _, k := range keys {
		hit := reached[k]
		attenuation := math.Pow(0.5, float64(max(hit.depth-1, 0)))
		inst := hit.inst
		switch k.Type {
		case plantType:
			perDay := inst.Number("production_capacity_units_per_month") / 30
			daily += perDay * factor * attenuation
			spare += perDay * (1 - clamp(inst.Number("current_utilization_percent"), 0, 1))
			finishedGoods += inst.Number("finished_goods_units")
			impactedPlants[k.ID] = true
		case dcType:
			daily += inst.Number("shipments_per_month") / 30 * factor * attenuation
		case dealerType:
			daily += inst.Number("annual_unit_sales") / 365 * factor * attenuation
			impactedDealers = append(impactedDealers, k.ID)
		case supplierType:
			hasAlternates = hasAlternates || len(inst.Strings("alternate_suppliers")) > 0
		}
	}

	timeline := make([]any, 0, days)
	var total float64
	for day := 1; day <= days; day++ {
		total += daily
		timeline = append(timeline, map[string]any{
			"day":                  float64(day),
			"production_shortfall": round(daily, 1),
			"backlog_growth":       round(total, 1),
		})
	}

	// Unaffected plants absorb the backlog with their idle capacity.
	var otherSpare float64
	for _, p := range all(r, plantType, nil) {
		if impactedPlants[p.ID] || p.Str("status") != "Operational" {
			continue
		}
		otherSpare += p.Number("production_capacity_units_per_month") / 30 *
			(1 - clamp(p.Number("current_utilization_percent"), 0, 1))
	}
	catchUp := spare + otherSpare
	if catchUp <= 0 {
		catchUp = math.Max(daily*0.2, 1)
	}
	daysToRecovery := 0.0
	if total > 0 {
		daysToRecovery = math.Ceil(total / catchUp)
	}

	price, customers := backlogExposure(r, impactedPlants, impactedDealers)

	var options []map[string]any
	addOption := func(action string, units, costPerUnit float64) {
		if units <= 0 {
			return
		}
		options = append(options, map[string]any{
			"action":  action,
			"cost":    round(units*costPerUnit, 2),
			"benefit": round(units*price, 2),
		})
	}
	if otherSpare > 0 {
		addOption("Authorize overtime production at unaffected plants", math.Min(total, otherSpare*float64(days)), overtimeCostPerUnit)
	}
	if finishedGoods > 0 {
		addOption("Draw down finished goods inventory", math.Min(total, finishedGoods), drawdownCostPerUnit)
	}
	if hasAlternates {
		units := total * 0.6
		addOption("Shift orders to alternate suppliers", units, price*alternateSourcingFee)
	}
	if scenario == "Transportation Delay" {
		addOption("Expedite freight on critical lanes", total*0.5, expediteCostPerUnit)
	}
	slices.SortStableFunc(options, func(a, b map[string]any) int {
		na := a["benefit"].(float64) - a["cost"].(float64)
		nb := b["benefit"].(float64) - b["cost"].(float64)
		return cmp.Or(cmp.Compare(nb, na), cmp.Compare(a["action"].(string), b["action"].(string)))
	})
	mitigations := make([]any, len(options))
	for i, o := range options {
		mitigations[i] = o
	}

	return map[string]any{
		"impact_summary": map[string]any{
			"production_impact": round(total, 0),
			"revenue_impact":    round(total*price, 2),
			"customer_impact":   float64(customers),
		},
		"timeline":           timeline,
		"mitigation_options": mitigations,
		"recovery_estimate": map[string]any{
			"days_to_recovery": daysToRecovery,
			"recovery_cost":    round(total*expediteCostPerUnit+daysToRecovery*recoveryCostPerDay, 2),
		},
	}, nil
}

// resolveEntity finds the plant, supplier or DC with the given id, or the
// dealers of a region.
func resolveEntity(r storage.Reader, id string) []storage.Instance {
	for _, t := range []string{plantType, supplierType, dcType, dealerType} {
		if inst, err := r.Get(t, id); err == nil {
			return []storage.Instance{inst}
		}
	}
	return all(r, dealerType, storage.MatchFields(map[string]any{"region": id}))
}

// backlogExposure returns the mean unit price and the number of distinct
// customers of the open backlog at the given plants and dealers.
func backlogExposure(r storage.Reader, plants map[string]bool, dealers []string) (float64, int) {
	var sum, n float64
	customers := make(map[string]bool)
	for _, o := range all(r, backlogType, func(i storage.Instance) bool {
		return !closedBacklogStatus[i.Str("order_status")] &&
			(plants[i.Str("manufacturing_plant_id")] || slices.Contains(dealers, i.Str("dealer_id")))
	}) {
		sum += o.Number("unit_price_usd")
		n++
		customers[o.Str("customer_id")] = true
	}
	if n == 0 {
		return defaultUnitPrice, 0
	}
	return sum / n, len(customers)
}
