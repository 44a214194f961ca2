package function

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

const (
	plantType = "TMHNA_Plant"
	dcType    = "TMHNA_DistributionCenter"

	// freightRatePerUnitMile is the planning rate for moving one finished
	// unit one mile by truckload.
	freightRatePerUnitMile = 0.85
	earthRadiusMiles       = 3958.8
)

// haversineMiles returns the great-circle distance between two points.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}

type lane struct {
	plant, dc string
	unitCost  float64
}

// calculateOptimalDistribution ships plant output down the cheapest plant to
// DC lanes in two passes. The first pass is bounded by the unmet demand of
// each DC's region, the second spills what is left into remaining DC
// capacity. Coverage is what the DCs of each region received over its demand.
func calculateOptimalDistribution(r storage.Reader, in Inputs) (map[string]any, error) {
	const fn = "calculateOptimalDistribution"
	supply := in.Numbers("production_forecast")
	capacity := in.Numbers("dc_capacity")
	demand := in.Numbers("demand_by_region")

	plants := make(map[string]storage.Instance, len(supply))
	for _, id := range sortedKeys(supply) {
		p, err := r.Get(plantType, id)
		if err != nil {
			return nil, invalid(fn, "production_forecast", "unknown plant '%s'", id)
		}
		if supply[id] < 0 {
			return nil, invalid(fn, "production_forecast", "forecast for '%s' must not be negative", id)
		}
		plants[id] = p
	}
	dcs := make(map[string]storage.Instance, len(capacity))
	for _, id := range sortedKeys(capacity) {
		dc, err := r.Get(dcType, id)
		if err != nil {
			return nil, invalid(fn, "dc_capacity", "unknown distribution center '%s'", id)
		}
		if capacity[id] < 0 {
			return nil, invalid(fn, "dc_capacity", "capacity of '%s' must not be negative", id)
		}
		dcs[id] = dc
	}

	var lanes []lane
	for _, pid := range sortedKeys(plants) {
		p := plants[pid]
		for _, did := range sortedKeys(dcs) {
			d := dcs[did]
			miles := haversineMiles(p.Number("latitude"), p.Number("longitude"), d.Number("latitude"), d.Number("longitude"))
			lanes = append(lanes, lane{plant: pid, dc: did, unitCost: miles * freightRatePerUnitMile})
		}
	}
	slices.SortStableFunc(lanes, func(a, b lane) int {
		return cmp.Or(cmp.Compare(a.unitCost, b.unitCost), cmp.Compare(a.plant, b.plant), cmp.Compare(a.dc, b.dc))
	})

	remainingSupply := maps.Clone(supply)
	remainingCapacity := maps.Clone(capacity)
	unmet := make(map[string]float64, len(demand))
	for region, want := range demand {
		unmet[region] = max(want, 0)
	}
	received := make(map[string]float64, len(dcs))
	allocation := make(map[string]any, len(plants))
	for pid := range plants {
		allocation[pid] = map[string]any{}
	}
	var cost float64
	ship := func(l lane, bound float64) float64 {
		qty := math.Floor(min(remainingSupply[l.plant], remainingCapacity[l.dc], bound))
		if qty <= 0 {
			return 0
		}
		remainingSupply[l.plant] -= qty
		remainingCapacity[l.dc] -= qty
		received[l.dc] += qty
		row := allocation[l.plant].(map[string]any)
		prev, _ := row[l.dc].(float64)
		row[l.dc] = prev + qty
		cost += qty * l.unitCost
		return qty
	}
	for _, l := range lanes {
		region := dcs[l.dc].Str("region")
		unmet[region] -= ship(l, unmet[region])
	}
	for _, l := range lanes {
		ship(l, math.Inf(1))
	}

	byRegion := make(map[string]float64)
	for did, dc := range dcs {
		byRegion[dc.Str("region")] += received[did]
	}
	coverage := make(map[string]float64, len(demand))
	for region, want := range demand {
		switch {
		case want <= 0:
			coverage[region] = 100
		default:
			coverage[region] = round(math.Min(100, byRegion[region]/want*100), 2)
		}
	}

	return map[string]any{
		"allocation_matrix":   allocation,
		"transportation_cost": round(cost, 2),
		"coverage_metrics":    numberMap(coverage),
	}, nil
}
