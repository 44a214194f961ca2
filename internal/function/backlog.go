package function

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

const customerType = "TMHNA_Customer"

var closedBacklogStatus = map[string]bool{"Complete": true, "Shipped": true, "Cancelled": true}

// Aging bucket labels, by days in backlog.
var agingBuckets = []struct {
	label string
	upTo  float64
}{
	{"<30", 30},
	{"30-60", 60},
	{"60-90", 90},
	{">90", math.Inf(1)},
}

// calculateBacklogHealth aggregates the open backlog, optionally for one
// plant or brand. An order is at risk when it is flagged so, or when its
// estimated completion falls after the requested delivery date.
func calculateBacklogHealth(r storage.Reader, in Inputs) (map[string]any, error) {
	plant := in.Str("plant_id")
	brand := in.Str("brand")

	orders := all(r, backlogType, func(o storage.Instance) bool {
		return !closedBacklogStatus[o.Str("order_status")] &&
			(plant == "" || o.Str("manufacturing_plant_id") == plant) &&
			(brand == "" || o.Str("brand") == brand)
	})

	aging := make(map[string]float64, len(agingBuckets))
	for _, b := range agingBuckets {
		aging[b.label] = 0
	}

	var (
		value  float64
		atRisk []map[string]any
	)
	for _, o := range orders {
		value += o.Number("total_order_value_usd")
		age := o.Number("days_in_backlog")
		for _, b := range agingBuckets {
			if age < b.upTo {
				aging[b.label]++
				break
			}
		}

		overdue := daysLate(o)
		status := o.Str("on_time_status")
		if overdue == 0 && status == "On Track" {
			continue
		}
		customer := o.Str("customer_id")
		if c, err := r.Get(customerType, customer); err == nil {
			customer = c.Str("customer_name")
		}
		atRisk = append(atRisk, map[string]any{
			"order_id":     o.ID,
			"customer":     customer,
			"days_overdue": overdue,
			"value":        o.Number("total_order_value_usd"),
		})
	}
	slices.SortStableFunc(atRisk, func(a, b map[string]any) int {
		return cmp.Or(
			cmp.Compare(b["days_overdue"].(float64), a["days_overdue"].(float64)),
			cmp.Compare(a["order_id"].(string), b["order_id"].(string)),
		)
	})

	onTime := 100.0
	if len(orders) > 0 {
		onTime = round(float64(len(orders)-len(atRisk))/float64(len(orders))*100, 1)
	}
	riskList := make([]any, len(atRisk))
	for i, o := range atRisk {
		riskList[i] = o
	}

	return map[string]any{
		"total_orders":     float64(len(orders)),
		"total_value":      round(value, 2),
		"on_time_forecast": onTime,
		"at_risk_orders":   riskList,
		"aging_breakdown":  numberMap(aging),
	}, nil
}

// daysLate is how far an order is expected to miss its requested date: the
// gap between estimated completion and the request, or the days already past
// the request for orders flagged Late.
func daysLate(o storage.Instance) float64 {
	var late float64
	requested, errReq := time.Parse(dsl.DateLayout, o.Str("requested_delivery_date"))
	estimated, errEst := time.Parse(dsl.DateLayout, o.Str("estimated_completion_date"))
	if errReq == nil && errEst == nil && estimated.After(requested) {
		late = estimated.Sub(requested).Hours() / 24
	}
	if o.Str("on_time_status") == "Late" {
		late = math.Max(late, -o.Number("days_until_requested_date"))
	}
	return math.Max(0, math.Round(late))
}
