package function

import (
	"time"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

const (
	technicianType   = "TMHNA_ServiceTechnician"
	serviceOrderType = "TMHNA_ServiceOrder"

	hoursPerShift = 8
)

var unavailableTechStatus = map[string]bool{"Off Duty": true, "On Leave": true}

var scheduledOrderStatus = map[string]bool{
	"Open": true, "Scheduled": true, "In Progress": true, "Pending Parts": true,
}

// Emergency work is only dispatched to senior technicians.
var emergencyLevels = map[string]bool{"Senior": true, "Master": true}

// calculateServiceCapacity sums shift hours over the working days of the
// range for every available technician of the region's dealers, then takes
// off the labor and travel hours of orders already scheduled in the range.
func calculateServiceCapacity(r storage.Reader, in Inputs) (map[string]any, error) {
	const fn = "calculateServiceCapacity"
	region := in.Str("region")
	serviceType := in.Str("service_type")

	rng := in.Object("date_range")
	startStr, _ := rng["start"].(string)
	endStr, _ := rng["end"].(string)
	start, err := time.Parse(dsl.DateLayout, startStr)
	if err != nil {
		return nil, invalid(fn, "date_range", "start '%s' is not YYYY-MM-DD", startStr)
	}
	end, err := time.Parse(dsl.DateLayout, endStr)
	if err != nil {
		return nil, invalid(fn, "date_range", "end '%s' is not YYYY-MM-DD", endStr)
	}
	if end.Before(start) {
		return nil, invalid(fn, "date_range", "end must not be before start")
	}
	days := workingDays(start, end)

	dealers := make(map[string]bool)
	for _, d := range all(r, dealerType, storage.MatchFields(map[string]any{"region": region})) {
		if d.Bool("active") {
			dealers[d.ID] = true
		}
	}

	techs := all(r, technicianType, func(t storage.Instance) bool {
		if !dealers[t.Str("dealer_id")] || unavailableTechStatus[t.Str("status")] {
			return false
		}
		return serviceType != "Emergency" || emergencyLevels[t.Str("certification_level")]
	})

	scheduled := make(map[string]float64, len(techs))
	for _, so := range all(r, serviceOrderType, func(so storage.Instance) bool {
		return scheduledOrderStatus[so.Str("status")] && so.Str("technician_id") != ""
	}) {
		at, err := time.Parse(dsl.DateTimeLayout, so.Str("scheduled_date"))
		if err != nil {
			continue
		}
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(start) || day.After(end) {
			continue
		}
		scheduled[so.Str("technician_id")] += so.Number("labor_hours_estimated") + so.Number("travel_time_hours")
	}

	var total, utilized float64
	breakdown := make([]any, 0, len(techs))
	perTech := float64(days * hoursPerShift)
	for _, t := range techs {
		used := min(scheduled[t.ID], perTech)
		total += perTech
		utilized += used
		breakdown = append(breakdown, map[string]any{
			"tech_id":         t.ID,
			"name":            t.Str("technician_name"),
			"available_hours": round(perTech-used, 1),
		})
	}

	return map[string]any{
		"total_capacity_hours": round(total, 1),
		"utilized_hours":       round(utilized, 1),
		"available_hours":      round(total-utilized, 1),
		"technician_breakdown": breakdown,
	}, nil
}

// workingDays counts Monday to Friday dates in [start, end].
func workingDays(start, end time.Time) int {
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
