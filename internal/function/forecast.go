package function

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

const allProductLines = "All"

// series is the monthly sales history of one region and product line.
type series struct {
	region, line string
	months       map[string]float64 // YYYY-MM -> units
}

type driver struct {
	text   string
	weight float64
}

// forecastDemand projects each region and product line with a least-squares
// trend over monthly totals, scaled by the seasonal index of each forecast
// month and by the economic indicators. The interval is the residual spread
// widened with the horizon.
func forecastDemand(_ storage.Reader, in Inputs) (map[string]any, error) {
	const fn = "forecastDemand"
	horizon := in.Int("forecast_horizon_days")
	if horizon != 30 && horizon != 60 && horizon != 90 {
		return nil, invalid(fn, "forecast_horizon_days", "must be 30, 60 or 90")
	}
	months := horizon / 30

	seasonal := make(map[time.Month]float64, 12)
	factors := in.Numbers("seasonality_factors")
	for _, k := range sortedKeys(factors) {
		v := factors[k]
		m, err := strconv.Atoi(k)
		if err != nil || m < 1 || m > 12 {
			return nil, invalid(fn, "seasonality_factors", "key '%s' is not a month number 1-12", k)
		}
		if v <= 0 {
			return nil, invalid(fn, "seasonality_factors", "factor for month %d must be positive", m)
		}
		seasonal[time.Month(m)] = v
	}

	econ := numbers(in.Object("economic_indicators"))
	gdp, mfg := econ["gdp_growth"], econ["manufacturing_index"]
	if _, ok := econ["manufacturing_index"]; !ok {
		mfg = 50
	}
	econFactor := math.Max(0, 1+gdp/100*0.5+(mfg-50)/100*0.3)

	byKey := make(map[string]*series)
	var last time.Time
	for i, row := range in.Objects("historical_sales") {
		date, _ := row["date"].(string)
		t, err := time.Parse(dsl.DateLayout, date)
		if err != nil {
			return nil, invalid(fn, "historical_sales", "[%d]: date '%s' is not YYYY-MM-DD", i, date)
		}
		region, _ := row["region"].(string)
		if region == "" {
			return nil, invalid(fn, "historical_sales", "[%d]: region is required", i)
		}
		units, ok := dsl.ToFloat(row["units"])
		if !ok || units < 0 {
			return nil, invalid(fn, "historical_sales", "[%d]: units must be a non-negative number", i)
		}
		line, _ := row["product_line"].(string)
		if line == "" {
			line = allProductLines
		}
		key := region + "\x00" + line
		s, ok := byKey[key]
		if !ok {
			s = &series{region: region, line: line, months: make(map[string]float64)}
			byKey[key] = s
		}
		s.months[t.Format("2006-01")] += units
		if t.After(last) {
			last = t
		}
	}

	forecast := make(map[string]any)
	lower := make(map[string]float64)
	upper := make(map[string]float64)
	var drivers []driver
	var seasonalSwing float64

	for _, key := range sortedKeys(byKey) {
		s := byKey[key]
		ys := monthlyValues(s.months)
		slope, intercept := linearTrend(ys)
		n := float64(len(ys))

		var point float64
		for k := 1; k <= months; k++ {
			month := time.Date(last.Year(), last.Month()+time.Month(k), 1, 0, 0, 0, 0, time.UTC).Month()
			factor := cmp.Or(seasonal[month], 1)
			seasonalSwing = math.Max(seasonalSwing, math.Abs(factor-1))
			point += math.Max(0, intercept+slope*(n-1+float64(k))) * factor
		}
		point = round(point*econFactor, 0)

		byLine, _ := forecast[s.region].(map[string]any)
		if byLine == nil {
			byLine = make(map[string]any)
			forecast[s.region] = byLine
		}
		byLine[s.line] = point

		spread := 1.96 * residualStdDev(ys, slope, intercept) * math.Sqrt(float64(months))
		lower[s.region] += math.Max(0, point-spread)
		upper[s.region] += point + spread

		if slope != 0 {
			drivers = append(drivers, driver{
				text:   fmt.Sprintf("%s %s trend %+.1f units/month", s.region, s.line, slope),
				weight: math.Abs(slope) * float64(months),
			})
		}
	}
	for region := range lower {
		lower[region] = round(lower[region], 0)
		upper[region] = round(upper[region], 0)
	}

	if seasonalSwing > 0 {
		drivers = append(drivers, driver{text: fmt.Sprintf("Seasonality (up to %.0f%% swing)", seasonalSwing*100), weight: seasonalSwing * 100})
	}
	if gdp != 0 {
		drivers = append(drivers, driver{text: fmt.Sprintf("GDP growth %.1f%%", gdp), weight: math.Abs(gdp) * 5})
	}
	if mfg != 50 {
		drivers = append(drivers, driver{text: fmt.Sprintf("Manufacturing index %.1f", mfg), weight: math.Abs(mfg-50) * 3})
	}
	slices.SortStableFunc(drivers, func(a, b driver) int {
		return cmp.Or(cmp.Compare(b.weight, a.weight), cmp.Compare(a.text, b.text))
	})
	keyDrivers := make([]any, 0, min(len(drivers), 5))
	for _, d := range drivers[:min(len(drivers), 5)] {
		keyDrivers = append(keyDrivers, d.text)
	}

	return map[string]any{
		"demand_forecast":     forecast,
		"confidence_interval": map[string]any{"lower": numberMap(lower), "upper": numberMap(upper)},
		"key_drivers":         keyDrivers,
	}, nil
}

// monthlyValues orders a month map chronologically, filling gaps with zero.
func monthlyValues(months map[string]float64) []float64 {
	keys := sortedKeys(months)
	if len(keys) == 0 {
		return nil
	}
	first, _ := time.Parse("2006-01", keys[0])
	lastMonth, _ := time.Parse("2006-01", keys[len(keys)-1])
	var ys []float64
	for t := first; !t.After(lastMonth); t = t.AddDate(0, 1, 0) {
		ys = append(ys, months[t.Format("2006-01")])
	}
	return ys
}

// linearTrend fits y = intercept + slope*x over x = 0..n-1.
func linearTrend(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return 0, ys[0]
	}
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	slope = (n*sxy - sx*sy) / (n*sxx - sx*sx)
	intercept = (sy - slope*sx) / n
	return slope, intercept
}

func residualStdDev(ys []float64, slope, intercept float64) float64 {
	if len(ys) < 3 {
		return 0
	}
	var ss float64
	for i, y := range ys {
		d := y - (intercept + slope*float64(i))
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(ys)-2))
}
