package function

import (
	"fmt"
	"math"
	"strings"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

const supplierType = "TMHNA_Supplier"

// Category weights of the composite supplier score.
const (
	weightDelivery   = 0.30
	weightQuality    = 0.25
	weightFinancial  = 0.25
	weightGeographic = 0.20
)

// assessSupplierRisk scores a supplier from 1 (low) to 10 (high risk). Every
// factor is monotone in its inputs, so a worse metric never lowers the score.
// The trend compares the fresh score with the score on record; shorter
// lookbacks need a larger move before a trend is called.
func assessSupplierRisk(r storage.Reader, in Inputs) (map[string]any, error) {
	const fn = "assessSupplierRisk"
	id := in.Str("supplier_id")
	lookback := in.Int("lookback_months")
	if lookback < 1 {
		return nil, invalid(fn, "lookback_months", "must be at least 1")
	}
	s, err := r.Get(supplierType, id)
	if err != nil {
		return nil, err
	}

	otd := clamp(s.Number("on_time_delivery_percent"), 0, 100)
	reliability := clamp(s.Number("lead_time_reliability_percent"), 0, 100)
	delivery := 1 + 9*(0.7*(100-otd)/100+0.3*(100-reliability)/100)

	qualityScore := clamp(s.Number("quality_score"), 0, 5)
	ppm := clamp(s.Number("defect_rate_ppm"), 0, 5000)
	quality := 1 + 9*(0.5*(5-qualityScore)/5+0.5*ppm/5000)

	financial := clamp(s.Number("financial_risk_score"), 1, 10)

	geographic := clamp(s.Number("geographic_risk_score"), 1, 10)
	if s.Bool("single_source_risk") {
		geographic = math.Min(10, geographic+1.5)
	}

	factors := map[string]float64{
		"delivery":   round(delivery, 2),
		"quality":    round(quality, 2),
		"financial":  round(financial, 2),
		"geographic": round(geographic, 2),
	}
	score := round(clamp(
		weightDelivery*delivery+weightQuality*quality+weightFinancial*financial+weightGeographic*geographic,
		1, 10), 2)

	trend := "Stable"
	if baseline := s.Number("overall_risk_score"); baseline > 0 {
		threshold := 0.25 + 3/float64(lookback)
		switch {
		case score < baseline-threshold:
			trend = "Improving"
		case score > baseline+threshold:
			trend = "Declining"
		}
	}

	var recs []any
	if factors["delivery"] >= 5 {
		recs = append(recs, fmt.Sprintf("Review delivery performance with %s (on-time %.0f%%)", s.Str("supplier_name"), otd))
	}
	if factors["quality"] >= 5 {
		recs = append(recs, "Increase incoming inspection and open a corrective action request")
	}
	if factors["financial"] >= 6 {
		recs = append(recs, "Request updated financial statements and monitor credit rating")
	}
	if s.Bool("single_source_risk") {
		if alts := s.Strings("alternate_suppliers"); len(alts) > 0 {
			recs = append(recs, "Shift volume toward qualified alternates: "+strings.Join(alts, ", "))
		} else {
			recs = append(recs, "Qualify an alternate source to remove single-source exposure")
		}
	}
	if s.Bool("critical_supplier") && score >= 7 {
		recs = append(recs, "Escalate to supply chain leadership and build safety stock")
	}
	if len(recs) == 0 {
		recs = append(recs, "Maintain standard monitoring cadence")
	}

	return map[string]any{
		"risk_score":      score,
		"risk_factors":    numberMap(factors),
		"trend":           trend,
		"recommendations": recs,
	}, nil
}
