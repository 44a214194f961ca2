package function_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/function"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/ontology"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := ontology.NewStore(storage.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return store
}

func evaluate(t *testing.T, ev *function.Evaluator, name string, inputs map[string]any) map[string]any {
	t.Helper()
	out, err := ev.Evaluate(context.Background(), name, inputs)
	require.NoError(t, err)
	return out
}

func objects(t *testing.T, v any) []map[string]any {
	t.Helper()
	items, ok := v.([]any)
	require.True(t, ok, "expected an array, got %T", v)
	out := make([]map[string]any, len(items))
	for i, item := range items {
		out[i], ok = item.(map[string]any)
		require.True(t, ok, "expected an object, got %T", item)
	}
	return out
}

func object(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected an object, got %T", v)
	return m
}

func pluck(items []map[string]any, field string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item[field]
	}
	return out
}

func TestBuiltinsCoverBundledFunctions(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))
	assert.NoError(t, ev.Check())
}

func TestCheckReportsMissingImplementation(t *testing.T) {
	reg, err := registry.FromSchema(&dsl.OntologySchema{
		Version: "1.0",
		ObjectTypes: []dsl.ObjectType{{
			Name:       "Widget",
			PrimaryKey: "widget_id",
			Properties: []dsl.Property{{Name: "widget_id", DataType: "string", Required: true}},
		}},
		Functions: []dsl.FunctionType{{
			Name:    "countWidgets",
			Outputs: []dsl.Property{{Name: "count", DataType: "number", Required: true}},
		}},
	})
	require.NoError(t, err)
	store := storage.New(reg)

	ev := function.NewEvaluator(store)
	require.ErrorContains(t, ev.Check(), "countWidgets")
	_, err = ev.Evaluate(context.Background(), "countWidgets", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	ev = function.NewEvaluator(store, function.WithFunc("countWidgets", func(r storage.Reader, _ function.Inputs) (map[string]any, error) {
		return map[string]any{"count": 0}, nil
	}))
	require.NoError(t, ev.Check())
	out := evaluate(t, ev, "countWidgets", nil)
	assert.Equal(t, 0.0, out["count"])
}

func TestUnknownFunction(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))
	_, err := ev.Evaluate(context.Background(), "predictWeather", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestInputsAreValidated(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))

	_, err := ev.Evaluate(context.Background(), "assessSupplierRisk", map[string]any{"supplier_id": "SUP-001"})
	var pve *apperr.ParameterValidationError
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("lookback_months"))

	_, err = ev.Evaluate(context.Background(), "identifyAtRiskParts", map[string]any{"threshold_days_supply": "thirty"})
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("threshold_days_supply"))

	_, err = ev.Evaluate(context.Background(), "runScenarioSimulation", map[string]any{
		"scenario_type":       "Meteor Strike",
		"affected_entity_ids": []any{"PLT-001"},
		"duration_days":       3,
		"severity":            "Full",
	})
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("scenario_type"))
}

func TestOutputsAreValidated(t *testing.T) {
	ev := function.NewEvaluator(newStore(t), function.WithFunc("assessSupplierRisk",
		func(storage.Reader, function.Inputs) (map[string]any, error) {
			return map[string]any{"risk_score": "high", "trend": "Sideways"}, nil
		}))

	_, err := ev.Evaluate(context.Background(), "assessSupplierRisk", map[string]any{
		"supplier_id": "SUP-001", "lookback_months": 12,
	})
	require.ErrorIs(t, err, apperr.ErrExecution)
	var sve *apperr.SchemaViolationError
	require.ErrorAs(t, err, &sve)
	assert.False(t, apperr.IsCallerError(err))
}

func TestEvaluateHonorsCancellation(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ev.Evaluate(ctx, "calculateBacklogHealth", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluationIsDeterministic(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))
	for name, inputs := range map[string]map[string]any{
		"calculateBacklogHealth": nil,
		"identifyAtRiskParts":    {"threshold_days_supply": 30},
		"assessSupplierRisk":     {"supplier_id": "SUP-003", "lookback_months": 6},
		"runScenarioSimulation": {
			"scenario_type":       "Supplier Disruption",
			"affected_entity_ids": []any{"SUP-001", "SUP-003"},
			"duration_days":       10,
			"severity":            "Partial",
		},
	} {
		t.Run(name, func(t *testing.T) {
			first := evaluate(t, ev, name, inputs)
			for range 3 {
				assert.Equal(t, first, evaluate(t, ev, name, inputs))
			}
		})
	}
}

func TestCalculateBacklogHealth(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))

	out := evaluate(t, ev, "calculateBacklogHealth", map[string]any{"plant_id": nil})
	assert.Equal(t, 4.0, out["total_orders"])
	assert.Equal(t, 608000.0, out["total_value"])
	assert.Equal(t, 50.0, out["on_time_forecast"])

	atRisk := objects(t, out["at_risk_orders"])
	assert.Equal(t, []any{"BO-003", "BO-002"}, pluck(atRisk, "order_id"))
	assert.Equal(t, []any{10.0, 7.0}, pluck(atRisk, "days_overdue"))
	assert.Equal(t, []any{"Northeast Grocers", "Acme Logistics"}, pluck(atRisk, "customer"))

	assert.Equal(t, map[string]any{"<30": 1.0, "30-60": 1.0, "60-90": 1.0, ">90": 1.0}, out["aging_breakdown"])

	out = evaluate(t, ev, "calculateBacklogHealth", map[string]any{"plant_id": "PLT-001"})
	assert.Equal(t, 2.0, out["total_orders"])
	assert.Equal(t, 448000.0, out["total_value"])
	assert.Equal(t, 50.0, out["on_time_forecast"])

	out = evaluate(t, ev, "calculateBacklogHealth", map[string]any{"brand": "Linde"})
	assert.Equal(t, 0.0, out["total_orders"])
	assert.Equal(t, 100.0, out["on_time_forecast"])
	assert.Empty(t, out["at_risk_orders"])
}

func TestIdentifyAtRiskParts(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))

	out := evaluate(t, ev, "identifyAtRiskParts", map[string]any{"threshold_days_supply": 30})
	parts := objects(t, out["at_risk_parts"])
	assert.Equal(t, []any{"SKU-003", "SKU-001", "SKU-001"}, pluck(parts, "sku_id"))
	assert.Equal(t, []any{"DC-003", "DC-002", "DC-001"}, pluck(parts, "distribution_center_id"))
	assert.Equal(t, []any{8.0, 15.0, 20.0}, pluck(parts, "days_supply"))
	assert.Equal(t, []any{40.0, 100.0, 200.0}, pluck(parts, "recommended_order_qty"))
	assert.Equal(t, 172400.0, out["total_value_at_risk"])

	orders := objects(t, out["recommended_orders"])
	require.Len(t, orders, 3)
	assert.Equal(t, "SUP-003", orders[0]["supplier_id"])
	assert.Equal(t, 248000.0, orders[0]["estimated_cost"])

	out = evaluate(t, ev, "identifyAtRiskParts", map[string]any{"threshold_days_supply": 30, "include_on_order": true})
	parts = objects(t, out["at_risk_parts"])
	assert.Equal(t, []any{"DC-002", "DC-003"}, pluck(parts, "distribution_center_id"))
	assert.Equal(t, []any{15.0, 28.0}, pluck(parts, "days_supply"))
	assert.Equal(t, 25900.0, out["total_value_at_risk"])

	_, err := ev.Evaluate(context.Background(), "identifyAtRiskParts", map[string]any{"threshold_days_supply": 0})
	var pve *apperr.ParameterValidationError
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("threshold_days_supply"))
}

func TestIdentifyAtRiskPartsTracksStockChanges(t *testing.T) {
	store := newStore(t)
	ev := function.NewEvaluator(store)

	_, err := store.UpdateFields("TMHNA_PartsInventory", "INV-004", map[string]any{"quantity_available": 60})
	require.NoError(t, err)

	out := evaluate(t, ev, "identifyAtRiskParts", map[string]any{"threshold_days_supply": 30})
	assert.Equal(t, []any{"DC-002", "DC-001"}, pluck(objects(t, out["at_risk_parts"]), "distribution_center_id"))
	assert.Equal(t, 36000.0, out["total_value_at_risk"])
}

func TestCalculateServiceCapacity(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))
	week := map[string]any{"start": "2026-03-02", "end": "2026-03-06"}

	out := evaluate(t, ev, "calculateServiceCapacity", map[string]any{
		"region": "Midwest", "date_range": week, "service_type": "Repair",
	})
	assert.Equal(t, 80.0, out["total_capacity_hours"])
	assert.Equal(t, 7.5, out["utilized_hours"])
	assert.Equal(t, 72.5, out["available_hours"])
	techs := objects(t, out["technician_breakdown"])
	assert.Equal(t, []any{"TECH-001", "TECH-002"}, pluck(techs, "tech_id"))
	assert.Equal(t, []any{32.5, 40.0}, pluck(techs, "available_hours"))

	out = evaluate(t, ev, "calculateServiceCapacity", map[string]any{
		"region": "Midwest", "date_range": week, "service_type": "Emergency",
	})
	assert.Equal(t, 40.0, out["total_capacity_hours"])
	assert.Equal(t, 7.5, out["utilized_hours"])
	assert.Equal(t, 32.5, out["available_hours"])

	// A weekend has no shifts.
	out = evaluate(t, ev, "calculateServiceCapacity", map[string]any{
		"region":       "Midwest",
		"date_range":   map[string]any{"start": "2026-03-07", "end": "2026-03-08"},
		"service_type": "Repair",
	})
	assert.Equal(t, 0.0, out["total_capacity_hours"])

	_, err := ev.Evaluate(context.Background(), "calculateServiceCapacity", map[string]any{
		"region":       "Midwest",
		"date_range":   map[string]any{"start": "2026-03-06", "end": "2026-03-02"},
		"service_type": "Repair",
	})
	var pve *apperr.ParameterValidationError
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("date_range"))
}

func TestCalculateOptimalDistribution(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))
	supply := map[string]any{"PLT-001": 2500, "PLT-002": 1800}
	demand := map[string]any{"Midwest": 3000, "Northeast": 2500}

	out := evaluate(t, ev, "calculateOptimalDistribution", map[string]any{
		"production_forecast": supply,
		"dc_capacity":         map[string]any{"DC-001": 10000, "DC-002": 8000},
		"demand_by_region":    demand,
	})
	assert.Equal(t, map[string]any{
		"PLT-001": map[string]any{"DC-001": 2500.0},
		"PLT-002": map[string]any{"DC-002": 1800.0},
	}, out["allocation_matrix"])
	assert.Equal(t, 0.0, out["transportation_cost"])
	assert.Equal(t, map[string]any{"Midwest": 83.33, "Northeast": 72.0}, out["coverage_metrics"])

	out = evaluate(t, ev, "calculateOptimalDistribution", map[string]any{
		"production_forecast": supply,
		"dc_capacity":         map[string]any{"DC-001": 1000, "DC-002": 8000},
		"demand_by_region":    demand,
	})
	assert.Equal(t, map[string]any{"DC-001": 1000.0, "DC-002": 1500.0}, object(t, out["allocation_matrix"])["PLT-001"])
	assert.Greater(t, out["transportation_cost"], 0.0)

	_, err := ev.Evaluate(context.Background(), "calculateOptimalDistribution", map[string]any{
		"production_forecast": map[string]any{"PLT-404": 10},
		"dc_capacity":         map[string]any{"DC-001": 10},
		"demand_by_region":    demand,
	})
	var pve *apperr.ParameterValidationError
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("production_forecast"))
}

func TestCalculateOptimalDistributionFollowsDemand(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))
	capacity := map[string]any{"DC-001": 10000, "DC-002": 8000}

	out := evaluate(t, ev, "calculateOptimalDistribution", map[string]any{
		"production_forecast": map[string]any{"PLT-001": 2500},
		"dc_capacity":         capacity,
		"demand_by_region":    map[string]any{"Northeast": 2500, "Midwest": 0},
	})
	assert.Equal(t, map[string]any{"PLT-001": map[string]any{"DC-002": 2500.0}}, out["allocation_matrix"],
		"the co-located DC serves a region with no demand")
	assert.Equal(t, map[string]any{"Midwest": 100.0, "Northeast": 100.0}, out["coverage_metrics"])
	assert.Greater(t, out["transportation_cost"], 0.0)

	out = evaluate(t, ev, "calculateOptimalDistribution", map[string]any{
		"production_forecast": map[string]any{"PLT-001": 2500},
		"dc_capacity":         capacity,
		"demand_by_region":    map[string]any{"Northeast": 1000, "Midwest": 0},
	})
	assert.Equal(t, map[string]any{"PLT-001": map[string]any{"DC-001": 1500.0, "DC-002": 1000.0}}, out["allocation_matrix"],
		"surplus spills to the cheapest lane once demand is met")
	assert.Equal(t, map[string]any{"Midwest": 100.0, "Northeast": 100.0}, out["coverage_metrics"])
}

func TestAssessSupplierRisk(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))

	out := evaluate(t, ev, "assessSupplierRisk", map[string]any{"supplier_id": "SUP-001", "lookback_months": 12})
	assert.InDelta(t, 4.36, out["risk_score"], 0.01)
	assert.Equal(t, map[string]any{
		"delivery": 2.81, "quality": 3.16, "financial": 6.5, "geographic": 5.5,
	}, out["risk_factors"])
	assert.Equal(t, "Improving", out["trend"])
	assert.Equal(t, []any{
		"Request updated financial statements and monitor credit rating",
		"Qualify an alternate source to remove single-source exposure",
	}, out["recommendations"])

	out = evaluate(t, ev, "assessSupplierRisk", map[string]any{"supplier_id": "SUP-002", "lookback_months": 12})
	assert.InDelta(t, 1.85, out["risk_score"], 0.01)
	assert.Equal(t, "Stable", out["trend"])
	assert.Equal(t, []any{"Maintain standard monitoring cadence"}, out["recommendations"])

	out = evaluate(t, ev, "assessSupplierRisk", map[string]any{"supplier_id": "SUP-003", "lookback_months": 12})
	assert.InDelta(t, 6.1, out["risk_score"], 0.01)
	assert.Equal(t, "Declining", out["trend"])

	_, err := ev.Evaluate(context.Background(), "assessSupplierRisk", map[string]any{"supplier_id": "SUP-404", "lookback_months": 12})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAssessSupplierRiskIsMonotone(t *testing.T) {
	store := newStore(t)
	ev := function.NewEvaluator(store)
	inputs := map[string]any{"supplier_id": "SUP-002", "lookback_months": 12}

	prev := evaluate(t, ev, "assessSupplierRisk", inputs)["risk_score"].(float64)
	for _, otd := range []float64{90, 75, 50, 20} {
		_, err := store.UpdateFields("TMHNA_Supplier", "SUP-002", map[string]any{"on_time_delivery_percent": otd})
		require.NoError(t, err)
		score := evaluate(t, ev, "assessSupplierRisk", inputs)["risk_score"].(float64)
		assert.Greater(t, score, prev, "on-time delivery %v%%", otd)
		prev = score
	}
}

func salesHistory(start float64) []any {
	var rows []any
	for m := 1; m <= 6; m++ {
		rows = append(rows, map[string]any{
			"date":         fmt.Sprintf("2025-%02d-01", m),
			"region":       "Northeast",
			"product_line": "Electric",
			"units":        start + float64(m-1)*10,
		})
	}
	return rows
}

func TestForecastDemand(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))

	out := evaluate(t, ev, "forecastDemand", map[string]any{
		"historical_sales":      salesHistory(100),
		"forecast_horizon_days": 30,
	})
	assert.Equal(t, map[string]any{"Northeast": map[string]any{"Electric": 160.0}}, out["demand_forecast"])
	interval := object(t, out["confidence_interval"])
	assert.Equal(t, map[string]any{"Northeast": 160.0}, interval["lower"])
	assert.Equal(t, map[string]any{"Northeast": 160.0}, interval["upper"])
	assert.Equal(t, []any{"Northeast Electric trend +10.0 units/month"}, out["key_drivers"])

	out = evaluate(t, ev, "forecastDemand", map[string]any{
		"historical_sales":      salesHistory(100),
		"seasonality_factors":   map[string]any{"7": 1.1},
		"forecast_horizon_days": 30,
	})
	assert.Equal(t, 176.0, object(t, object(t, out["demand_forecast"])["Northeast"])["Electric"])

	out = evaluate(t, ev, "forecastDemand", map[string]any{
		"historical_sales":      salesHistory(100),
		"economic_indicators":   map[string]any{"gdp_growth": 2},
		"forecast_horizon_days": 30,
	})
	assert.Equal(t, 162.0, object(t, object(t, out["demand_forecast"])["Northeast"])["Electric"])
	assert.Contains(t, out["key_drivers"], "GDP growth 2.0%")

	// Two months ahead continues the trend.
	out = evaluate(t, ev, "forecastDemand", map[string]any{
		"historical_sales":      salesHistory(100),
		"forecast_horizon_days": 60,
	})
	assert.Equal(t, 330.0, object(t, object(t, out["demand_forecast"])["Northeast"])["Electric"])
}

func TestForecastDemandRejectsBadInputs(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))
	var pve *apperr.ParameterValidationError

	_, err := ev.Evaluate(context.Background(), "forecastDemand", map[string]any{
		"historical_sales":      salesHistory(100),
		"forecast_horizon_days": 45,
	})
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("forecast_horizon_days"))

	_, err = ev.Evaluate(context.Background(), "forecastDemand", map[string]any{
		"historical_sales":      salesHistory(100),
		"seasonality_factors":   map[string]any{"13": 1.2},
		"forecast_horizon_days": 30,
	})
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("seasonality_factors"))

	_, err = ev.Evaluate(context.Background(), "forecastDemand", map[string]any{
		"historical_sales":      []any{map[string]any{"date": "June", "region": "West", "units": 3}},
		"forecast_horizon_days": 30,
	})
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("historical_sales"))
}

func TestRunScenarioSimulation(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))

	out := evaluate(t, ev, "runScenarioSimulation", map[string]any{
		"scenario_type":       "Plant Shutdown",
		"affected_entity_ids": []any{"PLT-001"},
		"duration_days":       14,
		"severity":            "Full",
	})
	impact := object(t, out["impact_summary"])
	assert.Equal(t, 1167.0, impact["production_impact"])
	assert.Equal(t, 1.0, impact["customer_impact"])
	timeline := objects(t, out["timeline"])
	require.Len(t, timeline, 14)
	assert.Equal(t, 83.3, timeline[0]["production_shortfall"])
	assert.Equal(t, 1166.7, timeline[13]["backlog_growth"])
	recovery := object(t, out["recovery_estimate"])
	assert.Greater(t, recovery["days_to_recovery"], 0.0)

	out = evaluate(t, ev, "runScenarioSimulation", map[string]any{
		"scenario_type":       "Supplier Disruption",
		"affected_entity_ids": []any{"SUP-002"},
		"duration_days":       7,
		"severity":            "Full",
	})
	assert.Equal(t, 350.0, object(t, out["impact_summary"])["production_impact"])
	assert.Equal(t, 50.0, objects(t, out["timeline"])[0]["production_shortfall"])
	assert.Contains(t, pluck(objects(t, out["mitigation_options"]), "action"), "Shift orders to alternate suppliers")

	partial := evaluate(t, ev, "runScenarioSimulation", map[string]any{
		"scenario_type":       "Supplier Disruption",
		"affected_entity_ids": []any{"SUP-002"},
		"duration_days":       7,
		"severity":            "Partial",
	})
	assert.Equal(t, 175.0, object(t, partial["impact_summary"])["production_impact"])

	_, err := ev.Evaluate(context.Background(), "runScenarioSimulation", map[string]any{
		"scenario_type":       "Plant Shutdown",
		"affected_entity_ids": []any{"PLT-404"},
		"duration_days":       14,
		"severity":            "Full",
	})
	var pve *apperr.ParameterValidationError
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("affected_entity_ids"))
}

func TestRunScenarioSimulationRegion(t *testing.T) {
	ev := function.NewEvaluator(newStore(t))

	out := evaluate(t, ev, "runScenarioSimulation", map[string]any{
		"scenario_type":       "Transportation Delay",
		"affected_entity_ids": []any{"Midwest"},
		"duration_days":       5,
		"severity":            "Partial",
	})
	assert.Greater(t, object(t, out["impact_summary"])["production_impact"], 0.0)
	assert.Contains(t, pluck(objects(t, out["mitigation_options"]), "action"), "Expedite freight on critical lanes")
}
