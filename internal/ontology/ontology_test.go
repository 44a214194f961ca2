package ontology_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/action"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/audit"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/ontology"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/permission"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/validation"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

var (
	inventoryManager = permission.Principal{ID: "u-inv", Name: "Dana Inventory", Role: "inventory_manager",
		Permissions: []string{"inventory_manager"}}
	dispatcher = permission.Principal{ID: "u-dispatch", Name: "Sam Dispatch", Role: "service_dispatcher",
		Permissions: []string{"service_dispatcher", "service_coordinator"}}
	warrantyAnalyst = permission.Principal{ID: "u-warranty", Name: "Wes Warranty", Role: "warranty_analyst",
		Permissions: []string{"warranty_analyst"}}
	scheduler = permission.Principal{ID: "u-sched", Name: "Olga Orders", Role: "order_manager",
		Permissions: []string{"order_manager"}}
	productionManager = permission.Principal{ID: "u-prod", Name: "Pat Production", Role: "production_manager",
		Permissions: []string{"production_scheduler", "production_manager"}}
	fleetManager = permission.Principal{ID: "u-fleet", Name: "Fran Fleet", Role: "fleet_manager",
		Permissions: []string{"fleet_manager", "alert_responder"}}
)

func responder(alertTypes ...string) permission.Principal {
	return permission.Principal{ID: "u-ops", Name: "Oli Ops", Role: "operations",
		Permissions: []string{"alert_responder"},
		Scopes:      map[string][]string{"alert_types": alertTypes}}
}

type env struct {
	store  *storage.Store
	exec   *action.Executor
	log    *audit.Memory
	seeded map[storage.Key]bool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := ontology.NewStore(storage.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	var ids atomic.Int64
	engine := validation.New(store.Registry(), store,
		validation.WithClock(func() time.Time { return now }),
		validation.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", ids.Add(1)) }))
	log := audit.NewMemory()
	seeded := make(map[storage.Key]bool)
	for _, inst := range store.Snapshot().Instances {
		seeded[inst.Key()] = true
	}
	return &env{
		store:  store,
		exec:   action.NewExecutor(store, engine, action.WithAuditLog(log)),
		log:    log,
		seeded: seeded,
	}
}

func (e *env) run(p permission.Principal, name, target string, params map[string]any) (*action.Result, error) {
	return e.exec.Execute(context.Background(), validation.Invocation{
		Action: name, TargetID: target, Params: params, Principal: p,
	})
}

func (e *env) get(t *testing.T, typeName, id string) storage.Instance {
	t.Helper()
	inst, err := e.store.GetInstance(typeName, id)
	require.NoError(t, err)
	return inst
}

func (e *env) neighbors(t *testing.T, link, id string, dir storage.Direction) []string {
	t.Helper()
	ids, err := e.store.Neighbors(link, id, dir)
	require.NoError(t, err)
	return ids
}

// created returns the instances of a type the action added to the store.
func (e *env) created(res *action.Result, typeName string) []storage.Instance {
	var out []storage.Instance
	for _, inst := range res.Updated {
		if inst.Type == typeName && !e.seeded[inst.Key()] {
			out = append(out, inst)
		}
	}
	return out
}

func topics(res *action.Result) []string {
	out := make([]string, len(res.Events))
	for i, ev := range res.Events {
		out[i] = ev.Topic
	}
	return out
}

func ruleMessages(t *testing.T, err error) []string {
	t.Helper()
	var rve *apperr.RuleViolationError
	require.ErrorAs(t, err, &rve)
	return rve.Messages()
}

func TestBundledOntology(t *testing.T) {
	reg, err := ontology.Registry()
	require.NoError(t, err)

	assert.Equal(t, "tmhna", reg.Namespace())
	assert.Len(t, reg.ObjectTypes(), 16)
	assert.Len(t, reg.LinkTypes(), 20)
	assert.Len(t, reg.Actions(), 8)
	assert.Len(t, reg.Functions(), 7)

	grouped := make(map[string]int)
	for _, d := range reg.Domains() {
		for _, name := range d.ObjectTypes {
			grouped[name]++
		}
	}
	for _, ot := range reg.ObjectTypes() {
		assert.Equal(t, 1, grouped[ot.Name], "%s belongs to exactly one domain", ot.Name)
	}
}

func TestBundledDescriptionsKeepCommas(t *testing.T) {
	reg, err := ontology.Registry()
	require.NoError(t, err)

	for fn, want := range map[string]map[string]string{
		"runScenarioSimulation":    {"affected_entity_ids": "IDs of plants, suppliers, DCs or regions affected"},
		"calculateServiceCapacity": {"service_type": "PM, Repair, Emergency, etc."},
	} {
		def, err := reg.GetFunction(fn)
		require.NoError(t, err)
		for input, desc := range want {
			var found bool
			for _, p := range def.Inputs {
				if p.Name == input {
					found = true
					assert.Equal(t, desc, p.Description, "%s.%s", fn, input)
				}
			}
			assert.True(t, found, "%s declares %s", fn, input)
		}
	}
}

func TestBundledSeedLoads(t *testing.T) {
	e := newEnv(t)

	for typeName, want := range map[string]int{
		"TMHNA_Plant":              4,
		"TMHNA_DistributionCenter": 4,
		"TMHNA_Supplier":           4,
		"TMHNA_Dealer":             5,
		"TMHNA_PartsInventory":     5,
		"TMHNA_ServiceOrder":       4,
		"TMHNA_Alert":              3,
		"TMHNA_InventoryMovement":  0,
	} {
		assert.Equal(t, want, e.store.Count(typeName), typeName)
	}

	cus := e.get(t, "TMHNA_Customer", "CUS-001")
	assert.Equal(t, false, cus.Fields["pay_per_service"], "default applied")
	assert.Equal(t, []string{"INV-001", "INV-003"}, e.neighbors(t, "stocks", "DC-001", storage.Outgoing))
}

func allocate(qty any) map[string]any {
	return map[string]any{
		"sku_id":            "SKU-001",
		"source_dc_id":      "DC-001",
		"destination_dc_id": "DC-002",
		"quantity":          qty,
		"reason":            "Rebalance for Northeast demand",
	}
}

func TestAllocateInventory(t *testing.T) {
	e := newEnv(t)
	before := e.store.Snapshot()

	_, err := e.run(inventoryManager, "allocate_inventory", "", allocate(150))
	assert.Equal(t, []string{"quantity must be <= source DC available quantity"}, ruleMessages(t, err))
	assert.Equal(t, before, e.store.Snapshot())
	assert.Zero(t, e.log.Len())

	res, err := e.run(inventoryManager, "allocate_inventory", "", allocate(40))
	require.NoError(t, err)

	src := e.get(t, "TMHNA_PartsInventory", "INV-001")
	assert.Equal(t, 60.0, src.Number("quantity_available"))
	assert.Equal(t, 70.0, src.Number("quantity_on_hand"))
	dst := e.get(t, "TMHNA_PartsInventory", "INV-002")
	assert.Equal(t, 70.0, dst.Number("quantity_available"))
	assert.Equal(t, 70.0, dst.Number("quantity_on_hand"))

	movements := e.created(res, "TMHNA_InventoryMovement")
	require.Len(t, movements, 1)
	mv := movements[0]
	assert.Equal(t, "u-inv", mv.Fields["moved_by"])
	assert.Equal(t, now.Format(time.RFC3339), mv.Fields["moved_at"])
	assert.Equal(t, []string{mv.ID}, e.neighbors(t, "moved_from", "INV-001", storage.Incoming))

	records, err := e.log.List(context.Background(), audit.Filter{Action: "allocate_inventory"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "INV-001", records[0].TargetID)
	assert.Equal(t, []string{"inventory.allocated"}, topics(res))
	assert.Equal(t, 40.0, res.Events[0].Payload["quantity"])
}

func TestAllocateInventoryOpensDestinationRecord(t *testing.T) {
	e := newEnv(t)

	res, err := e.run(inventoryManager, "allocate_inventory", "", map[string]any{
		"sku_id":            "SKU-002",
		"source_dc_id":      "DC-001",
		"destination_dc_id": "DC-003",
		"quantity":          25,
		"reason":            "Seed West coast stock",
	})
	require.NoError(t, err)

	assert.Equal(t, 375.0, e.get(t, "TMHNA_PartsInventory", "INV-003").Number("quantity_available"))

	opened := e.created(res, "TMHNA_PartsInventory")
	require.Len(t, opened, 1)
	inv := opened[0]
	assert.True(t, strings.HasPrefix(inv.ID, "INV-"))
	assert.Equal(t, "DC-003", inv.Fields["distribution_center_id"])
	assert.Equal(t, "RECEIVING", inv.Fields["warehouse_location"])
	assert.Equal(t, "Drive Tire 18x7", inv.Fields["part_description"], "cloned from the source record")

	stored := e.get(t, "TMHNA_PartsInventory", inv.ID)
	assert.Equal(t, 25.0, stored.Number("quantity_available"))
	assert.Equal(t, 0.0, stored.Number("quantity_reserved"))
	assert.Contains(t, e.neighbors(t, "stocks", "DC-003", storage.Outgoing), inv.ID)
}

func TestAllocateInventoryRules(t *testing.T) {
	e := newEnv(t)

	params := allocate(10)
	params["sku_id"] = "SKU-999"
	_, err := e.run(inventoryManager, "allocate_inventory", "", params)
	msgs := ruleMessages(t, err)
	assert.Contains(t, msgs, "SKU must exist at source DC")
	assert.Contains(t, msgs, "quantity must be <= source DC available quantity")

	params = allocate(0)
	params["destination_dc_id"] = "DC-001"
	_, err = e.run(inventoryManager, "allocate_inventory", "", params)
	assert.ElementsMatch(t, []string{
		"quantity must be > 0",
		"source_dc_id must be different from destination_dc_id",
	}, ruleMessages(t, err))

	params = allocate(10)
	params["destination_dc_id"] = "DC-404"
	_, err = e.run(inventoryManager, "allocate_inventory", "", params)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.run(dispatcher, "allocate_inventory", "", allocate(10))
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	assert.Zero(t, e.log.Len())
}

func TestConcurrentAllocationsNeverOverdraw(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.run(inventoryManager, "allocate_inventory", "", allocate(60))
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperr.IsCallerError(err):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), rejected.Load())
	assert.Equal(t, 40.0, e.get(t, "TMHNA_PartsInventory", "INV-001").Number("quantity_available"))
	assert.Equal(t, 90.0, e.get(t, "TMHNA_PartsInventory", "INV-002").Number("quantity_available"))
	assert.Equal(t, 1, e.log.Len())
}

func dispatch(order, tech string) map[string]any {
	return map[string]any{
		"service_order_id":         order,
		"technician_id":            tech,
		"scheduled_date":           "2026-03-04T09:00:00Z",
		"estimated_duration_hours": 3,
	}
}

func TestDispatchTechnician(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(dispatcher, "dispatch_technician", "SO-1003", dispatch("SO-1003", "TECH-003"))
	assert.Contains(t, ruleMessages(t, err), "Service order must be in Open or Scheduled status")

	res, err := e.run(dispatcher, "dispatch_technician", "SO-1002", dispatch("SO-1002", "TECH-002"))
	require.NoError(t, err)

	so := e.get(t, "TMHNA_ServiceOrder", "SO-1002")
	assert.Equal(t, "Scheduled", so.Fields["status"])
	assert.Equal(t, "TECH-002", so.Fields["technician_id"])
	assert.Equal(t, 3.0, so.Number("labor_hours_estimated"))
	assert.NotContains(t, so.Fields, "special_instructions")
	assert.Equal(t, 1.0, e.get(t, "TMHNA_ServiceTechnician", "TECH-002").Number("active_service_orders"))
	assert.Equal(t, []string{"TECH-002"}, e.neighbors(t, "assigned_to", "SO-1002", storage.Outgoing))
	assert.Equal(t, []string{"technician.dispatched", "customer.service_confirmed"}, topics(res))

	// Reassigning replaces the edge.
	params := dispatch("SO-1002", "TECH-001")
	params["special_instructions"] = "Call site lead on arrival"
	_, err = e.run(dispatcher, "dispatch_technician", "SO-1002", params)
	require.NoError(t, err)
	assert.Equal(t, []string{"TECH-001"}, e.neighbors(t, "assigned_to", "SO-1002", storage.Outgoing))
	assert.Equal(t, 2.0, e.get(t, "TMHNA_ServiceTechnician", "TECH-001").Number("active_service_orders"))
	assert.Equal(t, "Call site lead on arrival", e.get(t, "TMHNA_ServiceOrder", "SO-1002").Fields["special_instructions"])
}

func TestDispatchTechnicianQualification(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(dispatcher, "dispatch_technician", "SO-1002", dispatch("SO-1002", "TECH-003"))
	assert.ElementsMatch(t, []string{
		"Technician must be certified for equipment type",
		"Technician must be employed by servicing dealer",
	}, ruleMessages(t, err))

	_, err = e.run(dispatcher, "dispatch_technician", "SO-1002", dispatch("SO-1002", "TECH-004"))
	assert.Equal(t, []string{"Technician must be available on scheduled date"}, ruleMessages(t, err))

	_, err = e.run(dispatcher, "dispatch_technician", "SO-1002", dispatch("SO-1002", "TECH-404"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func escalate(claim string, notes string) map[string]any {
	return map[string]any{
		"claim_id":          claim,
		"escalation_reason": "Repeat Failure",
		"escalation_notes":  notes,
		"requested_action":  "Engineering review of seal supplier lot",
	}
}

func TestEscalateWarrantyClaim(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(warrantyAnalyst, "escalate_warranty_claim", "WC-001", escalate("WC-001", strings.Repeat("x", 30)))
	assert.Equal(t, []string{"Escalation notes must be at least 50 characters"}, ruleMessages(t, err))

	notes := "Third seal failure on this unit in six months, lot HYD-2219."
	require.GreaterOrEqual(t, len(notes), 50)
	res, err := e.run(warrantyAnalyst, "escalate_warranty_claim", "WC-001", escalate("WC-001", notes))
	require.NoError(t, err)

	claim := e.get(t, "TMHNA_WarrantyClaim", "WC-001")
	assert.Equal(t, "Escalated", claim.Fields["escalation_status"])
	assert.Equal(t, "Repeat Failure", claim.Fields["escalation_reason"])
	assert.Equal(t, 1.0, claim.Number("escalation_count"))
	assert.Equal(t, now.Format(time.RFC3339), claim.Fields["last_escalated_at"])

	records := e.created(res, "TMHNA_EscalationRecord")
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, now.Add(48*time.Hour).Format(time.RFC3339), rec.Fields["sla_due_at"])
	assert.Equal(t, "u-warranty", rec.Fields["escalated_by"])
	assert.Equal(t, []string{"WC-001"}, e.neighbors(t, "escalates", rec.ID, storage.Outgoing))
	assert.Equal(t, []string{"warranty.escalated"}, topics(res))

	_, err = e.run(warrantyAnalyst, "escalate_warranty_claim", "WC-001", escalate("WC-001", notes))
	assert.Equal(t, []string{"Cannot re-escalate within 24 hours"}, ruleMessages(t, err))
}

func TestEscalateWarrantyClaimStatus(t *testing.T) {
	e := newEnv(t)
	notes := strings.Repeat("Customer escalated through regional VP. ", 2)

	_, err := e.run(warrantyAnalyst, "escalate_warranty_claim", "WC-002", escalate("WC-002", notes))
	assert.Equal(t, []string{"Cannot re-escalate within 24 hours"}, ruleMessages(t, err))

	_, err = e.run(warrantyAnalyst, "escalate_warranty_claim", "WC-003", escalate("WC-003", notes))
	assert.Equal(t, []string{"Claim must be in Under Review status"}, ruleMessages(t, err))
}

func prioritize(order, priority string) map[string]any {
	return map[string]any{
		"order_id":      order,
		"new_priority":  priority,
		"justification": "Customer line-down situation at main DC",
	}
}

func TestPrioritizeBacklogOrder(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(scheduler, "prioritize_backlog_order", "BO-001", prioritize("BO-001", "Critical"))
	assert.Equal(t, []string{"Critical priority requires manager approval"}, ruleMessages(t, err))

	params := prioritize("BO-001", "Critical")
	params["requested_date_change"] = "2026-04-01"
	res, err := e.run(productionManager, "prioritize_backlog_order", "", params)
	require.NoError(t, err)

	bo := e.get(t, "TMHNA_BacklogOrder", "BO-001")
	assert.Equal(t, "Critical", bo.Fields["priority"])
	assert.Equal(t, "Customer line-down situation at main DC", bo.Fields["expedite_reason"])
	assert.Equal(t, "2026-03-02", bo.Fields["scheduled_production_date"])
	assert.Equal(t, "2026-04-01", bo.Fields["estimated_completion_date"])
	require.Equal(t, []string{"backlog.priority_changed"}, topics(res))
	assert.Equal(t, "PLT-001", res.Events[0].Payload["plant_id"])

	_, err = e.run(scheduler, "prioritize_backlog_order", "BO-002", prioritize("BO-002", "Expedite"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-27", e.get(t, "TMHNA_BacklogOrder", "BO-002").Fields["estimated_completion_date"],
		"left alone without a requested date change")
}

func TestPrioritizeBacklogOrderRules(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(scheduler, "prioritize_backlog_order", "BO-005", prioritize("BO-005", "Expedite"))
	assert.Equal(t, []string{"Order must be in Pending, Confirmed, or Scheduled status"}, ruleMessages(t, err))

	params := prioritize("BO-001", "Expedite")
	params["justification"] = "   too short    "
	_, err = e.run(scheduler, "prioritize_backlog_order", "BO-001", params)
	assert.Equal(t, []string{"Justification must be at least 20 characters"}, ruleMessages(t, err))

	_, err = e.run(scheduler, "prioritize_backlog_order", "BO-001", prioritize("BO-001", "Urgent"))
	var pve *apperr.ParameterValidationError
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("new_priority"))

	_, err = e.run(scheduler, "prioritize_backlog_order", "BO-002", prioritize("BO-001", "Expedite"))
	require.ErrorAs(t, err, &pve)
	assert.True(t, pve.HasField("order_id"))
}

func TestAcknowledgeAlert(t *testing.T) {
	e := newEnv(t)
	params := map[string]any{"acknowledgment_notes": "Looking into it"}

	_, err := e.run(responder("Inventory"), "acknowledge_alert", "ALT-001", params)
	assert.Equal(t, []string{"User must have permissions for alert type"}, ruleMessages(t, err))

	res, err := e.run(responder("Equipment"), "acknowledge_alert", "ALT-001", params)
	require.NoError(t, err)

	alert := e.get(t, "TMHNA_Alert", "ALT-001")
	assert.Equal(t, "Acknowledged", alert.Fields["status"])
	assert.Equal(t, true, alert.Fields["acknowledged"])
	assert.Equal(t, "u-ops", alert.Fields["acknowledged_by"])
	assert.Equal(t, now.Format(time.RFC3339), alert.Fields["acknowledged_timestamp"])
	assert.NotContains(t, alert.Fields, "planned_action")
	assert.Equal(t, []string{"alert.acknowledged"}, topics(res))

	_, err = e.run(responder("Equipment"), "acknowledge_alert", "ALT-001", params)
	assert.Equal(t, []string{"Alert must be in Active status"}, ruleMessages(t, err))

	// Principals without an alert type restriction see every alert.
	_, err = e.run(fleetManager, "acknowledge_alert", "ALT-003", map[string]any{
		"acknowledgment_notes": "Expediting from supplier",
		"planned_action":       "Air freight 20 packs",
	})
	require.NoError(t, err)
	assert.Equal(t, "Air freight 20 packs", e.get(t, "TMHNA_Alert", "ALT-003").Fields["planned_action"])
}

func TestResolveAlert(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(fleetManager, "resolve_alert", "ALT-002", map[string]any{"resolution_notes": "done"})
	assert.Equal(t, []string{"Resolution notes must be at least 20 characters"}, ruleMessages(t, err))

	_, err = e.run(fleetManager, "resolve_alert", "ALT-001", map[string]any{"resolution_notes": strings.Repeat("n", 25)})
	assert.Equal(t, []string{"Alert must be in Acknowledged or In Progress status"}, ruleMessages(t, err))

	res, err := e.run(fleetManager, "resolve_alert", "ALT-002", map[string]any{
		"resolution_notes": "Planned maintenance completed under SO-1002",
		"root_cause":       "Scheduled interval reached",
	})
	require.NoError(t, err)

	alert := e.get(t, "TMHNA_Alert", "ALT-002")
	assert.Equal(t, "Resolved", alert.Fields["status"])
	assert.Equal(t, true, alert.Fields["resolved"])
	assert.Equal(t, "Scheduled interval reached", alert.Fields["root_cause"])
	assert.NotContains(t, alert.Fields, "preventive_action")
	assert.Equal(t, "Normal", e.get(t, "TMHNA_Equipment", "EQ-001").Fields["alert_status"])
	assert.Equal(t, []string{"alert.resolved"}, topics(res))
}

func TestResolveAlertWithoutEquipmentSource(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(fleetManager, "acknowledge_alert", "ALT-003", map[string]any{"acknowledgment_notes": "On it"})
	require.NoError(t, err)
	res, err := e.run(fleetManager, "resolve_alert", "ALT-003", map[string]any{
		"resolution_notes": "Replenishment received at DC-003",
	})
	require.NoError(t, err)

	for _, inst := range res.Updated {
		assert.NotEqual(t, "TMHNA_Equipment", inst.Type)
	}
}

func serviceRequest(serial, priority string) map[string]any {
	return map[string]any{
		"forklift_serial": serial,
		"order_type":      "Repair",
		"priority":        priority,
		"reported_issue":  "Hydraulic leak at tilt cylinder",
		"requested_date":  "2026-03-05",
	}
}

func TestCreateServiceOrder(t *testing.T) {
	e := newEnv(t)

	res, err := e.run(dispatcher, "create_service_order", "FL-1001", serviceRequest("FL-1001", "High"))
	require.NoError(t, err)

	orders := e.created(res, "TMHNA_ServiceOrder")
	require.Len(t, orders, 1)
	so := orders[0]
	assert.True(t, strings.HasPrefix(so.ID, "SO-"))
	assert.Equal(t, "Open", so.Fields["status"])
	assert.Equal(t, "CUS-001", so.Fields["customer_id"])
	assert.Equal(t, "DLR-002", so.Fields["dealer_id"])
	assert.Equal(t, "2026-03-05", so.Fields["promised_date"])
	assert.Contains(t, e.neighbors(t, "has_service_order", "FL-1001", storage.Outgoing), so.ID)
	assert.Equal(t, []string{"service_order.created", "customer.service_requested"}, topics(res))
	assert.Equal(t, so.ID, res.Events[0].Payload["service_order_id"])
}

func TestCreateServiceOrderRules(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(dispatcher, "create_service_order", "FL-1003", serviceRequest("FL-1003", "Low"))
	assert.Equal(t, []string{"Forklift must not have open Critical service order already"}, ruleMessages(t, err))

	_, err = e.run(dispatcher, "create_service_order", "FL-1002", serviceRequest("FL-1002", "Low"))
	assert.Equal(t, []string{"Customer must have active service contract or pay-per-service"}, ruleMessages(t, err))

	_, err = e.run(dispatcher, "create_service_order", "FL-9999", serviceRequest("FL-9999", "Low"))
	assert.Contains(t, ruleMessages(t, err), "Forklift must exist in system")

	assert.Equal(t, 4, e.store.Count("TMHNA_ServiceOrder"))
}

func equipmentStatus(id, status string) map[string]any {
	return map[string]any{"equipment_id": id, "new_status": status, "reason": "Operator report"}
}

func TestUpdateEquipmentStatus(t *testing.T) {
	for _, tc := range []struct {
		status   string
		severity string
	}{
		{"Warning", "Warning"},
		{"Critical", "Critical"},
		{"Offline", "Critical"},
		{"Normal", ""},
	} {
		t.Run(tc.status, func(t *testing.T) {
			e := newEnv(t)

			res, err := e.run(fleetManager, "update_equipment_status", "EQ-002", equipmentStatus("EQ-002", tc.status))
			require.NoError(t, err)

			eq := e.get(t, "TMHNA_Equipment", "EQ-002")
			assert.Equal(t, tc.status, eq.Fields["alert_status"])
			assert.Equal(t, "Operator report", eq.Fields["status_reason"])

			alerts := e.created(res, "TMHNA_Alert")
			if tc.severity == "" {
				assert.Empty(t, alerts)
				assert.Equal(t, 3, e.store.Count("TMHNA_Alert"))
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, tc.severity, alerts[0].Fields["severity"])
			assert.Equal(t, "EQ-002", alerts[0].Fields["source_object_id"])
			assert.Equal(t, "TLM-90441", alerts[0].Fields["source_object_name"])
			assert.Equal(t, "Active", alerts[0].Fields["status"])
		})
	}
}

func TestUpdateEquipmentStatusRules(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(fleetManager, "update_equipment_status", "EQ-404", equipmentStatus("EQ-404", "Critical"))
	assert.Equal(t, []string{"Equipment must exist"}, ruleMessages(t, err))

	params := equipmentStatus("EQ-002", "Critical")
	params["reason"] = "  "
	_, err = e.run(fleetManager, "update_equipment_status", "EQ-002", params)
	assert.Equal(t, []string{"Reason must be provided for status changes"}, ruleMessages(t, err))
}
