package store

import (
	"context"
	"testing"
	"time"

	"metroplan/internal/model"
)

func TestMemoryFleetRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetFleet(ctx, "t_demo"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	f := model.NewFleet()
	f.AddCertificate(model.Certificate{VehicleID: "TS-01", Department: "Telecom", Status: model.CertValid})
	if err := m.ReplaceFleet(ctx, "t_demo", f); err != nil {
		t.Fatalf("ReplaceFleet: %v", err)
	}
	got, err := m.GetFleet(ctx, "t_demo")
	if err != nil {
		t.Fatalf("GetFleet: %v", err)
	}
	if len(got.VehicleCerts("TS-01")) != 1 {
		t.Fatalf("expected one certificate")
	}
	// other tenants stay isolated
	if _, err := m.GetFleet(ctx, "t_other"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound for other tenant, got %v", err)
	}
}

func TestMemoryAllocations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetAllocation(ctx, "t_demo", "2026-01-01"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	a1 := model.Allocation{ID: "a1", PlanDate: "2026-01-01", Service: []string{"TS-01"}}
	a2 := model.Allocation{ID: "a2", PlanDate: "2026-01-02", Service: []string{"TS-02"}}
	if err := m.SaveAllocation(ctx, "t_demo", a1); err != nil {
		t.Fatalf("SaveAllocation: %v", err)
	}
	if err := m.SaveAllocation(ctx, "t_demo", a2); err != nil {
		t.Fatalf("SaveAllocation: %v", err)
	}
	got, err := m.GetAllocation(ctx, "t_demo", "2026-01-01")
	if err != nil || got.ID != "a1" {
		t.Fatalf("GetAllocation: %v %v", got, err)
	}
	latest, err := m.LatestAllocation(ctx, "t_demo")
	if err != nil || latest.ID != "a2" {
		t.Fatalf("LatestAllocation: %v %v", latest, err)
	}
}

func TestMemorySubscriptionsByEvent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, err := m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t_demo", URL: "https://example.com/hook", Events: []string{"allocation.completed"}, Secret: "s"})
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	subs, err := m.GetSubscriptionsForEvent(ctx, "t_demo", "allocation.completed")
	if err != nil || len(subs) != 1 {
		t.Fatalf("expected one match, got %v %v", subs, err)
	}
	subs, _ = m.GetSubscriptionsForEvent(ctx, "t_demo", "fleet.refreshed")
	if len(subs) != 0 {
		t.Fatalf("expected no match for other event")
	}
	if err := m.DeleteSubscription(ctx, "t_demo", s.ID); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	items, _, _ := m.ListSubscriptions(ctx, "t_demo", "", 10)
	if len(items) != 0 {
		t.Fatalf("expected empty list after delete")
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.EnqueueWebhook(ctx, "t_demo", "sub1", "allocation.completed", "https://example.com/hook", "s", []byte(`{}`))
	if err != nil {
		t.Fatalf("EnqueueWebhook: %v", err)
	}
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("expected one due delivery, got %v", due)
	}
	// retry path: schedule in the future, no longer due
	next := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &next, "boom", 500, 12); err != nil {
		t.Fatalf("MarkWebhookDelivery: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("expected no due deliveries, got %v", due)
	}
	// manual retry makes it due again
	if err := m.RetryWebhookDelivery(ctx, "t_demo", id); err != nil {
		t.Fatalf("RetryWebhookDelivery: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 {
		t.Fatalf("expected one due delivery after retry")
	}
	if err := m.MarkWebhookDelivery(ctx, id, true, nil, "", 200, 8); err != nil {
		t.Fatalf("MarkWebhookDelivery: %v", err)
	}
	items, _, _ := m.ListWebhookDeliveries(ctx, "t_demo", "delivered", "", 10)
	if len(items) != 1 {
		t.Fatalf("expected one delivered item, got %v", items)
	}
}

func TestMemoryDLQRequeue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, _ := m.EnqueueWebhook(ctx, "t_demo", "sub1", "allocation.completed", "https://example.com/hook", "s", []byte(`{}`))
	if err := m.FailWebhookDelivery(ctx, id, "gave up", 503, 20); err != nil {
		t.Fatalf("FailWebhookDelivery: %v", err)
	}
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("failed delivery must not be due")
	}
	items, _, _ := m.ListWebhookDLQ(ctx, "t_demo", "", time.Time{}, "", 10)
	if len(items) != 1 {
		t.Fatalf("expected one DLQ entry, got %v", items)
	}
	dlqID, _ := items[0]["id"].(string)
	if err := m.RequeueWebhookDLQ(ctx, "t_demo", dlqID); err != nil {
		t.Fatalf("RequeueWebhookDLQ: %v", err)
	}
	items, _, _ = m.ListWebhookDLQ(ctx, "t_demo", "", time.Time{}, "", 10)
	if len(items) != 0 {
		t.Fatalf("DLQ should be empty after requeue")
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 {
		t.Fatalf("requeued delivery should be due again")
	}
}

func TestMemoryPlanMetricsAndConfig(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.SavePlanMetrics(ctx, "t_demo", "2026-01-01", map[string]any{"fleetSize": 25}); err != nil {
		t.Fatalf("SavePlanMetrics: %v", err)
	}
	items, err := m.ListPlanMetrics(ctx, "t_demo", "2026-01-01")
	if err != nil || len(items) != 1 {
		t.Fatalf("ListPlanMetrics: %v %v", items, err)
	}

	cfg, err := m.GetPlannerConfig(ctx, "t_demo")
	if err != nil || cfg != nil {
		t.Fatalf("expected nil config, got %v %v", cfg, err)
	}
	if err := m.SavePlannerConfig(ctx, "t_demo", map[string]any{"targetServiceCount": 20}); err != nil {
		t.Fatalf("SavePlannerConfig: %v", err)
	}
	cfg, _ = m.GetPlannerConfig(ctx, "t_demo")
	if cfg["targetServiceCount"] != 20 {
		t.Fatalf("config round trip failed: %v", cfg)
	}
}

func TestMemoryFetchDueOrderIsEnqueueOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// interleave tenants so map iteration order would show through
	ids := []string{}
	for i := 0; i < 6; i++ {
		tenant := "t_a"
		if i%2 == 1 {
			tenant = "t_b"
		}
		id, err := m.EnqueueWebhook(ctx, tenant, "sub", "allocation.completed", "https://example.invalid", "", []byte(`{}`))
		if err != nil {
			t.Fatalf("EnqueueWebhook: %v", err)
		}
		ids = append(ids, id)
	}

	for i := 0; i < len(ids); i++ {
		due, err := m.FetchDueWebhookDeliveries(ctx, 1)
		if err != nil || len(due) != 1 {
			t.Fatalf("fetch %d: %v %v", i, due, err)
		}
		if due[0].ID != ids[i] {
			t.Fatalf("fetch %d: got %s, want %s", i, due[0].ID, ids[i])
		}
		now := time.Now()
		if err := m.MarkWebhookDelivery(ctx, due[0].ID, true, &now, "", 200, 1); err != nil {
			t.Fatalf("MarkWebhookDelivery: %v", err)
		}
	}
}
