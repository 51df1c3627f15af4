package api

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "metroplan/internal/model"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    s, err := NewServer()
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

func refreshFleet(t *testing.T, s *Server, tenant string) {
    t.Helper()
    body := []byte(`{"tenantId":"` + tenant + `","seed":42}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/fleet/refresh", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", tenant)
    req.Header.Set("X-Role", "admin")
    s.FleetRefreshHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("fleet refresh: got %d: %s", rr.Code, rr.Body.String()) }
}

func runOptimize(t *testing.T, s *Server, tenant string) model.Allocation {
    t.Helper()
    body := []byte(`{"tenantId":"` + tenant + `","planDate":"2026-03-01"}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", tenant)
    req.Header.Set("X-Role", "planner")
    s.OptimizeHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("optimize: got %d: %s", rr.Code, rr.Body.String()) }
    var res struct{ Allocation model.Allocation `json:"allocation"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatalf("decode optimize: %v", err) }
    return res.Allocation
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestFleetRefreshAndSummary(t *testing.T) {
    s := newTestServer(t)
    refreshFleet(t, s, "t_test")

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/fleet/summary", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.FleetSummaryHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("summary: got %d", rr.Code) }
    var sum struct {
        FleetSize    int            `json:"fleetSize"`
        Certificates map[string]int `json:"certificates"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil { t.Fatalf("decode summary: %v", err) }
    if sum.FleetSize != 25 { t.Fatalf("fleetSize: got %d, want 25", sum.FleetSize) }
    total := 0
    for _, n := range sum.Certificates { total += n }
    if total != 75 { t.Fatalf("certificates: got %d, want 75", total) }
}

func TestFleetRefreshRequiresPlannerRole(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/fleet/refresh", bytes.NewReader([]byte(`{}`)))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "viewer")
    s.FleetRefreshHandler(rr, req)
    if rr.Code != 403 { t.Fatalf("refresh as viewer: got %d, want 403", rr.Code) }
}

func TestOptimizeAndAllocation(t *testing.T) {
    s := newTestServer(t)
    refreshFleet(t, s, "t_test")
    alloc := runOptimize(t, s, "t_test")
    if alloc.ID == "" { t.Fatalf("allocation id missing") }
    if alloc.PlanDate != "2026-03-01" { t.Fatalf("planDate: got %s", alloc.PlanDate) }
    got := alloc.Summary.ServiceCount + alloc.Summary.StandbyCount + alloc.Summary.MaintenanceCount
    if got != 25 { t.Fatalf("partition: got %d vehicles, want 25", got) }

    // GET by planDate
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/allocation?planDate=2026-03-01", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.AllocationHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("allocation by date: got %d", rr.Code) }

    // GET latest
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/allocation", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.AllocationHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("latest allocation: got %d", rr.Code) }
    var latest model.Allocation
    if err := json.Unmarshal(rr.Body.Bytes(), &latest); err != nil { t.Fatalf("decode latest: %v", err) }
    if latest.ID != alloc.ID { t.Fatalf("latest id: got %s, want %s", latest.ID, alloc.ID) }
}

func TestOptimizeWithoutFleet(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader([]byte(`{"tenantId":"t_empty"}`)))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Role", "admin")
    s.OptimizeHandler(rr, req)
    if rr.Code != 404 { t.Fatalf("optimize without fleet: got %d, want 404", rr.Code) }
}

func TestOptimizeRejectsNegativeTarget(t *testing.T) {
    s := newTestServer(t)
    refreshFleet(t, s, "t_test")
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader([]byte(`{"tenantId":"t_test","targetServiceCount":-1}`)))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Role", "admin")
    s.OptimizeHandler(rr, req)
    if rr.Code != 400 { t.Fatalf("negative target: got %d, want 400", rr.Code) }
}

func TestVehiclesListAndByID(t *testing.T) {
    s := newTestServer(t)
    refreshFleet(t, s, "t_test")
    runOptimize(t, s, "t_test")

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/vehicles", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.VehiclesHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("vehicles: got %d", rr.Code) }
    var res struct{ Items []model.VehicleSummary `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatalf("decode vehicles: %v", err) }
    if len(res.Items) != 25 { t.Fatalf("vehicles: got %d items, want 25", len(res.Items)) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/vehicles/KMRL-001", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.VehicleByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("vehicle by id: got %d", rr.Code) }
    var vr map[string]any
    if err := json.Unmarshal(rr.Body.Bytes(), &vr); err != nil { t.Fatalf("decode vehicle: %v", err) }
    if vr["vehicleId"] != "KMRL-001" { t.Fatalf("vehicleId: got %v", vr["vehicleId"]) }
    if _, ok := vr["score"]; !ok { t.Fatalf("score missing") }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/vehicles/KMRL-999", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.VehicleByIDHandler(rr, req)
    if rr.Code != 404 { t.Fatalf("unknown vehicle: got %d, want 404", rr.Code) }
}

func TestReportAndAlerts(t *testing.T) {
    s := newTestServer(t)
    refreshFleet(t, s, "t_test")
    runOptimize(t, s, "t_test")

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/report", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.ReportHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("report: got %d", rr.Code) }
    var rep model.Report
    if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil { t.Fatalf("decode report: %v", err) }
    if len(rep.Vehicles) != 25 { t.Fatalf("report vehicles: got %d, want 25", len(rep.Vehicles)) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.AlertsHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("alerts: got %d", rr.Code) }
}

func TestSimulateDoesNotReplaceAllocation(t *testing.T) {
    s := newTestServer(t)
    refreshFleet(t, s, "t_test")
    alloc := runOptimize(t, s, "t_test")

    body := []byte(`{"tenantId":"t_test","scenarios":[{"name":"low","targetServiceCount":5},{"name":"high","targetServiceCount":30}]}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/simulate", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Role", "planner")
    s.SimulateHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("simulate: got %d: %s", rr.Code, rr.Body.String()) }
    var res struct{ Results []model.SimulationResult `json:"results"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatalf("decode simulate: %v", err) }
    if len(res.Results) != 2 { t.Fatalf("results: got %d, want 2", len(res.Results)) }
    if res.Results[0].Allocation == nil || len(res.Results[0].Allocation.Service) > 5 {
        t.Fatalf("low scenario: %+v", res.Results[0])
    }

    // current allocation unchanged
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/allocation", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.AllocationHandler(rr, req)
    var latest model.Allocation
    if err := json.Unmarshal(rr.Body.Bytes(), &latest); err != nil { t.Fatalf("decode latest: %v", err) }
    if latest.ID != alloc.ID { t.Fatalf("simulate replaced allocation: got %s, want %s", latest.ID, alloc.ID) }
}

func TestOptimizeEnqueuesWebhook(t *testing.T) {
    s := newTestServer(t)
    refreshFleet(t, s, "t_test")

    subBody := []byte(`{"tenantId":"t_test","url":"https://example.invalid/webhook","events":["allocation.completed"],"secret":"shh"}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(subBody))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("create sub: %d", rr.Code) }

    runOptimize(t, s, "t_test")

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries?limit=5", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.WebhookDeliveriesHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("deliveries: %d", rr.Code) }
    var dres struct{ Items []map[string]any `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &dres); err != nil { t.Fatalf("decode deliveries: %v", err) }
    if len(dres.Items) == 0 { t.Fatalf("expected at least one delivery") }
    if et, ok := dres.Items[0]["eventType"].(string); ok && et == "" {
        t.Fatalf("eventType should not be empty")
    }
}

func TestSubscriptionsRBAC(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader([]byte(`{"url":"https://example.invalid","events":["allocation.completed"]}`)))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Role", "viewer")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != 403 { t.Fatalf("create sub as viewer: got %d, want 403", rr.Code) }
}

func TestPlanMetricsHandler(t *testing.T) {
    s := newTestServer(t)
    refreshFleet(t, s, "t_test")
    runOptimize(t, s, "t_test")

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/admin/plan-metrics?planDate=2026-03-01", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.PlanMetricsHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("plan metrics: got %d", rr.Code) }
    var res struct{ Items []map[string]any `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatalf("decode metrics: %v", err) }
    if len(res.Items) == 0 { t.Fatalf("expected metrics items") }
}

func TestPlannerConfigRoundTrip(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPut, "/v1/admin/planner/config", bytes.NewReader([]byte(`{"config":{"defaultTarget":20}}`)))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.PlannerConfigHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("put config: got %d", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/admin/planner/config", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.PlannerConfigHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("get config: got %d", rr.Code) }
    var res struct{ Config map[string]any `json:"config"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatalf("decode config: %v", err) }
    if res.Config["defaultTarget"].(float64) != 20 { t.Fatalf("config: %+v", res.Config) }
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests.
type sseRecorder struct {
    hdr  http.Header
    buf  bytes.Buffer
    code int
}

func (r *sseRecorder) Header() http.Header { if r.hdr == nil { r.hdr = http.Header{} }; return r.hdr }
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) { return r.buf.Write(p) }
func (r *sseRecorder) Flush() {}

func TestAllocationsStreamSSE(t *testing.T) {
    s := newTestServer(t)
    sseReq := httptest.NewRequest(http.MethodGet, "/v1/allocations/stream", nil)
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    sseReq = sseReq.WithContext(ctx)
    sseReq.Header.Set("X-Tenant-Id", "t_test")
    sseReq.Header.Set("X-Role", "admin")

    rec := &sseRecorder{}
    done := make(chan struct{})
    go func() {
        s.AllocationsStreamHandler(rec, sseReq)
        close(done)
    }()

    // Give handler time to subscribe and send heartbeat
    time.Sleep(50 * time.Millisecond)
    s.Broker.Publish("t_test", SSEEvent{Type: "allocation.completed", Data: map[string]any{"planDate": "2026-03-01"}})

    deadline := time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) {
        if bytes.Contains(rec.buf.Bytes(), []byte("event: allocation.completed")) {
            break
        }
        time.Sleep(10 * time.Millisecond)
    }
    if !bytes.Contains(rec.buf.Bytes(), []byte("event: allocation.completed")) {
        t.Fatalf("SSE did not contain expected event. Body: %s", rec.buf.String())
    }
    cancel()
    select {
    case <-done:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("handler did not exit after cancel")
    }
}
