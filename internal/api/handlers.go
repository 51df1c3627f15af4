package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "math/rand"
    "net/http"
    "os"
    "strings"
    "time"

    "github.com/google/uuid"

    "metroplan/internal/engine"
    "metroplan/internal/integrations/maximocsv"
    "metroplan/internal/metrics"
    "metroplan/internal/model"
    "metroplan/internal/seed"
    "metroplan/internal/store"
)

// FleetRefreshHandler handles POST /v1/fleet/refresh
func (s *Server) FleetRefreshHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
    var req struct {
        TenantID string `json:"tenantId"`
        Seed     *int64 `json:"seed,omitempty"`
    }
    if r.Body != nil { _ = json.NewDecoder(r.Body).Decode(&req) }
    if req.TenantID == "" { _, req.TenantID = s.withTenant(r) }

    src := time.Now().UnixNano()
    if req.Seed != nil { src = *req.Seed }
    fleet := seed.Generate(seed.ProfileFromEnv(), time.Now(), rand.New(rand.NewSource(src)))

    // Overlay job cards from an external maintenance feed when configured.
    merged := 0
    if path := os.Getenv("JOB_CARD_FEED"); path != "" {
        known := map[string]struct{}{}
        for _, id := range fleet.VehicleIDs() { known[id] = struct{}{} }
        batch, err := maximocsv.Adapter{Path: path}.FetchJobCards("", "")
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Job card feed failed", err.Error(), r.URL.Path)
            return
        }
        for _, jc := range batch.Cards {
            if _, ok := known[jc.VehicleID]; !ok { continue }
            fleet.AddJobCard(jc)
            merged++
        }
    }

    if err := s.Store.ReplaceFleet(r.Context(), req.TenantID, fleet); err != nil {
        writeProblem(w, http.StatusInternalServerError, "Replace fleet failed", err.Error(), r.URL.Path)
        return
    }
    vehicles := len(fleet.VehicleIDs())
    s.Pub.Emit(r.Context(), req.TenantID, "fleet.refreshed", map[string]any{
        "vehicles": vehicles,
        "mergedJobCards": merged,
        "ts": time.Now().UTC().Format(time.RFC3339),
    })
    writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles, "mergedJobCards": merged})
}

// FleetSummaryHandler handles GET /v1/fleet/summary
func (s *Server) FleetSummaryHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    fleet, err := s.Store.GetFleet(r.Context(), tenant)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Fleet not found", "refresh the fleet first", r.URL.Path)
        return
    }
    certs := map[string]int{}
    jobs := map[string]int{}
    branding := map[string]int{}
    cleaningDue := 0
    wearSum, wearN := 0.0, 0
    for _, id := range fleet.VehicleIDs() {
        for _, c := range fleet.VehicleCerts(id) { certs[c.Status]++ }
        for _, j := range fleet.VehicleJobs(id) {
            if j.Active() { jobs[j.Priority]++ }
        }
        if b, ok := fleet.VehicleBranding(id); ok { branding[b.Status]++ }
        if c, ok := fleet.VehicleCleaning(id); ok && c.Due { cleaningDue++ }
        if m, ok := fleet.VehicleMileage(id); ok {
            wearSum += (m.BogieWearPct + m.BrakeWearPct + m.HVACWearPct) / 3
            wearN++
        }
    }
    out := map[string]any{
        "fleetSize": len(fleet.VehicleIDs()),
        "certificates": certs,
        "activeJobCards": jobs,
        "branding": branding,
        "cleaningDue": cleaningDue,
    }
    if wearN > 0 { out["avgWearPct"] = wearSum / float64(wearN) }
    if alloc, err := s.Store.LatestAllocation(r.Context(), tenant); err == nil {
        out["allocation"] = alloc.Summary
        out["planDate"] = alloc.PlanDate
    }
    writeJSON(w, http.StatusOK, out)
}

// VehiclesHandler handles GET /v1/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/vehicles" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    fleet, err := s.Store.GetFleet(r.Context(), tenant)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Fleet not found", "refresh the fleet first", r.URL.Path)
        return
    }
    alloc, _ := s.Store.LatestAllocation(r.Context(), tenant)
    rep := engine.BuildReport(fleet, alloc, time.Now())
    items := make([]model.VehicleSummary, 0, len(fleet.VehicleIDs()))
    for _, id := range fleet.VehicleIDs() {
        vr := rep.Vehicles[id]
        items = append(items, model.VehicleSummary{
            VehicleID:          id,
            Status:             vr.Bucket,
            Readiness:          vr.Readiness,
            BrandingPriority:   vr.BrandingPriority,
            MaintenanceUrgency: vr.MaintenanceUrgency,
            Issues:             vr.Issues,
        })
    }
    writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// VehicleByIDHandler handles GET /v1/vehicles/{id}
func (s *Server) VehicleByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/vehicles/") { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/vehicles/")
    if id == "" { writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path); return }
    _, tenant := s.withTenant(r)
    fleet, err := s.Store.GetFleet(r.Context(), tenant)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Fleet not found", "refresh the fleet first", r.URL.Path)
        return
    }
    found := false
    for _, v := range fleet.VehicleIDs() {
        if v == id { found = true; break }
    }
    if !found { writeProblem(w, http.StatusNotFound, "Vehicle not found", id, r.URL.Path); return }

    alloc, _ := s.Store.LatestAllocation(r.Context(), tenant)
    out := map[string]any{
        "vehicleId":    id,
        "bucket":       alloc.BucketFor(id),
        "score":        engine.Evaluate(fleet, id),
        "certificates": fleet.VehicleCerts(id),
        "jobCards":     fleet.VehicleJobs(id),
    }
    if b, ok := fleet.VehicleBranding(id); ok { out["branding"] = b }
    if m, ok := fleet.VehicleMileage(id); ok {
        out["mileage"] = m
        days := 0
        if t, err := time.Parse("2006-01-02", m.LastMaintenance); err == nil {
            days = int(time.Since(t).Hours() / 24)
        }
        out["failureProbability"] = engine.FailureProbability(m, days)
    }
    if c, ok := fleet.VehicleCleaning(id); ok { out["cleaning"] = c }
    if st, ok := fleet.VehicleStabling(id); ok { out["stabling"] = st }
    writeJSON(w, http.StatusOK, out)
}

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
    var req model.OptimizeRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateOptimizeRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
        return
    }
    if req.TenantID == "" { _, req.TenantID = s.withTenant(r) }
    if req.PlanDate == "" { req.PlanDate = time.Now().UTC().Format("2006-01-02") }

    fleet, err := s.Store.GetFleet(r.Context(), req.TenantID)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Fleet not found", "refresh the fleet first", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Load fleet failed", err.Error(), r.URL.Path)
        return
    }
    target := engine.DefaultServiceTarget
    if req.TargetServiceCount != nil { target = *req.TargetServiceCount }

    start := time.Now()
    alloc, stats, err := engine.Plan(fleet, target)
    metrics.AllocationDuration.Observe(time.Since(start).Seconds())
    if err != nil {
        if errors.Is(err, engine.ErrNoEligibleVehicles) {
            metrics.AllocationRuns.WithLabelValues(req.TenantID, "no_eligible").Inc()
            writeProblem(w, http.StatusBadRequest, "No eligible vehicles", err.Error(), r.URL.Path)
            return
        }
        metrics.AllocationRuns.WithLabelValues(req.TenantID, "error").Inc()
        writeProblem(w, http.StatusInternalServerError, "Plan failed", err.Error(), r.URL.Path)
        return
    }
    alloc.ID = uuid.NewString()
    alloc.PlanDate = req.PlanDate
    alloc.CreatedAt = time.Now().UTC().Format(time.RFC3339)

    if err := s.Store.SaveAllocation(r.Context(), req.TenantID, alloc); err != nil {
        writeProblem(w, http.StatusInternalServerError, "Save allocation failed", err.Error(), r.URL.Path)
        return
    }
    engine.RecordMetrics(req.TenantID, req.PlanDate, stats)
    _ = s.Store.SavePlanMetrics(r.Context(), req.TenantID, req.PlanDate, map[string]any{
        "allocationId":     alloc.ID,
        "fleetSize":        stats.FleetSize,
        "eligibleCount":    stats.EligibleCount,
        "serviceCount":     stats.ServiceCount,
        "standbyCount":     stats.StandbyCount,
        "maintenanceCount": stats.MaintenanceCount,
        "target":           stats.Target,
        "topScore":         stats.TopScore,
        "cutoffScore":      stats.CutoffScore,
        "durationMs":       time.Since(start).Milliseconds(),
    })
    metrics.AllocationRuns.WithLabelValues(req.TenantID, "ok").Inc()
    metrics.AllocationBucketSize.WithLabelValues(req.TenantID, model.BucketService).Set(float64(alloc.Summary.ServiceCount))
    metrics.AllocationBucketSize.WithLabelValues(req.TenantID, model.BucketStandby).Set(float64(alloc.Summary.StandbyCount))
    metrics.AllocationBucketSize.WithLabelValues(req.TenantID, model.BucketMaintenance).Set(float64(alloc.Summary.MaintenanceCount))

    rep := engine.BuildReport(fleet, alloc, time.Now())

    evtData := map[string]any{
        "allocationId": alloc.ID,
        "planDate":     alloc.PlanDate,
        "service":      alloc.Summary.ServiceCount,
        "standby":      alloc.Summary.StandbyCount,
        "maintenance":  alloc.Summary.MaintenanceCount,
        "alerts":       len(rep.Alerts),
    }
    s.Pub.Emit(r.Context(), req.TenantID, "allocation.completed", evtData)
    s.Broker.Publish(req.TenantID, SSEEvent{Type: "allocation.completed", Data: evtData})

    writeJSON(w, http.StatusOK, map[string]any{"allocation": alloc, "stats": stats, "report": rep})
}

// AllocationHandler handles GET /v1/allocation
func (s *Server) AllocationHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    planDate := r.URL.Query().Get("planDate")
    var alloc model.Allocation
    var err error
    if planDate != "" {
        alloc, err = s.Store.GetAllocation(r.Context(), tenant, planDate)
    } else {
        alloc, err = s.Store.LatestAllocation(r.Context(), tenant)
    }
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Allocation not found", "run optimize first", r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, alloc)
}

// ReportHandler handles GET /v1/report
func (s *Server) ReportHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    fleet, err := s.Store.GetFleet(r.Context(), tenant)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Fleet not found", "refresh the fleet first", r.URL.Path)
        return
    }
    alloc, err := s.Store.LatestAllocation(r.Context(), tenant)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Allocation not found", "run optimize first", r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, engine.BuildReport(fleet, alloc, time.Now()))
}

// AlertsHandler handles GET /v1/alerts
func (s *Server) AlertsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    fleet, err := s.Store.GetFleet(r.Context(), tenant)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Fleet not found", "refresh the fleet first", r.URL.Path)
        return
    }
    alloc, _ := s.Store.LatestAllocation(r.Context(), tenant)
    rep := engine.BuildReport(fleet, alloc, time.Now())
    writeJSON(w, http.StatusOK, map[string]any{"alerts": rep.Alerts, "recommendations": rep.Recommendations})
}

// SimulateHandler handles POST /v1/simulate
func (s *Server) SimulateHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
    var req model.SimulationRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateSimulationRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid simulation request", err.Error(), r.URL.Path)
        return
    }
    if req.TenantID == "" { _, req.TenantID = s.withTenant(r) }
    fleet, err := s.Store.GetFleet(r.Context(), req.TenantID)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Fleet not found", "refresh the fleet first", r.URL.Path)
        return
    }
    results := make([]model.SimulationResult, 0, len(req.Scenarios))
    for i, sc := range req.Scenarios {
        name := sc.Name
        if name == "" { name = fmt.Sprintf("scenario-%d", i+1) }
        target := engine.DefaultServiceTarget
        if sc.TargetServiceCount != nil { target = *sc.TargetServiceCount }
        res := model.SimulationResult{ScenarioName: name, Target: target}
        alloc, _, err := engine.Plan(fleet, target)
        if err != nil {
            res.Error = err.Error()
        } else {
            rep := engine.BuildReport(fleet, alloc, time.Now())
            res.Allocation = &alloc
            res.AlertsCount = len(rep.Alerts)
            res.RecommendationsCount = len(rep.Recommendations)
        }
        results = append(results, res)
    }
    writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path); return }
    w.WriteHeader(204)
}

// AllocationsStreamHandler handles GET /v1/allocations/stream (SSE)
func (s *Server) AllocationsStreamHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(tenant)
    defer s.Broker.Unsubscribe(tenant, ch)
    // initial heartbeat
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"tenantId\":\"%s\",\"ts\":\"%s\"}\n\n", tenant, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"tenantId\":\"%s\",\"ts\":\"%s\"}\n\n", tenant, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Admin: webhook metrics
func (s *Server) WebhookMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    sinceHours := 24
    if v := r.URL.Query().Get("sinceHours"); v != "" { fmt.Sscanf(v, "%d", &sinceHours) }
    eventType := r.URL.Query().Get("eventType")
    status := r.URL.Query().Get("status")
    since := time.Now().Add(-time.Duration(sinceHours) * time.Hour)
    items, err := s.Store.WebhookMetrics(r.Context(), p.Tenant, since, eventType, status)
    if err != nil { writeProblem(w, 500, "Metrics failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items})
}

// Admin: plan metrics per date
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    planDate := r.URL.Query().Get("planDate")
    if planDate == "" { writeProblem(w, 400, "Missing planDate", "", r.URL.Path); return }
    // Prefer DB metrics; fallback to in-memory
    items, err := s.Store.ListPlanMetrics(r.Context(), p.Tenant, planDate)
    if err != nil || len(items) == 0 {
        if st, ok := engine.GetMetrics(p.Tenant, planDate); ok {
            items = []map[string]any{{
                "fleetSize":        st.FleetSize,
                "eligibleCount":    st.EligibleCount,
                "serviceCount":     st.ServiceCount,
                "standbyCount":     st.StandbyCount,
                "maintenanceCount": st.MaintenanceCount,
                "target":           st.Target,
                "topScore":         st.TopScore,
                "cutoffScore":      st.CutoffScore,
            }}
        } else {
            items = []map[string]any{}
        }
    }
    writeJSON(w, 200, map[string]any{"items": items})
}

// Admin get/set planner tenant config
func (s *Server) PlannerConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/planner/config" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodGet:
        cfg, _ := s.Store.GetPlannerConfig(r.Context(), p.Tenant)
        if cfg == nil { cfg = map[string]any{} }
        writeJSON(w, 200, map[string]any{"config": cfg})
    case http.MethodPut:
        var body struct{ Config map[string]any `json:"config"` }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
        if err := s.Store.SavePlannerConfig(r.Context(), p.Tenant, body.Config); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]bool{"ok": true})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Admin: webhook DLQ list and requeue
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.URL.Path == "/v1/admin/webhook-dlq" && r.Method == http.MethodGet {
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        eventType := r.URL.Query().Get("eventType")
        olderThanHours := 0
        if v := r.URL.Query().Get("olderThanHours"); v != "" { fmt.Sscanf(v, "%d", &olderThanHours) }
        var older time.Time
        if olderThanHours > 0 { older = time.Now().Add(-time.Duration(olderThanHours) * time.Hour) }
        items, next, err := s.Store.ListWebhookDLQ(r.Context(), p.Tenant, eventType, older, cursor, limit)
        if err != nil { writeProblem(w, 500, "List DLQ failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
        return
    }
    if r.URL.Path == "/v1/admin/webhook-dlq" && r.Method == http.MethodPost {
        var req struct{ IDs []string `json:"ids"` }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if len(req.IDs) == 0 { writeProblem(w, 400, "Missing ids", "", r.URL.Path); return }
        if err := s.Store.RequeueWebhookDLQBulk(r.Context(), p.Tenant, req.IDs); err != nil { writeProblem(w, 500, "Bulk requeue failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 202, map[string]int{"accepted": len(req.IDs)})
        return
    }
    if r.URL.Path == "/v1/admin/webhook-dlq" && r.Method == http.MethodDelete {
        var req struct{ IDs []string `json:"ids"`; OlderThanHours int `json:"olderThanHours"` }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        var older time.Time
        if req.OlderThanHours > 0 { older = time.Now().Add(-time.Duration(req.OlderThanHours) * time.Hour) }
        if err := s.Store.DeleteWebhookDLQBulk(r.Context(), p.Tenant, req.IDs, older); err != nil { writeProblem(w, 500, "Bulk delete failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 202, map[string]int{"accepted": 1})
        return
    }
    if strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-dlq/") && strings.HasSuffix(r.URL.Path, "/requeue") && r.Method == http.MethodPost {
        id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-dlq/"), "/requeue")
        if err := s.Store.RequeueWebhookDLQ(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Requeue failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 202, map[string]int{"accepted": 1})
        return
    }
    writeProblem(w, 404, "Not Found", "", r.URL.Path)
}
