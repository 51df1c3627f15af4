package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"
    "metroplan/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu     sync.Mutex
    fleets map[string]*model.Fleet                 // tenant -> fleet snapshot
    allocs map[string]map[string]model.Allocation  // tenant -> planDate -> allocation
    latest map[string]string                       // tenant -> latest planDate
    subs   map[string][]model.Subscription         // tenant -> subscriptions
    // Webhooks queue state
    deliveries map[string]*memDelivery             // id -> delivery state
    deliveryOrder []string                         // ids in enqueue order
    deliveriesByTenant map[string][]string         // tenant -> delivery ids
    dlq    map[string][]map[string]any             // tenant -> dead-lettered deliveries
    planMx map[string]map[string]map[string]any    // tenant -> planDate -> metrics
    cfg    map[string]map[string]any               // tenant -> planner config
}

func NewMemory() *Memory {
    return &Memory{
        fleets: map[string]*model.Fleet{},
        allocs: map[string]map[string]model.Allocation{},
        latest: map[string]string{},
        subs: map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
        dlq: map[string][]map[string]any{},
        planMx: map[string]map[string]map[string]any{},
        cfg: map[string]map[string]any{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) ReplaceFleet(ctx context.Context, tenantID string, fleet *model.Fleet) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.fleets[tenantID] = fleet
    return nil
}

func (m *Memory) GetFleet(ctx context.Context, tenantID string) (*model.Fleet, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    f, ok := m.fleets[tenantID]
    if !ok { return nil, ErrNotFound }
    return f, nil
}

func (m *Memory) SaveAllocation(ctx context.Context, tenantID string, alloc model.Allocation) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if m.allocs[tenantID] == nil { m.allocs[tenantID] = map[string]model.Allocation{} }
    m.allocs[tenantID][alloc.PlanDate] = alloc
    m.latest[tenantID] = alloc.PlanDate
    return nil
}

func (m *Memory) GetAllocation(ctx context.Context, tenantID, planDate string) (model.Allocation, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    a, ok := m.allocs[tenantID][planDate]
    if !ok { return model.Allocation{}, ErrNotFound }
    return a, nil
}

func (m *Memory) LatestAllocation(ctx context.Context, tenantID string) (model.Allocation, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    pd, ok := m.latest[tenantID]
    if !ok { return model.Allocation{}, ErrNotFound }
    return m.allocs[tenantID][pd], nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events { if e == eventType { out = append(out, s); break } }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i := range list { if list[i].ID == cursor { start = i+1; break } }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(list) { end = len(list) }
    items := append([]model.Subscription(nil), list[start:end]...)
    next := ""
    if end < len(list) { next = list[end-1].ID }
    return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    arr := m.subs[tenantID]
    out := make([]model.Subscription, 0, len(arr))
    for _, s := range arr { if s.ID != id { out = append(out, s) } }
    m.subs[tenantID] = out
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", Attempts: 0}, NextAttemptAt: time.Now()}
    m.deliveries[id] = d
    m.deliveryOrder = append(m.deliveryOrder, id)
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.iterDeliveryIDs() {
        d := m.deliveries[id]
        if d == nil { continue }
        if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
            out = append(out, d.WebhookDelivery)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return nil }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
        now := time.Now()
        d.DeliveredAt = &now
    } else {
        d.Status = "retry"
        d.LastError = lastError
        if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return nil }
    d.Status = "failed"
    m.dlq[d.TenantID] = append(m.dlq[d.TenantID], map[string]any{
        "id": uuid.New().String(), "deliveryId": id, "eventType": d.EventType, "url": d.URL,
        "lastError": lastError, "attempts": d.Attempts + 1, "responseCode": responseCode, "latencyMs": latencyMs,
        "createdAt": time.Now(),
    })
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    ids := m.deliveriesByTenant[tenantID]
    for _, id := range ids {
        d := m.deliveries[id]
        if d == nil { continue }
        if status == "" || d.Status == status {
            item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
            if !d.NextAttemptAt.IsZero() { item["nextAttemptAt"] = d.NextAttemptAt }
            if d.LastError != "" { item["lastError"] = d.LastError }
            out = append(out, item)
        }
    }
    return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d != nil && d.TenantID == tenantID {
        d.Status = "pending"
        d.NextAttemptAt = time.Now()
    }
    return nil
}

func (m *Memory) WebhookMetrics(ctx context.Context, tenantID string, since time.Time, eventType, status string) ([]map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    type agg struct{ cnt, sum int }
    by := map[string]*agg{} // key: eventType|status
    for _, id := range m.deliveriesByTenant[tenantID] {
        d := m.deliveries[id]
        if d == nil { continue }
        if !since.IsZero() && d.DeliveredAt != nil && d.DeliveredAt.Before(since) { continue }
        if eventType != "" && d.EventType != eventType { continue }
        if status != "" && d.Status != status { continue }
        key := d.EventType + "|" + d.Status
        a := by[key]
        if a == nil { a = &agg{}; by[key] = a }
        a.cnt++
        if d.LatencyMs > 0 { a.sum += d.LatencyMs }
    }
    out := []map[string]any{}
    for k, a := range by {
        sep := -1
        for i := range k { if k[i] == '|' { sep = i; break } }
        avg := 0
        if a.cnt > 0 { avg = a.sum / a.cnt }
        out = append(out, map[string]any{"eventType": k[:sep], "status": k[sep+1:], "count": a.cnt, "avgLatencyMs": avg})
    }
    return out, nil
}

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, eventType string, olderThan time.Time, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    for _, it := range m.dlq[tenantID] {
        if eventType != "" && it["eventType"] != eventType { continue }
        if !olderThan.IsZero() {
            if ts, ok := it["createdAt"].(time.Time); ok && !ts.Before(olderThan) { continue }
        }
        out = append(out, it)
    }
    return out, "", nil
}

func (m *Memory) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    return m.RequeueWebhookDLQBulk(ctx, tenantID, []string{id})
}

func (m *Memory) RequeueWebhookDLQBulk(ctx context.Context, tenantID string, ids []string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    want := map[string]bool{}
    for _, id := range ids { want[id] = true }
    keep := make([]map[string]any, 0, len(m.dlq[tenantID]))
    for _, it := range m.dlq[tenantID] {
        id, _ := it["id"].(string)
        if !want[id] { keep = append(keep, it); continue }
        delID, _ := it["deliveryId"].(string)
        if d := m.deliveries[delID]; d != nil {
            d.Status = "pending"
            d.NextAttemptAt = time.Now()
            d.Attempts = 0
        }
    }
    m.dlq[tenantID] = keep
    return nil
}

func (m *Memory) DeleteWebhookDLQBulk(ctx context.Context, tenantID string, ids []string, olderThan time.Time) error {
    m.mu.Lock(); defer m.mu.Unlock()
    want := map[string]bool{}
    for _, id := range ids { want[id] = true }
    keep := make([]map[string]any, 0, len(m.dlq[tenantID]))
    for _, it := range m.dlq[tenantID] {
        id, _ := it["id"].(string)
        if want[id] { continue }
        if len(ids) == 0 && !olderThan.IsZero() {
            if ts, ok := it["createdAt"].(time.Time); ok && ts.Before(olderThan) { continue }
        }
        keep = append(keep, it)
    }
    m.dlq[tenantID] = keep
    return nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, tenantID, planDate string, metrics map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if m.planMx[tenantID] == nil { m.planMx[tenantID] = map[string]map[string]any{} }
    m.planMx[tenantID][planDate] = metrics
    return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, tenantID, planDate string) ([]map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    if planDate != "" {
        if it, ok := m.planMx[tenantID][planDate]; ok { out = append(out, it) }
        return out, nil
    }
    for _, it := range m.planMx[tenantID] { out = append(out, it) }
    return out, nil
}

func (m *Memory) GetPlannerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if cfg, ok := m.cfg[tenantID]; ok { return cfg, nil }
    return nil, nil
}

func (m *Memory) SavePlannerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.cfg[tenantID] = cfg
    return nil
}

// helper: iterate delivery IDs in enqueue order
func (m *Memory) iterDeliveryIDs() []string {
    return m.deliveryOrder
}
