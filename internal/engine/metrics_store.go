package engine

import "sync"

type key struct {
    Tenant   string
    PlanDate string
}

var (
    mu    sync.Mutex
    store = map[key]RunStats{}
)

// RecordMetrics keeps the latest run stats per tenant and plan date for the
// admin views; the durable copy lives in the store's plan_metrics table.
func RecordMetrics(tenant, planDate string, st RunStats) {
    mu.Lock()
    store[key{Tenant: tenant, PlanDate: planDate}] = st
    mu.Unlock()
}

func GetMetrics(tenant, planDate string) (RunStats, bool) {
    mu.Lock()
    defer mu.Unlock()
    st, ok := store[key{Tenant: tenant, PlanDate: planDate}]
    return st, ok
}
