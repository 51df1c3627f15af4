package store

import (
    "context"
    "errors"
    "time"

    "metroplan/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Fleet snapshots
    ReplaceFleet(ctx context.Context, tenantID string, fleet *model.Fleet) error
    GetFleet(ctx context.Context, tenantID string) (*model.Fleet, error)

    // Allocations
    SaveAllocation(ctx context.Context, tenantID string, alloc model.Allocation) error
    GetAllocation(ctx context.Context, tenantID, planDate string) (model.Allocation, error)
    LatestAllocation(ctx context.Context, tenantID string) (model.Allocation, error)

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error
    WebhookMetrics(ctx context.Context, tenantID string, since time.Time, eventType, status string) ([]map[string]any, error)

    // Induction run metrics
    SavePlanMetrics(ctx context.Context, tenantID, planDate string, metrics map[string]any) error
    ListPlanMetrics(ctx context.Context, tenantID, planDate string) ([]map[string]any, error)

    // Planner config per tenant
    GetPlannerConfig(ctx context.Context, tenantID string) (map[string]any, error)
    SavePlannerConfig(ctx context.Context, tenantID string, cfg map[string]any) error

    // Dead-letter queue
    ListWebhookDLQ(ctx context.Context, tenantID, eventType string, olderThan time.Time, cursor string, limit int) ([]map[string]any, string, error)
    RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error
    RequeueWebhookDLQBulk(ctx context.Context, tenantID string, ids []string) error
    DeleteWebhookDLQBulk(ctx context.Context, tenantID string, ids []string, olderThan time.Time) error
}

var ErrNotFound = errors.New("not found")
