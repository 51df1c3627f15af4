package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "metroplan/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every .sql file in dir in lexical order. Statements are
// written to be re-runnable (CREATE TABLE IF NOT EXISTS).
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
    }
    sort.Strings(names)
    for _, name := range names {
        b, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil {
            return fmt.Errorf("migrate %s: %w", name, err)
        }
    }
    return nil
}

// ReplaceFleet swaps the tenant's snapshot atomically: all six record
// categories are deleted and re-inserted in one transaction.
func (p *Postgres) ReplaceFleet(ctx context.Context, tenantID string, fleet *model.Fleet) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()

    for _, table := range []string{"fleet_certificates", "fleet_job_cards", "fleet_branding", "fleet_mileage", "fleet_cleaning", "fleet_stabling"} {
        if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE tenant_id=$1`, tenantID); err != nil { return err }
    }
    for _, certs := range fleet.Certificates {
        for _, c := range certs {
            _, err := tx.ExecContext(ctx, `INSERT INTO fleet_certificates (id, tenant_id, vehicle_id, department, cert_id, issue_date, expiry_date, status, inspector)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
                uuid.New(), tenantID, c.VehicleID, c.Department, nullIfEmpty(c.CertID), nullIfEmpty(c.IssueDate), nullIfEmpty(c.ExpiryDate), c.Status, nullIfEmpty(c.Inspector))
            if err != nil { return err }
        }
    }
    for _, jobs := range fleet.JobCards {
        for _, j := range jobs {
            _, err := tx.ExecContext(ctx, `INSERT INTO fleet_job_cards (id, tenant_id, vehicle_id, job_id, description, priority, status, estimated_hours, assigned_to, created_date)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
                uuid.New(), tenantID, j.VehicleID, nullIfEmpty(j.JobID), nullIfEmpty(j.Description), j.Priority, j.Status, j.EstimatedHours, nullIfEmpty(j.AssignedTo), nullIfEmpty(j.CreatedDate))
            if err != nil { return err }
        }
    }
    for _, b := range fleet.Branding {
        _, err := tx.ExecContext(ctx, `INSERT INTO fleet_branding (tenant_id, vehicle_id, brand, contract_start, contract_end, required_daily_hours, current_daily_hours, status, penalty_per_hour)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
            tenantID, b.VehicleID, b.Brand, nullIfEmpty(b.ContractStart), nullIfEmpty(b.ContractEnd), b.RequiredDailyHours, b.CurrentDailyHours, b.Status, b.PenaltyPerHour)
        if err != nil { return err }
    }
    for _, m := range fleet.Mileage {
        _, err := tx.ExecContext(ctx, `INSERT INTO fleet_mileage (tenant_id, vehicle_id, total_km, daily_target_km, current_daily_km, bogie_wear_pct, brake_wear_pct, hvac_wear_pct, last_maintenance)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
            tenantID, m.VehicleID, m.TotalKM, m.DailyTargetKM, m.CurrentDailyKM, m.BogieWearPct, m.BrakeWearPct, m.HVACWearPct, nullIfEmpty(m.LastMaintenance))
        if err != nil { return err }
    }
    for _, c := range fleet.Cleaning {
        _, err := tx.ExecContext(ctx, `INSERT INTO fleet_cleaning (tenant_id, vehicle_id, last_deep_clean, due, scheduled_bay, scheduled_time, estimated_hours, cleanliness_score)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
            tenantID, c.VehicleID, nullIfEmpty(c.LastDeepClean), c.Due, nullIfEmpty(c.ScheduledBay), nullIfEmpty(c.ScheduledTime), c.EstimatedHours, c.CleanlinessScore)
        if err != nil { return err }
    }
    for _, s := range fleet.Stabling {
        _, err := tx.ExecContext(ctx, `INSERT INTO fleet_stabling (tenant_id, vehicle_id, position, optimal_position, shunting_time_min, access_difficulty, power_connection)
            VALUES ($1,$2,$3,$4,$5,$6,$7)`,
            tenantID, s.VehicleID, s.Position, s.OptimalPosition, s.ShuntingTimeMin, nullIfEmpty(s.AccessDifficulty), s.PowerConnection)
        if err != nil { return err }
    }
    return tx.Commit()
}

func (p *Postgres) GetFleet(ctx context.Context, tenantID string) (*model.Fleet, error) {
    fleet := model.NewFleet()
    empty := true

    rows, err := p.db.QueryContext(ctx, `SELECT vehicle_id, department, COALESCE(cert_id,''), COALESCE(issue_date,''), COALESCE(expiry_date,''), status, COALESCE(inspector,'') FROM fleet_certificates WHERE tenant_id=$1 ORDER BY vehicle_id, department`, tenantID)
    if err != nil { return nil, err }
    for rows.Next() {
        var c model.Certificate
        if err := rows.Scan(&c.VehicleID, &c.Department, &c.CertID, &c.IssueDate, &c.ExpiryDate, &c.Status, &c.Inspector); err != nil { rows.Close(); return nil, err }
        fleet.AddCertificate(c)
        empty = false
    }
    rows.Close()

    rows, err = p.db.QueryContext(ctx, `SELECT vehicle_id, COALESCE(job_id,''), COALESCE(description,''), priority, status, estimated_hours, COALESCE(assigned_to,''), COALESCE(created_date,'') FROM fleet_job_cards WHERE tenant_id=$1 ORDER BY vehicle_id, job_id`, tenantID)
    if err != nil { return nil, err }
    for rows.Next() {
        var j model.JobCard
        if err := rows.Scan(&j.VehicleID, &j.JobID, &j.Description, &j.Priority, &j.Status, &j.EstimatedHours, &j.AssignedTo, &j.CreatedDate); err != nil { rows.Close(); return nil, err }
        fleet.AddJobCard(j)
        empty = false
    }
    rows.Close()

    rows, err = p.db.QueryContext(ctx, `SELECT vehicle_id, brand, COALESCE(contract_start,''), COALESCE(contract_end,''), required_daily_hours, current_daily_hours, status, penalty_per_hour FROM fleet_branding WHERE tenant_id=$1`, tenantID)
    if err != nil { return nil, err }
    for rows.Next() {
        var b model.BrandingContract
        if err := rows.Scan(&b.VehicleID, &b.Brand, &b.ContractStart, &b.ContractEnd, &b.RequiredDailyHours, &b.CurrentDailyHours, &b.Status, &b.PenaltyPerHour); err != nil { rows.Close(); return nil, err }
        fleet.SetBranding(b)
        empty = false
    }
    rows.Close()

    rows, err = p.db.QueryContext(ctx, `SELECT vehicle_id, total_km, daily_target_km, current_daily_km, bogie_wear_pct, brake_wear_pct, hvac_wear_pct, COALESCE(last_maintenance,'') FROM fleet_mileage WHERE tenant_id=$1`, tenantID)
    if err != nil { return nil, err }
    for rows.Next() {
        var m model.MileageRecord
        if err := rows.Scan(&m.VehicleID, &m.TotalKM, &m.DailyTargetKM, &m.CurrentDailyKM, &m.BogieWearPct, &m.BrakeWearPct, &m.HVACWearPct, &m.LastMaintenance); err != nil { rows.Close(); return nil, err }
        fleet.SetMileage(m)
        empty = false
    }
    rows.Close()

    rows, err = p.db.QueryContext(ctx, `SELECT vehicle_id, COALESCE(last_deep_clean,''), due, COALESCE(scheduled_bay,''), COALESCE(scheduled_time,''), estimated_hours, cleanliness_score FROM fleet_cleaning WHERE tenant_id=$1`, tenantID)
    if err != nil { return nil, err }
    for rows.Next() {
        var c model.CleaningRecord
        if err := rows.Scan(&c.VehicleID, &c.LastDeepClean, &c.Due, &c.ScheduledBay, &c.ScheduledTime, &c.EstimatedHours, &c.CleanlinessScore); err != nil { rows.Close(); return nil, err }
        fleet.SetCleaning(c)
        empty = false
    }
    rows.Close()

    rows, err = p.db.QueryContext(ctx, `SELECT vehicle_id, position, optimal_position, shunting_time_min, COALESCE(access_difficulty,''), power_connection FROM fleet_stabling WHERE tenant_id=$1`, tenantID)
    if err != nil { return nil, err }
    for rows.Next() {
        var s model.StablingRecord
        if err := rows.Scan(&s.VehicleID, &s.Position, &s.OptimalPosition, &s.ShuntingTimeMin, &s.AccessDifficulty, &s.PowerConnection); err != nil { rows.Close(); return nil, err }
        fleet.SetStabling(s)
        empty = false
    }
    rows.Close()

    if empty { return nil, ErrNotFound }
    return fleet, nil
}

func (p *Postgres) SaveAllocation(ctx context.Context, tenantID string, alloc model.Allocation) error {
    service, _ := json.Marshal(alloc.Service)
    standby, _ := json.Marshal(alloc.Standby)
    maint, _ := json.Marshal(alloc.Maintenance)
    _, err := p.db.ExecContext(ctx, `INSERT INTO allocations (id, tenant_id, plan_date, target, service, standby, maintenance, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (tenant_id, plan_date) DO UPDATE SET
          id=$1, target=$4, service=$5, standby=$6, maintenance=$7, created_at=$8`,
        alloc.ID, tenantID, alloc.PlanDate, alloc.Target, service, standby, maint, alloc.CreatedAt)
    return err
}

func (p *Postgres) GetAllocation(ctx context.Context, tenantID, planDate string) (model.Allocation, error) {
    row := p.db.QueryRowContext(ctx, `SELECT id::text, plan_date, target, service, standby, maintenance, created_at FROM allocations WHERE tenant_id=$1 AND plan_date=$2`, tenantID, planDate)
    return scanAllocation(row)
}

func (p *Postgres) LatestAllocation(ctx context.Context, tenantID string) (model.Allocation, error) {
    row := p.db.QueryRowContext(ctx, `SELECT id::text, plan_date, target, service, standby, maintenance, created_at FROM allocations WHERE tenant_id=$1 ORDER BY plan_date DESC LIMIT 1`, tenantID)
    return scanAllocation(row)
}

func scanAllocation(row *sql.Row) (model.Allocation, error) {
    var a model.Allocation
    var service, standby, maint []byte
    if err := row.Scan(&a.ID, &a.PlanDate, &a.Target, &service, &standby, &maint, &a.CreatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return a, ErrNotFound }
        return a, err
    }
    _ = json.Unmarshal(service, &a.Service)
    _ = json.Unmarshal(standby, &a.Standby)
    _ = json.Unmarshal(maint, &a.Maintenance)
    a.Summary = model.AllocationSummary{ServiceCount: len(a.Service), StandbyCount: len(a.Standby), MaintenanceCount: len(a.Maintenance)}
    return a, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, fmt.Sprintf("[\"%s\"]", eventType))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var events []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(events, &s.Events)
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        var payload []byte
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        d.Payload = payload
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`, id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    if err != nil { return err }
    // move to DLQ
    _, err = p.db.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, secret, payload, attempts, last_error)
        SELECT gen_random_uuid(), tenant_id, id, event_type, url, secret, payload, attempts+1, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError))
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
    var rows *sql.Rows
    var err error
    if status != "" {
        q += ` AND status=$2 ORDER BY id LIMIT $3`
        rows, err = p.db.QueryContext(ctx, q, tenantID, status, limit)
    } else {
        q += ` ORDER BY id LIMIT $2`
        rows, err = p.db.QueryContext(ctx, q, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func (p *Postgres) WebhookMetrics(ctx context.Context, tenantID string, since time.Time, eventType, status string) ([]map[string]any, error) {
    q := `SELECT event_type, status, COUNT(*) AS cnt, COALESCE(AVG(latency_ms),0)::bigint AS avg_latency_ms FROM webhook_deliveries WHERE tenant_id=$1 AND updated_at >= $2`
    args := []any{tenantID, since}
    idx := 3
    if eventType != "" { q += ` AND event_type=$` + fmt.Sprint(idx); args = append(args, eventType); idx++ }
    if status != "" { q += ` AND status=$` + fmt.Sprint(idx); args = append(args, status); idx++ }
    q += ` GROUP BY event_type, status`
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []map[string]any{}
    for rows.Next() {
        var et, st string
        var cnt, avg int64
        if err := rows.Scan(&et, &st, &cnt, &avg); err != nil { return nil, err }
        out = append(out, map[string]any{"eventType": et, "status": st, "count": cnt, "avgLatencyMs": avg})
    }
    return out, nil
}

func (p *Postgres) SavePlanMetrics(ctx context.Context, tenantID, planDate string, metrics map[string]any) error {
    js, _ := json.Marshal(metrics)
    _, err := p.db.ExecContext(ctx, `INSERT INTO plan_metrics (tenant_id, plan_date, metrics, created_at) VALUES ($1,$2,$3,now())
        ON CONFLICT (tenant_id, plan_date) DO UPDATE SET metrics=$3, created_at=now()`, tenantID, planDate, js)
    return err
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, tenantID, planDate string) ([]map[string]any, error) {
    base := `SELECT plan_date, metrics FROM plan_metrics WHERE tenant_id=$1`
    args := []any{tenantID}
    if planDate != "" { base += ` AND plan_date=$2`; args = append(args, planDate) }
    base += ` ORDER BY plan_date`
    rows, err := p.db.QueryContext(ctx, base, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []map[string]any{}
    for rows.Next() {
        var pd string
        var js []byte
        if err := rows.Scan(&pd, &js); err != nil { return nil, err }
        var m map[string]any
        _ = json.Unmarshal(js, &m)
        if m == nil { m = map[string]any{} }
        m["planDate"] = pd
        out = append(out, m)
    }
    return out, nil
}

func (p *Postgres) GetPlannerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    row := p.db.QueryRowContext(ctx, `SELECT config FROM planner_config WHERE tenant_id=$1`, tenantID)
    var js []byte
    if err := row.Scan(&js); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return nil, nil }
        return nil, err
    }
    var cfg map[string]any
    if err := json.Unmarshal(js, &cfg); err != nil { return nil, err }
    return cfg, nil
}

func (p *Postgres) SavePlannerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    js, _ := json.Marshal(cfg)
    _, err := p.db.ExecContext(ctx, `INSERT INTO planner_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
    return err
}

func (p *Postgres) ListWebhookDLQ(ctx context.Context, tenantID, eventType string, olderThan time.Time, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    base := `SELECT id::text, delivery_id::text, event_type, url, COALESCE(last_error,''), attempts, created_at FROM webhook_dlq WHERE tenant_id=$1`
    args := []any{tenantID}
    idx := 2
    if eventType != "" { base += ` AND event_type=$` + fmt.Sprint(idx); args = append(args, eventType); idx++ }
    if !olderThan.IsZero() { base += ` AND created_at < $` + fmt.Sprint(idx); args = append(args, olderThan); idx++ }
    order := ` ORDER BY id`
    var rows *sql.Rows
    var err error
    if cursor != "" {
        q := base + ` AND id::text > $` + fmt.Sprint(idx) + order + ` LIMIT $` + fmt.Sprint(idx+1)
        args = append(args, cursor, limit)
        rows, err = p.db.QueryContext(ctx, q, args...)
    } else {
        q := base + order + ` LIMIT $` + fmt.Sprint(idx)
        args = append(args, limit)
        rows, err = p.db.QueryContext(ctx, q, args...)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, delID, et, url, errStr string
        var attempts int
        var created time.Time
        if err := rows.Scan(&id, &delID, &et, &url, &errStr, &attempts, &created); err != nil { return nil, "", err }
        out = append(out, map[string]any{"id": id, "deliveryId": delID, "eventType": et, "url": url, "lastError": errStr, "attempts": attempts, "createdAt": created})
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    var delID, et, url, secret string
    var payload []byte
    err := p.db.QueryRowContext(ctx, `SELECT COALESCE(delivery_id::text,''), event_type, url, COALESCE(secret,''), payload FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(&delID, &et, &url, &secret, &payload)
    if err != nil { return err }
    if _, err := p.EnqueueWebhook(ctx, tenantID, delID, et, url, secret, payload); err != nil { return err }
    _, err = p.db.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func (p *Postgres) RequeueWebhookDLQBulk(ctx context.Context, tenantID string, ids []string) error {
    for _, id := range ids {
        if err := p.RequeueWebhookDLQ(ctx, tenantID, id); err != nil { return err }
    }
    return nil
}

func (p *Postgres) DeleteWebhookDLQBulk(ctx context.Context, tenantID string, ids []string, olderThan time.Time) error {
    if len(ids) > 0 {
        for _, id := range ids {
            if _, err := p.db.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id); err != nil { return err }
        }
        return nil
    }
    if !olderThan.IsZero() {
        _, err := p.db.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND created_at < $2`, tenantID, olderThan)
        return err
    }
    return nil
}

func nullIfEmpty(s string) any {
    if s == "" { return nil }
    return s
}
