package main

import (
    "bufio"
    "fmt"
    "net"
    "net/http"
    "os"
    "strconv"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/rs/zerolog"
    "golang.org/x/time/rate"

    "metroplan/internal/api"
    "metroplan/internal/metrics"
)

func main() {
    log := zerolog.New(os.Stdout).With().Timestamp().Str("component", "api").Logger()

    srvDeps, err := api.NewServer()
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init server")
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Fleet
    mux.HandleFunc("/v1/fleet/refresh", srvDeps.FleetRefreshHandler)
    mux.HandleFunc("/v1/fleet/summary", srvDeps.FleetSummaryHandler)
    mux.HandleFunc("/v1/vehicles", srvDeps.VehiclesHandler)
    mux.HandleFunc("/v1/vehicles/", srvDeps.VehicleByIDHandler)

    // Planning
    mux.Handle("/v1/optimize", rateLimited(http.HandlerFunc(srvDeps.OptimizeHandler)))
    mux.HandleFunc("/v1/allocation", srvDeps.AllocationHandler)
    mux.HandleFunc("/v1/report", srvDeps.ReportHandler)
    mux.HandleFunc("/v1/alerts", srvDeps.AlertsHandler)
    mux.HandleFunc("/v1/simulate", srvDeps.SimulateHandler)

    // Streams
    mux.HandleFunc("/v1/allocations/stream", srvDeps.AllocationsStreamHandler)
    mux.HandleFunc("/v1/allocations/ws", srvDeps.AllocationsWSHandler)

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

    // Health
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.HandleFunc("/v1/debug", srvDeps.DebugJSON)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", srvDeps.WebhookDeliveryRetryHandler)
    mux.HandleFunc("/v1/admin/webhook-metrics", srvDeps.WebhookMetricsHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq", srvDeps.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq/", srvDeps.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/plan-metrics", srvDeps.PlanMetricsHandler)
    mux.HandleFunc("/v1/admin/planner/config", srvDeps.PlannerConfigHandler)

    // Prometheus
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    addr := ":8080"
    if v := os.Getenv("PORT"); v != "" {
        addr = ":" + v
    }

    srv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(log, metricsMiddleware(mux)),
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Info().Str("addr", addr).Msg("API listening")
    // Start webhook worker
    if srvDeps.Pub != nil {
        worker := srvDeps.NewWebhookWorker()
        worker.Start()
    }
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatal().Err(err).Msg("server error")
    }
}

func logMiddleware(log zerolog.Logger, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        log.Info().
            Str("remote", r.RemoteAddr).
            Str("method", r.Method).
            Str("path", r.URL.Path).
            Dur("duration", time.Since(start)).
            Msg("request")
    })
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(c int) { r.status = c; r.ResponseWriter.WriteHeader(c) }

// SSE and WebSocket handlers need the underlying Flusher/Hijacker.
func (r *statusRecorder) Flush() {
    if f, ok := r.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := r.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, fmt.Errorf("hijack not supported") }
    return h.Hijack()
}

func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: 200}
        next.ServeHTTP(rec, r)
        status := fmt.Sprintf("%d", rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
    })
}

func rateLimited(next http.Handler) http.Handler {
    rps := 5.0
    burst := 10
    if v := os.Getenv("RATE_RPS"); v != "" {
        if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 { rps = f }
    }
    if v := os.Getenv("RATE_BURST"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { burst = n }
    }
    limiter := rate.NewLimiter(rate.Limit(rps), burst)
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !limiter.Allow() {
            http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
            return
        }
        next.ServeHTTP(w, r)
    })
}
