package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	graphRejections *CounterVec
	syncChanges     *CounterVec

	realtimeClients *Gauge
	realtimeEvents  *CounterVec

	dbStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the process-wide metric set. It returns nil when disabled, and every
// method is nil-safe so callers never need to check.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		latencyBuckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
		instance = &Metrics{
			apiRequests: NewCounterVec("sg_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency:  NewHistogramVec("sg_api_request_duration_seconds", "API request latency in seconds by method/route/status.", []string{"method", "route", "status"}, latencyBuckets),
			apiInflight: NewGauge("sg_api_inflight_requests", "In-flight API requests."),

			aggregateOps:       NewCounterVec("sg_aggregate_operations_total", "Aggregate write operations by op/status.", []string{"op", "status"}),
			aggregateLatency:   NewHistogramVec("sg_aggregate_operation_duration_seconds", "Aggregate write latency in seconds by op/status.", []string{"op", "status"}, latencyBuckets),
			aggregateConflicts: NewCounterVec("sg_aggregate_conflicts_total", "Aggregate writes that ended in a conflict.", []string{"op"}),
			aggregateRetries:   NewCounterVec("sg_aggregate_retries_total", "Aggregate writes that ended in a retryable failure.", []string{"op"}),

			graphRejections: NewCounterVec("sg_graph_rejections_total", "Rejected structural edits by reason.", []string{"reason"}),
			syncChanges:     NewCounterVec("sg_sync_changes_total", "Rows touched by graph syncs by kind.", []string{"kind"}),

			realtimeClients: NewGauge("sg_realtime_clients", "Connected realtime stream clients."),
			realtimeEvents:  NewCounterVec("sg_realtime_events_total", "Realtime events delivered by event type.", []string{"event"}),

			dbStats:   NewGaugeVec("sg_db_pool", "Database pool statistics.", []string{"stat"}),
			redisUp:   NewGauge("sg_redis_up", "Redis reachability (1 up, 0 down)."),
			redisPing: NewGauge("sg_redis_ping_seconds", "Redis ping latency in seconds."),
		}
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, pw := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries,
		m.graphRejections, m.syncChanges,
		m.realtimeClients, m.realtimeEvents,
		m.dbStats, m.redisUp, m.redisPing,
	} {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.aggregateOps.Inc(op, status)
	m.aggregateLatency.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(op)
}

func (m *Metrics) IncGraphRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.graphRejections.Inc(reason)
}

// AddSyncChanges records the per-kind row counts of one committed sync.
func (m *Metrics) AddSyncChanges(counts map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range counts {
		if n > 0 {
			m.syncChanges.Add(float64(n), kind)
		}
	}
}

func (m *Metrics) RealtimeClientInc() {
	if m == nil {
		return
	}
	m.realtimeClients.Inc()
}

func (m *Metrics) RealtimeClientDec() {
	if m == nil {
		return
	}
	m.realtimeClients.Dec()
}

func (m *Metrics) IncRealtimeEvent(event string) {
	if m == nil {
		return
	}
	m.realtimeEvents.Inc(event)
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
				m.dbStats.Set(float64(stats.InUse), "in_use")
				m.dbStats.Set(float64(stats.Idle), "idle")
				m.dbStats.Set(float64(stats.WaitCount), "wait_count")
				m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.dbStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
