// Package metrics exposes Prometheus metrics and a health endpoint for
// the bot process.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Market data ingest
	TicksTotal      prometheus.Counter
	DroppedTicks    prometheus.Counter
	WSReconnects    prometheus.Counter
	RingBufOverflow prometheus.Counter
	BarsClosedTotal prometheus.Counter
	BarLag          prometheus.Gauge

	// Decision pipeline
	EvaluationsTotal  prometheus.Counter
	EvaluationDur     prometheus.Histogram
	SignalsTotal      *prometheus.CounterVec // labels: kind
	SuppressionsTotal *prometheus.CounterVec // labels: verdict
	MalformedBars     prometheus.Counter

	// Option chain poller
	ChainFetchDur    prometheus.Histogram
	ChainFetchErrors prometheus.Counter
	GreeksAge        prometheus.Gauge
	PCRValue         prometheus.Gauge

	// Execution and risk
	OrdersTotal    *prometheus.CounterVec // labels: action, status
	RiskRejections prometheus.Counter
	RealizedPnL    prometheus.Gauge // paise
	OpenPositions  prometheus.Gauge

	// Redis publishing
	RedisWriteDur            prometheus.Histogram
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisBufferedWrites      prometheus.Counter

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_ticks_total",
			Help: "Total ticks received from the feed",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_dropped_ticks_total",
			Help: "Ticks dropped (late or buffer full)",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_ws_reconnects_total",
			Help: "Feed websocket reconnection attempts",
		}),
		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_ringbuf_overflow_total",
			Help: "Tick ring buffer push overflows",
		}),
		BarsClosedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_bars_closed_total",
			Help: "Closed one-minute bars emitted",
		}),
		BarLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optionsbot_bar_lag_seconds",
			Help: "Lag between bar close timestamp and emission time",
		}),

		EvaluationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_evaluations_total",
			Help: "Filter evaluations run",
		}),
		EvaluationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optionsbot_evaluation_duration_seconds",
			Help:    "Indicator compute plus filter evaluation latency per bar",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optionsbot_signals_total",
			Help: "Signals produced (by kind)",
		}, []string{"kind"}),
		SuppressionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optionsbot_suppressions_total",
			Help: "Signals suppressed by the gate (by verdict)",
		}, []string{"verdict"}),
		MalformedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_malformed_bars_total",
			Help: "Bars rejected by validation",
		}),

		ChainFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optionsbot_chain_fetch_duration_seconds",
			Help:    "Option chain fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		ChainFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_chain_fetch_errors_total",
			Help: "Option chain fetch failures",
		}),
		GreeksAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optionsbot_greeks_age_seconds",
			Help: "Age of the latest greeks snapshot",
		}),
		PCRValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optionsbot_pcr",
			Help: "Latest put-call ratio",
		}),

		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optionsbot_orders_total",
			Help: "Orders executed (by action and status)",
		}, []string{"action", "status"}),
		RiskRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_risk_rejections_total",
			Help: "Signals blocked by the risk manager",
		}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optionsbot_realized_pnl_paise",
			Help: "Cumulative realized P&L in paise",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optionsbot_open_positions",
			Help: "Currently open option legs",
		}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optionsbot_redis_write_duration_seconds",
			Help:    "Redis publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optionsbot_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsbot_redis_buffered_writes_total",
			Help: "Snapshots buffered locally while Redis was unreachable",
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optionsbot_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.DroppedTicks,
		m.WSReconnects,
		m.RingBufOverflow,
		m.BarsClosedTotal,
		m.BarLag,
		m.EvaluationsTotal,
		m.EvaluationDur,
		m.SignalsTotal,
		m.SuppressionsTotal,
		m.MalformedBars,
		m.ChainFetchDur,
		m.ChainFetchErrors,
		m.GreeksAge,
		m.PCRValue,
		m.OrdersTotal,
		m.RiskRejections,
		m.RealizedPnL,
		m.OpenPositions,
		m.RedisWriteDur,
		m.RedisCircuitBreakerState,
		m.RedisBufferedWrites,
		m.MarketState,
	)

	return m
}

// HealthStatus represents the process health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected    bool      `json:"ws_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	ChainOK        bool      `json:"chain_ok"`
	MarketOpen     bool      `json:"market_open"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetChainOK(v bool) {
	h.mu.Lock()
	h.ChainOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetMarketOpen(v bool) {
	h.mu.Lock()
	h.MarketOpen = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency and health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.WSConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		WSConnected     bool    `json:"ws_connected"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		ChainOK         bool    `json:"chain_ok"`
		MarketOpen      bool    `json:"market_open"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:     h.WSConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		ChainOK:         h.ChainOK,
		MarketOpen:      h.MarketOpen,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
