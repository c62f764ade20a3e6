package api

import (
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pveneroso/gogoame-2/internal/config"
	"github.com/pveneroso/gogoame-2/internal/game"
)

// Metrics with bounded cardinality (no per-ball or per-client labels)
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_frame_duration_seconds",
		Help:    "Time spent rendering a PNG frame",
		Buckets: []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.25},
	})

	ballCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_ball_count",
		Help: "Current number of live balls",
	})

	corruptionLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_corruption_level",
		Help: "Current corruption pool level",
	})

	scoreGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_score",
		Help: "Current score",
	})

	livesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_lives",
		Help: "Current lives",
	})

	// Bounded: one label value per game.EventType
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_events_total",
		Help: "Simulation events by type",
	}, []string{"event_type"})

	// Event log metrics
	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_total",
		Help: "Total events accepted by the event log",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_dropped_total",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the chi route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket messages by direction",
	}, []string{"direction"}) // "out", "in"

	commandsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commands_rejected_total",
		Help: "Client commands refused before reaching the simulation",
	}, []string{"reason"}) // "parse", "rate_limit", "queue_full", "invalid"
)

// StartDebugServer starts the internal observability server and returns it
// so the caller can shut it down. The listen address must be loopback unless
// ALLOW_DEBUG_EXTERNAL=true; anything else is forced to 127.0.0.1.
func StartDebugServer(cfg config.ObservabilityConfig) (*http.Server, error) {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil, nil
	}

	addr := loopbackAddr(cfg.ListenAddr)
	if addr != cfg.ListenAddr {
		log.Printf("⚠️ Debug server forced to %s for security", addr)
	}

	mux := http.NewServeMux()

	// pprof endpoints for profiling
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	// Prometheus metrics endpoint
	if cfg.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("📊 Debug server starting on %s", ln.Addr())
		if cfg.EnablePprof {
			log.Printf("   - pprof:   http://%s/debug/pprof/", ln.Addr())
		}
		if cfg.EnableMetrics {
			log.Printf("   - metrics: http://%s/metrics", ln.Addr())
		}

		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return srv, nil
}

// loopbackAddr keeps addr when its host is a loopback address and otherwise
// rebinds its port on 127.0.0.1.
func loopbackAddr(addr string) string {
	if os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true" {
		return addr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "127.0.0.1:6060"
	}
	if host == "localhost" {
		return addr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return addr
	}
	return net.JoinHostPort("127.0.0.1", port)
}

// EngineMetrics turns tick stats into metric updates.
type EngineMetrics struct {
	log         *game.EventLog
	lastTotal   atomic.Uint64
	lastDropped atomic.Uint64
}

// AttachEngineMetrics installs a tick hook that feeds the simulation metrics.
func AttachEngineMetrics(engine *game.Engine) *EngineMetrics {
	m := &EngineMetrics{log: engine.GetEventLog()}
	engine.SetTickHook(m.Observe)
	return m
}

// Observe records one tick.
func (m *EngineMetrics) Observe(stats game.TickStats) {
	tickDuration.Observe(stats.Duration.Seconds())
	ballCount.Set(float64(stats.Balls))
	corruptionLevel.Set(stats.Corruption)
	scoreGauge.Set(float64(stats.Score))
	livesGauge.Set(float64(stats.Lives))

	for _, e := range stats.Events {
		eventsTotal.WithLabelValues(e.Type.String()).Inc()
	}

	if m.log != nil {
		UpdateEventLogStats(&m.lastTotal, &m.lastDropped, m.log.GetTotalCount(), m.log.GetDroppedCount())
	}
}

// UpdateEventLogStats adds the growth of the event log counters since the
// last call; Prometheus counters only move forward.
func UpdateEventLogStats(lastTotal, lastDropped *atomic.Uint64, total, dropped uint64) {
	if prev := lastTotal.Swap(total); total > prev {
		eventLogTotal.Add(float64(total - prev))
	}
	if prev := lastDropped.Swap(dropped); dropped > prev {
		eventLogDropped.Add(float64(dropped - prev))
	}
}

// RecordRender records render timing for metrics
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordCommandRejected increments the command rejection counter
func RecordCommandRejected(reason string) {
	commandsRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments the WebSocket message counter
func IncrementWSMessages(direction string) {
	wsMessagesTotal.WithLabelValues(direction).Inc()
}
