// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	HighlightsAdded     prometheus.Counter
	HighlightsRemoved   prometheus.Counter
	DuplicatesIgnored   prometheus.Counter
	EmptyRangesRejected prometheus.Counter
	ChatCommandsParsed  prometheus.Counter

	// Histograms (seconds)
	eventDuration *prometheus.HistogramVec

	// Gauges
	connectionStateGauge prometheus.Gauge // 0=disconnected,1=connecting,2=connected
	EditorSessionsGauge  prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		HighlightsAdded = promauto.NewCounter(prometheus.CounterOpts{Name: "linelight_highlights_added_total", Help: "Number of highlights added to the registry"})
		HighlightsRemoved = promauto.NewCounter(prometheus.CounterOpts{Name: "linelight_highlights_removed_total", Help: "Number of highlights removed from the registry"})
		DuplicatesIgnored = promauto.NewCounter(prometheus.CounterOpts{Name: "linelight_highlights_duplicate_total", Help: "Number of highlight requests ignored as duplicates"})
		EmptyRangesRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "linelight_highlights_empty_range_total", Help: "Number of highlight requests rejected for empty resolved ranges"})
		ChatCommandsParsed = promauto.NewCounter(prometheus.CounterOpts{Name: "linelight_chat_commands_total", Help: "Number of chat messages recognized as highlight commands"})
		eventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "linelight_event_duration_seconds", Help: "Router event handling duration seconds", Buckets: prometheus.DefBuckets}, []string{"event"})
		connectionStateGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "linelight_chat_connection_state", Help: "Chat connection state: 0 disconnected, 1 connecting, 2 connected"})
		EditorSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "linelight_editor_sessions", Help: "Currently connected editor sessions"})
	})
}

// Counter helpers are nil-safe so core packages can run under test without
// registering metrics.

// AddHighlightsAdded counts stored highlights.
func AddHighlightsAdded(n int) { add(HighlightsAdded, n) }

// AddHighlightsRemoved counts removed highlights.
func AddHighlightsRemoved(n int) { add(HighlightsRemoved, n) }

// IncDuplicatesIgnored counts idempotent duplicate requests.
func IncDuplicatesIgnored() { add(DuplicatesIgnored, 1) }

// IncEmptyRangesRejected counts empty-range rejections.
func IncEmptyRangesRejected() { add(EmptyRangesRejected, 1) }

// IncChatCommandsParsed counts recognized chat commands.
func IncChatCommandsParsed() { add(ChatCommandsParsed, 1) }

func add(c prometheus.Counter, n int) {
	if c != nil && n > 0 {
		c.Add(float64(n))
	}
}

// IncEditorSessions and DecEditorSessions track connected plugin sessions.
func IncEditorSessions() {
	if EditorSessionsGauge != nil {
		EditorSessionsGauge.Inc()
	}
}

func DecEditorSessions() {
	if EditorSessionsGauge != nil {
		EditorSessionsGauge.Dec()
	}
}

// SetConnectionState records the connection state machine's current state.
func SetConnectionState(state int) {
	if connectionStateGauge != nil {
		connectionStateGauge.Set(float64(state))
	}
}

// ObserveEvent starts timing a router event; call the returned func when
// handling finishes.
func ObserveEvent(event string) func() {
	if eventDuration == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		eventDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
