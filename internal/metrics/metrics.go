// Package metrics exposes Prometheus counters for tool calls, store
// queries and push-down fallbacks.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	// ToolCalls counts tool invocations by tool and outcome.
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outlook_mcp_tool_calls_total",
			Help: "Total number of tool calls handled",
		},
		[]string{"tool", "status"}, // status: ok, error kind
	)

	// ToolDuration tracks tool latency in seconds.
	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outlook_mcp_tool_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"tool"},
	)

	// PushdownFallbacks counts queries whose store-side filter was
	// rejected and re-run as a local scan.
	PushdownFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outlook_mcp_pushdown_fallbacks_total",
			Help: "Total number of push-down filters that fell back to a local scan",
		},
		[]string{"kind"},
	)

	// SkippedItems counts store items dropped during a scan because
	// they could not be read or normalized.
	SkippedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outlook_mcp_skipped_items_total",
			Help: "Total number of malformed store items skipped during scans",
		},
		[]string{"kind"},
	)

	// ListingSize is the number of records in the live listing per kind.
	ListingSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "outlook_mcp_listing_size",
			Help: "Number of records in the live listing",
		},
		[]string{"kind"},
	)
)

// RecordToolCall records one finished tool call.
func RecordToolCall(tool, status string, duration time.Duration) {
	ToolCalls.WithLabelValues(tool, status).Inc()
	ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// IncrementPushdownFallback records a rejected push-down filter.
func IncrementPushdownFallback(kind string) {
	PushdownFallbacks.WithLabelValues(kind).Inc()
}

// IncrementSkippedItem records a skipped store item.
func IncrementSkippedItem(kind string) {
	SkippedItems.WithLabelValues(kind).Inc()
}

// SetListingSize records the size of the newly installed listing.
func SetListingSize(kind string, n int) {
	ListingSize.WithLabelValues(kind).Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr
// disables the listener.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("metrics listener shutdown")
		}
	}()

	log.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
