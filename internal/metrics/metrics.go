package metrics

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/rickgao/remindchat"

var (
	mu         sync.Mutex
	registered bool

	mWSConnectAttempts metric.Int64Counter
	mWSReconnects      metric.Int64Counter
	mWSMessages        metric.Int64Counter
	mWSParseErrors     metric.Int64Counter
	mWSSendFailures    metric.Int64Counter
	mWSState           metric.Int64ObservableGauge

	mRESTRequests metric.Int64Counter
	mRESTDuration metric.Float64Histogram

	mArchiveRows metric.Int64Counter

	mBuildInfo metric.Int64ObservableGauge

	wsState      atomic.Int64
	buildVersion atomic.Value
	buildCommit  atomic.Value
)

// instruments lazily registers every instrument against the current global
// MeterProvider. Init resets the registration after installing a provider.
func instruments() {
	mu.Lock()
	defer mu.Unlock()
	if registered {
		return
	}
	registered = true

	meter := otel.Meter(meterName)

	mWSConnectAttempts, _ = meter.Int64Counter("remindchat_websocket_connect_attempts_total",
		metric.WithDescription("WebSocket connect attempts by result"))
	mWSReconnects, _ = meter.Int64Counter("remindchat_websocket_reconnects_total",
		metric.WithDescription("WebSocket reconnects scheduled"))
	mWSMessages, _ = meter.Int64Counter("remindchat_websocket_messages_total",
		metric.WithDescription("WebSocket messages by direction and type"))
	mWSParseErrors, _ = meter.Int64Counter("remindchat_websocket_parse_errors_total",
		metric.WithDescription("Inbound WebSocket frames that were not valid JSON"))
	mWSSendFailures, _ = meter.Int64Counter("remindchat_websocket_send_failures_total",
		metric.WithDescription("Outbound WebSocket sends that did not reach the socket"))
	mWSState, _ = meter.Int64ObservableGauge("remindchat_websocket_state",
		metric.WithDescription("Connection state (0=closed, 1=connecting, 2=open, 3=errored)"))

	mRESTRequests, _ = meter.Int64Counter("remindchat_rest_requests_total",
		metric.WithDescription("REST requests by method and result"))
	mRESTDuration, _ = meter.Float64Histogram("remindchat_rest_request_duration_seconds",
		metric.WithDescription("REST request latency in seconds"),
		metric.WithUnit("s"))

	mArchiveRows, _ = meter.Int64Counter("remindchat_archive_rows_total",
		metric.WithDescription("Chat archive rows by kind and result"))

	mBuildInfo, _ = meter.Int64ObservableGauge("remindchat_build_info",
		metric.WithDescription("Build information (value is always 1)"))

	_, err := meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(mWSState, wsState.Load())
		v, _ := buildVersion.Load().(string)
		c, _ := buildCommit.Load().(string)
		if v != "" || c != "" {
			o.ObserveInt64(mBuildInfo, 1, metric.WithAttributes(
				attribute.String("version", v),
				attribute.String("commit", c),
			))
		}
		return nil
	}, mWSState, mBuildInfo)
	if err != nil {
		otel.Handle(err)
	}
}

func reset() {
	mu.Lock()
	registered = false
	mu.Unlock()
}

// --- WebSocket helpers ---

func IncWSConnectAttempt(ctx context.Context, result string) {
	instruments()
	mWSConnectAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func IncWSReconnect(ctx context.Context) {
	instruments()
	mWSReconnects.Add(ctx, 1)
}

func IncWSMessage(ctx context.Context, direction, msgType string) {
	instruments()
	mWSMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("msg_type", msgType),
	))
}

func IncWSParseError(ctx context.Context) {
	instruments()
	mWSParseErrors.Add(ctx, 1)
}

func IncWSSendFailure(ctx context.Context, reason string) {
	instruments()
	mWSSendFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// SetWSState updates the backing value of the connection state gauge.
func SetWSState(state int64) {
	wsState.Store(state)
}

// --- REST helpers ---

func ObserveRESTRequest(ctx context.Context, method, result string, seconds float64) {
	instruments()
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("result", result),
	)
	mRESTRequests.Add(ctx, 1, attrs)
	mRESTDuration.Record(ctx, seconds, attrs)
}

// --- Archive helpers ---

func AddArchiveRows(ctx context.Context, kind, result string, n int64) {
	if n == 0 {
		return
	}
	instruments()
	mArchiveRows.Add(ctx, n, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

// RegisterBuildInfo records the version reported by remindchat_build_info.
func RegisterBuildInfo(version, commit string) {
	buildVersion.Store(version)
	buildCommit.Store(commit)
}
