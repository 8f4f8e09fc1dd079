// Package metrics provides OpenTelemetry metrics exported in Prometheus format.
//
// Key metrics:
//   - WebSocket connect attempts, reconnects and connection state
//   - Inbound/outbound message rates and parse errors
//   - REST request counts and latencies
//   - Chat archive inserts
//
// Instruments are resolved against the global MeterProvider, so the helpers
// are safe to call before Init (they record into a no-op provider).
package metrics
