// Package poller implements the reminder refresher.
//
// The refresher:
//   - Fetches the reminder list on start and then every interval
//   - Bounds each fetch with a per-request timeout
//   - Hands each successful list to a Handler
//   - Logs and counts failed fetches without stopping
package poller
