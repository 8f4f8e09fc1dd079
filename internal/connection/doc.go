// Package connection implements the realtime Connection Manager.
//
// The Connection Manager:
//   - Owns at most one WebSocket transport at a time
//   - Reconnects after unexpected loss with exponential backoff
//     (baseDelay * 2^attempt, at most maxAttempts delays)
//   - Parses inbound JSON frames and dispatches them to one EventHandler
//   - Exposes Send and the current connection State
//
// State machine:
//
//	Closed ──Start──▶ Connecting ──open──▶ Open
//	   ▲                  │                 │
//	   │◀─────close───────┴────close────────┘
//	   │  (retry timer armed while attempts < maxAttempts)
//	   └──timer fires with attempts == maxAttempts──▶ Errored
//
// A transport error moves the manager to Errored and forces the transport
// closed, so every exit path runs through the close handling above.
package connection
