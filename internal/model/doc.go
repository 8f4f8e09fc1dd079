// Package model defines shared data types used across the chat client.
//
// Conventions:
//   - IDs: uuid.UUID, generated client-side when the service sends none
//   - Timestamps: time.Time in the zone they were received in
package model
