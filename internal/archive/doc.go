// Package archive persists the chat transcript and reminder notifications
// to PostgreSQL.
//
// The writer drains the router's archive queues into batches and inserts
// them with pgx.Batch. Rows are keyed by the client-generated UUID and
// inserted with ON CONFLICT DO NOTHING, so replays are harmless. The archive
// is append-only.
package archive
