// Package ingest receives serialized agent observations and persists
// them: one writer per stream plus the batch pipeline fanning a mixed
// request out across the writers inside a single transaction.
//
// Writers coerce what they can (missing timestamps, unknown event
// types, out-of-range percentages) and reject only what they must.
// Per-item failures inside a batch roll back to a savepoint, so the
// items that passed still commit.
package ingest
