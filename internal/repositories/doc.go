// Package repositories implements SQLite persistence for ingest jobs.
//
// [JobRepository] handles CRUD operations with atomic sequence generation for human-readable ordering,
// soft deletes via deleted_at timestamps, and the startup sweep that fails jobs a previous process
// left running ([JobRepository.MarkInterrupted]).
//
// Sequence numbers provide stable ordering (job #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
