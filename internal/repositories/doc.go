// Package repositories implements SQLite persistence for the local job history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Records are soft deleted via deleted_at timestamps and excluded from queries by default.
//
// Key Implementations:
//   - [JobRepository] : Job records and their design variants
//   - [JobRecorderAdapter] : Records finished runs for the poster engine
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
