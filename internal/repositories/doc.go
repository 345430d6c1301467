// Package repositories implements SQLite persistence for the retry ledger.
//
// Key Implementations:
//   - [RetryRepository] : append-only record of retry commands issued per download, used to fill the retryCount of status snapshots
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
