// Package queue persists download jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-job recovery, captured process logs,
// and the status transitions the workflow manager steps jobs through. Jobs
// carry their original request parameters as JSON so stages can rebuild
// external commands without extra state.
//
// The database is transient storage for in-flight and recently finished
// jobs, not a long-term archive: finished jobs past the retention cap are
// evicted together with their files. Schema changes bump the version in
// schema.go; users clear the database to adopt the new schema.
package queue
