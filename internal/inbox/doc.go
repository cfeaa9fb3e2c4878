// Package inbox persists the tracking table for descriptor files observed
// in the watched directory.
//
// Each file gets one durable record carrying its state machine position,
// size history, and attempt count. Persistence is SQLite in WAL mode with
// bounded busy retries. Because the record survives restarts, a file whose
// status is submitted is only re-archived after a crash, never re-submitted.
package inbox
