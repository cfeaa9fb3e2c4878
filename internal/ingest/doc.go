// Package ingest drives the watched-directory workflow: it polls for
// descriptor files, waits for them to stop growing, hands each one to the
// download engine exactly once, and archives or quarantines the result.
// Progress is persisted through the inbox store before any side effect so a
// restart resumes where the previous run stopped.
package ingest
