// Package daemon coordinates the long-running torrdrop process.
//
// It wires configuration, the inbox store, the ingestion loop, and the
// download engine client into a single lifecycle with flock-based locking to
// prevent multiple instances. Startup probes engine reachability so a
// misconfigured RPC endpoint fails fast instead of quarantining every
// descriptor. The daemon also exposes the maintenance operations the CLI
// reaches over IPC: listing the inbox, retrying quarantined files, and
// pruning archived records.
package daemon
