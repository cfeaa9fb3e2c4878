// Package config loads and validates torrdrop's TOML configuration.
//
// Load resolves the file (explicit flag, then ~/.config/torrdrop/config.toml,
// then ./torrdrop.toml), applies defaults, expands ~ in paths, and validates.
// Validation is strict about the watched directory existing so the daemon
// fails fast instead of entering the loop with a broken inbox.
package config
