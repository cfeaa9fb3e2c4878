// Package notifications delivers lifecycle events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when notifications are disabled, so
// callers never branch on configuration.
package notifications
