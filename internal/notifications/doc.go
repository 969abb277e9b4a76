// Package notifications delivers index events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Scan completion, scan failure and degraded-location events each
// have a dedicated method so callers emit consistent messages without
// duplicating HTTP glue.
//
// Extend this package if you need alternative transports; scan and watch
// code depends only on the Service interface.
package notifications
