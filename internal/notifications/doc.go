// Package notifications delivers daemon events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Per-event switches (queued, retry, errors) suppress noisy events without
// touching callers, which depend only on the Service interface.
package notifications
