// Package services defines shared utilities consumed by the queue manager and
// the external integrations that live in its subpackages.
//
// Key responsibilities:
//   - Context helpers that stamp capture IDs, manager operations, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is while keeping the underlying cause.
//
// Subpackages hold the clients for the reverse geocoder, the admin panel,
// object storage, the evidence catalog, and the event bus.
package services
