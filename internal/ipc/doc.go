// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management (including owner-only permissions) and
// the request/response DTOs. Every mutating call is tagged with a correlation
// id so daemon logs for one CLI command can be grouped.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
