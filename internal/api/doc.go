// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates queue summaries, manager outcomes and session state
// into transport-friendly DTOs so the CLI and HTTP consumers never depend on
// internal types.
//
// # Key Types
//
// CaptureRequest/SubmitResponse: one photo in, its final state out.
//
// QueueItem/QueueListResponse: payload-free listing of pending captures.
//
// RetryResponse: counts and per-item errors of a retry pass.
//
// DaemonStatus: connectivity, pending count, last retry and operator session.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds in
// UTC and are omitted when zero. Photo bytes travel as base64 through
// encoding/json's []byte handling.
package api
