// Package daemon coordinates the long-running CheckProof process.
//
// It wires the queue store, the connectivity oracle, the queue manager, the
// operator session and the capture producer into a single lifecycle with
// flock-based locking to prevent multiple instances. While running it serves
// an optional HTTP API (gorilla/mux) for capture submission, retry, queue
// listing, session linking and Prometheus metrics, guarded by a bearer token
// that may be stored as a bcrypt hash.
//
// Keep orchestration here: capture stamping, queue semantics and uploads live
// in their own packages while the daemon focuses on startup, shutdown, and
// request routing.
package daemon
