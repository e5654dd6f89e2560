// Package main hosts the checkproof CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into IPC calls against the
// capture daemon: stamping and submitting photos, retrying the offline queue,
// linking an operator session and inspecting status. Queue inspection falls
// back to reading the queue database directly when the daemon is down.
package main
