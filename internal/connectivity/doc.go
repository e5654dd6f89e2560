// Package connectivity decides whether the evidence backend is reachable.
//
// The Oracle probes a configured URL on an interval, re-probes immediately
// when the kernel reports a network interface change over netlink, and
// publishes typed online/offline events to subscribers only when the state
// flips. Fixed online or offline modes bypass probing entirely.
package connectivity
