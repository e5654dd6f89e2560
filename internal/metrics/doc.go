// Package metrics defines the Prometheus instruments served on /metrics.
package metrics
