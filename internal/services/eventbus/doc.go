// Package eventbus publishes "evidence uploaded" events to Kafka.
package eventbus
